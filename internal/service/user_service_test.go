package service

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/repository"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/jobs"
	"github.com/noah-isme/attendance-api/pkg/storage"
)

type recordingQueue struct {
	jobs []jobs.Job
}

func (q *recordingQueue) Submit(job jobs.Job) error {
	q.jobs = append(q.jobs, job)
	return nil
}

var (
	adminActor = models.Actor{UserID: "admin-1", Role: models.RoleAdmin}
	userActor  = models.Actor{UserID: "u1", Role: models.RoleUser}
)

// Ids for fixtures reached through admin paths, which only accept UUIDs.
const (
	aliceID   = "5f0c3d7e-8a41-4c3e-9d6b-2f1a7b9e0c11"
	bobID     = "9b2e6a14-3c5d-4f7a-8e1b-6d0c2a4f8e22"
	unknownID = "0d9e8f7a-6b5c-4d3e-8f2a-1b0c9d8e7f33"
)

type recordingInvalidator struct {
	patterns []string
}

func (r *recordingInvalidator) Invalidate(ctx context.Context, pattern string) error {
	r.patterns = append(r.patterns, pattern)
	return nil
}

func newTestUserService(t *testing.T, repo *mockUserRepo) (*UserService, *storage.LocalStorage, *recordingQueue) {
	t.Helper()
	files, err := storage.NewLocalStorage(t.TempDir(), 16)
	require.NoError(t, err)
	queue := &recordingQueue{}
	signer := storage.NewSignedURLSigner("secret", time.Hour)
	svc := NewUserService(repo, files, signer, queue, nil, nil, zap.NewNop(), UserServiceConfig{FilesPath: "/api/v1/files"})
	return svc, files, queue
}

func picture(name, body string) *models.PictureUpload {
	return &models.PictureUpload{Filename: name, Size: int64(len(body)), Content: strings.NewReader(body)}
}

func TestUpdateProfileKeepsPictureWithoutUpload(t *testing.T) {
	pic := "u1/old.png"
	repo := newMockUserRepo(&models.User{ID: "u1", Username: "alice", Email: "a@example.com", ProfilePic: &pic})
	svc, _, queue := newTestUserService(t, repo)

	profile, notice, err := svc.UpdateProfile(context.Background(), userActor, models.UpdateProfileRequest{Username: "alice2", Email: "a2@example.com"})
	require.NoError(t, err)
	assert.Equal(t, models.NoticeProfileUpdated, notice)
	assert.Equal(t, "alice2", profile.Username)
	require.NotNil(t, repo.users["u1"].ProfilePic)
	assert.Equal(t, pic, *repo.users["u1"].ProfilePic)
	require.NotNil(t, profile.ProfilePicURL)
	assert.True(t, strings.HasPrefix(*profile.ProfilePicURL, "/api/v1/files/"))
	assert.Empty(t, queue.jobs)
}

func TestUpdateProfileReplacesPicture(t *testing.T) {
	pic := "u1/old.png"
	repo := newMockUserRepo(&models.User{ID: "u1", Username: "alice", Email: "a@example.com", ProfilePic: &pic})
	svc, files, queue := newTestUserService(t, repo)

	_, _, err := svc.UpdateProfile(context.Background(), userActor, models.UpdateProfileRequest{Username: "alice", Email: "a@example.com", Picture: picture("me.JPG", "jpegdata")})
	require.NoError(t, err)

	stored := repo.users["u1"].ProfilePic
	require.NotNil(t, stored)
	assert.True(t, strings.HasPrefix(*stored, "u1/"))
	assert.True(t, strings.HasSuffix(*stored, ".jpg"))
	f, err := files.Open(*stored)
	require.NoError(t, err)
	body, _ := io.ReadAll(f)
	_ = f.Close()
	assert.Equal(t, "jpegdata", string(body))

	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobKindDeletePicture, queue.jobs[0].Kind)
	assert.Equal(t, pic, queue.jobs[0].Payload)
}

func TestUpdateProfileRejectsPictureType(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u1", Username: "alice", Email: "a@example.com"})
	svc, _, _ := newTestUserService(t, repo)

	_, _, err := svc.UpdateProfile(context.Background(), userActor, models.UpdateProfileRequest{Username: "alice", Email: "a@example.com", Picture: picture("me.gif", "gif")})
	assert.True(t, appErrors.Is(err, appErrors.ErrUnsupportedMedia))
	assert.Zero(t, repo.calls)
}

func TestUpdateProfileRejectsOversizedPicture(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u1", Username: "alice", Email: "a@example.com"})
	svc, _, _ := newTestUserService(t, repo)

	_, _, err := svc.UpdateProfile(context.Background(), userActor, models.UpdateProfileRequest{Username: "alice", Email: "a@example.com", Picture: picture("me.png", strings.Repeat("x", 64))})
	assert.True(t, appErrors.Is(err, appErrors.ErrPayloadTooLarge))
	assert.Nil(t, repo.users["u1"].ProfilePic)
}

func TestUpdateProfileDuplicateIdentity(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u1", Username: "alice", Email: "a@example.com"})
	repo.exists = true
	svc, _, _ := newTestUserService(t, repo)

	_, _, err := svc.UpdateProfile(context.Background(), userActor, models.UpdateProfileRequest{Username: "bob", Email: "b@example.com"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Equal(t, string(models.NoticeDuplicateIdentity), appErr.Message)
	assert.Equal(t, "alice", repo.users["u1"].Username)
}

func TestUpdateProfileConstraintRaceCleansUpUpload(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u1", Username: "alice", Email: "a@example.com"})
	repo.updateProfileErr = repository.ErrDuplicate
	svc, _, queue := newTestUserService(t, repo)

	_, _, err := svc.UpdateProfile(context.Background(), userActor, models.UpdateProfileRequest{Username: "bob", Email: "b@example.com", Picture: picture("me.png", "png")})
	assert.True(t, appErrors.Is(err, appErrors.ErrConflict))
	require.Len(t, queue.jobs, 1)
	assert.True(t, strings.HasPrefix(queue.jobs[0].Payload, "u1/"))
}

func TestOpenPictureWithSignedLink(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u1", Username: "alice", Email: "a@example.com"})
	svc, _, _ := newTestUserService(t, repo)

	profile, _, err := svc.UpdateProfile(context.Background(), userActor, models.UpdateProfileRequest{Username: "alice", Email: "a@example.com", Picture: picture("me.png", "png")})
	require.NoError(t, err)
	require.NotNil(t, profile.ProfilePicURL)

	token := strings.TrimPrefix(*profile.ProfilePicURL, "/api/v1/files/")
	f, err := svc.OpenPicture(token)
	require.NoError(t, err)
	_ = f.Close()

	_, err = svc.OpenPicture(token + "x")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
}

func TestAdminOperationsRejectNonAdmins(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: "u2", Username: "bob"})
	svc, _, _ := newTestUserService(t, repo)
	ctx := context.Background()

	_, _, err := svc.List(ctx, userActor, models.UserFilter{})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	_, err = svc.SetRole(ctx, userActor, "u2", models.SetRoleRequest{Role: models.RoleAdmin})
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))
	_, err = svc.Delete(ctx, userActor, "u2")
	assert.True(t, appErrors.Is(err, appErrors.ErrForbidden))

	assert.Zero(t, repo.calls)
	assert.Equal(t, models.UserRole(""), repo.users["u2"].Role)
}

func TestSetRole(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: bobID, Username: "bob", Role: models.RoleUser})
	svc, _, _ := newTestUserService(t, repo)

	notice, err := svc.SetRole(context.Background(), adminActor, bobID, models.SetRoleRequest{Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.Equal(t, models.NoticeRoleUpdated, notice)
	assert.Equal(t, models.RoleAdmin, repo.users[bobID].Role)
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionRoleChange, repo.auditLogs[0].Action)

	_, err = svc.SetRole(context.Background(), adminActor, unknownID, models.SetRoleRequest{Role: models.RoleAdmin})
	assert.True(t, appErrors.Is(err, appErrors.ErrNotFound))

	_, err = svc.SetRole(context.Background(), adminActor, bobID, models.SetRoleRequest{Role: "superuser"})
	assert.True(t, appErrors.Is(err, appErrors.ErrValidation))
}

func TestSetRoleMalformedIDIsNotFound(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: bobID, Username: "bob", Role: models.RoleUser})
	svc, _, _ := newTestUserService(t, repo)

	for _, id := range []string{"not-a-uuid", "42", bobID + "x"} {
		_, err := svc.SetRole(context.Background(), adminActor, id, models.SetRoleRequest{Role: models.RoleAdmin})
		assert.True(t, appErrors.Is(err, appErrors.ErrNotFound), id)
	}
	assert.Zero(t, repo.calls)
	assert.Equal(t, models.RoleUser, repo.users[bobID].Role)
}

func TestDeleteUser(t *testing.T) {
	pic := bobID + "/p.png"
	repo := newMockUserRepo(&models.User{ID: bobID, Username: "bob", ProfilePic: &pic})
	svc, _, queue := newTestUserService(t, repo)

	notice, err := svc.Delete(context.Background(), adminActor, bobID)
	require.NoError(t, err)
	assert.Equal(t, models.NoticeUserDeleted, notice)
	assert.NotContains(t, repo.users, bobID)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, pic, queue.jobs[0].Payload)

	notice, err = svc.Delete(context.Background(), adminActor, bobID)
	require.NoError(t, err)
	assert.Equal(t, models.NoticeUserDeleted, notice)
	assert.Len(t, queue.jobs, 1)
}

func TestDeleteUserMalformedIDIsNoop(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: bobID, Username: "bob"})
	svc, _, queue := newTestUserService(t, repo)

	notice, err := svc.Delete(context.Background(), adminActor, "not-a-uuid")
	require.NoError(t, err)
	assert.Equal(t, models.NoticeUserDeleted, notice)
	assert.Zero(t, repo.calls)
	assert.Contains(t, repo.users, bobID)
	assert.Empty(t, queue.jobs)
}

func TestDeleteUserInvalidatesGradeCache(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: bobID, Username: "bob"})
	files, err := storage.NewLocalStorage(t.TempDir(), 16)
	require.NoError(t, err)
	grades := &recordingInvalidator{}
	svc := NewUserService(repo, files, nil, &recordingQueue{}, grades, nil, zap.NewNop(), UserServiceConfig{})

	_, err = svc.Delete(context.Background(), adminActor, bobID)
	require.NoError(t, err)
	assert.Equal(t, []string{"grades:*"}, grades.patterns)

	// nothing removed, nothing to invalidate
	_, err = svc.Delete(context.Background(), adminActor, bobID)
	require.NoError(t, err)
	assert.Len(t, grades.patterns, 1)
}

func TestDeleteUserStoreFailure(t *testing.T) {
	repo := newMockUserRepo(&models.User{ID: bobID, Username: "bob"})
	repo.deleteErr = errors.New("connection reset")
	svc, _, _ := newTestUserService(t, repo)

	_, err := svc.Delete(context.Background(), adminActor, bobID)
	assert.True(t, appErrors.Is(err, appErrors.ErrInternal))
}

func TestListUsersForDashboard(t *testing.T) {
	repo := newMockUserRepo(
		&models.User{ID: "u1", Username: "alice", Role: models.RoleUser},
		&models.User{ID: "a1", Username: "root", Role: models.RoleAdmin},
	)
	svc, _, _ := newTestUserService(t, repo)

	role := models.RoleUser
	users, pagination, err := svc.List(context.Background(), adminActor, models.UserFilter{Role: &role})
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "alice", users[0].Username)
	assert.Equal(t, 1, pagination.TotalCount)
	assert.Equal(t, 20, pagination.PageSize)
}

func TestPictureCleanupHandler(t *testing.T) {
	files, err := storage.NewLocalStorage(t.TempDir(), 0)
	require.NoError(t, err)
	_, err = files.Save("u1/p.png", strings.NewReader("png"))
	require.NoError(t, err)

	handler := NewPictureCleanupHandler(files, nil)
	require.NoError(t, handler(context.Background(), jobs.Job{Kind: JobKindDeletePicture, Payload: "u1/p.png"}))
	_, err = files.Open("u1/p.png")
	assert.Error(t, err)

	// already gone is not an error
	assert.NoError(t, handler(context.Background(), jobs.Job{Kind: JobKindDeletePicture, Payload: "u1/p.png"}))
	assert.Error(t, handler(context.Background(), jobs.Job{Kind: JobKindDeletePicture, Payload: "../etc/passwd"}))
}
