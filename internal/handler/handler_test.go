package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-api/internal/middleware"
	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/service"
	"github.com/noah-isme/attendance-api/pkg/export"
)

var (
	adminClaims = &models.JWTClaims{UserID: "admin-1", Username: "root", Role: models.RoleAdmin}
	userClaims  = &models.JWTClaims{UserID: "user-1", Username: "alice", Role: models.RoleUser}
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestContext(method, target string, body io.Reader, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func jsonBody(s string) io.Reader {
	return bytes.NewBufferString(s)
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func noticeOf(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	meta, ok := decodeEnvelope(t, w)["meta"].(map[string]interface{})
	require.True(t, ok, "response has no meta block")
	notice, _ := meta["notice"].(string)
	return notice
}

type authServiceMock struct {
	registerReq    models.RegisterRequest
	registerResp   *models.UserInfo
	registerErr    error
	loginReq       models.LoginRequest
	loginResp      *models.LoginResponse
	loginErr       error
	logoutToken    string
	logoutUser     string
	logoutCalled   bool
	changeCalled   bool
	meResp         *models.UserInfo
	registerCalled bool
}

func (m *authServiceMock) Register(ctx context.Context, req models.RegisterRequest) (*models.UserInfo, error) {
	m.registerCalled = true
	m.registerReq = req
	return m.registerResp, m.registerErr
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.loginReq = req
	return m.loginResp, m.loginErr
}

func (m *authServiceMock) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "new"}, nil
}

func (m *authServiceMock) Logout(ctx context.Context, refreshToken string, userID string, meta models.LoginRequest) (models.Notice, error) {
	m.logoutCalled = true
	m.logoutToken = refreshToken
	m.logoutUser = userID
	return models.NoticeLoggedOut, nil
}

func (m *authServiceMock) ChangePassword(ctx context.Context, userID string, req models.ChangePasswordRequest) error {
	m.changeCalled = true
	return nil
}

func (m *authServiceMock) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	return m.meResp, nil
}

type userServiceMock struct {
	updateReq     models.UpdateProfileRequest
	pictureBytes  []byte
	updateCalled  bool
	updateErr     error
	listFilter    models.UserFilter
	listCalled    bool
	deletedID     string
	roleReq       models.SetRoleRequest
	openErr       error
	openPath      string
	profileResp   *models.UserProfile
	listResp      []models.UserProfile
	listPaginated *models.Pagination
}

func (m *userServiceMock) Profile(ctx context.Context, actor models.Actor) (*models.UserProfile, error) {
	return m.profileResp, nil
}

func (m *userServiceMock) UpdateProfile(ctx context.Context, actor models.Actor, req models.UpdateProfileRequest) (*models.UserProfile, models.Notice, error) {
	m.updateCalled = true
	m.updateReq = req
	if req.Picture != nil {
		m.pictureBytes, _ = io.ReadAll(req.Picture.Content)
	}
	if m.updateErr != nil {
		return nil, "", m.updateErr
	}
	return &models.UserProfile{ID: actor.UserID, Username: req.Username, Email: req.Email}, models.NoticeProfileUpdated, nil
}

func (m *userServiceMock) OpenPicture(token string) (*os.File, error) {
	if m.openErr != nil {
		return nil, m.openErr
	}
	return os.Open(m.openPath)
}

func (m *userServiceMock) List(ctx context.Context, actor models.Actor, filter models.UserFilter) ([]models.UserProfile, *models.Pagination, error) {
	m.listCalled = true
	m.listFilter = filter
	return m.listResp, m.listPaginated, nil
}

func (m *userServiceMock) SetRole(ctx context.Context, actor models.Actor, userID string, req models.SetRoleRequest) (models.Notice, error) {
	m.roleReq = req
	return models.NoticeRoleUpdated, nil
}

func (m *userServiceMock) Delete(ctx context.Context, actor models.Actor, userID string) (models.Notice, error) {
	m.deletedID = userID
	return models.NoticeUserDeleted, nil
}

type attendanceServiceMock struct {
	markActor  models.Actor
	markResp   *models.MarkResult
	markCalled bool
	addCalled  bool
	editID     string
	editReq    models.EditAttendanceRequest
	listUserID string
	records    []models.AttendanceRecord
}

func (m *attendanceServiceMock) Mark(ctx context.Context, actor models.Actor) (*models.MarkResult, error) {
	m.markCalled = true
	m.markActor = actor
	return m.markResp, nil
}

func (m *attendanceServiceMock) ListOwn(ctx context.Context, actor models.Actor) ([]models.AttendanceRecord, error) {
	return m.records, nil
}

func (m *attendanceServiceMock) ListForUser(ctx context.Context, actor models.Actor, userID string) ([]models.AttendanceRecord, error) {
	m.listUserID = userID
	return m.records, nil
}

func (m *attendanceServiceMock) Add(ctx context.Context, actor models.Actor, req models.AddAttendanceRequest) (*models.AttendanceRecord, models.Notice, error) {
	m.addCalled = true
	return &models.AttendanceRecord{ID: "rec-1", UserID: req.UserID, Status: req.Status}, models.NoticeAttendanceAdded, nil
}

func (m *attendanceServiceMock) EditStatus(ctx context.Context, actor models.Actor, recordID string, req models.EditAttendanceRequest) (models.Notice, error) {
	m.editID = recordID
	m.editReq = req
	return models.NoticeAttendanceUpdated, nil
}

type leaveServiceMock struct {
	filter     models.LeaveFilter
	approvedID string
	rejectedID string
	createReq  models.CreateLeaveRequest
}

func (m *leaveServiceMock) Request(ctx context.Context, actor models.Actor, req models.CreateLeaveRequest) (*models.LeaveRequest, models.Notice, error) {
	m.createReq = req
	return &models.LeaveRequest{ID: "leave-1", UserID: actor.UserID, Reason: req.Reason, Status: models.LeaveStatusPending}, models.NoticeLeaveRequested, nil
}

func (m *leaveServiceMock) ListOwn(ctx context.Context, actor models.Actor) ([]models.LeaveRequest, error) {
	return []models.LeaveRequest{}, nil
}

func (m *leaveServiceMock) List(ctx context.Context, actor models.Actor, filter models.LeaveFilter) ([]models.LeaveRequest, error) {
	m.filter = filter
	return []models.LeaveRequest{}, nil
}

func (m *leaveServiceMock) Approve(ctx context.Context, actor models.Actor, requestID string) (models.Notice, error) {
	m.approvedID = requestID
	return models.NoticeLeaveApproved, nil
}

func (m *leaveServiceMock) Reject(ctx context.Context, actor models.Actor, requestID string) (models.Notice, error) {
	m.rejectedID = requestID
	return models.NoticeLeaveRejected, nil
}

type gradeServiceMock struct {
	hit           bool
	grades        []models.GradeRecord
	policy        models.GradingPolicy
	updatedPolicy models.GradingPolicy
	assignCalled  bool
	defaultCalled bool
}

func (m *gradeServiceMock) Policy(ctx context.Context, actor models.Actor) (models.GradingPolicy, error) {
	return m.policy, nil
}

func (m *gradeServiceMock) UpdatePolicy(ctx context.Context, actor models.Actor, policy models.GradingPolicy) (*models.GradingRun, error) {
	m.updatedPolicy = policy
	return &models.GradingRun{Policy: policy, Graded: 2, Notice: models.NoticeGradingPolicyUpdate}, nil
}

func (m *gradeServiceMock) RecomputeDefault(ctx context.Context, actor models.Actor) (*models.GradingRun, error) {
	m.defaultCalled = true
	return &models.GradingRun{Policy: models.DefaultGradingPolicy(), Notice: models.NoticeGradesUpdated}, nil
}

func (m *gradeServiceMock) AssignGrades(ctx context.Context, actor models.Actor) (*models.GradingRun, error) {
	m.assignCalled = true
	return &models.GradingRun{Policy: m.policy, Notice: models.NoticeGradesUpdated}, nil
}

func (m *gradeServiceMock) List(ctx context.Context, actor models.Actor) ([]models.GradeRecord, bool, error) {
	return m.grades, m.hit, nil
}

type reportServiceMock struct {
	userQuery   models.ReportQuery
	userID      string
	exported    export.Format
	systemQuery models.ReportQuery
}

func (m *reportServiceMock) UserReport(ctx context.Context, actor models.Actor, userID string, q models.ReportQuery) (*models.UserReport, error) {
	m.userID = userID
	m.userQuery = q
	return &models.UserReport{UserID: userID, Username: "alice", From: q.From, To: q.To, Entries: []models.ReportEntry{}}, nil
}

func (m *reportServiceMock) SystemReport(ctx context.Context, actor models.Actor, q models.ReportQuery) (*models.SystemReport, error) {
	m.systemQuery = q
	return &models.SystemReport{From: q.From, To: q.To, Entries: []models.ReportEntry{}}, nil
}

func (m *reportServiceMock) ExportUserReport(report *models.UserReport, format export.Format) (*service.ExportedReport, error) {
	m.exported = format
	return &service.ExportedReport{
		Filename:    "attendance_alice_" + report.From + "_" + report.To + "." + string(format),
		ContentType: format.ContentType(),
		Body:        []byte("Date,Status,Time\n"),
	}, nil
}

func (m *reportServiceMock) ExportSystemReport(report *models.SystemReport, format export.Format) (*service.ExportedReport, error) {
	m.exported = format
	return &service.ExportedReport{
		Filename:    "attendance_system." + string(format),
		ContentType: format.ContentType(),
		Body:        []byte("%PDF-1.3"),
	}, nil
}
