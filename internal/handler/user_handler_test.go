package handler

import (
	"bytes"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
)

func multipartProfile(t *testing.T, picture []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	require.NoError(t, mw.WriteField("username", "alice2"))
	require.NoError(t, mw.WriteField("email", "alice2@example.com"))
	if picture != nil {
		part, err := mw.CreateFormFile("profile_pic", "me.png")
		require.NoError(t, err)
		_, err = part.Write(picture)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return body, mw.FormDataContentType()
}

func TestUserHandlerUpdateProfileWithPicture(t *testing.T) {
	svc := &userServiceMock{}
	handler := NewUserHandler(svc, 1024)

	body, contentType := multipartProfile(t, []byte("png-bytes"))
	c, w := newTestContext(http.MethodPut, "/profile", body, userClaims)
	c.Request.Header.Set("Content-Type", contentType)
	handler.UpdateProfile(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.updateReq.Picture)
	assert.Equal(t, "me.png", svc.updateReq.Picture.Filename)
	assert.Equal(t, []byte("png-bytes"), svc.pictureBytes)
	assert.Equal(t, "alice2", svc.updateReq.Username)
	assert.Equal(t, string(models.NoticeProfileUpdated), noticeOf(t, w))
}

func TestUserHandlerUpdateProfileWithoutPictureKeepsExisting(t *testing.T) {
	svc := &userServiceMock{}
	handler := NewUserHandler(svc, 1024)

	body, contentType := multipartProfile(t, nil)
	c, w := newTestContext(http.MethodPut, "/profile", body, userClaims)
	c.Request.Header.Set("Content-Type", contentType)
	handler.UpdateProfile(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, svc.updateCalled)
	assert.Nil(t, svc.updateReq.Picture)
}

func TestUserHandlerUpdateProfileTooLarge(t *testing.T) {
	svc := &userServiceMock{}
	handler := NewUserHandler(svc, 4)

	body, contentType := multipartProfile(t, []byte("far too many bytes"))
	c, w := newTestContext(http.MethodPut, "/profile", body, userClaims)
	c.Request.Header.Set("Content-Type", contentType)
	handler.UpdateProfile(c)

	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	assert.False(t, svc.updateCalled)
}

func TestUserHandlerUpdateProfileServiceError(t *testing.T) {
	svc := &userServiceMock{updateErr: appErrors.ErrUnsupportedMedia}
	handler := NewUserHandler(svc, 1024)

	body, contentType := multipartProfile(t, []byte("gif"))
	c, w := newTestContext(http.MethodPut, "/profile", body, userClaims)
	c.Request.Header.Set("Content-Type", contentType)
	handler.UpdateProfile(c)

	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestUserHandlerServeFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pic.png")
	require.NoError(t, os.WriteFile(path, []byte("image"), 0o600))
	svc := &userServiceMock{openPath: path}
	handler := NewUserHandler(svc, 1024)

	c, w := newTestContext(http.MethodGet, "/files/token", nil, nil)
	c.AddParam("token", "token")
	handler.ServeFile(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image", w.Body.String())
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
}

func TestUserHandlerServeFileForbidden(t *testing.T) {
	svc := &userServiceMock{openErr: appErrors.Clone(appErrors.ErrForbidden, "file link expired")}
	handler := NewUserHandler(svc, 1024)

	c, w := newTestContext(http.MethodGet, "/files/stale", nil, nil)
	c.AddParam("token", "stale")
	handler.ServeFile(c)

	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUserHandlerListParsesFilter(t *testing.T) {
	svc := &userServiceMock{listPaginated: &models.Pagination{Page: 2, PageSize: 5, TotalCount: 7}}
	handler := NewUserHandler(svc, 1024)

	c, w := newTestContext(http.MethodGet, "/admin/users?page=2&page_size=5&role=admin&search=ali", nil, adminClaims)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, svc.listFilter.Page)
	assert.Equal(t, 5, svc.listFilter.PageSize)
	require.NotNil(t, svc.listFilter.Role)
	assert.Equal(t, models.RoleAdmin, *svc.listFilter.Role)
	assert.Equal(t, "ali", svc.listFilter.Search)
	assert.Contains(t, w.Body.String(), `"total_count":7`)
}

func TestUserHandlerListRejectsUnknownRole(t *testing.T) {
	svc := &userServiceMock{}
	handler := NewUserHandler(svc, 1024)

	c, w := newTestContext(http.MethodGet, "/admin/users?role=superuser", nil, adminClaims)
	handler.List(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, svc.listCalled)
}

func TestUserHandlerSetRoleAndDelete(t *testing.T) {
	svc := &userServiceMock{}
	handler := NewUserHandler(svc, 1024)

	c, w := newTestContext(http.MethodPut, "/admin/users/user-1/role", jsonBody(`{"role":"admin"}`), adminClaims)
	c.AddParam("id", "user-1")
	handler.SetRole(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleAdmin, svc.roleReq.Role)

	c, w = newTestContext(http.MethodDelete, "/admin/users/user-1", nil, adminClaims)
	c.AddParam("id", "user-1")
	handler.Delete(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", svc.deletedID)
	assert.Equal(t, string(models.NoticeUserDeleted), noticeOf(t, w))
}
