package handler

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/attendance-api/internal/models"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/response"
)

type userService interface {
	Profile(ctx context.Context, actor models.Actor) (*models.UserProfile, error)
	UpdateProfile(ctx context.Context, actor models.Actor, req models.UpdateProfileRequest) (*models.UserProfile, models.Notice, error)
	OpenPicture(token string) (*os.File, error)
	List(ctx context.Context, actor models.Actor, filter models.UserFilter) ([]models.UserProfile, *models.Pagination, error)
	SetRole(ctx context.Context, actor models.Actor, userID string, req models.SetRoleRequest) (models.Notice, error)
	Delete(ctx context.Context, actor models.Actor, userID string) (models.Notice, error)
}

// UserHandler serves the profile endpoints and the admin user directory.
type UserHandler struct {
	service       userService
	maxUploadSize int64
}

// NewUserHandler creates a new user handler. maxUploadSize bounds multipart profile uploads.
func NewUserHandler(svc userService, maxUploadSize int64) *UserHandler {
	return &UserHandler{service: svc, maxUploadSize: maxUploadSize}
}

// Profile godoc
// @Summary Get own profile
// @Tags Profile
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /profile [get]
func (h *UserHandler) Profile(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	profile, err := h.service.Profile(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, profile, nil)
}

// UpdateProfile godoc
// @Summary Update own profile
// @Description Update username and email, optionally replacing the profile picture
// @Tags Profile
// @Accept multipart/form-data
// @Produce json
// @Param username formData string true "Username"
// @Param email formData string true "Email"
// @Param profile_pic formData file false "Profile picture (png, jpg, jpeg)"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /profile [put]
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	if h.maxUploadSize > 0 {
		// room for the text fields on top of the file itself
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize+64*1024)
	}

	var req models.UpdateProfileRequest
	if err := c.ShouldBind(&req); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			response.Error(c, appErrors.ErrPayloadTooLarge)
			return
		}
		response.Error(c, bindError(err, "invalid profile payload"))
		return
	}

	fileHeader, err := c.FormFile("profile_pic")
	switch {
	case err == nil:
		if h.maxUploadSize > 0 && fileHeader.Size > h.maxUploadSize {
			response.Error(c, appErrors.ErrPayloadTooLarge)
			return
		}
		file, openErr := fileHeader.Open()
		if openErr != nil {
			response.Error(c, bindError(openErr, "invalid profile picture"))
			return
		}
		defer file.Close()
		req.Picture = &models.PictureUpload{Filename: fileHeader.Filename, Size: fileHeader.Size, Content: file}
	case errors.Is(err, http.ErrMissingFile):
	default:
		response.Error(c, bindError(err, "invalid profile picture"))
		return
	}

	profile, notice, err := h.service.UpdateProfile(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, profile, nil, response.Notice(notice))
}

// ServeFile godoc
// @Summary Download a profile picture
// @Description Serves a stored picture behind a signed, expiring link
// @Tags Profile
// @Produce octet-stream
// @Param token path string true "Signed file token"
// @Success 200 {file} file
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /files/{token} [get]
func (h *UserHandler) ServeFile(c *gin.Context) {
	file, err := h.service.OpenPicture(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Cache-Control", "private, max-age=300")
	http.ServeContent(c.Writer, c.Request, info.Name(), info.ModTime(), file)
}

// List godoc
// @Summary List users
// @Description List users with pagination and filtering
// @Tags Users
// @Produce json
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param role query string false "Role filter"
// @Param search query string false "Search term"
// @Param sort_by query string false "Sort by"
// @Param sort_order query string false "Sort order"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/users [get]
func (h *UserHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var filter models.UserFilter
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	if role := c.Query("role"); role != "" {
		r := models.UserRole(role)
		if !r.Valid() {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid role filter"))
			return
		}
		filter.Role = &r
	}
	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	users, pagination, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, users, pagination)
}

// SetRole godoc
// @Summary Change user role
// @Tags Users
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body models.SetRoleRequest true "Role payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id}/role [put]
func (h *UserHandler) SetRole(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var req models.SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, bindError(err, "invalid payload"))
		return
	}

	notice, err := h.service.SetRole(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, nil, nil, response.Notice(notice))
}

// Delete godoc
// @Summary Delete user
// @Description Delete a user with their attendance and leave history
// @Tags Users
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	notice, err := h.service.Delete(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, nil, nil, response.Notice(notice))
}
