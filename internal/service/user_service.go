package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/internal/models"
	"github.com/noah-isme/attendance-api/internal/repository"
	appErrors "github.com/noah-isme/attendance-api/pkg/errors"
	"github.com/noah-isme/attendance-api/pkg/storage"
)

type userRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	ExistsByUsernameOrEmail(ctx context.Context, username, email, excludeID string) (bool, error)
	UpdateProfile(ctx context.Context, user *models.User) error
	UpdateRole(ctx context.Context, id string, role models.UserRole) (bool, error)
	DeleteCascade(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type cacheInvalidator interface {
	Invalidate(ctx context.Context, pattern string) error
}

type fileStore interface {
	Save(name string, r io.Reader) (string, error)
	Open(name string) (*os.File, error)
	Delete(name string) error
}

type urlSigner interface {
	Generate(ownerID, relPath string) (string, time.Time, error)
	Parse(token string) (ownerID, relPath string, err error)
}

// UserServiceConfig controls picture handling.
type UserServiceConfig struct {
	AllowedExts []string
	// FilesPath prefixes signed picture tokens, e.g. /files.
	FilesPath string
}

// UserService manages profiles and admin user administration.
type UserService struct {
	repo      userRepository
	files     fileStore
	signer    urlSigner
	cleanup   jobSubmitter
	grades    cacheInvalidator
	validator *validator.Validate
	logger    *zap.Logger
	cfg       UserServiceConfig
}

// NewUserService constructs a user service. grades may be nil when caching is off.
func NewUserService(repo userRepository, files fileStore, signer urlSigner, cleanup jobSubmitter, grades cacheInvalidator, validate *validator.Validate, logger *zap.Logger, cfg UserServiceConfig) *UserService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(cfg.AllowedExts) == 0 {
		cfg.AllowedExts = []string{"png", "jpg", "jpeg"}
	}
	return &UserService{repo: repo, files: files, signer: signer, cleanup: cleanup, grades: grades, validator: validate, logger: logger, cfg: cfg}
}

// Profile returns the actor's own profile.
func (s *UserService) Profile(ctx context.Context, actor models.Actor) (*models.UserProfile, error) {
	user, err := s.repo.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, internalError(err, "failed to load profile")
	}
	return s.toProfile(user), nil
}

// UpdateProfile edits username and email and optionally replaces the picture.
// Without an upload the stored picture is kept.
func (s *UserService) UpdateProfile(ctx context.Context, actor models.Actor, req models.UpdateProfileRequest) (*models.UserProfile, models.Notice, error) {
	req.Username = strings.TrimSpace(req.Username)
	req.Email = strings.TrimSpace(req.Email)
	if err := s.validator.Struct(req); err != nil {
		return nil, "", validationError(err, "invalid profile payload")
	}

	var ext string
	if req.Picture != nil {
		ext = strings.ToLower(strings.TrimPrefix(filepath.Ext(req.Picture.Filename), "."))
		if !s.allowedExt(ext) {
			return nil, "", appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("allowed picture types: %s", strings.Join(s.cfg.AllowedExts, ", ")))
		}
	}

	user, err := s.repo.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, "", appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, "", internalError(err, "failed to load profile")
	}

	taken, err := s.repo.ExistsByUsernameOrEmail(ctx, req.Username, req.Email, user.ID)
	if err != nil {
		return nil, "", internalError(err, "failed to check existing users")
	}
	if taken {
		return nil, "", appErrors.Clone(appErrors.ErrConflict, string(models.NoticeDuplicateIdentity))
	}

	previous := user.ProfilePic
	updated := *user
	updated.Username = req.Username
	updated.Email = req.Email

	var saved string
	if req.Picture != nil {
		name := fmt.Sprintf("%s/%s.%s", user.ID, uuid.NewString(), ext)
		saved, err = s.files.Save(name, req.Picture.Content)
		if err != nil {
			if errors.Is(err, storage.ErrTooLarge) {
				return nil, "", appErrors.Clone(appErrors.ErrPayloadTooLarge, "profile picture exceeds size limit")
			}
			return nil, "", internalError(err, "failed to store profile picture")
		}
		updated.ProfilePic = &saved
	}

	if err := s.repo.UpdateProfile(ctx, &updated); err != nil {
		schedulePictureDeletion(s.cleanup, s.logger, saved)
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, "", appErrors.Clone(appErrors.ErrConflict, string(models.NoticeDuplicateIdentity))
		}
		return nil, "", internalError(err, "failed to update profile")
	}

	if saved != "" && previous != nil && *previous != saved {
		schedulePictureDeletion(s.cleanup, s.logger, *previous)
	}

	recordAudit(ctx, s.repo, s.logger, actor, models.AuditActionProfileUpdate, "users", updated.ID, map[string]string{"username": user.Username, "email": user.Email}, map[string]string{"username": updated.Username, "email": updated.Email})

	return s.toProfile(&updated), models.NoticeProfileUpdated, nil
}

// OpenPicture resolves a signed picture token to the stored file.
func (s *UserService) OpenPicture(token string) (*os.File, error) {
	ownerID, relPath, err := s.signer.Parse(token)
	if err != nil {
		if errors.Is(err, storage.ErrExpiredToken) {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "file link expired")
		}
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid file link")
	}
	if !strings.HasPrefix(relPath, ownerID+"/") {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid file link")
	}
	file, err := s.files.Open(relPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "file not found")
		}
		return nil, internalError(err, "failed to open file")
	}
	return file, nil
}

// List returns users for the admin dashboard.
func (s *UserService) List(ctx context.Context, actor models.Actor, filter models.UserFilter) ([]models.UserProfile, *models.Pagination, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, nil, err
	}
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "invalid role filter")
	}
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list users")
	}
	profiles := make([]models.UserProfile, 0, len(users))
	for i := range users {
		profiles = append(profiles, *s.toProfile(&users[i]))
	}
	page, size := filter.Page, filter.PageSize
	if page <= 0 {
		page = 1
	}
	if size <= 0 {
		size = 20
	}
	return profiles, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// SetRole assigns a role to a user.
func (s *UserService) SetRole(ctx context.Context, actor models.Actor, userID string, req models.SetRoleRequest) (models.Notice, error) {
	if err := requireAdmin(actor); err != nil {
		return "", err
	}
	if err := s.validator.Struct(req); err != nil {
		return "", validationError(err, "invalid role payload")
	}
	if !validID(userID) {
		return "", appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	ok, err := s.repo.UpdateRole(ctx, userID, req.Role)
	if err != nil {
		return "", internalError(err, "failed to update role")
	}
	if !ok {
		return "", appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	recordAudit(ctx, s.repo, s.logger, actor, models.AuditActionRoleChange, "users", userID, nil, map[string]string{"role": string(req.Role)})
	return models.NoticeRoleUpdated, nil
}

// Delete removes a user with their attendance and leave requests in one transaction.
// Deleting an unknown user is a no-op.
func (s *UserService) Delete(ctx context.Context, actor models.Actor, userID string) (models.Notice, error) {
	if err := requireAdmin(actor); err != nil {
		return "", err
	}
	if !validID(userID) {
		return models.NoticeUserDeleted, nil
	}
	deleted, err := s.repo.DeleteCascade(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.NoticeUserDeleted, nil
		}
		return "", internalError(err, "failed to delete user")
	}
	if deleted.ProfilePic != nil {
		schedulePictureDeletion(s.cleanup, s.logger, *deleted.ProfilePic)
	}
	if s.grades != nil {
		if err := s.grades.Invalidate(ctx, gradeCachePattern); err != nil {
			s.logger.Warn("failed to invalidate grade cache", zap.String("user_id", userID), zap.Error(err))
		}
	}
	recordAudit(ctx, s.repo, s.logger, actor, models.AuditActionUserDelete, "users", userID, map[string]string{"username": deleted.Username}, nil)
	return models.NoticeUserDeleted, nil
}

func (s *UserService) toProfile(user *models.User) *models.UserProfile {
	profile := &models.UserProfile{ID: user.ID, Username: user.Username, Email: user.Email, Role: user.Role}
	if user.ProfilePic == nil || s.signer == nil {
		return profile
	}
	token, _, err := s.signer.Generate(user.ID, *user.ProfilePic)
	if err != nil {
		s.logger.Warn("failed to sign picture link", zap.String("user_id", user.ID), zap.Error(err))
		return profile
	}
	url := strings.TrimRight(s.cfg.FilesPath, "/") + "/" + token
	profile.ProfilePicURL = &url
	return profile
}

func (s *UserService) allowedExt(ext string) bool {
	for _, allowed := range s.cfg.AllowedExts {
		if strings.EqualFold(strings.TrimPrefix(allowed, "."), ext) {
			return true
		}
	}
	return false
}
