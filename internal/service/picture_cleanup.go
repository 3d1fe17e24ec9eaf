package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/attendance-api/pkg/jobs"
)

// JobKindDeletePicture removes a profile picture that is no longer referenced.
const JobKindDeletePicture = "delete_profile_picture"

type pictureDeleter interface {
	Delete(name string) error
}

// jobSubmitter accepts background work; *jobs.Queue satisfies it.
type jobSubmitter interface {
	Submit(job jobs.Job) error
}

// NewPictureCleanupHandler returns the queue handler that deletes stored pictures.
func NewPictureCleanupHandler(store pictureDeleter, logger *zap.Logger) jobs.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(ctx context.Context, job jobs.Job) error {
		if job.Kind != JobKindDeletePicture {
			logger.Warn("unexpected job kind", zap.String("kind", job.Kind))
			return nil
		}
		if err := store.Delete(job.Payload); err != nil {
			return fmt.Errorf("delete picture %s: %w", job.Payload, err)
		}
		logger.Debug("profile picture removed", zap.String("path", job.Payload))
		return nil
	}
}

// schedulePictureDeletion enqueues removal of a stored picture. Failures are logged only;
// the row change it follows is already committed.
func schedulePictureDeletion(queue jobSubmitter, logger *zap.Logger, path string) {
	if queue == nil || path == "" {
		return
	}
	job := jobs.Job{ID: uuid.NewString(), Kind: JobKindDeletePicture, Payload: path}
	if err := queue.Submit(job); err != nil {
		logger.Warn("failed to schedule picture cleanup", zap.String("path", path), zap.Error(err))
	}
}
