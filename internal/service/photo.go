package service

import (
	"context"
	"net/http"
	"time"

	"tracker/internal/domain/errors"
	"tracker/internal/domain/models"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const DefaultMaxPhotoSize = 10 << 20

type PhotoService struct {
	logger  zerolog.Logger
	store   Store
	maxSize int64
	now     func() time.Time
}

func NewPhotoService(logger zerolog.Logger, store Store, maxSize int64) *PhotoService {
	if maxSize <= 0 {
		maxSize = DefaultMaxPhotoSize
	}
	return &PhotoService{
		logger:  logger.With().Str("service", "photo").Logger(),
		store:   store,
		maxSize: maxSize,
		now:     time.Now,
	}
}

// Upload attaches a photo to one of the user's tasks.
func (s *PhotoService) Upload(ctx context.Context, taskID int64, user *models.User, data []byte) (*models.Photo, error) {
	switch {
	case len(data) == 0:
		return nil, errors.ErrPhotoEmpty
	case int64(len(data)) > s.maxSize:
		return nil, errors.ErrPhotoTooLarge
	}

	photo := &models.Photo{
		ID:          uuid.New().String(),
		TaskID:      taskID,
		ContentType: http.DetectContentType(data),
		Size:        int64(len(data)),
		Data:        data,
		CreatedAt:   s.now().UTC(),
	}

	err := s.store.InTx(ctx, func(tx Store) error {
		task, err := tx.GetTaskByID(ctx, taskID)
		if err != nil {
			return err
		}
		if task.OwnerID != user.ID {
			return errors.ErrForbidden
		}
		return tx.CreatePhoto(ctx, photo)
	})
	if err != nil {
		if !errors.Is(err, errors.ErrTaskNotFound) && !errors.Is(err, errors.ErrForbidden) {
			s.logger.Error().
				Err(err).
				Int64("task_id", taskID).
				Msg("failed to store photo")
		}
		return nil, err
	}

	s.logger.Info().
		Str("photo_id", photo.ID).
		Int64("task_id", taskID).
		Int64("size", photo.Size).
		Msg("photo uploaded")
	return photo, nil
}

// Get returns a photo if it belongs to one of the user's tasks.
func (s *PhotoService) Get(ctx context.Context, photoID string, user *models.User) (*models.Photo, error) {
	if _, err := uuid.Parse(photoID); err != nil {
		return nil, errors.ErrPhotoNotFound
	}

	photo, err := s.store.GetPhotoByID(ctx, photoID)
	if err != nil {
		return nil, err
	}

	task, err := s.store.GetTaskByID(ctx, photo.TaskID)
	if err != nil {
		if errors.Is(err, errors.ErrTaskNotFound) {
			return nil, errors.ErrPhotoNotFound
		}
		return nil, err
	}
	if task.OwnerID != user.ID {
		return nil, errors.ErrForbidden
	}
	return photo, nil
}

// HasPhoto reports whether the user's task has proof of completion attached.
func (s *PhotoService) HasPhoto(ctx context.Context, taskID int64, user *models.User) (bool, error) {
	task, err := s.store.GetTaskByID(ctx, taskID)
	if err != nil {
		return false, err
	}
	if task.OwnerID != user.ID {
		return false, errors.ErrForbidden
	}
	return s.store.PhotoExistsForTask(ctx, taskID)
}
