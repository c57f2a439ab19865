package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"tracker/internal/domain/errors"
	"tracker/internal/domain/models"

	"github.com/rs/zerolog"
)

// MinTaskNameLength is the shortest accepted task name, in runes, after trimming.
const MinTaskNameLength = 2

type TaskService struct {
	logger zerolog.Logger
	store  Store
	now    func() time.Time
}

func NewTaskService(logger zerolog.Logger, store Store) *TaskService {
	return &TaskService{
		logger: logger.With().Str("service", "task").Logger(),
		store:  store,
		now:    time.Now,
	}
}

// ValidateTaskName applies the name rules in priority order: blank names
// fail with ErrTaskNameEmpty before length is considered.
func ValidateTaskName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", errors.ErrTaskNameEmpty
	}
	if utf8.RuneCountInString(trimmed) < MinTaskNameLength {
		return "", errors.ErrTaskNameTooShort
	}
	return trimmed, nil
}

// AddTask creates a task owned by user. It returns ErrTaskNameEmpty,
// ErrTaskNameTooShort or ErrTaskExists, whichever rule fails first.
func (s *TaskService) AddTask(ctx context.Context, req models.AddTaskRequest, user *models.User) (*models.Task, error) {
	name, err := ValidateTaskName(req.Name)
	if err != nil {
		s.logger.Debug().
			Err(err).
			Int64("user_id", user.ID).
			Msg("rejected task name")
		return nil, err
	}

	task := &models.Task{
		Name:      name,
		Deadline:  req.Deadline,
		OwnerID:   user.ID,
		CreatedAt: s.now().UTC(),
	}

	err = s.store.InTx(ctx, func(tx Store) error {
		exists, err := tx.TaskExists(ctx, user.ID, name)
		if err != nil {
			return fmt.Errorf("check task existence: %w", err)
		}
		if !models.CanTransition(taskState(exists), models.TaskActive) {
			return errors.ErrTaskExists
		}
		return tx.CreateTask(ctx, task)
	})
	if err != nil {
		if errors.Is(err, errors.ErrTaskExists) {
			s.logger.Info().
				Int64("user_id", user.ID).
				Str("name", name).
				Msg("task already exists")
			return nil, errors.ErrTaskExists
		}
		s.logger.Error().
			Err(err).
			Int64("user_id", user.ID).
			Msg("failed to add task")
		return nil, err
	}

	s.logger.Info().
		Int64("task_id", task.ID).
		Int64("user_id", user.ID).
		Msg("task created")
	return task, nil
}

// Home lists the user's tasks. A user without tasks gets an empty slice.
func (s *TaskService) Home(ctx context.Context, userID int64) ([]models.HomeItem, error) {
	tasks, err := s.store.GetTasksByOwner(ctx, userID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("user_id", userID).
			Msg("failed to list tasks")
		return nil, err
	}

	photos, err := s.store.GetLatestPhotoIDs(ctx, userID)
	if err != nil {
		s.logger.Error().
			Err(err).
			Int64("user_id", userID).
			Msg("failed to list task photos")
		return nil, err
	}

	now := s.now()
	items := make([]models.HomeItem, 0, len(tasks))
	for _, t := range tasks {
		if t.OwnerID != userID {
			continue
		}
		photoID := photos[t.ID]
		items = append(items, models.HomeItem{
			ID:                  t.ID,
			Name:                t.Name,
			Deadline:            t.Deadline,
			PercentageTimeSpent: t.PercentageTimeSpent(now),
			PhotoID:             photoID,
			Done:                photoID != "",
		})
	}

	s.logger.Debug().
		Int64("user_id", userID).
		Int("count", len(items)).
		Msg("home listed")
	return items, nil
}

// DeleteTask removes the task and every photo attached to it in one
// transaction. Unknown ids give ErrTaskNotFound, foreign tasks ErrForbidden.
func (s *TaskService) DeleteTask(ctx context.Context, taskID int64, user *models.User) error {
	var removedPhotos int64
	err := s.store.InTx(ctx, func(tx Store) error {
		task, err := tx.GetTaskByID(ctx, taskID)
		if err != nil && !errors.Is(err, errors.ErrTaskNotFound) {
			return err
		}
		if !models.CanTransition(taskState(task != nil), models.TaskDeleted) {
			return errors.ErrTaskNotFound
		}
		if task.OwnerID != user.ID {
			return errors.ErrForbidden
		}

		removedPhotos, err = tx.DeletePhotosForTask(ctx, taskID)
		if err != nil {
			return fmt.Errorf("delete task photos: %w", err)
		}
		return tx.DeleteTask(ctx, taskID)
	})
	if err != nil {
		switch {
		case errors.Is(err, errors.ErrTaskNotFound):
			s.logger.Info().
				Int64("task_id", taskID).
				Msg("task to delete not found")
			return errors.ErrTaskNotFound
		case errors.Is(err, errors.ErrForbidden):
			s.logger.Warn().
				Int64("task_id", taskID).
				Int64("user_id", user.ID).
				Msg("attempt to delete a task of another user")
			return errors.ErrForbidden
		}
		s.logger.Error().
			Err(err).
			Int64("task_id", taskID).
			Msg("failed to delete task")
		return err
	}

	s.logger.Info().
		Int64("task_id", taskID).
		Int64("user_id", user.ID).
		Int64("photos", removedPhotos).
		Msg("task deleted")
	return nil
}

// taskState maps a storage lookup onto the lifecycle. Deleted rows are gone
// from storage, so they read as non-existent again.
func taskState(found bool) models.TaskState {
	if found {
		return models.TaskActive
	}
	return models.TaskNonExistent
}
