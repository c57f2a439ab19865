package service

import (
	"context"

	"tracker/internal/domain/models"
)

type UserRepository interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
}

type TaskRepository interface {
	CreateTask(ctx context.Context, task *models.Task) error
	// GetTaskByID returns errors.ErrTaskNotFound for unknown ids. Inside a
	// transaction the row stays locked until commit.
	GetTaskByID(ctx context.Context, id int64) (*models.Task, error)
	GetTasksByOwner(ctx context.Context, ownerID int64) ([]models.Task, error)
	TaskExists(ctx context.Context, ownerID int64, name string) (bool, error)
	DeleteTask(ctx context.Context, id int64) error
}

type PhotoRepository interface {
	CreatePhoto(ctx context.Context, photo *models.Photo) error
	GetPhotoByID(ctx context.Context, id string) (*models.Photo, error)
	// GetLatestPhotoIDs maps each of the owner's task ids to its newest photo.
	GetLatestPhotoIDs(ctx context.Context, ownerID int64) (map[int64]string, error)
	PhotoExistsForTask(ctx context.Context, taskID int64) (bool, error)
	DeletePhotosForTask(ctx context.Context, taskID int64) (int64, error)
}

// Store is the persistence boundary of the services. InTx runs fn against a
// transaction-scoped Store: fn's error rolls everything back, nil commits.
type Store interface {
	UserRepository
	TaskRepository
	PhotoRepository

	InTx(ctx context.Context, fn func(tx Store) error) error
}
