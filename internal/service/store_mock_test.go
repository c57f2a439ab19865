package service_test

import (
	"context"

	"tracker/internal/domain/models"
	"tracker/internal/service"
	inmemory "tracker/repository/inmemory"

	"github.com/stretchr/testify/mock"
)

type MockStore struct {
	mock.Mock
}

var _ service.Store = (*MockStore)(nil)

func (m *MockStore) InTx(ctx context.Context, fn func(tx service.Store) error) error {
	if err := m.Called(ctx).Error(0); err != nil {
		return err
	}
	return fn(m)
}

func (m *MockStore) CreateUser(ctx context.Context, user *models.User) error {
	return m.Called(ctx, user).Error(0)
}

func (m *MockStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func (m *MockStore) CreateTask(ctx context.Context, task *models.Task) error {
	return m.Called(ctx, task).Error(0)
}

func (m *MockStore) GetTaskByID(ctx context.Context, id int64) (*models.Task, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Task), args.Error(1)
}

func (m *MockStore) GetTasksByOwner(ctx context.Context, ownerID int64) ([]models.Task, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Task), args.Error(1)
}

func (m *MockStore) TaskExists(ctx context.Context, ownerID int64, name string) (bool, error) {
	args := m.Called(ctx, ownerID, name)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) DeleteTask(ctx context.Context, id int64) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockStore) CreatePhoto(ctx context.Context, photo *models.Photo) error {
	return m.Called(ctx, photo).Error(0)
}

func (m *MockStore) GetPhotoByID(ctx context.Context, id string) (*models.Photo, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Photo), args.Error(1)
}

func (m *MockStore) GetLatestPhotoIDs(ctx context.Context, ownerID int64) (map[int64]string, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[int64]string), args.Error(1)
}

func (m *MockStore) PhotoExistsForTask(ctx context.Context, taskID int64) (bool, error) {
	args := m.Called(ctx, taskID)
	return args.Bool(0), args.Error(1)
}

func (m *MockStore) DeletePhotosForTask(ctx context.Context, taskID int64) (int64, error) {
	args := m.Called(ctx, taskID)
	return args.Get(0).(int64), args.Error(1)
}

// failingDeleteStore lets the photo cascade run for real and then fails the
// task delete, so a rollback has something to undo.
type failingDeleteStore struct {
	*inmemory.Storage
	err error
}

func (s *failingDeleteStore) InTx(ctx context.Context, fn func(tx service.Store) error) error {
	return s.Storage.InTx(ctx, func(tx service.Store) error {
		return fn(&failingDeleteStore{Storage: tx.(*inmemory.Storage), err: s.err})
	})
}

func (s *failingDeleteStore) DeleteTask(context.Context, int64) error {
	return s.err
}
