package storage

import (
	"context"
	"sort"
	"sync"

	"tracker/internal/domain/errors"
	"tracker/internal/domain/models"
	"tracker/internal/service"
)

type state struct {
	users      map[int64]models.User
	tasks      map[int64]models.Task
	photos     map[string]models.Photo
	nextUserID int64
	nextTaskID int64
}

func (st *state) clone() *state {
	c := &state{
		users:      make(map[int64]models.User, len(st.users)),
		tasks:      make(map[int64]models.Task, len(st.tasks)),
		photos:     make(map[string]models.Photo, len(st.photos)),
		nextUserID: st.nextUserID,
		nextTaskID: st.nextTaskID,
	}
	for k, v := range st.users {
		c.users[k] = v
	}
	for k, v := range st.tasks {
		c.tasks[k] = v
	}
	for k, v := range st.photos {
		c.photos[k] = v
	}
	return c
}

// Storage keeps everything in maps guarded by one mutex. A transaction holds
// the mutex for its whole duration and restores a snapshot on failure.
type Storage struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
}

var _ service.Store = (*Storage)(nil)

func NewStorage() *Storage {
	return &Storage{
		mu: &sync.Mutex{},
		st: &state{
			users:  make(map[int64]models.User),
			tasks:  make(map[int64]models.Task),
			photos: make(map[string]models.Photo),
		},
	}
}

func (s *Storage) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

func (s *Storage) InTx(ctx context.Context, fn func(tx service.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	snapshot := s.st.clone()
	committed := false
	defer func() {
		if !committed {
			*s.st = *snapshot
		}
	}()

	if err := fn(&Storage{mu: s.mu, st: s.st, inTx: true}); err != nil {
		return err
	}
	committed = true
	return nil
}

func (s *Storage) CreateUser(_ context.Context, user *models.User) error {
	defer s.lock()()

	for _, existing := range s.st.users {
		if existing.Username == user.Username {
			return errors.ErrUserAlreadyExists
		}
	}
	s.st.nextUserID++
	user.ID = s.st.nextUserID
	s.st.users[user.ID] = *user
	return nil
}

func (s *Storage) GetUserByID(_ context.Context, id int64) (*models.User, error) {
	defer s.lock()()

	user, exists := s.st.users[id]
	if !exists {
		return nil, errors.ErrUserNotFound
	}
	return &user, nil
}

func (s *Storage) GetUserByUsername(_ context.Context, username string) (*models.User, error) {
	defer s.lock()()

	for _, user := range s.st.users {
		if user.Username == username {
			return &user, nil
		}
	}
	return nil, errors.ErrUserNotFound
}

func (s *Storage) CreateTask(_ context.Context, task *models.Task) error {
	defer s.lock()()

	if _, exists := s.st.users[task.OwnerID]; !exists {
		return errors.ErrUserNotFound
	}
	for _, t := range s.st.tasks {
		if t.OwnerID == task.OwnerID && t.Name == task.Name {
			return errors.ErrTaskExists
		}
	}
	s.st.nextTaskID++
	task.ID = s.st.nextTaskID
	s.st.tasks[task.ID] = *task
	return nil
}

func (s *Storage) GetTaskByID(_ context.Context, id int64) (*models.Task, error) {
	defer s.lock()()

	task, exists := s.st.tasks[id]
	if !exists {
		return nil, errors.ErrTaskNotFound
	}
	return &task, nil
}

func (s *Storage) GetTasksByOwner(_ context.Context, ownerID int64) ([]models.Task, error) {
	defer s.lock()()

	tasks := []models.Task{}
	for _, t := range s.st.tasks {
		if t.OwnerID == ownerID {
			tasks = append(tasks, t)
		}
	}
	sort.Slice(tasks, func(i, j int) bool { return tasks[i].ID < tasks[j].ID })
	return tasks, nil
}

func (s *Storage) TaskExists(_ context.Context, ownerID int64, name string) (bool, error) {
	defer s.lock()()

	for _, t := range s.st.tasks {
		if t.OwnerID == ownerID && t.Name == name {
			return true, nil
		}
	}
	return false, nil
}

// DeleteTask also drops photos still attached to the task, like the
// ON DELETE CASCADE foreign key of the SQL schema.
func (s *Storage) DeleteTask(_ context.Context, id int64) error {
	defer s.lock()()

	if _, exists := s.st.tasks[id]; !exists {
		return errors.ErrTaskNotFound
	}
	delete(s.st.tasks, id)
	for pid, p := range s.st.photos {
		if p.TaskID == id {
			delete(s.st.photos, pid)
		}
	}
	return nil
}

func (s *Storage) CreatePhoto(_ context.Context, photo *models.Photo) error {
	defer s.lock()()

	if _, exists := s.st.tasks[photo.TaskID]; !exists {
		return errors.ErrTaskNotFound
	}
	s.st.photos[photo.ID] = *photo
	return nil
}

func (s *Storage) GetPhotoByID(_ context.Context, id string) (*models.Photo, error) {
	defer s.lock()()

	photo, exists := s.st.photos[id]
	if !exists {
		return nil, errors.ErrPhotoNotFound
	}
	return &photo, nil
}

func (s *Storage) GetLatestPhotoIDs(_ context.Context, ownerID int64) (map[int64]string, error) {
	defer s.lock()()

	latest := make(map[int64]models.Photo)
	for _, p := range s.st.photos {
		task, ok := s.st.tasks[p.TaskID]
		if !ok || task.OwnerID != ownerID {
			continue
		}
		cur, seen := latest[p.TaskID]
		if !seen || p.CreatedAt.After(cur.CreatedAt) ||
			(p.CreatedAt.Equal(cur.CreatedAt) && p.ID > cur.ID) {
			latest[p.TaskID] = p
		}
	}

	ids := make(map[int64]string, len(latest))
	for taskID, p := range latest {
		ids[taskID] = p.ID
	}
	return ids, nil
}

func (s *Storage) PhotoExistsForTask(_ context.Context, taskID int64) (bool, error) {
	defer s.lock()()

	for _, p := range s.st.photos {
		if p.TaskID == taskID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Storage) DeletePhotosForTask(_ context.Context, taskID int64) (int64, error) {
	defer s.lock()()

	var n int64
	for id, p := range s.st.photos {
		if p.TaskID == taskID {
			delete(s.st.photos, id)
			n++
		}
	}
	return n, nil
}
