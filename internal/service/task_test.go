package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"tracker/internal/domain/errors"
	"tracker/internal/domain/models"
	"tracker/internal/service"
	inmemory "tracker/repository/inmemory"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type fixture struct {
	store  *inmemory.Storage
	tasks  *service.TaskService
	photos *service.PhotoService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := inmemory.NewStorage()
	return &fixture{
		store:  store,
		tasks:  service.NewTaskService(zerolog.Nop(), store),
		photos: service.NewPhotoService(zerolog.Nop(), store, 0),
	}
}

func (f *fixture) user(t *testing.T, username, password string) *models.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	require.NoError(t, err)

	u := &models.User{Username: username, Password: string(hash)}
	require.NoError(t, f.store.CreateUser(context.Background(), u))
	return u
}

func inAnHour() time.Time {
	return time.Now().Add(time.Hour)
}

func TestAddTask(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "M. Test", "Passw0rd!")
	ctx := context.Background()

	task, err := f.tasks.AddTask(ctx, models.AddTaskRequest{Name: "Tâche de test", Deadline: inAnHour()}, u)
	require.NoError(t, err)
	assert.NotZero(t, task.ID)
	assert.Equal(t, u.ID, task.OwnerID)

	home, err := f.tasks.Home(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, home, 1)
	assert.Equal(t, "Tâche de test", home[0].Name)
	assert.Equal(t, task.ID, home[0].ID)
}

func TestAddTaskValidation(t *testing.T) {
	tests := []struct {
		name     string
		taskName string
		deadline time.Time
		want     struct {
			err error
		}
	}{
		{
			name:     "empty name",
			taskName: "",
			deadline: inAnHour(),
			want:     struct{ err error }{err: errors.ErrTaskNameEmpty},
		},
		{
			name:     "empty name without deadline",
			taskName: "",
			want:     struct{ err error }{err: errors.ErrTaskNameEmpty},
		},
		{
			name:     "whitespace only",
			taskName: "  \t ",
			deadline: inAnHour(),
			want:     struct{ err error }{err: errors.ErrTaskNameEmpty},
		},
		{
			name:     "single character",
			taskName: "o",
			deadline: inAnHour(),
			want:     struct{ err error }{err: errors.ErrTaskNameTooShort},
		},
		{
			name:     "single multibyte character padded with spaces",
			taskName: "  é ",
			deadline: inAnHour(),
			want:     struct{ err error }{err: errors.ErrTaskNameTooShort},
		},
		{
			name:     "minimum length",
			taskName: "ok",
			deadline: inAnHour(),
		},
		{
			name:     "two multibyte characters",
			taskName: "éé",
			deadline: inAnHour(),
		},
		{
			name:     "phrase",
			taskName: "Bonne tâche",
			deadline: inAnHour(),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			u := f.user(t, "M. Test", "Passw0rd!")
			ctx := context.Background()

			task, err := f.tasks.AddTask(ctx, models.AddTaskRequest{Name: tt.taskName, Deadline: tt.deadline}, u)
			home, homeErr := f.tasks.Home(ctx, u.ID)
			require.NoError(t, homeErr)

			if tt.want.err != nil {
				assert.ErrorIs(t, err, tt.want.err)
				assert.Nil(t, task)
				assert.Empty(t, home)
				return
			}
			require.NoError(t, err)
			assert.Len(t, home, 1)
		})
	}
}

func TestAddTaskExisting(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "M. Test", "Passw0rd!")
	ctx := context.Background()
	req := models.AddTaskRequest{Name: "Bonne tâche", Deadline: inAnHour()}

	first, err := f.tasks.AddTask(ctx, req, u)
	require.NoError(t, err)

	_, err = f.tasks.AddTask(ctx, req, u)
	assert.ErrorIs(t, err, errors.ErrTaskExists)

	_, err = f.tasks.AddTask(ctx, models.AddTaskRequest{Name: "  Bonne tâche  ", Deadline: inAnHour()}, u)
	assert.ErrorIs(t, err, errors.ErrTaskExists, "names are compared after trimming")

	home, err := f.tasks.Home(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, home, 1)
	assert.Equal(t, first.ID, home[0].ID)
	assert.WithinDuration(t, req.Deadline, home[0].Deadline, 0)
}

func TestAddTaskSameNameDifferentOwners(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", "Passw0rd!")
	bob := f.user(t, "bob", "Passw0rd!")
	ctx := context.Background()
	req := models.AddTaskRequest{Name: "Bonne tâche", Deadline: inAnHour()}

	_, err := f.tasks.AddTask(ctx, req, alice)
	require.NoError(t, err)
	_, err = f.tasks.AddTask(ctx, req, bob)
	require.NoError(t, err)
}

func TestAddTaskPriority(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "M. Test", "Passw0rd!")
	ctx := context.Background()

	_, err := f.tasks.AddTask(ctx, models.AddTaskRequest{Name: "o", Deadline: inAnHour()}, u)
	require.ErrorIs(t, err, errors.ErrTaskNameTooShort)

	// A short name is rejected before uniqueness is considered, even if it
	// somehow exists already.
	require.NoError(t, f.store.CreateTask(ctx, &models.Task{Name: "o", OwnerID: u.ID}))
	_, err = f.tasks.AddTask(ctx, models.AddTaskRequest{Name: "o", Deadline: inAnHour()}, u)
	assert.ErrorIs(t, err, errors.ErrTaskNameTooShort)
	assert.NotErrorIs(t, err, errors.ErrTaskExists)
}

func TestHome(t *testing.T) {
	f := newFixture(t)
	alice := f.user(t, "alice", "Passw0rd!")
	bob := f.user(t, "bob", "Passw0rd!")
	ctx := context.Background()

	home, err := f.tasks.Home(ctx, alice.ID)
	require.NoError(t, err)
	assert.NotNil(t, home)
	assert.Empty(t, home)

	for _, name := range []string{"first", "second", "third"} {
		_, err := f.tasks.AddTask(ctx, models.AddTaskRequest{Name: name, Deadline: inAnHour()}, alice)
		require.NoError(t, err)
	}
	_, err = f.tasks.AddTask(ctx, models.AddTaskRequest{Name: "bob only", Deadline: inAnHour()}, bob)
	require.NoError(t, err)

	home, err = f.tasks.Home(ctx, alice.ID)
	require.NoError(t, err)
	require.Len(t, home, 3)
	assert.Equal(t, "first", home[0].Name)
	assert.Equal(t, "second", home[1].Name)
	assert.Equal(t, "third", home[2].Name)
	for _, item := range home {
		assert.False(t, item.Done)
		assert.Empty(t, item.PhotoID)
		assert.InDelta(t, 0, item.PercentageTimeSpent, 1)
	}

	home, err = f.tasks.Home(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, home, 1)
	assert.Equal(t, "bob only", home[0].Name)
}

func TestHomeShowsLatestPhoto(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "bob", "Motdepassecomplique20")
	ctx := context.Background()

	task, err := f.tasks.AddTask(ctx, models.AddTaskRequest{Name: "Bonne tâche", Deadline: inAnHour()}, u)
	require.NoError(t, err)

	_, err = f.photos.Upload(ctx, task.ID, u, []byte("first"))
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	latest, err := f.photos.Upload(ctx, task.ID, u, []byte("second"))
	require.NoError(t, err)

	home, err := f.tasks.Home(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, home, 1)
	assert.True(t, home[0].Done)
	assert.Equal(t, latest.ID, home[0].PhotoID)
}

func TestDeleteTaskUnknown(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "bob", "Motdepassecomplique20")

	err := f.tasks.DeleteTask(context.Background(), 0, u)
	assert.ErrorIs(t, err, errors.ErrTaskNotFound)
}

func TestDeleteTask(t *testing.T) {
	tests := []struct {
		name   string
		photos int
	}{
		{name: "without photo", photos: 0},
		{name: "with photo", photos: 1},
		{name: "with several photos", photos: 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			u := f.user(t, "bob", "Motdepassecomplique20")
			ctx := context.Background()

			_, err := f.tasks.AddTask(ctx, models.AddTaskRequest{Name: "Bonne tâche", Deadline: inAnHour()}, u)
			require.NoError(t, err)

			home, err := f.tasks.Home(ctx, u.ID)
			require.NoError(t, err)
			require.Len(t, home, 1)
			taskID := home[0].ID

			var photoIDs []string
			for i := 0; i < tt.photos; i++ {
				p, err := f.photos.Upload(ctx, taskID, u, []byte{0xff, 0xd8, 0xff, byte(i)})
				require.NoError(t, err)
				photoIDs = append(photoIDs, p.ID)
			}

			require.NoError(t, f.tasks.DeleteTask(ctx, taskID, u))

			home, err = f.tasks.Home(ctx, u.ID)
			require.NoError(t, err)
			assert.Empty(t, home)

			exists, err := f.store.PhotoExistsForTask(ctx, taskID)
			require.NoError(t, err)
			assert.False(t, exists)
			for _, id := range photoIDs {
				_, err := f.store.GetPhotoByID(ctx, id)
				assert.ErrorIs(t, err, errors.ErrPhotoNotFound)
			}

			assert.ErrorIs(t, f.tasks.DeleteTask(ctx, taskID, u), errors.ErrTaskNotFound, "deleted is terminal")
		})
	}
}

func TestDeleteTaskForbidden(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "bob", "Motdepassecomplique20")
	intruder := f.user(t, "eve", "Passw0rd!")
	ctx := context.Background()

	task, err := f.tasks.AddTask(ctx, models.AddTaskRequest{Name: "Bonne tâche", Deadline: inAnHour()}, owner)
	require.NoError(t, err)
	photo, err := f.photos.Upload(ctx, task.ID, owner, []byte("proof"))
	require.NoError(t, err)

	err = f.tasks.DeleteTask(ctx, task.ID, intruder)
	assert.ErrorIs(t, err, errors.ErrForbidden)

	home, err := f.tasks.Home(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, home, 1)
	assert.Equal(t, photo.ID, home[0].PhotoID)

	_, err = f.store.GetPhotoByID(ctx, photo.ID)
	assert.NoError(t, err)
}

func TestScenarioBob(t *testing.T) {
	f := newFixture(t)
	bob := f.user(t, "bob", "Motdepassecomplique20")
	ctx := context.Background()

	_, err := f.tasks.AddTask(ctx, models.AddTaskRequest{
		Name:     "Bonne tâche",
		Deadline: time.Now().Add(3600 * time.Second),
	}, bob)
	require.NoError(t, err)

	home, err := f.tasks.Home(ctx, bob.ID)
	require.NoError(t, err)
	require.Len(t, home, 1)
	assert.Equal(t, "Bonne tâche", home[0].Name)

	require.NoError(t, f.tasks.DeleteTask(ctx, home[0].ID, bob))

	home, err = f.tasks.Home(ctx, bob.ID)
	require.NoError(t, err)
	assert.Empty(t, home)
}

func TestValidateTaskName(t *testing.T) {
	name, err := service.ValidateTaskName("  Bonne tâche ")
	require.NoError(t, err)
	assert.Equal(t, "Bonne tâche", name)
}

func TestAddTaskConcurrentSameName(t *testing.T) {
	f := newFixture(t)
	u := f.user(t, "bob", "Motdepassecomplique20")
	ctx := context.Background()

	const workers = 32
	errs := make([]error, workers)

	var wg sync.WaitGroup
	start := make(chan struct{})
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = f.tasks.AddTask(ctx, models.AddTaskRequest{Name: "Bonne tâche", Deadline: inAnHour()}, u)
		}(i)
	}
	close(start)
	wg.Wait()

	var created, duplicates int
	for _, err := range errs {
		switch {
		case err == nil:
			created++
		case errors.Is(err, errors.ErrTaskExists):
			duplicates++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, created)
	assert.Equal(t, workers-1, duplicates)

	home, err := f.tasks.Home(ctx, u.ID)
	require.NoError(t, err)
	assert.Len(t, home, 1)
}
