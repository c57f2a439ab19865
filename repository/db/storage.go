package db

import (
	"context"
	"fmt"
	"time"

	"tracker/internal/domain/errors"
	"tracker/internal/domain/models"
	"tracker/internal/service"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

const queryTimeout = 15 * time.Second

const (
	createUserQuery = `
INSERT INTO users (username, password)
VALUES ($1, $2)
RETURNING id`
	getUserByIDQuery = `
SELECT id, username, password
FROM users
WHERE id = $1`
	getUserByUsernameQuery = `
SELECT id, username, password
FROM users
WHERE username = $1`

	createTaskQuery = `
INSERT INTO tasks (owner_id, name, deadline, created_at)
VALUES ($1, $2, $3, $4)
RETURNING id`
	getTaskByIDQuery = `
SELECT id, owner_id, name, deadline, created_at
FROM tasks
WHERE id = $1`
	getTaskByIDForUpdateQuery = getTaskByIDQuery + `
FOR UPDATE`
	getTasksByOwnerQuery = `
SELECT id, owner_id, name, deadline, created_at
FROM tasks
WHERE owner_id = $1
ORDER BY id`
	taskExistsQuery = `
SELECT EXISTS (SELECT 1 FROM tasks WHERE owner_id = $1 AND name = $2)`
	deleteTaskQuery = `
DELETE FROM tasks
WHERE id = $1`

	createPhotoQuery = `
INSERT INTO photos (id, task_id, content_type, size, data, created_at)
VALUES ($1::uuid, $2, $3, $4, $5, $6)`
	getPhotoByIDQuery = `
SELECT id::text, task_id, content_type, size, data, created_at
FROM photos
WHERE id = $1::uuid`
	getLatestPhotoIDsQuery = `
SELECT DISTINCT ON (p.task_id) p.task_id, p.id::text
FROM photos p
JOIN tasks t ON t.id = p.task_id
WHERE t.owner_id = $1
ORDER BY p.task_id, p.created_at DESC, p.id DESC`
	photoExistsForTaskQuery = `
SELECT EXISTS (SELECT 1 FROM photos WHERE task_id = $1)`
	deletePhotosForTaskQuery = `
DELETE FROM photos
WHERE task_id = $1`
)

type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Storage is the Postgres implementation of service.Store. Outside a
// transaction db is the pool; inside InTx it is the pgx.Tx.
type Storage struct {
	pool   *pgxpool.Pool
	db     querier
	inTx   bool
	logger zerolog.Logger
}

var _ service.Store = (*Storage)(nil)

func NewStorage(ctx context.Context, connStr string, logger zerolog.Logger) (*Storage, error) {
	logger = logger.With().Str("component", "postgres").Logger()

	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("failed to parse postgres config")
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		logger.Error().
			Err(err).
			Msg("failed to connect to postgres")
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		logger.Error().
			Err(err).
			Msg("failed to ping postgres")
		return nil, err
	}

	logger.Info().
		Str("host", cfg.ConnConfig.Host).
		Uint16("port", cfg.ConnConfig.Port).
		Msg("connected to postgres")
	return &Storage{pool: pool, db: pool, logger: logger}, nil
}

func (s *Storage) Close() {
	s.pool.Close()
	s.logger.Info().Msg("disconnected from postgres")
}

func (s *Storage) InTx(ctx context.Context, fn func(tx service.Store) error) error {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to begin transaction")
		return err
	}
	// Releases the connection if fn panics. A no-op after Commit or Rollback.
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&Storage{pool: s.pool, db: tx, inTx: true, logger: s.logger}); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			s.logger.Error().
				Err(rbErr).
				Msg("failed to roll back transaction")
		}
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		s.logger.Error().
			Err(err).
			Msg("failed to commit transaction")
		return mapConstraintError(err)
	}
	return nil
}

func (s *Storage) CreateUser(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := s.db.QueryRow(ctx, createUserQuery, user.Username, user.Password).Scan(&user.ID)
	if err != nil {
		return mapConstraintError(err)
	}
	s.logger.Debug().
		Int64("user_id", user.ID).
		Msg("inserted user")
	return nil
}

func (s *Storage) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	user := &models.User{}
	err := s.db.QueryRow(ctx, getUserByIDQuery, id).Scan(&user.ID, &user.Username, &user.Password)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrUserNotFound
		}
		return nil, fmt.Errorf("select user %d: %w", id, err)
	}
	return user, nil
}

func (s *Storage) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	user := &models.User{}
	err := s.db.QueryRow(ctx, getUserByUsernameQuery, username).Scan(&user.ID, &user.Username, &user.Password)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrUserNotFound
		}
		return nil, fmt.Errorf("select user by username: %w", err)
	}
	return user, nil
}

func (s *Storage) CreateTask(ctx context.Context, task *models.Task) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := s.db.QueryRow(ctx, createTaskQuery,
		task.OwnerID,
		task.Name,
		task.Deadline,
		task.CreatedAt,
	).Scan(&task.ID)
	if err != nil {
		return mapConstraintError(err)
	}
	s.logger.Debug().
		Int64("task_id", task.ID).
		Int64("user_id", task.OwnerID).
		Msg("inserted task")
	return nil
}

func (s *Storage) GetTaskByID(ctx context.Context, id int64) (*models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	query := getTaskByIDQuery
	if s.inTx {
		query = getTaskByIDForUpdateQuery
	}

	task := &models.Task{}
	err := s.db.QueryRow(ctx, query, id).Scan(
		&task.ID,
		&task.OwnerID,
		&task.Name,
		&task.Deadline,
		&task.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrTaskNotFound
		}
		return nil, fmt.Errorf("select task %d: %w", id, err)
	}
	return task, nil
}

func (s *Storage) GetTasksByOwner(ctx context.Context, ownerID int64) ([]models.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.Query(ctx, getTasksByOwnerQuery, ownerID)
	if err != nil {
		return nil, fmt.Errorf("select tasks: %w", err)
	}
	defer rows.Close()

	tasks := []models.Task{}
	for rows.Next() {
		var task models.Task
		if err := rows.Scan(&task.ID, &task.OwnerID, &task.Name, &task.Deadline, &task.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		tasks = append(tasks, task)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return tasks, nil
}

func (s *Storage) TaskExists(ctx context.Context, ownerID int64, name string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	if err := s.db.QueryRow(ctx, taskExistsQuery, ownerID, name).Scan(&exists); err != nil {
		return false, fmt.Errorf("check task: %w", err)
	}
	return exists, nil
}

func (s *Storage) DeleteTask(ctx context.Context, id int64) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := s.db.Exec(ctx, deleteTaskQuery, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return errors.ErrTaskNotFound
	}
	s.logger.Debug().
		Int64("task_id", id).
		Msg("deleted task")
	return nil
}

func (s *Storage) CreatePhoto(ctx context.Context, photo *models.Photo) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err := s.db.Exec(ctx, createPhotoQuery,
		photo.ID,
		photo.TaskID,
		photo.ContentType,
		photo.Size,
		photo.Data,
		photo.CreatedAt,
	)
	if err != nil {
		return mapConstraintError(err)
	}
	s.logger.Debug().
		Str("photo_id", photo.ID).
		Int64("task_id", photo.TaskID).
		Msg("inserted photo")
	return nil
}

func (s *Storage) GetPhotoByID(ctx context.Context, id string) (*models.Photo, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	photo := &models.Photo{}
	err := s.db.QueryRow(ctx, getPhotoByIDQuery, id).Scan(
		&photo.ID,
		&photo.TaskID,
		&photo.ContentType,
		&photo.Size,
		&photo.Data,
		&photo.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, errors.ErrPhotoNotFound
		}
		return nil, fmt.Errorf("select photo: %w", err)
	}
	return photo, nil
}

func (s *Storage) GetLatestPhotoIDs(ctx context.Context, ownerID int64) (map[int64]string, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := s.db.Query(ctx, getLatestPhotoIDsQuery, ownerID)
	if err != nil {
		return nil, fmt.Errorf("select latest photos: %w", err)
	}
	defer rows.Close()

	ids := make(map[int64]string)
	for rows.Next() {
		var (
			taskID  int64
			photoID string
		)
		if err := rows.Scan(&taskID, &photoID); err != nil {
			return nil, fmt.Errorf("scan photo id: %w", err)
		}
		ids[taskID] = photoID
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate photos: %w", err)
	}
	return ids, nil
}

func (s *Storage) PhotoExistsForTask(ctx context.Context, taskID int64) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var exists bool
	if err := s.db.QueryRow(ctx, photoExistsForTaskQuery, taskID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check photo: %w", err)
	}
	return exists, nil
}

func (s *Storage) DeletePhotosForTask(ctx context.Context, taskID int64) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	tag, err := s.db.Exec(ctx, deletePhotosForTaskQuery, taskID)
	if err != nil {
		return 0, fmt.Errorf("delete photos of task %d: %w", taskID, err)
	}
	return tag.RowsAffected(), nil
}

// mapConstraintError turns constraint violations into domain errors and
// passes everything else through.
func mapConstraintError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}

	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		switch pgErr.TableName {
		case "users":
			return errors.ErrUserAlreadyExists
		case "tasks":
			return errors.ErrTaskExists
		}
	case pgerrcode.ForeignKeyViolation:
		switch pgErr.TableName {
		case "tasks":
			return errors.ErrUserNotFound
		case "photos":
			return errors.ErrTaskNotFound
		}
	}
	return err
}
