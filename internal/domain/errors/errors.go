package errors

import "errors"

var (
	ErrTaskNameEmpty    = errors.New("task name is empty")
	ErrTaskNameTooShort = errors.New("task name is too short")
	ErrTaskExists       = errors.New("task with this name already exists")
	ErrTaskNotFound     = errors.New("task not found")
	ErrForbidden        = errors.New("access forbidden")

	ErrUserNotFound       = errors.New("user not found")
	ErrUserAlreadyExists  = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthorized       = errors.New("unauthorized")

	ErrPhotoNotFound = errors.New("photo not found")
	ErrPhotoEmpty    = errors.New("photo is empty")
	ErrPhotoTooLarge = errors.New("photo is too large")

	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidUsername  = errors.New("invalid username")
	ErrInvalidPassword  = errors.New("invalid password")
	ErrBadRequest       = errors.New("bad request")
	ErrInternalServer   = errors.New("internal server error")
	ErrRateLimited      = errors.New("too many requests")

	ErrConfigFileReadFailed = errors.New("failed to read config file")
	ErrConfigParseFailed    = errors.New("failed to parse config file")
	ErrConfigInvalidFormat  = errors.New("invalid config value")
	ErrUnknownEnv           = errors.New("unknown environment")
	ErrDefaultJWTSecret     = errors.New("jwt secret is left at its default value")

	ErrInvalidGzipRequest    = errors.New("invalid gzip request body")
	ErrGzipCompressionFailed = errors.New("gzip compression failed")
)

// Is and As mirror the standard library so callers need a single errors import.
func Is(err, target error) bool { return errors.Is(err, target) }

func As(err error, target any) bool { return errors.As(err, target) }
