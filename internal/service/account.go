package service

import (
	"context"
	"strings"

	"tracker/internal/domain/errors"
	"tracker/internal/domain/models"

	"github.com/go-playground/validator"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"
)

// maxPasswordBytes is the longest input bcrypt will hash.
const maxPasswordBytes = 72

type AccountService struct {
	logger   zerolog.Logger
	store    UserRepository
	validate *validator.Validate
	cost     int
}

func NewAccountService(logger zerolog.Logger, store UserRepository) *AccountService {
	return &AccountService{
		logger:   logger.With().Str("service", "account").Logger(),
		store:    store,
		validate: validator.New(),
		cost:     bcrypt.DefaultCost,
	}
}

// Signup registers a new user with a bcrypt-hashed password. It returns
// ErrUserAlreadyExists when the username is taken.
func (s *AccountService) Signup(ctx context.Context, req models.SignupRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validate.Struct(req); err != nil {
		return nil, validationErrorToDomain(err)
	}
	if len(req.Password) > maxPasswordBytes {
		return nil, errors.ErrInvalidPassword
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, errors.ErrInvalidPassword
		}
		s.logger.Error().
			Err(err).
			Msg("failed to hash password")
		return nil, err
	}

	user := &models.User{
		Username: req.Username,
		Password: string(hash),
	}
	if err := s.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, errors.ErrUserAlreadyExists) {
			s.logger.Info().
				Str("username", req.Username).
				Msg("username already taken")
			return nil, errors.ErrUserAlreadyExists
		}
		s.logger.Error().
			Err(err).
			Str("username", req.Username).
			Msg("failed to create user")
		return nil, err
	}

	s.logger.Info().
		Int64("user_id", user.ID).
		Msg("user signed up")
	return user, nil
}

// Signin checks the credentials and returns the matching user.
// Unknown usernames and wrong passwords both give ErrInvalidCredentials.
func (s *AccountService) Signin(ctx context.Context, req models.SigninRequest) (*models.User, error) {
	req.Username = strings.TrimSpace(req.Username)
	if err := s.validate.Struct(req); err != nil {
		return nil, validationErrorToDomain(err)
	}

	user, err := s.store.GetUserByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, errors.ErrUserNotFound) {
			return nil, errors.ErrInvalidCredentials
		}
		s.logger.Error().
			Err(err).
			Str("username", req.Username).
			Msg("failed to get user")
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		s.logger.Info().
			Int64("user_id", user.ID).
			Msg("password mismatch")
		return nil, errors.ErrInvalidCredentials
	}
	return user, nil
}

func (s *AccountService) User(ctx context.Context, id int64) (*models.User, error) {
	return s.store.GetUserByID(ctx, id)
}

func validationErrorToDomain(err error) error {
	if verrs, ok := err.(validator.ValidationErrors); ok {
		for _, verr := range verrs {
			switch verr.Field() {
			case "Username":
				return errors.ErrInvalidUsername
			case "Password":
				return errors.ErrInvalidPassword
			}
		}
	}
	return errors.ErrValidationFailed
}
