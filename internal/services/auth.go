package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"eventbooking/internal/models"
)

// AuthService handles account registration and login
type AuthService struct {
	users  UserRepository
	hasher PasswordHasher
	logger *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(users UserRepository, hasher PasswordHasher, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		users:  users,
		hasher: hasher,
		logger: logger.With("component", "auth"),
	}
}

// Register creates a regular account
func (s *AuthService) Register(ctx context.Context, req *models.UserCreateRequest) (*models.User, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user, err := s.users.Create(ctx, req.Username, hash, req.PreferredName, false)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user registered", "username", user.Username)
	return user, nil
}

// Login checks a username and password. Unknown users and wrong passwords
// both return ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, models.ErrUserNotFound) {
		s.logger.Info("login failed", "username", username, "reason", "unknown user")
		return nil, models.ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Warn("stored password hash unreadable", "username", username, "error", err)
		return nil, models.ErrInvalidCredentials
	}
	if !ok {
		s.logger.Info("login failed", "username", username, "reason", "wrong password")
		return nil, models.ErrInvalidCredentials
	}

	return user, nil
}

// GetUser returns an account by username
func (s *AuthService) GetUser(ctx context.Context, username string) (*models.User, error) {
	return s.users.GetByUsername(ctx, username)
}

// ChangePassword replaces a user's password
func (s *AuthService) ChangePassword(ctx context.Context, username, newPassword string) error {
	if err := models.ValidatePassword(newPassword); err != nil {
		return err
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, username, hash); err != nil {
		return err
	}

	s.logger.Info("password changed", "username", username)
	return nil
}

// EnsureAdmin makes sure an admin account with the given credentials
// exists, creating it or promoting and resetting an existing account.
func (s *AuthService) EnsureAdmin(ctx context.Context, username, password string) (*models.User, error) {
	if err := models.ValidateUsername(username); err != nil {
		return nil, err
	}
	if err := models.ValidatePassword(password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	existing, err := s.users.GetByUsername(ctx, username)
	switch {
	case errors.Is(err, models.ErrUserNotFound):
		user, err := s.users.Create(ctx, username, hash, "Administrator", true)
		if err != nil {
			return nil, err
		}
		s.logger.Info("admin account created", "username", username)
		return user, nil
	case err != nil:
		return nil, err
	}

	if err := s.users.UpdatePassword(ctx, username, hash); err != nil {
		return nil, err
	}
	if !existing.IsAdmin {
		if err := s.users.SetAdmin(ctx, username, true); err != nil {
			return nil, err
		}
	}

	existing.PasswordHash = hash
	existing.IsAdmin = true
	s.logger.Info("admin account updated", "username", username)
	return existing, nil
}
