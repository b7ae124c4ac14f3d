package services

import (
	"context"

	"eventbooking/internal/models"
)

// UserRepository interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, username, passwordHash, preferredName string, isAdmin bool) (*models.User, error)
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	UpdatePassword(ctx context.Context, username, passwordHash string) error
	SetAdmin(ctx context.Context, username string, isAdmin bool) error
}

// PasswordHasher hashes and checks account passwords
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password, hash string) (bool, error)
}
