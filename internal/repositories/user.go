package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"eventbooking/internal/models"
)

// UserRepository handles user data operations
type UserRepository struct {
	db *sql.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, username, password, preferredName, is_admin`

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &user.PreferredName, &user.IsAdmin)
	if err != nil {
		return nil, err
	}
	return user, nil
}

// Create creates a new user. passwordHash must already be hashed.
func (r *UserRepository) Create(ctx context.Context, username, passwordHash, preferredName string, isAdmin bool) (*models.User, error) {
	query := `
		INSERT INTO users (username, password, preferredName, is_admin)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + userColumns

	user, err := scanUser(r.db.QueryRowContext(ctx, query, username, passwordHash, preferredName, isAdmin))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%w: %s", models.ErrDuplicateUser, username)
		}
		return nil, models.NewStorageError("create user", err)
	}

	return user, nil
}

// GetByUsername retrieves a user by username
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	user, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", models.ErrUserNotFound, username)
		}
		return nil, models.NewStorageError("get user", err)
	}

	return user, nil
}

// UpdatePassword replaces a user's password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, username, passwordHash string) error {
	return r.updateOne(ctx, "update password",
		`UPDATE users SET password = $1 WHERE username = $2`, passwordHash, username)
}

// SetAdmin grants or revokes the admin flag
func (r *UserRepository) SetAdmin(ctx context.Context, username string, isAdmin bool) error {
	return r.updateOne(ctx, "set admin",
		`UPDATE users SET is_admin = $1 WHERE username = $2`, isAdmin, username)
}

func (r *UserRepository) updateOne(ctx context.Context, op, query string, value interface{}, username string) error {
	result, err := r.db.ExecContext(ctx, query, value, username)
	if err != nil {
		return models.NewStorageError(op, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return models.NewStorageError(op, err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", models.ErrUserNotFound, username)
	}

	return nil
}
