package models

import (
	"regexp"
	"strings"
)

// MinPasswordLength is the shortest accepted password
const MinPasswordLength = 4

var usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)

// User represents an account that can hold a cart and place orders
type User struct {
	ID            int    `json:"id" db:"id"`
	Username      string `json:"username" db:"username"`
	PasswordHash  string `json:"-" db:"password"`
	PreferredName string `json:"preferred_name" db:"preferredName"`
	IsAdmin       bool   `json:"is_admin" db:"is_admin"`
}

// DisplayName returns the preferred name, falling back to the username
func (u *User) DisplayName() string {
	if u.PreferredName != "" {
		return u.PreferredName
	}
	return u.Username
}

// UserCreateRequest represents the data needed to create a new user
type UserCreateRequest struct {
	Username      string `json:"username"`
	Password      string `json:"password"`
	PreferredName string `json:"preferred_name"`
}

// Validate validates user creation data
func (req *UserCreateRequest) Validate() error {
	req.Username = strings.TrimSpace(req.Username)
	req.PreferredName = strings.TrimSpace(req.PreferredName)

	if err := ValidateUsername(req.Username); err != nil {
		return err
	}

	if err := ValidatePassword(req.Password); err != nil {
		return err
	}

	if req.PreferredName == "" {
		return NewValidationError("preferred_name", "preferred name is required")
	}

	return nil
}

// ValidateUsername validates a login name
func ValidateUsername(username string) error {
	if username == "" {
		return NewValidationError("username", "username is required")
	}
	if len(username) > 50 {
		return NewValidationError("username", "username must be less than 50 characters")
	}
	if !usernameRegex.MatchString(username) {
		return NewValidationError("username", "username may only contain letters, digits, '.', '_' and '-'")
	}
	return nil
}

// ValidatePassword validates a plaintext password
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return NewValidationError("password", "password must be at least 4 characters")
	}
	if len(password) > 128 {
		return NewValidationError("password", "password must be less than 128 characters")
	}
	return nil
}
