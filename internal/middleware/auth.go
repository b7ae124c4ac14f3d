package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"eventbooking/internal/models"
)

type contextKey string

const (
	UserContextKey contextKey = "user"
)

// UserLookup resolves a session username to the current account
type UserLookup interface {
	GetUser(ctx context.Context, username string) (*models.User, error)
}

// AuthMiddleware provides authentication functionality
type AuthMiddleware struct {
	users    UserLookup
	sessions *SessionManager
	logger   *slog.Logger
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(users UserLookup, sessions *SessionManager, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		users:    users,
		sessions: sessions,
		logger:   logger.With("component", "auth"),
	}
}

// LoadUser loads the current user from the session and adds it to the
// request context. The admin flag always comes from the stored account.
func (m *AuthMiddleware) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username := m.sessions.Username(r)
		if username == "" {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.users.GetUser(r.Context(), username)
		if err != nil {
			if !errors.Is(err, models.ErrUserNotFound) {
				m.logger.Error("failed to load session user", "username", username, "error", err)
			}
			next.ServeHTTP(w, r)
			return
		}

		ctx := context.WithValue(r.Context(), UserContextKey, user)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAuth rejects anonymous requests
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetUserFromContext(r.Context()) == nil {
			JSONError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAdmin rejects anonymous and non-admin requests
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user := GetUserFromContext(r.Context())
		if user == nil {
			JSONError(w, http.StatusUnauthorized, "unauthenticated", "sign in required")
			return
		}
		if !user.IsAdmin {
			JSONError(w, http.StatusForbidden, "forbidden", "admin access required")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// GetUserFromContext returns the signed-in user, or nil
func GetUserFromContext(ctx context.Context) *models.User {
	user, _ := ctx.Value(UserContextKey).(*models.User)
	return user
}

// WithUser returns a copy of ctx carrying user
func WithUser(ctx context.Context, user *models.User) context.Context {
	return context.WithValue(ctx, UserContextKey, user)
}
