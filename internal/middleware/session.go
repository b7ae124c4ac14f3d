package middleware

import (
	"net/http"

	"github.com/gorilla/sessions"

	"eventbooking/internal/models"
)

const sessionUsernameKey = "username"

// SessionOptions configures the session cookie
type SessionOptions struct {
	Name   string
	Secret string
	MaxAge int
	Secure bool
}

// SessionManager stores the signed-in username in a signed cookie
type SessionManager struct {
	store sessions.Store
	name  string
}

// NewSessionManager creates a cookie-backed session manager
func NewSessionManager(opts SessionOptions) *SessionManager {
	store := sessions.NewCookieStore([]byte(opts.Secret))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   opts.MaxAge,
		HttpOnly: true,
		Secure:   opts.Secure,
		SameSite: http.SameSiteLaxMode,
	}

	name := opts.Name
	if name == "" {
		name = "session"
	}
	return &SessionManager{store: store, name: name}
}

// Username returns the signed-in username, or "" for anonymous requests.
// A tampered or expired cookie reads as anonymous.
func (m *SessionManager) Username(r *http.Request) string {
	session, err := m.store.Get(r, m.name)
	if err != nil {
		return ""
	}
	username, _ := session.Values[sessionUsernameKey].(string)
	return username
}

// SignIn starts a session for user
func (m *SessionManager) SignIn(w http.ResponseWriter, r *http.Request, user *models.User) error {
	// a broken cookie still yields a fresh session to overwrite it
	session, _ := m.store.Get(r, m.name)
	session.Values[sessionUsernameKey] = user.Username
	return session.Save(r, w)
}

// SignOut ends the session
func (m *SessionManager) SignOut(w http.ResponseWriter, r *http.Request) error {
	session, _ := m.store.Get(r, m.name)
	delete(session.Values, sessionUsernameKey)
	session.Options.MaxAge = -1
	return session.Save(r, w)
}
