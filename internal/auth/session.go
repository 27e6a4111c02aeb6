package auth

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/qwc/lisenssit/internal/database"
	"github.com/qwc/lisenssit/internal/store"
)

// SessionManager issues and resolves the cookie-backed sessions used by
// the dashboard. Robots never get sessions, they authenticate each upload
// with an API token.
type SessionManager struct {
	sessions store.SessionStore
	users    store.UserStore
	cookie   string
	ttl      time.Duration
	secure   bool
}

func NewSessionManager(sessions store.SessionStore, users store.UserStore, cookieName string, maxAgeSeconds int, secure bool) *SessionManager {
	return &SessionManager{
		sessions: sessions,
		users:    users,
		cookie:   cookieName,
		ttl:      time.Duration(maxAgeSeconds) * time.Second,
		secure:   secure,
	}
}

// CreateSession stores a fresh session for the user and sets its cookie
// on the response.
func (sm *SessionManager) CreateSession(ctx context.Context, w http.ResponseWriter, userID int64) error {
	id, err := GenerateToken(32)
	if err != nil {
		return fmt.Errorf("generating session id: %w", err)
	}

	err = sm.sessions.Create(ctx, &database.Session{
		ID:        id,
		UserID:    userID,
		ExpiresAt: time.Now().Add(sm.ttl),
	})
	if err != nil {
		return fmt.Errorf("storing session: %w", err)
	}

	http.SetCookie(w, sm.newCookie(id, int(sm.ttl.Seconds())))
	return nil
}

// GetUserFromRequest resolves the session cookie to a user. It returns
// nil for anonymous requests; expired sessions are deleted on sight.
func (sm *SessionManager) GetUserFromRequest(r *http.Request) *database.User {
	cookie, err := r.Cookie(sm.cookie)
	if err != nil {
		return nil
	}

	session, err := sm.sessions.GetByID(r.Context(), cookie.Value)
	if err != nil {
		return nil
	}
	if session.ExpiresAt.Before(time.Now()) {
		sm.sessions.Delete(r.Context(), session.ID)
		return nil
	}

	user, err := sm.users.GetByID(r.Context(), session.UserID)
	if err != nil {
		return nil
	}
	return user
}

// DestroySession drops the stored session and clears the cookie. Safe to
// call on requests that never had a session.
func (sm *SessionManager) DestroySession(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sm.cookie)
	if err != nil {
		return
	}

	sm.sessions.Delete(r.Context(), cookie.Value)
	http.SetCookie(w, sm.newCookie("", -1))
}

func (sm *SessionManager) newCookie(value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     sm.cookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   sm.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
