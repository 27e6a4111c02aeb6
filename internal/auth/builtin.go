package auth

import (
	"context"
	"fmt"

	"github.com/qwc/lisenssit/internal/database"
	"github.com/qwc/lisenssit/internal/store"
	"golang.org/x/crypto/bcrypt"
)

// BuiltinAuthenticator checks passwords stored in the service's own user
// table. It is always registered, directory and oauth2 logins are layered
// on top when configured.
type BuiltinAuthenticator struct {
	users store.UserStore
}

func NewBuiltinAuthenticator(users store.UserStore) *BuiltinAuthenticator {
	return &BuiltinAuthenticator{users: users}
}

func (a *BuiltinAuthenticator) Name() string {
	return "builtin"
}

func (a *BuiltinAuthenticator) Authenticate(ctx context.Context, username, password string) (*database.User, error) {
	user, err := a.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("unknown user")
	}

	switch {
	case user.IsRobot:
		// Robots publish scans with API tokens, never the login form.
		return nil, fmt.Errorf("robot accounts cannot log in")
	case user.AuthSource != "builtin":
		return nil, fmt.Errorf("account is managed by %s", user.AuthSource)
	case user.Password == nil:
		return nil, fmt.Errorf("account has no password set")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(*user.Password), []byte(password)); err != nil {
		return nil, fmt.Errorf("wrong password")
	}
	return user, nil
}

// HashPassword derives the stored form of a dashboard password.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hashing password: %w", err)
	}
	return string(hash), nil
}
