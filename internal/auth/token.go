package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"strings"
	"time"

	"github.com/qwc/lisenssit/internal/database"
	"github.com/qwc/lisenssit/internal/store"
)

// TokenAuthenticator resolves the bearer tokens CI robots present when
// publishing scan bundles. A token is either global or pinned to one
// project; a pinned token can only publish into that project. Only the
// SHA-256 hash of a token is ever stored, the raw value is shown once at
// creation.
type TokenAuthenticator struct {
	tokens store.TokenStore
	users  store.UserStore
}

func NewTokenAuthenticator(tokens store.TokenStore, users store.UserStore) *TokenAuthenticator {
	return &TokenAuthenticator{tokens: tokens, users: users}
}

// AuthenticateRequest resolves the bearer token on the request, ignoring
// any project pinning. Returns nil for anonymous or invalid requests.
func (a *TokenAuthenticator) AuthenticateRequest(r *http.Request) *database.User {
	user, _ := a.resolve(r)
	return user
}

// AuthenticateRequestForProject additionally enforces the token's project
// pin: a token pinned to another project is treated as invalid, so a
// leaked per-project token cannot publish scans elsewhere.
func (a *TokenAuthenticator) AuthenticateRequestForProject(r *http.Request, projectID int64) *database.User {
	user, token := a.resolve(r)
	if user == nil {
		return nil
	}
	if token.ProjectID != nil && *token.ProjectID != projectID {
		return nil
	}
	return user
}

func (a *TokenAuthenticator) resolve(r *http.Request) (*database.User, *database.APIToken) {
	raw, ok := bearerToken(r)
	if !ok {
		return nil, nil
	}

	token, err := a.tokens.GetByHash(r.Context(), HashToken(raw))
	if err != nil {
		return nil, nil
	}
	if token.ExpiresAt != nil && token.ExpiresAt.Before(time.Now()) {
		return nil, nil
	}

	user, err := a.users.GetByID(r.Context(), token.UserID)
	if err != nil {
		return nil, nil
	}
	return user, token
}

// bearerToken pulls the credential out of an "Authorization: Bearer ..."
// header. The scheme is matched case-insensitively per RFC 7235.
func bearerToken(r *http.Request) (string, bool) {
	scheme, credential, found := strings.Cut(r.Header.Get("Authorization"), " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	credential = strings.TrimSpace(credential)
	return credential, credential != ""
}

// GenerateToken returns n random bytes hex encoded. Used for both raw API
// tokens and session ids.
func GenerateToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// HashToken maps a raw token to its stored form.
func HashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
