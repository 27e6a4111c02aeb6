package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/qwc/lisenssit/internal/config"
	"github.com/qwc/lisenssit/internal/database"
	"github.com/qwc/lisenssit/internal/store"
	"golang.org/x/oauth2"
)

// stateTTL bounds how long a login may sit on the provider's consent
// screen before the callback is rejected.
const stateTTL = 10 * time.Minute

// OAuth2Authenticator runs the authorization-code flow against a generic
// OIDC-ish provider. Accounts provisioned this way start as viewers; an
// admin promotes the ones who should review or upload scans.
type OAuth2Authenticator struct {
	conf        *oauth2.Config
	userInfoURL string
	users       store.UserStore
	log         *slog.Logger

	// Pending CSRF states, keyed by token, valued by issue time.
	mu      sync.Mutex
	pending map[string]time.Time
}

func NewOAuth2Authenticator(cfg config.OAuth2Config, users store.UserStore, logger *slog.Logger) *OAuth2Authenticator {
	// Scopes may be comma or space separated in the config file.
	scopes := strings.Fields(strings.ReplaceAll(cfg.Scopes, ",", " "))

	return &OAuth2Authenticator{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:  cfg.AuthURL,
				TokenURL: cfg.TokenURL,
			},
			RedirectURL: cfg.RedirectURL,
			Scopes:      scopes,
		},
		userInfoURL: cfg.UserInfoURL,
		users:       users,
		log:         logger,
		pending:     make(map[string]time.Time),
	}
}

func (a *OAuth2Authenticator) Name() string {
	return "oauth2"
}

// Authenticate always fails: the flow is redirect based, there is no
// password to check.
func (a *OAuth2Authenticator) Authenticate(ctx context.Context, username, password string) (*database.User, error) {
	return nil, fmt.Errorf("oauth2 logins go through the redirect flow")
}

// GenerateAuthURL mints a CSRF state token and returns the provider URL
// the browser should be redirected to.
func (a *OAuth2Authenticator) GenerateAuthURL() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating state: %w", err)
	}
	state := hex.EncodeToString(b)

	a.mu.Lock()
	a.pending[state] = time.Now()
	a.mu.Unlock()

	return a.conf.AuthCodeURL(state), nil
}

// ValidateState consumes a state token. A token is good exactly once and
// only within stateTTL of being issued.
func (a *OAuth2Authenticator) ValidateState(state string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	issued, ok := a.pending[state]
	if !ok {
		return false
	}
	delete(a.pending, state)
	return time.Since(issued) < stateTTL
}

// HandleCallback trades the authorization code for an access token, reads
// the provider's identity endpoint, and returns the local account for it.
func (a *OAuth2Authenticator) HandleCallback(ctx context.Context, code string) (*database.User, error) {
	token, err := a.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchanging authorization code: %w", err)
	}

	identity, err := a.fetchIdentity(a.conf.Client(ctx, token))
	if err != nil {
		return nil, fmt.Errorf("fetching identity: %w", err)
	}

	username := identity.Username
	if username == "" {
		if identity.Email == "" {
			return nil, fmt.Errorf("identity response carried no username or email")
		}
		// Fall back to the local part of the email address.
		username, _, _ = strings.Cut(identity.Email, "@")
	}

	user, err := a.ensureAccount(ctx, username, identity.Email)
	if err != nil {
		return nil, fmt.Errorf("provisioning account: %w", err)
	}
	return user, nil
}

// providerIdentity is the subset of the userinfo response the scan
// service reads. Field names follow the standard OIDC claims.
type providerIdentity struct {
	Subject  string `json:"sub"`
	Username string `json:"preferred_username"`
	Email    string `json:"email"`
	Name     string `json:"name"`
}

func (a *OAuth2Authenticator) fetchIdentity(client *http.Client) (*providerIdentity, error) {
	resp, err := client.Get(a.userInfoURL)
	if err != nil {
		return nil, fmt.Errorf("requesting userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("userinfo endpoint returned %d", resp.StatusCode)
	}

	var identity providerIdentity
	if err := json.NewDecoder(resp.Body).Decode(&identity); err != nil {
		return nil, fmt.Errorf("decoding userinfo: %w", err)
	}
	return &identity, nil
}

// ensureAccount returns the local account for a provider login, creating
// it as a viewer on first sight. Role assignments made by an admin in the
// dashboard are never overwritten here, only the email follows the
// provider.
func (a *OAuth2Authenticator) ensureAccount(ctx context.Context, username, email string) (*database.User, error) {
	existing, err := a.users.GetByUsername(ctx, username)
	if err == nil && existing != nil {
		if email != "" && existing.Email != email {
			existing.Email = email
			if err := a.users.Update(ctx, existing); err != nil {
				a.log.Warn("updating account email", "username", username, "error", err)
			}
		}
		return existing, nil
	}

	user := &database.User{
		Username:   username,
		Email:      email,
		AuthSource: "oauth2",
		Role:       "viewer",
	}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}
	a.log.Info("provisioned oauth2 account", "username", username)
	return user, nil
}

// ValidateOAuth2Config reports the first missing field required to run
// the redirect flow.
func ValidateOAuth2Config(cfg config.OAuth2Config) error {
	switch {
	case cfg.ClientID == "":
		return fmt.Errorf("oauth2 client id is required")
	case cfg.ClientSecret == "":
		return fmt.Errorf("oauth2 client secret is required")
	case cfg.AuthURL == "":
		return fmt.Errorf("oauth2 auth url is required")
	case cfg.TokenURL == "":
		return fmt.Errorf("oauth2 token url is required")
	case cfg.UserInfoURL == "":
		return fmt.Errorf("oauth2 userinfo url is required")
	case cfg.RedirectURL == "":
		return fmt.Errorf("oauth2 redirect url is required")
	}
	return nil
}
