package auth

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/go-ldap/ldap/v3"
	"github.com/qwc/lisenssit/internal/config"
	"github.com/qwc/lisenssit/internal/database"
	"github.com/qwc/lisenssit/internal/store"
)

// LDAPAuthenticator verifies dashboard logins against a company directory.
// Accounts are provisioned locally on first login; directory group
// membership decides whether the user may manage projects and upload scans
// or only browse reports.
type LDAPAuthenticator struct {
	cfg   config.LDAPConfig
	users store.UserStore
	log   *slog.Logger
}

func NewLDAPAuthenticator(cfg config.LDAPConfig, users store.UserStore, logger *slog.Logger) *LDAPAuthenticator {
	return &LDAPAuthenticator{cfg: cfg, users: users, log: logger}
}

func (a *LDAPAuthenticator) Name() string {
	return "ldap"
}

// directoryEntry is the subset of a directory record the scan service
// cares about.
type directoryEntry struct {
	dn     string
	email  string
	groups []string
}

// Authenticate looks the user up via the service account, verifies the
// password with a bind as the user's own DN, and syncs the local account.
func (a *LDAPAuthenticator) Authenticate(ctx context.Context, username, password string) (*database.User, error) {
	// An empty password would turn the verification bind into an
	// anonymous bind, which many directories accept.
	if password == "" {
		return nil, fmt.Errorf("empty password")
	}

	conn, err := ldap.DialURL(a.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("connecting to directory: %w", err)
	}
	defer conn.Close()

	if err := conn.Bind(a.cfg.BindDN, a.cfg.BindPassword); err != nil {
		return nil, fmt.Errorf("service bind failed: %w", err)
	}

	entry, err := a.findAccount(conn, username)
	if err != nil {
		return nil, err
	}

	if err := conn.Bind(entry.dn, password); err != nil {
		return nil, fmt.Errorf("invalid directory credentials")
	}

	role := roleForGroups(entry.groups, a.cfg.AdminGroup, a.cfg.EditorGroup)

	user, err := a.syncAccount(ctx, username, entry.email, role)
	if err != nil {
		return nil, fmt.Errorf("syncing directory account: %w", err)
	}
	return user, nil
}

func (a *LDAPAuthenticator) findAccount(conn *ldap.Conn, username string) (*directoryEntry, error) {
	filter, err := expandUserFilter(a.cfg.UserFilter, username)
	if err != nil {
		return nil, fmt.Errorf("expanding user filter: %w", err)
	}

	req := ldap.NewSearchRequest(
		a.cfg.BaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		1, 0, false,
		filter,
		[]string{"dn", "uid", "mail", "memberOf"},
		nil,
	)
	result, err := conn.Search(req)
	if err != nil {
		return nil, fmt.Errorf("directory search failed: %w", err)
	}
	if len(result.Entries) == 0 {
		return nil, fmt.Errorf("user not found in directory")
	}

	e := result.Entries[0]
	return &directoryEntry{
		dn:     e.DN,
		email:  e.GetAttributeValue("mail"),
		groups: e.GetAttributeValues("memberOf"),
	}, nil
}

// syncAccount upserts the local record backing a directory login. Email and
// role follow the directory on every login, so revoking a group membership
// takes effect the next time the user signs in.
func (a *LDAPAuthenticator) syncAccount(ctx context.Context, username, email, role string) (*database.User, error) {
	existing, err := a.users.GetByUsername(ctx, username)
	if err == nil && existing != nil {
		if existing.AuthSource != "ldap" {
			return nil, fmt.Errorf("username %s belongs to a %s account", username, existing.AuthSource)
		}
		if existing.Role != role || existing.Email != email {
			existing.Role = role
			existing.Email = email
			if err := a.users.Update(ctx, existing); err != nil {
				a.log.Warn("updating directory account", "username", username, "error", err)
			}
		}
		return existing, nil
	}

	user := &database.User{
		Username:   username,
		Email:      email,
		AuthSource: "ldap",
		Role:       role,
	}
	if err := a.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}
	a.log.Info("provisioned directory account", "username", username, "role", role)
	return user, nil
}

// expandUserFilter substitutes {{.Username}} in the configured search
// filter. The username is filter-escaped first so it cannot widen the
// search.
func expandUserFilter(filterTemplate, username string) (string, error) {
	tmpl, err := template.New("filter").Parse(filterTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing filter template: %w", err)
	}

	var b strings.Builder
	data := struct{ Username string }{Username: ldap.EscapeFilter(username)}
	if err := tmpl.Execute(&b, data); err != nil {
		return "", fmt.Errorf("executing filter template: %w", err)
	}
	return b.String(), nil
}

// roleForGroups maps directory groups onto scan service roles. Admin
// membership wins over editor membership; anyone else gets read-only
// access to reports.
func roleForGroups(groups []string, adminGroup, editorGroup string) string {
	for _, g := range groups {
		if adminGroup != "" && strings.EqualFold(g, adminGroup) {
			return "admin"
		}
	}
	for _, g := range groups {
		if editorGroup != "" && strings.EqualFold(g, editorGroup) {
			return "editor"
		}
	}
	return "viewer"
}

// ValidateLDAPConfig reports the first missing field required to run
// directory logins.
func ValidateLDAPConfig(cfg config.LDAPConfig) error {
	switch {
	case cfg.URL == "":
		return fmt.Errorf("ldap url is required")
	case cfg.BindDN == "":
		return fmt.Errorf("ldap bind dn is required")
	case cfg.BaseDN == "":
		return fmt.Errorf("ldap base dn is required")
	case cfg.UserFilter == "":
		return fmt.Errorf("ldap user filter is required")
	}
	return nil
}
