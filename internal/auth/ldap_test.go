package auth

import (
	"context"
	"testing"

	"github.com/qwc/lisenssit/internal/config"
	"github.com/qwc/lisenssit/internal/database"
	sqlstore "github.com/qwc/lisenssit/internal/store/sql"
	"github.com/qwc/lisenssit/internal/testutil"
)

func TestExpandUserFilter(t *testing.T) {
	tests := []struct {
		name     string
		template string
		username string
		want     string
	}{
		{
			"uid filter",
			"(uid={{.Username}})",
			"mkorhonen",
			"(uid=mkorhonen)",
		},
		{
			"compound filter",
			"(&(objectClass=person)(sAMAccountName={{.Username}}))",
			"mkorhonen",
			"(&(objectClass=person)(sAMAccountName=mkorhonen))",
		},
		{
			"filter metacharacters are escaped",
			"(uid={{.Username}})",
			"m*korhonen(admin)",
			`(uid=m\2akorhonen\28admin\29)`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := expandUserFilter(tt.template, tt.username)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("expandUserFilter = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestExpandUserFilterBadTemplate(t *testing.T) {
	if _, err := expandUserFilter("(uid={{.Username", "mkorhonen"); err == nil {
		t.Error("expected error for unterminated template")
	}
}

func TestRoleForGroups(t *testing.T) {
	const (
		admins  = "cn=license-admins,ou=groups,dc=example,dc=org"
		editors = "cn=scan-editors,ou=groups,dc=example,dc=org"
	)

	tests := []struct {
		name   string
		groups []string
		want   string
	}{
		{"admin group", []string{admins}, "admin"},
		{"editor group", []string{editors}, "editor"},
		{"admin wins over editor", []string{editors, admins}, "admin"},
		{"case insensitive match", []string{"CN=License-Admins,OU=Groups,DC=example,DC=org"}, "admin"},
		{"unrelated groups", []string{"cn=coffee-club,ou=groups,dc=example,dc=org"}, "viewer"},
		{"no groups", nil, "viewer"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := roleForGroups(tt.groups, admins, editors); got != tt.want {
				t.Errorf("roleForGroups(%v) = %q, want %q", tt.groups, got, tt.want)
			}
		})
	}
}

func TestRoleForGroupsUnconfigured(t *testing.T) {
	// With no groups configured nothing may be promoted, not even an
	// entry whose memberOf carries an empty value.
	if got := roleForGroups([]string{""}, "", ""); got != "viewer" {
		t.Errorf("roleForGroups = %q, want viewer", got)
	}
}

func TestSyncAccount(t *testing.T) {
	db := testutil.NewTestDB(t)
	users := sqlstore.NewUserStore(db)
	a := NewLDAPAuthenticator(config.LDAPConfig{}, users, testutil.TestLogger())
	ctx := context.Background()

	// First login provisions a local account.
	user, err := a.syncAccount(ctx, "mkorhonen", "mkorhonen@example.org", "editor")
	if err != nil {
		t.Fatal(err)
	}
	if user.AuthSource != "ldap" {
		t.Errorf("auth source = %q, want ldap", user.AuthSource)
	}
	if user.Role != "editor" {
		t.Errorf("role = %q, want editor", user.Role)
	}

	// A later login with changed directory data updates the account.
	updated, err := a.syncAccount(ctx, "mkorhonen", "martti.korhonen@example.org", "admin")
	if err != nil {
		t.Fatal(err)
	}
	if updated.ID != user.ID {
		t.Error("expected the existing account to be reused")
	}
	if updated.Role != "admin" || updated.Email != "martti.korhonen@example.org" {
		t.Errorf("account not synced: role=%q email=%q", updated.Role, updated.Email)
	}
}

func TestSyncAccountRejectsForeignSource(t *testing.T) {
	db := testutil.NewTestDB(t)
	users := sqlstore.NewUserStore(db)
	a := NewLDAPAuthenticator(config.LDAPConfig{}, users, testutil.TestLogger())
	ctx := context.Background()

	hash, _ := HashPassword("local-secret")
	local := &database.User{
		Username:   "mkorhonen",
		AuthSource: "builtin",
		Password:   &hash,
		Role:       "admin",
	}
	if err := users.Create(ctx, local); err != nil {
		t.Fatal(err)
	}

	// A directory login must not take over a password-managed account.
	if _, err := a.syncAccount(ctx, "mkorhonen", "mkorhonen@example.org", "viewer"); err == nil {
		t.Error("expected error for username owned by a builtin account")
	}
}

func TestValidateLDAPConfig(t *testing.T) {
	valid := config.LDAPConfig{
		URL:        "ldap://directory.example.org:389",
		BindDN:     "cn=lisenssit,ou=services,dc=example,dc=org",
		BaseDN:     "ou=people,dc=example,dc=org",
		UserFilter: "(uid={{.Username}})",
	}
	if err := ValidateLDAPConfig(valid); err != nil {
		t.Errorf("expected valid config, got: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*config.LDAPConfig)
	}{
		{"missing url", func(c *config.LDAPConfig) { c.URL = "" }},
		{"missing bind dn", func(c *config.LDAPConfig) { c.BindDN = "" }},
		{"missing base dn", func(c *config.LDAPConfig) { c.BaseDN = "" }},
		{"missing user filter", func(c *config.LDAPConfig) { c.UserFilter = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			if err := ValidateLDAPConfig(cfg); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLDAPAuthenticatorName(t *testing.T) {
	a := NewLDAPAuthenticator(config.LDAPConfig{}, nil, nil)
	if a.Name() != "ldap" {
		t.Errorf("name = %q, want ldap", a.Name())
	}
}
