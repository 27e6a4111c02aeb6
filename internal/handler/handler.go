package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/qwc/lisenssit/internal/auth"
	"github.com/qwc/lisenssit/internal/config"
	"github.com/qwc/lisenssit/internal/scan"
	"github.com/qwc/lisenssit/internal/store"
)

type Handler struct {
	config         *config.Config
	storage        scan.Storage
	projects       store.ProjectStore
	scans          store.ScanStore
	deps           store.DependencyStore
	users          store.UserStore
	sessions       store.SessionStore
	tokens         store.TokenStore
	meta           store.MetadataStore
	authenticators []auth.Authenticator
	oauth2Auth     *auth.OAuth2Authenticator
	tokenAuth      *auth.TokenAuthenticator
	sessionMgr     *auth.SessionManager
	loginLimiter   *RateLimiter
	searchIndex    *scan.SearchIndex
	logger         *slog.Logger
}

type Deps struct {
	Config         *config.Config
	Storage        scan.Storage
	Projects       store.ProjectStore
	Scans          store.ScanStore
	Dependencies   store.DependencyStore
	Users          store.UserStore
	Sessions       store.SessionStore
	Tokens         store.TokenStore
	Meta           store.MetadataStore
	Authenticators []auth.Authenticator
	OAuth2Auth     *auth.OAuth2Authenticator
	SessionMgr     *auth.SessionManager
	SearchIndex    *scan.SearchIndex
	Logger         *slog.Logger
}

func New(deps Deps) *Handler {
	return &Handler{
		config:         deps.Config,
		storage:        deps.Storage,
		projects:       deps.Projects,
		scans:          deps.Scans,
		deps:           deps.Dependencies,
		users:          deps.Users,
		sessions:       deps.Sessions,
		tokens:         deps.Tokens,
		meta:           deps.Meta,
		authenticators: deps.Authenticators,
		oauth2Auth:     deps.OAuth2Auth,
		tokenAuth:      auth.NewTokenAuthenticator(deps.Tokens, deps.Users),
		sessionMgr:     deps.SessionMgr,
		loginLimiter:   NewRateLimiter(10, 60*time.Second),
		searchIndex:    deps.SearchIndex,
		logger:         deps.Logger,
	}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Authentication
	mux.HandleFunc("POST /api/login", withRateLimit(h.loginLimiter, h.handleLogin))
	mux.HandleFunc("POST /api/logout", h.withUser(h.handleLogout))
	mux.HandleFunc("GET /api/me", h.withUser(h.requireAuth(h.handleMe)))
	mux.HandleFunc("GET /auth/oauth2", h.handleOAuth2Login)
	mux.HandleFunc("GET /auth/callback", h.handleOAuth2Callback)

	// Projects
	mux.HandleFunc("GET /api/projects", h.withUser(h.requireAuth(h.handleListProjects)))
	mux.HandleFunc("POST /api/projects", h.withUser(h.requireAdmin(h.handleCreateProject)))
	mux.HandleFunc("GET /api/projects/{slug}", h.withUser(h.requireAuth(h.handleGetProject)))
	mux.HandleFunc("PUT /api/projects/{slug}", h.withUser(h.requireAdmin(h.handleUpdateProject)))
	mux.HandleFunc("DELETE /api/projects/{slug}", h.withUser(h.requireAdmin(h.handleDeleteProject)))

	// Scans. Upload accepts session or bearer token auth and does its own
	// project scope check, so it sits outside the middleware chain.
	mux.HandleFunc("POST /api/projects/{slug}/scans", h.handleUploadScan)
	mux.HandleFunc("GET /api/projects/{slug}/scans", h.withUser(h.requireAuth(h.handleListScans)))
	mux.HandleFunc("GET /api/projects/{slug}/report.csv", h.withUser(h.requireAuth(h.handleProjectReport)))
	mux.HandleFunc("GET /api/scans/{id}", h.withUser(h.requireAuth(h.handleGetScan)))
	mux.HandleFunc("GET /api/scans/{id}/dependencies", h.withUser(h.requireAuth(h.handleListDependencies)))
	mux.HandleFunc("GET /api/scans/{id}/report.csv", h.withUser(h.requireAuth(h.handleScanReport)))
	mux.HandleFunc("GET /api/scans/{id}/bundle.zip", h.withUser(h.requireAuth(h.handleDownloadBundle)))
	mux.HandleFunc("DELETE /api/scans/{id}", h.withUser(h.requireAdmin(h.handleDeleteScan)))

	// Search
	mux.HandleFunc("GET /api/search", h.withUser(h.requireAuth(h.handleSearch)))

	// Schema introspection
	mux.HandleFunc("GET /api/meta/tables", h.withUser(h.requireAdmin(h.handleMetaTables)))
	mux.HandleFunc("GET /api/meta/columns", h.withUser(h.requireAdmin(h.handleMetaColumns)))
	mux.HandleFunc("GET /api/meta/procedures", h.withUser(h.requireAdmin(h.handleMetaProcedures)))

	// Admin
	mux.HandleFunc("GET /api/admin/users", h.withUser(h.requireAdmin(h.handleAdminListUsers)))
	mux.HandleFunc("POST /api/admin/users", h.withUser(h.requireAdmin(h.handleAdminCreateUser)))
	mux.HandleFunc("DELETE /api/admin/users/{id}", h.withUser(h.requireAdmin(h.handleAdminDeleteUser)))
	mux.HandleFunc("POST /api/admin/users/{id}/password", h.withUser(h.requireAdmin(h.handleAdminResetPassword)))
	mux.HandleFunc("GET /api/admin/robots", h.withUser(h.requireAdmin(h.handleAdminListRobots)))
	mux.HandleFunc("POST /api/admin/robots", h.withUser(h.requireAdmin(h.handleAdminCreateRobot)))
	mux.HandleFunc("POST /api/admin/robots/{id}/tokens", h.withUser(h.requireAdmin(h.handleAdminGenerateToken)))
	mux.HandleFunc("DELETE /api/admin/tokens/{id}", h.withUser(h.requireAdmin(h.handleAdminRevokeToken)))
	mux.HandleFunc("POST /api/admin/reindex", h.withUser(h.requireAdmin(h.handleAdminReindex)))

	// Health check
	mux.HandleFunc("GET /healthz", h.handleHealthz)
}
