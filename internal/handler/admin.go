package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/qwc/lisenssit/internal/auth"
	"github.com/qwc/lisenssit/internal/database"
)

func validRole(role string) bool {
	switch role {
	case "admin", "editor", "viewer":
		return true
	}
	return false
}

func (h *Handler) handleAdminListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.List(r.Context())
	if err != nil {
		h.logger.Error("listing users", "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not list users")
		return
	}

	out := make([]userJSON, 0, len(users))
	for i := range users {
		out = append(out, toUserJSON(&users[i]))
	}
	h.jsonResponse(w, http.StatusOK, map[string]any{"users": out})
}

type createUserRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

func (h *Handler) handleAdminCreateUser(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		h.jsonError(w, http.StatusBadRequest, "username and password are required")
		return
	}
	if req.Role == "" {
		req.Role = "viewer"
	}
	if !validRole(req.Role) {
		h.jsonError(w, http.StatusBadRequest, "role must be admin, editor or viewer")
		return
	}

	if _, err := h.users.GetByUsername(r.Context(), req.Username); err == nil {
		h.jsonError(w, http.StatusConflict, "user already exists")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hashing password", "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not create user")
		return
	}

	user := &database.User{
		Username:   req.Username,
		Email:      req.Email,
		Password:   &hash,
		AuthSource: "builtin",
		Role:       req.Role,
	}
	if err := h.users.Create(r.Context(), user); err != nil {
		h.logger.Error("creating user", "username", req.Username, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not create user")
		return
	}

	h.logger.Info("user created", "username", user.Username, "role", user.Role)
	h.jsonResponse(w, http.StatusCreated, toUserJSON(user))
}

func (h *Handler) handleAdminDeleteUser(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	current := auth.UserFromContext(r.Context())
	if current.ID == id {
		h.jsonError(w, http.StatusBadRequest, "cannot delete your own account")
		return
	}

	if _, err := h.users.GetByID(r.Context(), id); err != nil {
		h.jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	if err := h.users.Delete(r.Context(), id); err != nil {
		h.logger.Error("deleting user", "id", id, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not delete user")
		return
	}

	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handler) handleAdminResetPassword(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.jsonError(w, http.StatusBadRequest, "invalid user id")
		return
	}

	var req struct {
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil || req.Password == "" {
		h.jsonError(w, http.StatusBadRequest, "password is required")
		return
	}

	user, err := h.users.GetByID(r.Context(), id)
	if err != nil {
		h.jsonError(w, http.StatusNotFound, "user not found")
		return
	}
	if user.AuthSource != "builtin" {
		h.jsonError(w, http.StatusBadRequest, "password can only be set for builtin users")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		h.logger.Error("hashing password", "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not set password")
		return
	}
	user.Password = &hash
	if err := h.users.Update(r.Context(), user); err != nil {
		h.logger.Error("updating user", "id", id, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not set password")
		return
	}

	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

type robotJSON struct {
	userJSON
	Tokens []tokenJSON `json:"tokens"`
}

type tokenJSON struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	ProjectID *int64     `json:"project_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}

func (h *Handler) handleAdminListRobots(w http.ResponseWriter, r *http.Request) {
	robots, err := h.users.ListRobots(r.Context())
	if err != nil {
		h.logger.Error("listing robots", "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not list robots")
		return
	}

	out := make([]robotJSON, 0, len(robots))
	for i := range robots {
		robot := robotJSON{userJSON: toUserJSON(&robots[i]), Tokens: []tokenJSON{}}
		tokens, err := h.tokens.ListByUser(r.Context(), robots[i].ID)
		if err != nil {
			h.logger.Error("listing robot tokens", "robot", robots[i].ID, "error", err)
		}
		for _, t := range tokens {
			robot.Tokens = append(robot.Tokens, tokenJSON{
				ID:        t.ID,
				Name:      t.Name,
				ProjectID: t.ProjectID,
				ExpiresAt: t.ExpiresAt,
				CreatedAt: t.CreatedAt,
			})
		}
		out = append(out, robot)
	}
	h.jsonResponse(w, http.StatusOK, map[string]any{"robots": out})
}

func (h *Handler) handleAdminCreateRobot(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
	}
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		h.jsonError(w, http.StatusBadRequest, "username is required")
		return
	}

	if _, err := h.users.GetByUsername(r.Context(), req.Username); err == nil {
		h.jsonError(w, http.StatusConflict, "user already exists")
		return
	}

	robot := &database.User{
		Username:   req.Username,
		AuthSource: "builtin",
		Role:       "editor",
		IsRobot:    true,
	}
	if err := h.users.Create(r.Context(), robot); err != nil {
		h.logger.Error("creating robot", "username", req.Username, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not create robot")
		return
	}

	h.logger.Info("robot created", "username", robot.Username)
	h.jsonResponse(w, http.StatusCreated, toUserJSON(robot))
}

type generateTokenRequest struct {
	Name        string `json:"name"`
	Project     string `json:"project"`      // optional slug, scopes the token
	ExpiresDays int    `json:"expires_days"` // 0 = never expires
}

func (h *Handler) handleAdminGenerateToken(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.jsonError(w, http.StatusBadRequest, "invalid robot id")
		return
	}

	robot, err := h.users.GetByID(r.Context(), id)
	if err != nil || !robot.IsRobot {
		h.jsonError(w, http.StatusNotFound, "robot not found")
		return
	}

	var req generateTokenRequest
	if err := decodeJSON(r, &req); err != nil {
		h.jsonError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		req.Name = "token"
	}

	var projectID *int64
	if req.Project != "" {
		project, err := h.projects.GetBySlug(r.Context(), req.Project)
		if err != nil {
			h.jsonError(w, http.StatusNotFound, "project not found")
			return
		}
		projectID = &project.ID
	}

	var expiresAt *time.Time
	if req.ExpiresDays > 0 {
		t := time.Now().AddDate(0, 0, req.ExpiresDays)
		expiresAt = &t
	}

	raw, err := auth.GenerateToken(32)
	if err != nil {
		h.logger.Error("generating token", "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not generate token")
		return
	}

	token := &database.APIToken{
		UserID:    robot.ID,
		ProjectID: projectID,
		TokenHash: auth.HashToken(raw),
		Name:      req.Name,
		ExpiresAt: expiresAt,
	}
	if err := h.tokens.Create(r.Context(), token); err != nil {
		h.logger.Error("storing token", "robot", robot.ID, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not store token")
		return
	}

	// The raw token is shown exactly once; only its hash is stored.
	h.jsonResponse(w, http.StatusCreated, map[string]any{
		"id":    token.ID,
		"name":  token.Name,
		"token": raw,
	})
}

func (h *Handler) handleAdminRevokeToken(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		h.jsonError(w, http.StatusBadRequest, "invalid token id")
		return
	}
	if err := h.tokens.Delete(r.Context(), id); err != nil {
		h.logger.Error("revoking token", "id", id, "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not revoke token")
		return
	}
	h.jsonResponse(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// handleAdminReindex rebuilds the search index from completed scans whose
// bundles are still on disk.
func (h *Handler) handleAdminReindex(w http.ResponseWriter, r *http.Request) {
	projects, err := h.projects.List(r.Context())
	if err != nil {
		h.logger.Error("listing projects", "error", err)
		h.jsonError(w, http.StatusInternalServerError, "could not reindex")
		return
	}

	indexed := 0
	for _, project := range projects {
		scans, err := h.scans.ListByProject(r.Context(), project.ID)
		if err != nil {
			h.logger.Error("listing scans", "project", project.Slug, "error", err)
			continue
		}
		for _, s := range scans {
			if s.Status != database.ScanStatusComplete {
				continue
			}
			if !h.storage.ScanExists(project.Slug, s.ID) {
				continue
			}
			deps, err := h.deps.ListByScan(r.Context(), s.ID)
			if err != nil {
				h.logger.Error("listing dependencies", "scan", s.ID, "error", err)
				continue
			}
			dir := h.storage.ScanPath(project.Slug, s.ID)
			if err := h.searchIndex.IndexScan(project.ID, s.ID, project.Slug, dir, deps); err != nil {
				h.logger.Error("indexing scan", "scan", s.ID, "error", err)
				continue
			}
			indexed++
		}
	}

	h.logger.Info("reindex finished", "scans", indexed)
	h.jsonResponse(w, http.StatusOK, map[string]any{"indexed": indexed})
}
