package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/qwc/lisenssit/internal/database"
)

func (h *Handler) jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("encoding json response", "error", err)
	}
}

func (h *Handler) jsonError(w http.ResponseWriter, status int, message string) {
	h.jsonResponse(w, status, map[string]string{"error": message})
}

func decodeJSON(r *http.Request, dst any) error {
	return json.NewDecoder(r.Body).Decode(dst)
}

type userJSON struct {
	ID         int64     `json:"id"`
	Username   string    `json:"username"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	AuthSource string    `json:"auth_source"`
	IsRobot    bool      `json:"is_robot"`
	CreatedAt  time.Time `json:"created_at"`
}

func toUserJSON(u *database.User) userJSON {
	return userJSON{
		ID:         u.ID,
		Username:   u.Username,
		Email:      u.Email,
		Role:       u.Role,
		AuthSource: u.AuthSource,
		IsRobot:    u.IsRobot,
		CreatedAt:  u.CreatedAt,
	}
}

type projectJSON struct {
	ID          int64     `json:"id"`
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toProjectJSON(p *database.Project) projectJSON {
	return projectJSON{
		ID:          p.ID,
		Slug:        p.Slug,
		Name:        p.Name,
		Description: p.Description,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

type scanJSON struct {
	ID           int64          `json:"id"`
	ProjectID    int64          `json:"project_id"`
	Status       string         `json:"status"`
	Total        int            `json:"total"`
	UnknownCount int            `json:"unknown_count"`
	TriggeredBy  int64          `json:"triggered_by"`
	CreatedAt    time.Time      `json:"created_at"`
	Licenses     map[string]int `json:"licenses,omitempty"`
}

func toScanJSON(s *database.ScanRun) scanJSON {
	return scanJSON{
		ID:           s.ID,
		ProjectID:    s.ProjectID,
		Status:       s.Status,
		Total:        s.Total,
		UnknownCount: s.UnknownCount,
		TriggeredBy:  s.TriggeredBy,
		CreatedAt:    s.CreatedAt,
	}
}

type dependencyJSON struct {
	Name        string `json:"name"`
	GroupID     string `json:"group_id"`
	ArtifactID  string `json:"artifact_id"`
	Version     string `json:"version"`
	URL         string `json:"url"`
	License     string `json:"license"`
	LicenseFile string `json:"license_file,omitempty"`
}

func toDependencyJSON(d *database.Dependency) dependencyJSON {
	return dependencyJSON{
		Name:        d.Name(),
		GroupID:     d.GroupID,
		ArtifactID:  d.ArtifactID,
		Version:     d.Version,
		URL:         d.URL,
		License:     d.License,
		LicenseFile: d.LicenseFile,
	}
}
