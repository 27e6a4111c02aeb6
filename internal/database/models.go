package database

import (
	"time"
)

type User struct {
	ID         int64     `db:"id"`
	Username   string    `db:"username"`
	Email      string    `db:"email"`
	Password   *string   `db:"password"`
	AuthSource string    `db:"auth_source"`
	Role       string    `db:"role"`
	IsRobot    bool      `db:"is_robot"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`
}

type Session struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}

type APIToken struct {
	ID        int64      `db:"id"`
	UserID    int64      `db:"user_id"`
	ProjectID *int64     `db:"project_id"` // nil = global token (admin only), set = project-scoped
	TokenHash string     `db:"token_hash"`
	Name      string     `db:"name"`
	ExpiresAt *time.Time `db:"expires_at"`
	CreatedAt time.Time  `db:"created_at"`
}

// Project is a codebase whose dependency licenses are tracked.
type Project struct {
	ID          int64     `db:"id"`
	Slug        string    `db:"slug"`
	Name        string    `db:"name"`
	Description string    `db:"description"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

// Scan run status constants
const (
	ScanStatusRunning  = "running"
	ScanStatusComplete = "complete"
	ScanStatusFailed   = "failed"
)

// ScanRun is one execution of the license scanner against a project bundle.
type ScanRun struct {
	ID           int64     `db:"id"`
	ProjectID    int64     `db:"project_id"`
	Status       string    `db:"status"`
	BundlePath   string    `db:"bundle_path"`
	Total        int       `db:"total"`
	UnknownCount int       `db:"unknown_count"`
	TriggeredBy  int64     `db:"triggered_by"`
	CreatedAt    time.Time `db:"created_at"`
}

// Dependency is one classified dependency row belonging to a scan run.
type Dependency struct {
	ID          int64     `db:"id"`
	ScanID      int64     `db:"scan_id"`
	GroupID     string    `db:"group_id"`
	ArtifactID  string    `db:"artifact_id"`
	Version     string    `db:"version"`
	URL         string    `db:"url"`
	License     string    `db:"license"`
	LicenseFile string    `db:"license_file"` // relative path of the matched license file, empty if none
	CreatedAt   time.Time `db:"created_at"`
}

// Name returns the group:artifact identifier used in reports.
func (d *Dependency) Name() string {
	return d.GroupID + ":" + d.ArtifactID
}
