package store

import (
	"context"

	"github.com/qwc/lisenssit/internal/database"
)

type ProjectStore interface {
	Create(ctx context.Context, project *database.Project) error
	GetBySlug(ctx context.Context, slug string) (*database.Project, error)
	GetByID(ctx context.Context, id int64) (*database.Project, error)
	List(ctx context.Context) ([]database.Project, error)
	Search(ctx context.Context, query string) ([]database.Project, error)
	Update(ctx context.Context, project *database.Project) error
	Delete(ctx context.Context, id int64) error
}

type ScanStore interface {
	Create(ctx context.Context, scan *database.ScanRun) error
	GetByID(ctx context.Context, id int64) (*database.ScanRun, error)
	ListByProject(ctx context.Context, projectID int64) ([]database.ScanRun, error)
	Latest(ctx context.Context, projectID int64) (*database.ScanRun, error)
	Update(ctx context.Context, scan *database.ScanRun) error
	Delete(ctx context.Context, id int64) error
}

type DependencyStore interface {
	CreateBatch(ctx context.Context, deps []database.Dependency) error
	ListByScan(ctx context.Context, scanID int64) ([]database.Dependency, error)
	ListByScanAndLicense(ctx context.Context, scanID int64, license string) ([]database.Dependency, error)
	CountByLicense(ctx context.Context, scanID int64) (map[string]int, error)
	DeleteByScan(ctx context.Context, scanID int64) error
}

type UserStore interface {
	Create(ctx context.Context, user *database.User) error
	GetByID(ctx context.Context, id int64) (*database.User, error)
	GetByUsername(ctx context.Context, username string) (*database.User, error)
	List(ctx context.Context) ([]database.User, error)
	ListRobots(ctx context.Context) ([]database.User, error)
	Update(ctx context.Context, user *database.User) error
	Delete(ctx context.Context, id int64) error
	Count(ctx context.Context) (int64, error)
}

type SessionStore interface {
	Create(ctx context.Context, session *database.Session) error
	GetByID(ctx context.Context, id string) (*database.Session, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context) error
}

type TokenStore interface {
	Create(ctx context.Context, token *database.APIToken) error
	GetByHash(ctx context.Context, hash string) (*database.APIToken, error)
	ListByUser(ctx context.Context, userID int64) ([]database.APIToken, error)
	Delete(ctx context.Context, id int64) error
}

// Table describes one table of the backing database.
type Table struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Column describes one column of a table.
type Column struct {
	TableName string `json:"table_name"`
	Name      string `json:"name"`
	DataType  string `json:"data_type"`
	Position  int    `json:"position"`
	Nullable  bool   `json:"nullable"`
}

// Procedure describes a stored procedure. None of the supported backends
// are used with stored procedures, but the listing surface exists so that
// schema inspection tooling gets a uniform answer.
type Procedure struct {
	Name string `json:"name"`
}

// MetadataStore exposes schema introspection over the backing database.
// Patterns use SQL LIKE syntax ("%" matches anything); an empty pattern
// matches everything.
type MetadataStore interface {
	ListTables(ctx context.Context, pattern string) ([]Table, error)
	ListColumns(ctx context.Context, tablePattern, columnPattern string) ([]Column, error)
	ListProcedures(ctx context.Context, pattern string) ([]Procedure, error)
}
