package sql

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/qwc/lisenssit/internal/database"
)

type DependencyStore struct {
	db *sqlx.DB
}

func NewDependencyStore(db *sqlx.DB) *DependencyStore {
	return &DependencyStore{db: db}
}

// CreateBatch inserts all dependency rows of a scan in one transaction, so
// a scan never persists half its inventory.
func (s *DependencyStore) CreateBatch(ctx context.Context, deps []database.Dependency) error {
	if len(deps) == 0 {
		return nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	query := tx.Rebind(`INSERT INTO dependencies (scan_id, group_id, artifact_id, version, url, license, license_file) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	for _, d := range deps {
		if _, err := tx.ExecContext(ctx, query,
			d.ScanID, d.GroupID, d.ArtifactID, d.Version, d.URL, d.License, d.LicenseFile); err != nil {
			return fmt.Errorf("inserting dependency %s: %w", d.Name(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing dependencies: %w", err)
	}
	return nil
}

func (s *DependencyStore) ListByScan(ctx context.Context, scanID int64) ([]database.Dependency, error) {
	var deps []database.Dependency
	query := `SELECT * FROM dependencies WHERE scan_id = ? ORDER BY group_id, artifact_id`
	if err := s.db.SelectContext(ctx, &deps, s.db.Rebind(query), scanID); err != nil {
		return nil, fmt.Errorf("listing dependencies: %w", err)
	}
	return deps, nil
}

func (s *DependencyStore) ListByScanAndLicense(ctx context.Context, scanID int64, license string) ([]database.Dependency, error) {
	var deps []database.Dependency
	query := `SELECT * FROM dependencies WHERE scan_id = ? AND license = ? ORDER BY group_id, artifact_id`
	if err := s.db.SelectContext(ctx, &deps, s.db.Rebind(query), scanID, license); err != nil {
		return nil, fmt.Errorf("listing dependencies by license: %w", err)
	}
	return deps, nil
}

func (s *DependencyStore) CountByLicense(ctx context.Context, scanID int64) (map[string]int, error) {
	rows, err := s.db.QueryxContext(ctx,
		s.db.Rebind(`SELECT license, COUNT(*) FROM dependencies WHERE scan_id = ? GROUP BY license`), scanID)
	if err != nil {
		return nil, fmt.Errorf("counting dependencies by license: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var license string
		var count int
		if err := rows.Scan(&license, &count); err != nil {
			return nil, fmt.Errorf("scanning license count: %w", err)
		}
		counts[license] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating license counts: %w", err)
	}
	return counts, nil
}

func (s *DependencyStore) DeleteByScan(ctx context.Context, scanID int64) error {
	query := `DELETE FROM dependencies WHERE scan_id = ?`
	_, err := s.db.ExecContext(ctx, s.db.Rebind(query), scanID)
	if err != nil {
		return fmt.Errorf("deleting dependencies: %w", err)
	}
	return nil
}
