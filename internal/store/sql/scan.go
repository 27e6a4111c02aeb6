package sql

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/qwc/lisenssit/internal/database"
)

type ScanStore struct {
	db *sqlx.DB
}

func NewScanStore(db *sqlx.DB) *ScanStore {
	return &ScanStore{db: db}
}

func (s *ScanStore) Create(ctx context.Context, scan *database.ScanRun) error {
	query := `INSERT INTO scan_runs (project_id, status, bundle_path, total, unknown_count, triggered_by) VALUES (?, ?, ?, ?, ?, ?)`
	result, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		scan.ProjectID, scan.Status, scan.BundlePath, scan.Total, scan.UnknownCount, scan.TriggeredBy)
	if err != nil {
		return fmt.Errorf("creating scan run: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("getting last insert id: %w", err)
	}
	scan.ID = id
	return nil
}

func (s *ScanStore) GetByID(ctx context.Context, id int64) (*database.ScanRun, error) {
	var scan database.ScanRun
	query := `SELECT * FROM scan_runs WHERE id = ?`
	if err := s.db.GetContext(ctx, &scan, s.db.Rebind(query), id); err != nil {
		return nil, fmt.Errorf("getting scan run: %w", err)
	}
	return &scan, nil
}

func (s *ScanStore) ListByProject(ctx context.Context, projectID int64) ([]database.ScanRun, error) {
	var scans []database.ScanRun
	query := `SELECT * FROM scan_runs WHERE project_id = ? ORDER BY created_at DESC, id DESC`
	if err := s.db.SelectContext(ctx, &scans, s.db.Rebind(query), projectID); err != nil {
		return nil, fmt.Errorf("listing scan runs: %w", err)
	}
	return scans, nil
}

// Latest returns the newest completed scan of a project.
func (s *ScanStore) Latest(ctx context.Context, projectID int64) (*database.ScanRun, error) {
	var scan database.ScanRun
	query := `SELECT * FROM scan_runs WHERE project_id = ? AND status = ? ORDER BY created_at DESC, id DESC LIMIT 1`
	if err := s.db.GetContext(ctx, &scan, s.db.Rebind(query), projectID, database.ScanStatusComplete); err != nil {
		return nil, fmt.Errorf("getting latest scan run: %w", err)
	}
	return &scan, nil
}

func (s *ScanStore) Update(ctx context.Context, scan *database.ScanRun) error {
	query := `UPDATE scan_runs SET status = ?, bundle_path = ?, total = ?, unknown_count = ? WHERE id = ?`
	_, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		scan.Status, scan.BundlePath, scan.Total, scan.UnknownCount, scan.ID)
	if err != nil {
		return fmt.Errorf("updating scan run: %w", err)
	}
	return nil
}

func (s *ScanStore) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM scan_runs WHERE id = ?`
	_, err := s.db.ExecContext(ctx, s.db.Rebind(query), id)
	if err != nil {
		return fmt.Errorf("deleting scan run: %w", err)
	}
	return nil
}
