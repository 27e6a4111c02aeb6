package scan

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Storage lays out extracted scan bundles on disk, one directory per scan
// under the project's directory.
type Storage interface {
	BasePath() string
	ProjectPath(slug string) string
	ScanPath(slug string, scanID int64) string
	EnsureScanDir(slug string, scanID int64) error
	ScanExists(slug string, scanID int64) bool
	DeleteScan(slug string, scanID int64) error
	DeleteProject(slug string) error
}

type FilesystemStorage struct {
	basePath string
}

func NewFilesystemStorage(basePath string) *FilesystemStorage {
	return &FilesystemStorage{basePath: basePath}
}

func (s *FilesystemStorage) BasePath() string {
	return s.basePath
}

func (s *FilesystemStorage) ProjectPath(slug string) string {
	return filepath.Join(s.basePath, slug)
}

func (s *FilesystemStorage) ScanPath(slug string, scanID int64) string {
	return filepath.Join(s.basePath, slug, strconv.FormatInt(scanID, 10))
}

func (s *FilesystemStorage) EnsureScanDir(slug string, scanID int64) error {
	if err := os.MkdirAll(s.ScanPath(slug, scanID), 0755); err != nil {
		return fmt.Errorf("creating scan directory: %w", err)
	}
	return nil
}

func (s *FilesystemStorage) ScanExists(slug string, scanID int64) bool {
	info, err := os.Stat(s.ScanPath(slug, scanID))
	return err == nil && info.IsDir()
}

func (s *FilesystemStorage) DeleteScan(slug string, scanID int64) error {
	if err := os.RemoveAll(s.ScanPath(slug, scanID)); err != nil {
		return fmt.Errorf("deleting scan directory: %w", err)
	}
	return nil
}

func (s *FilesystemStorage) DeleteProject(slug string) error {
	if err := os.RemoveAll(s.ProjectPath(slug)); err != nil {
		return fmt.Errorf("deleting project directory: %w", err)
	}
	return nil
}
