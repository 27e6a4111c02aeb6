package scan

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/qwc/lisenssit/internal/database"
	"github.com/qwc/lisenssit/internal/deps"
	"github.com/qwc/lisenssit/internal/licenses"
)

// DefaultRepositoryBaseURL points dependency URLs at Maven Central.
const DefaultRepositoryBaseURL = "https://repo1.maven.org/maven2"

// ManifestFile is the manifest's file name inside a scan bundle.
const ManifestFile = "manifest.yaml"

// LicensesDir is the license file directory inside a scan bundle.
const LicensesDir = "licenses"

// Scanner turns an extracted scan bundle into a dependency inventory.
type Scanner struct {
	// RepositoryBaseURL is the artifact repository used to build
	// dependency URLs. Empty means Maven Central.
	RepositoryBaseURL string

	// CustomLicenseBaseURL is where license files of this project can be
	// browsed, used for Custom license URLs.
	CustomLicenseBaseURL string

	Logger *slog.Logger
}

// Result is the outcome of scanning one bundle.
type Result struct {
	Manifest     *deps.Manifest
	Dependencies []database.Dependency
	Total        int
	Unknown      int
}

func (s *Scanner) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// ScanDir reads the manifest and license files of an extracted bundle and
// classifies every reportable dependency. A missing manifest fails the
// scan; problems with individual license files are logged and the affected
// dependency is reported as UNKNOWN.
func (s *Scanner) ScanDir(dir string) (*Result, error) {
	m, err := deps.LoadManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, fmt.Errorf("loading bundle manifest: %w", err)
	}

	base := s.RepositoryBaseURL
	if base == "" {
		base = DefaultRepositoryBaseURL
	}

	classifier := &licenses.Classifier{
		Dir:           filepath.Join(dir, LicensesDir),
		CustomBaseURL: s.CustomLicenseBaseURL,
		Logger:        s.Logger,
	}

	result := &Result{Manifest: m}
	for _, c := range m.Included() {
		name := m.MappedName(c.Artifact)
		s.logger().Debug("mapped dependency for license lookup",
			"group", c.Group, "artifact", c.Artifact, "name", name)

		license, file := classifier.LicenseType(c.Group, name)
		if license == licenses.Unknown {
			result.Unknown++
		}

		result.Dependencies = append(result.Dependencies, database.Dependency{
			GroupID:     c.Group,
			ArtifactID:  c.Artifact,
			Version:     c.Version,
			URL:         deps.RepositoryURL(base, c),
			License:     license,
			LicenseFile: file,
		})
	}
	result.Total = len(result.Dependencies)
	return result, nil
}
