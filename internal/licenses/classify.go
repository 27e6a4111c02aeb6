package licenses

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// FindLicenseFile looks for the license file belonging to a dependency.
// License files are named "<prefix>-LICENSE*" where the prefix identifies
// the dependency; a file belongs to a dependency when its prefix occurs in
// the dependency's group or name. The directory listing is scanned in
// lexical order and the first match wins. An empty name means no license
// file was found, which is not an error.
func FindLicenseFile(dir, group, name string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("listing licenses directory: %w", err)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		fname := entry.Name()
		if ok, _ := filepath.Match("*-LICENSE*", fname); !ok {
			continue
		}
		prefix, _, _ := strings.Cut(fname, "-LICENSE")
		if strings.Contains(group, prefix) || strings.Contains(name, prefix) {
			return fname, nil
		}
	}
	return "", nil
}

// Classifier resolves license types for dependencies from a directory of
// license files.
type Classifier struct {
	// Dir is the licenses directory of a scan bundle.
	Dir string

	// CustomBaseURL, when set, is prepended to the license file name to
	// build the URL of a custom license. When empty the file path under
	// Dir is used instead.
	CustomBaseURL string

	Logger *slog.Logger
}

func (c *Classifier) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// LicenseType determines the license of a dependency. It returns one of:
//
//   - an SPDX identifier when the license file matches a known template
//   - "Custom;<url>" when a license file exists but matches no template
//   - "UNKNOWN" when no license file exists for the dependency
//
// Errors reading the directory or the file are logged and reported as
// UNKNOWN so that one broken file does not fail a whole scan. The returned
// file name is empty when no license file was found.
func (c *Classifier) LicenseType(group, name string) (licenseType, file string) {
	file, err := FindLicenseFile(c.Dir, group, name)
	if err != nil {
		c.logger().Error("failed to list licenses directory", "dir", c.Dir, "error", err)
		return Unknown, ""
	}
	if file == "" {
		return Unknown, ""
	}

	text, err := ExtractText(filepath.Join(c.Dir, file))
	if err != nil {
		c.logger().Error("failed to read license file", "file", file, "error", err)
		return Unknown, file
	}

	if id, ok := MatchSPDX(text); ok {
		return id, file
	}
	return CustomPrefix + c.customURL(file), file
}

func (c *Classifier) customURL(file string) string {
	if c.CustomBaseURL != "" {
		return strings.TrimSuffix(c.CustomBaseURL, "/") + "/" + file
	}
	return filepath.Join(c.Dir, file)
}
