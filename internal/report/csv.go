// Package report renders dependency inventories for export.
package report

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/qwc/lisenssit/internal/database"
)

// WriteCSV writes one line per dependency in the form
//
//	group:artifact,version,url,licenseType
//
// No header row is written, so the output can be concatenated across
// projects or diffed between scans.
func WriteCSV(w io.Writer, deps []database.Dependency) error {
	cw := csv.NewWriter(w)
	for _, d := range deps {
		record := []string{d.Name(), d.Version, d.URL, d.License}
		if err := cw.Write(record); err != nil {
			return fmt.Errorf("writing csv record: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	return nil
}
