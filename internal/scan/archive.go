// Package scan ingests dependency scan bundles and turns them into license
// inventories.
//
// A scan bundle is an archive containing a manifest.yaml at its root and a
// licenses/ directory with the license files of the project's dependencies.
package scan

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/bzip2"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/bodgit/sevenzip"
	"github.com/ulikunitz/xz"
)

const maxEntrySize = 64 << 20 // per-file cap inside a bundle

// ExtractBundle detects the archive format from the filename and unpacks
// the scan bundle into destDir. When the archive wraps everything in a
// single root directory, that directory is stripped so manifest.yaml ends
// up directly under destDir.
func ExtractBundle(r io.Reader, filename, destDir string) error {
	lower := strings.ToLower(filename)

	switch {
	case strings.HasSuffix(lower, ".zip"):
		return extractZip(r, destDir)
	case strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz"):
		gr, err := gzip.NewReader(r)
		if err != nil {
			return fmt.Errorf("opening gzip: %w", err)
		}
		defer gr.Close()
		return extractTar(gr, destDir)
	case strings.HasSuffix(lower, ".tar.bz2") || strings.HasSuffix(lower, ".tbz2"):
		return extractTar(bzip2.NewReader(r), destDir)
	case strings.HasSuffix(lower, ".tar.xz") || strings.HasSuffix(lower, ".txz"):
		xr, err := xz.NewReader(r)
		if err != nil {
			return fmt.Errorf("opening xz: %w", err)
		}
		return extractTar(xr, destDir)
	case strings.HasSuffix(lower, ".7z"):
		return extract7z(r, destDir)
	default:
		return fmt.Errorf("unsupported archive format: %s", filename)
	}
}

// archiveEntry abstracts over the random-access archive formats so that zip
// and 7z extraction share one code path.
type archiveEntry struct {
	name  string
	isDir bool
	mode  os.FileMode
	open  func() (io.ReadCloser, error)
}

func extractZip(r io.Reader, destDir string) error {
	// zip.Reader needs io.ReaderAt, so we buffer to memory
	data, err := io.ReadAll(io.LimitReader(r, maxEntrySize*10))
	if err != nil {
		return fmt.Errorf("reading zip data: %w", err)
	}

	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("opening zip: %w", err)
	}

	entries := make([]archiveEntry, 0, len(zr.File))
	for _, f := range zr.File {
		entries = append(entries, archiveEntry{
			name:  f.Name,
			isDir: f.FileInfo().IsDir(),
			mode:  f.FileInfo().Mode(),
			open:  f.Open,
		})
	}
	return extractEntries(entries, destDir)
}

func extract7z(r io.Reader, destDir string) error {
	// sevenzip.Reader needs io.ReaderAt as well
	data, err := io.ReadAll(io.LimitReader(r, maxEntrySize*10))
	if err != nil {
		return fmt.Errorf("reading 7z data: %w", err)
	}

	szr, err := sevenzip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return fmt.Errorf("opening 7z: %w", err)
	}

	entries := make([]archiveEntry, 0, len(szr.File))
	for _, f := range szr.File {
		entries = append(entries, archiveEntry{
			name:  f.Name,
			isDir: f.FileInfo().IsDir(),
			mode:  f.FileInfo().Mode(),
			open:  f.Open,
		})
	}
	return extractEntries(entries, destDir)
}

func extractEntries(entries []archiveEntry, destDir string) error {
	prefix := commonRoot(entries)

	for _, e := range entries {
		name := e.name
		if prefix != "" {
			name = strings.TrimPrefix(name, prefix)
			if name == "" {
				continue
			}
		}

		target := filepath.Join(destDir, name)

		if !isPathSafe(destDir, target) {
			return fmt.Errorf("path traversal detected: %s", e.name)
		}

		// Skip symlinks
		if e.mode&os.ModeSymlink != 0 {
			continue
		}

		if e.isDir {
			os.MkdirAll(target, 0755)
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
			return fmt.Errorf("creating directory: %w", err)
		}

		if err := writeEntry(e, target); err != nil {
			return err
		}
	}

	return nil
}

func writeEntry(e archiveEntry, target string) error {
	rc, err := e.open()
	if err != nil {
		return fmt.Errorf("opening archive entry: %w", err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("creating file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, io.LimitReader(rc, maxEntrySize)); err != nil {
		return fmt.Errorf("writing file: %w", err)
	}

	return nil
}

// commonRoot returns the shared root directory of all entries, with a
// trailing slash, or "" when entries live at more than one root.
func commonRoot(entries []archiveEntry) string {
	var root string
	for _, e := range entries {
		parts := strings.SplitN(e.name, "/", 2)
		if len(parts) < 2 {
			return "" // file at root level
		}
		if root == "" {
			root = parts[0]
		} else if parts[0] != root {
			return "" // multiple roots
		}
	}
	if root != "" {
		return root + "/"
	}
	return ""
}

func extractTar(r io.Reader, destDir string) error {
	tr := tar.NewReader(r)

	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("reading tar: %w", err)
		}

		name := strings.TrimPrefix(header.Name, "./")
		if name == "" || name == "." {
			continue
		}

		target := filepath.Join(destDir, name)

		if !isPathSafe(destDir, target) {
			return fmt.Errorf("path traversal detected: %s", header.Name)
		}

		switch header.Typeflag {
		case tar.TypeDir:
			os.MkdirAll(target, 0755)
		case tar.TypeReg:
			if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
				return fmt.Errorf("creating directory: %w", err)
			}

			out, err := os.Create(target)
			if err != nil {
				return fmt.Errorf("creating file: %w", err)
			}

			if _, err := io.Copy(out, io.LimitReader(tr, maxEntrySize)); err != nil {
				out.Close()
				return fmt.Errorf("writing file: %w", err)
			}
			out.Close()
		default:
			// Skip symlinks and other special types
			continue
		}
	}

	return stripSingleRoot(destDir)
}

// stripSingleRoot lifts the contents of destDir's sole subdirectory into
// destDir. Tar is a stream, so unlike commonRoot a shared root directory can
// only be detected once everything is on disk. A flat bundle, or one with
// several top-level entries, is left untouched.
func stripSingleRoot(destDir string) error {
	entries, err := os.ReadDir(destDir)
	if err != nil {
		return fmt.Errorf("reading extracted bundle: %w", err)
	}
	if len(entries) != 1 || !entries[0].IsDir() {
		return nil
	}

	root := filepath.Join(destDir, entries[0].Name())
	children, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("reading bundle root: %w", err)
	}
	for _, child := range children {
		src := filepath.Join(root, child.Name())
		if err := os.Rename(src, filepath.Join(destDir, child.Name())); err != nil {
			return fmt.Errorf("flattening bundle root: %w", err)
		}
	}
	return os.Remove(root)
}

// WriteZipFromDir walks srcDir and streams its contents as a zip archive to
// w. Paths inside the zip are relative to srcDir, using forward slashes.
// Symlinks, directories, and non-regular files are skipped.
func WriteZipFromDir(w io.Writer, srcDir string) error {
	zw := zip.NewWriter(w)
	defer zw.Close()

	return filepath.WalkDir(srcDir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !d.Type().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(srcDir, path)
		if err != nil {
			return fmt.Errorf("computing relative path: %w", err)
		}

		fw, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return fmt.Errorf("creating zip entry %s: %w", rel, err)
		}

		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening %s: %w", rel, err)
		}
		defer f.Close()

		if _, err := io.Copy(fw, f); err != nil {
			return fmt.Errorf("writing %s: %w", rel, err)
		}
		return nil
	})
}

func isPathSafe(base, target string) bool {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return false
	}
	absTarget, err := filepath.Abs(target)
	if err != nil {
		return false
	}
	return strings.HasPrefix(absTarget, absBase+string(filepath.Separator)) || absTarget == absBase
}
