package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/qwc/lisenssit/internal/report"
	"github.com/qwc/lisenssit/internal/scan"
)

var (
	scanOutput           string
	scanRepositoryURL    string
	scanCustomLicenseURL string
	scanVerbose          bool
)

var scanCmd = &cobra.Command{
	Use:   "scan <bundle>",
	Short: "Scan a bundle and write the dependency license report as CSV",
	Long: `Scan reads a bundle (an archive or an already extracted directory
containing manifest.yaml and a licenses/ directory), classifies the license
of every reportable dependency and writes one CSV row per dependency:

    group:artifact,version,url,license`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().StringVarP(&scanOutput, "output", "o", "", "write the CSV report to a file instead of stdout")
	scanCmd.Flags().StringVar(&scanRepositoryURL, "repository-url", scan.DefaultRepositoryBaseURL, "artifact repository used to build dependency URLs")
	scanCmd.Flags().StringVar(&scanCustomLicenseURL, "custom-license-url", "", "base URL for Custom license references")
	scanCmd.Flags().BoolVarP(&scanVerbose, "verbose", "v", false, "enable debug logging")
}

func runScan(cmd *cobra.Command, args []string) error {
	level := slog.LevelWarn
	if scanVerbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	dir, cleanup, err := bundleDir(args[0])
	if err != nil {
		return err
	}
	if cleanup != nil {
		defer cleanup()
	}

	scanner := &scan.Scanner{
		RepositoryBaseURL:    scanRepositoryURL,
		CustomLicenseBaseURL: scanCustomLicenseURL,
		Logger:               logger,
	}
	result, err := scanner.ScanDir(dir)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if scanOutput != "" {
		f, err := os.Create(scanOutput)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	if err := report.WriteCSV(out, result.Dependencies); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	fmt.Fprintf(cmd.ErrOrStderr(), "%d dependencies, %d unknown\n", result.Total, result.Unknown)
	return nil
}

// bundleDir resolves the scan argument to an extracted bundle directory. An
// archive argument is extracted into a temporary directory; its cleanup
// function is non-nil.
func bundleDir(path string) (string, func(), error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", nil, fmt.Errorf("reading bundle: %w", err)
	}
	if info.IsDir() {
		return path, nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return "", nil, fmt.Errorf("opening bundle: %w", err)
	}
	defer f.Close()

	dir, err := os.MkdirTemp("", "lisenssit-scan-*")
	if err != nil {
		return "", nil, fmt.Errorf("creating temp directory: %w", err)
	}
	cleanup := func() { os.RemoveAll(dir) }

	if err := scan.ExtractBundle(f, filepath.Base(path), dir); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("extracting bundle: %w", err)
	}
	return dir, cleanup, nil
}
