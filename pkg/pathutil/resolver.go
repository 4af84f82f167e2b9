// Package pathutil provides centralized path management for the report archive and exports.
package pathutil

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"
)

// PathResolver manages paths for the data root, archive database and exported reports.
type PathResolver struct {
	root      string
	dbPath    string
	exportDir string
}

// Config represents the configuration for PathResolver.
type Config struct {
	// Root is the data directory (e.g., ~/tb-variance)
	Root string
	// DatabasePath is the path to the SQLite report archive
	DatabasePath string
	// ExportDir is where variance reports are written
	ExportDir string
}

// New creates a new PathResolver with the given configuration.
// If DatabasePath is empty, it defaults to {Root}/.archive/reports.db
// If ExportDir is empty, it defaults to {Root}/exports
func New(config Config) *PathResolver {
	dbPath := config.DatabasePath
	if dbPath == "" {
		dbPath = filepath.Join(config.Root, ".archive", "reports.db")
	}

	exportDir := config.ExportDir
	if exportDir == "" {
		exportDir = filepath.Join(config.Root, "exports")
	}

	return &PathResolver{
		root:      config.Root,
		dbPath:    dbPath,
		exportDir: exportDir,
	}
}

// GetRoot returns the data root directory.
func (p *PathResolver) GetRoot() string {
	return p.root
}

// GetDatabasePath returns the archive database file path.
func (p *PathResolver) GetDatabasePath() string {
	return p.dbPath
}

// GetExportDir returns the export directory.
func (p *PathResolver) GetExportDir() string {
	return p.exportDir
}

// GetExportPath returns the file path for an exported report.
// Exports are grouped by year/month of the export time.
// Example: exports/2026/10/variance-march-close.csv
func (p *PathResolver) GetExportPath(label, ext string, at time.Time) (string, error) {
	slug := Slugify(label)
	if slug == "" {
		return "", fmt.Errorf("invalid export label: %q", label)
	}
	ext = strings.TrimPrefix(ext, ".")
	if ext == "" {
		return "", fmt.Errorf("export extension is required")
	}

	filename := fmt.Sprintf("variance-%s.%s", slug, ext)
	return filepath.Join(p.exportDir, at.Format("2006"), at.Format("01"), filename), nil
}

// Slugify lowercases s and replaces every run of non-alphanumerics with a single hyphen.
func Slugify(s string) string {
	var b strings.Builder
	hyphen := false
	for _, r := range strings.ToLower(s) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			hyphen = false
			continue
		}
		if !hyphen && b.Len() > 0 {
			b.WriteByte('-')
			hyphen = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// EnsureDir creates a directory if it doesn't exist.
// It creates all parent directories as needed (like mkdir -p).
func (p *PathResolver) EnsureDir(dirPath string) error {
	if err := os.MkdirAll(dirPath, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dirPath, err)
	}
	return nil
}

// EnsureParentDir ensures the parent directory of a file exists.
func (p *PathResolver) EnsureParentDir(filePath string) error {
	dir := filepath.Dir(filePath)
	return p.EnsureDir(dir)
}

// FileExists checks if a file exists.
func (p *PathResolver) FileExists(filePath string) bool {
	_, err := os.Stat(filePath)
	return err == nil
}
