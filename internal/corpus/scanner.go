package corpus

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ScannedFile is one supported file found under a category directory.
type ScannedFile struct {
	Category string // Directory name, lowercased
	RelPath  string // Path relative to the category directory
	AbsPath  string // Absolute file path
	Name     string // Base filename, used for chunk provenance
}

// Scanner enumerates supported files beneath a corpus root with one
// directory per category.
type Scanner struct {
	root    string
	readers *ReaderRegistry
}

// NewScanner creates a scanner over the given corpus root.
func NewScanner(root string, readers *ReaderRegistry) *Scanner {
	return &Scanner{root: root, readers: readers}
}

// Root returns the corpus root path.
func (s *Scanner) Root() string {
	return s.root
}

// Categories lists the category directories present under the corpus root,
// lowercased and sorted ascending.
func (s *Scanner) Categories() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus root %s: %w", s.root, err)
	}

	var categories []string
	for _, entry := range entries {
		if entry.IsDir() {
			categories = append(categories, strings.ToLower(entry.Name()))
		}
	}
	sort.Strings(categories)
	return categories, nil
}

// Scan recursively enumerates supported files in the given categories, in
// the order given. Files with unsupported extensions are silently ignored.
// A category directory missing on disk is an error here: callers resolve
// categories against Categories() first.
func (s *Scanner) Scan(ctx context.Context, categories []string) ([]ScannedFile, error) {
	var files []ScannedFile

	for _, category := range categories {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		dir := filepath.Join(s.root, category)
		err := filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err != nil {
				return fmt.Errorf("failed to access %s: %w", path, err)
			}
			if info.IsDir() {
				return nil
			}
			if !s.readers.Supports(path) {
				return nil
			}

			relPath, err := filepath.Rel(dir, path)
			if err != nil {
				return fmt.Errorf("failed to compute relative path for %s: %w", path, err)
			}

			files = append(files, ScannedFile{
				Category: strings.ToLower(category),
				RelPath:  filepath.ToSlash(relPath),
				AbsPath:  path,
				Name:     filepath.Base(path),
			})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to scan category %s: %w", category, err)
		}
	}

	return files, nil
}
