package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

// buildCorpus lays out a corpus root with category directories and files.
func buildCorpus(t *testing.T, layout map[string]string) string {
	t.Helper()
	root := t.TempDir()
	for rel, content := range layout {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatalf("failed to create dir for %s: %v", rel, err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatalf("failed to write %s: %v", rel, err)
		}
	}
	return root
}

func TestScanner_Categories(t *testing.T) {
	root := buildCorpus(t, map[string]string{
		"finance/report.md": "# Report",
		"hr/handbook.txt":   "handbook",
		"General/faq.md":    "faq",
	})

	s := NewScanner(root, DefaultReaders())
	got, err := s.Categories()
	if err != nil {
		t.Fatalf("Categories() error = %v", err)
	}

	want := []string{"finance", "general", "hr"}
	if len(got) != len(want) {
		t.Fatalf("Categories() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Categories()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestScanner_Scan(t *testing.T) {
	root := buildCorpus(t, map[string]string{
		"finance/report.md":          "# Report",
		"finance/archive/q1.csv":     "a,b",
		"finance/deck.pptx":          "binary",
		"hr/handbook.txt":            "handbook",
		"hr/policies/retention.md":   "retention",
		"engineering/readme.unknown": "skip me",
	})

	s := NewScanner(root, DefaultReaders())
	files, err := s.Scan(context.Background(), []string{"finance", "hr"})
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}

	if len(files) != 4 {
		t.Fatalf("Scan() returned %d files, want 4: %+v", len(files), files)
	}

	byName := make(map[string]ScannedFile)
	for _, f := range files {
		byName[f.Name] = f
	}

	if f, ok := byName["q1.csv"]; !ok {
		t.Error("Scan() missing nested file q1.csv")
	} else {
		if f.Category != "finance" {
			t.Errorf("q1.csv category = %q, want finance", f.Category)
		}
		if f.RelPath != "archive/q1.csv" {
			t.Errorf("q1.csv rel path = %q, want archive/q1.csv", f.RelPath)
		}
	}

	if _, ok := byName["deck.pptx"]; ok {
		t.Error("Scan() included unsupported file deck.pptx")
	}
	if _, ok := byName["readme.unknown"]; ok {
		t.Error("Scan() included a category that was not requested")
	}
}

func TestScanner_Scan_EmptyCategory(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "general"), 0755); err != nil {
		t.Fatalf("failed to create category dir: %v", err)
	}

	s := NewScanner(root, DefaultReaders())
	files, err := s.Scan(context.Background(), []string{"general"})
	if err != nil {
		t.Fatalf("Scan() error = %v, empty directory must not fail", err)
	}
	if len(files) != 0 {
		t.Errorf("Scan() = %d files, want 0", len(files))
	}
}

func TestScanner_Scan_CanceledContext(t *testing.T) {
	root := buildCorpus(t, map[string]string{"finance/a.txt": "x"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := NewScanner(root, DefaultReaders())
	if _, err := s.Scan(ctx, []string{"finance"}); err == nil {
		t.Error("Scan() expected context error, got nil")
	}
}
