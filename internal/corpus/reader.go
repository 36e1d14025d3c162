// Package corpus handles the on-disk document corpus: one directory per
// category under a configured root, with supported files directly or nested
// within. It provides the scanner that enumerates files per category and a
// document-reader registry keyed by file type.
package corpus

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"
)

// DocumentReader turns one supported file type into plain text for chunking.
type DocumentReader interface {
	// Extensions returns the file extensions this reader handles (with dot).
	Extensions() []string
	// Read decodes the file at path into plain text. Malformed byte
	// sequences are replaced, never fatal.
	Read(path string) (string, error)
}

// ReaderRegistry dispatches file reading by extension. New file types are
// added by registering a reader, without touching the chunker.
type ReaderRegistry struct {
	readers map[string]DocumentReader
}

// NewReaderRegistry creates a registry with the given readers.
func NewReaderRegistry(readers ...DocumentReader) *ReaderRegistry {
	reg := &ReaderRegistry{readers: make(map[string]DocumentReader)}
	for _, r := range readers {
		for _, ext := range r.Extensions() {
			reg.readers[strings.ToLower(ext)] = r
		}
	}
	return reg
}

// DefaultReaders returns the registry covering the supported corpus file
// types: plain text, markdown, and CSV.
func DefaultReaders() *ReaderRegistry {
	return NewReaderRegistry(
		&PlainTextReader{},
		NewMarkdownReader(),
		&CSVReader{},
	)
}

// Supports reports whether any registered reader handles the extension.
func (reg *ReaderRegistry) Supports(path string) bool {
	_, ok := reg.readers[strings.ToLower(filepath.Ext(path))]
	return ok
}

// Read dispatches to the reader registered for the file's extension.
func (reg *ReaderRegistry) Read(path string) (string, error) {
	r, ok := reg.readers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "", fmt.Errorf("corpus: unsupported file type %q", filepath.Ext(path))
	}
	return r.Read(path)
}

// PlainTextReader reads .txt files verbatim.
type PlainTextReader struct{}

// Extensions returns the extensions handled by this reader.
func (r *PlainTextReader) Extensions() []string { return []string{".txt"} }

// Read returns the file content with invalid UTF-8 replaced.
func (r *PlainTextReader) Read(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	return sanitizeUTF8(content), nil
}

// MarkdownReader extracts plain text from markdown files by walking the
// goldmark AST, so chunk tokens are spent on content rather than markup.
// Table rows are rendered with " | " cell separators.
type MarkdownReader struct {
	parser goldmark.Markdown
}

// NewMarkdownReader creates a markdown reader with table support.
func NewMarkdownReader() *MarkdownReader {
	return &MarkdownReader{
		parser: goldmark.New(
			goldmark.WithExtensions(extension.Table),
		),
	}
}

// Extensions returns the extensions handled by this reader.
func (r *MarkdownReader) Extensions() []string { return []string{".md"} }

// Read parses the markdown file and returns its textual content.
func (r *MarkdownReader) Read(path string) (string, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", path, err)
	}
	content = []byte(sanitizeUTF8(content))

	doc := r.parser.Parser().Parse(text.NewReader(content))

	var builder strings.Builder
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		switch node := n.(type) {
		case *ast.Heading, *ast.Paragraph, *ast.ListItem:
			if builder.Len() > 0 && !strings.HasSuffix(builder.String(), "\n") {
				builder.WriteString("\n")
			}
			return ast.WalkContinue, nil

		case *ast.Text:
			builder.Write(node.Segment.Value(content))
			return ast.WalkContinue, nil

		case *ast.String:
			builder.Write(node.Value)
			return ast.WalkContinue, nil

		case *ast.CodeBlock:
			writeLines(&builder, node, content)
			return ast.WalkSkipChildren, nil

		case *ast.FencedCodeBlock:
			writeLines(&builder, node, content)
			return ast.WalkSkipChildren, nil

		default:
			// Table extension nodes are matched by kind name; the extension
			// package does not export concrete node types for switching.
			kindName := n.Kind().String()
			if strings.Contains(kindName, "TableRow") || strings.Contains(kindName, "TableHeader") {
				if builder.Len() > 0 && !strings.HasSuffix(builder.String(), "\n") {
					builder.WriteString("\n")
				}
				builder.WriteString(tableRowText(n, content))
				builder.WriteString("\n")
				return ast.WalkSkipChildren, nil
			}
			return ast.WalkContinue, nil
		}
	})

	return builder.String(), nil
}

// writeLines appends the raw lines of a code block node.
func writeLines(builder *strings.Builder, n ast.Node, content []byte) {
	if builder.Len() > 0 && !strings.HasSuffix(builder.String(), "\n") {
		builder.WriteString("\n")
	}
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		line := lines.At(i)
		builder.Write(line.Value(content))
	}
}

// tableRowText extracts a table row as pipe-separated cell text.
func tableRowText(row ast.Node, content []byte) string {
	var builder strings.Builder
	cellCount := 0

	_ = ast.Walk(row, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if strings.Contains(n.Kind().String(), "TableCell") {
			var cell strings.Builder
			_ = ast.Walk(n, func(inner ast.Node, entering bool) (ast.WalkStatus, error) {
				if !entering {
					return ast.WalkContinue, nil
				}
				switch v := inner.(type) {
				case *ast.Text:
					cell.Write(v.Segment.Value(content))
				case *ast.String:
					cell.Write(v.Value)
				}
				return ast.WalkContinue, nil
			})
			if cellCount > 0 {
				builder.WriteString(" | ")
			}
			builder.WriteString(strings.TrimSpace(cell.String()))
			cellCount++
			return ast.WalkSkipChildren, nil
		}
		return ast.WalkContinue, nil
	})

	return builder.String()
}

// CSVReader renders tabular files as a compact textual table: the header row
// followed by data rows, cells joined by single spaces, no index column.
type CSVReader struct{}

// Extensions returns the extensions handled by this reader.
func (r *CSVReader) Extensions() []string { return []string{".csv"} }

// Read renders the CSV file. Rows with a deviating field count are kept
// rather than failing the whole file.
func (r *CSVReader) Read(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer func() {
		_ = f.Close()
	}()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var builder strings.Builder
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Malformed row: skip it, keep the rest of the table.
			continue
		}
		if builder.Len() > 0 {
			builder.WriteString("\n")
		}
		builder.WriteString(sanitizeUTF8([]byte(strings.Join(record, " "))))
	}

	return builder.String(), nil
}

// sanitizeUTF8 replaces invalid byte sequences with the Unicode replacement
// character so a corrupt file degrades instead of failing ingestion.
func sanitizeUTF8(content []byte) string {
	if utf8.Valid(content) {
		return string(content)
	}
	return strings.ToValidUTF8(string(content), string(utf8.RuneError))
}
