// Package docs enumerates the source document directory and normalizes
// file contents into plain text suitable for chunking.
package docs

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
)

// Document is a single source file after normalization.
// Identity is the file name minus its extension; content is immutable
// once loaded.
type Document struct {
	Name    string
	Content string
}

// LoadResult holds the loaded documents and per-file failure count.
type LoadResult struct {
	Documents []Document
	Skipped   int
}

// Loader reads every .txt and .md file from a directory.
type Loader struct {
	dir    string
	logger *slog.Logger
}

// NewLoader creates a Loader over the given directory.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{dir: dir, logger: logger}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// LoadAll reads the document directory. An unreadable file is logged and
// skipped; only a failure to read the directory itself is an error.
// Documents are returned in file-name order so ingestion is deterministic.
func (l *Loader) LoadAll(ctx context.Context) (*LoadResult, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("read document directory: %w", err)
	}

	result := &LoadResult{}
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".txt" && ext != ".md" {
			continue
		}

		data, err := os.ReadFile(filepath.Join(l.dir, entry.Name()))
		if err != nil {
			l.logger.Warn("skipping unreadable document", "file", entry.Name(), "error", err)
			result.Skipped++
			continue
		}

		content := string(data)
		if ext == ".md" {
			content = markdownToText(data)
		}
		content = normalize(content)
		if content == "" {
			l.logger.Warn("skipping empty document", "file", entry.Name())
			result.Skipped++
			continue
		}

		result.Documents = append(result.Documents, Document{
			Name:    strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
			Content: content,
		})
	}

	sort.Slice(result.Documents, func(i, j int) bool {
		return result.Documents[i].Name < result.Documents[j].Name
	})
	return result, nil
}

// normalize collapses whitespace runs to single spaces and trims the ends.
func normalize(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}
