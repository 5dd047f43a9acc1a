// Package loader resolves an opinion slug to its plain text.
package loader

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ppiankov/shepard/internal/extract"
	"github.com/ppiankov/shepard/internal/model"
)

// Loader returns the plain-text body of the opinion identified by slug.
// A missing document is reported with an error wrapping model.ErrInputNotFound.
type Loader interface {
	Load(ctx context.Context, slug string) (string, error)
}

// FileLoader reads <dir>/<slug>.html from the local filesystem
type FileLoader struct {
	dir string
}

// NewFileLoader creates a loader rooted at dir
func NewFileLoader(dir string) *FileLoader {
	if dir == "" {
		dir = "."
	}
	return &FileLoader{dir: dir}
}

// Path returns the file a slug resolves to
func (l *FileLoader) Path(slug string) string {
	return filepath.Join(l.dir, slug+".html")
}

// Load reads and converts the opinion HTML
func (l *FileLoader) Load(ctx context.Context, slug string) (string, error) {
	if err := validateSlug(slug); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	path := l.Path(slug)
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", model.ErrInputNotFound, path)
		}
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	text, err := extract.OpinionText(f)
	if err != nil {
		return "", fmt.Errorf("parse %s: %w", path, err)
	}
	return text, nil
}

// validateSlug rejects slugs that would escape the source location
func validateSlug(slug string) error {
	switch {
	case strings.TrimSpace(slug) == "":
		return fmt.Errorf("%w: empty slug", model.ErrInputNotFound)
	case strings.ContainsAny(slug, `/\`), strings.Contains(slug, ".."):
		return fmt.Errorf("invalid slug %q: must not contain path separators", slug)
	}
	return nil
}
