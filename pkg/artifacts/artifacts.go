// Package artifacts stores generated phase outputs as markdown files. Paths
// are keyed by owning group and artifact kind; every artifact is written at
// most once and read back for rendering.
package artifacts

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// ErrArtifactExists indicates a write targeted an already-written artifact.
var ErrArtifactExists = errors.New("artifact already exists")

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Store writes and reads phase artifacts under a root directory.
type Store struct {
	root string
}

// NewStore creates an artifact store rooted at the given directory.
func NewStore(root string) *Store {
	return &Store{root: root}
}

// Path returns the artifact path for a group, kind and title without
// touching the file system.
func (s *Store) Path(group, kind, title string) string {
	return filepath.Join(s.root, slugify(group), slugify(kind), slugify(title)+".md")
}

// Write stores the artifact and returns its path. Writing to an existing
// path fails with ErrArtifactExists; artifacts are immutable once written.
func (s *Store) Write(group, kind, title, content string) (string, error) {
	path := s.Path(group, kind, title)

	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if os.IsExist(err) {
			return "", fmt.Errorf("artifact %s: %w", path, ErrArtifactExists)
		}

		return "", fmt.Errorf("failed to create artifact %s: %w", path, err)
	}

	_, err = file.WriteString(renderMarkdown(title, kind, content))
	if err != nil {
		_ = file.Close()

		return "", fmt.Errorf("failed to write artifact %s: %w", path, err)
	}

	err = file.Close()
	if err != nil {
		return "", fmt.Errorf("failed to close artifact %s: %w", path, err)
	}

	return path, nil
}

// Read returns a previously written artifact.
func (s *Store) Read(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read artifact %s: %w", path, err)
	}

	return string(data), nil
}

func renderMarkdown(title, kind, content string) string {
	return fmt.Sprintf("# %s\n\n_Kind: %s, generated: %s_\n\n%s\n",
		title, kind, time.Now().UTC().Format(time.RFC3339), content)
}

func slugify(value string) string {
	slug := slugPattern.ReplaceAllString(strings.ToLower(value), "-")
	slug = strings.Trim(slug, "-")

	if slug == "" {
		return "untitled"
	}

	return slug
}
