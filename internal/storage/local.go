package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// LocalStore writes photo evidence to a directory on local disk and
// serves it back under /uploads. Deployments that need durable storage
// swap in an object-store implementation behind the same method set.
type LocalStore struct {
	dir string
}

// NewLocalStore creates the upload directory if it does not exist.
func NewLocalStore(dir string) (*LocalStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &LocalStore{dir: dir}, nil
}

// Dir returns the directory files are written to, for static file serving.
func (s *LocalStore) Dir() string {
	return s.dir
}

// SavePhoto writes the photo under the given name and returns the URL
// path it will be served from. The name is sanitized to its base to
// keep writes inside the upload directory.
func (s *LocalStore) SavePhoto(ctx context.Context, name string, r io.Reader) (string, error) {
	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", fmt.Errorf("invalid photo name %q", name)
	}

	f, err := os.Create(filepath.Join(s.dir, name))
	if err != nil {
		return "", fmt.Errorf("create photo file: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, r); err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("write photo: %w", err)
	}

	return "/uploads/" + name, nil
}
