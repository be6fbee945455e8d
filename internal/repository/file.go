package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	berrors "github.com/atinyakov/vaultkeeper/internal/errors"
	"github.com/atinyakov/vaultkeeper/internal/models"
)

const tempPrefix = ".tmp-"

// FileArtifactRepository keeps one file per artifact in a directory.
type FileArtifactRepository struct {
	dir string
}

// NewFileArtifactRepository creates dir (0700) if needed.
func NewFileArtifactRepository(dir string) (*FileArtifactRepository, error) {
	if dir == "" {
		return nil, errors.New("store directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &FileArtifactRepository{dir: dir}, nil
}

func (r *FileArtifactRepository) path(name string) (string, error) {
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid artifact name %q", name)
	}
	return filepath.Join(r.dir, name), nil
}

// Put writes data to a temp file and links it into place, so a reader
// never sees a partial artifact and an existing name is never replaced.
func (r *FileArtifactRepository) Put(_ context.Context, name string, data []byte) error {
	dst, err := r.path(name)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(r.dir, tempPrefix+"*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err := os.Link(tmp.Name(), dst); err != nil {
		if errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("%q: %w", name, ErrExists)
		}
		return fmt.Errorf("link artifact: %w", err)
	}
	return nil
}

// Head reports whether the artifact file exists.
func (r *FileArtifactRepository) Head(_ context.Context, name string) (bool, error) {
	p, err := r.path(name)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Get reads the artifact file, or returns ErrNotFound.
func (r *FileArtifactRepository) Get(_ context.Context, name string) ([]byte, error) {
	p, err := r.path(name)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%q: %w", name, berrors.ErrNotFound)
	}
	return b, err
}

// List returns artifacts whose name starts with prefix, ordered by name.
func (r *FileArtifactRepository) List(_ context.Context, prefix string) ([]models.ArtifactInfo, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}
	var out []models.ArtifactInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasPrefix(name, prefix) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			// removed between ReadDir and Info
			continue
		}
		out = append(out, models.ArtifactInfo{Name: name, Size: fi.Size(), CreatedAt: fi.ModTime().UTC()})
	}
	return out, nil
}

// ExpiredArtifacts returns artifacts last modified before cutoff.
func (r *FileArtifactRepository) ExpiredArtifacts(ctx context.Context, cutoff time.Time) ([]string, error) {
	all, err := r.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var names []string
	for _, a := range all {
		if a.CreatedAt.Before(cutoff) {
			names = append(names, a.Name)
		}
	}
	return names, nil
}

// DeleteArtifacts removes the named files; missing ones are skipped.
func (r *FileArtifactRepository) DeleteArtifacts(_ context.Context, names []string) (int64, error) {
	var n int64
	for _, name := range names {
		p, err := r.path(name)
		if err != nil {
			return n, err
		}
		err = os.Remove(p)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return n, fmt.Errorf("remove %q: %w", name, err)
		}
		n++
	}
	return n, nil
}
