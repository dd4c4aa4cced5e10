// Package artifact persists fitted models as gob files named after the
// model name and version.
package artifact

import (
	"context"
	"encoding/gob"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/okian/puckcast/internal/domain/encoding"
	"github.com/okian/puckcast/internal/domain/forest"
	"github.com/okian/puckcast/internal/domain/model"
)

// Artifact is everything inference needs to reproduce training-time encoding.
type Artifact struct {
	Name       string
	Version    string
	Seasons    []int
	Columns    []string
	Vocabulary encoding.Vocabulary
	Forest     *forest.Forest
}

// Store reads and writes artifacts.
type Store interface {
	Save(ctx context.Context, a *Artifact) (path string, err error)
	Load(ctx context.Context, path string) (*Artifact, error)
}

// FileStore keeps artifacts in a directory.
type FileStore struct {
	dir string
}

// NewFileStore creates dir if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, model.Wrap("artifact.NewFileStore", model.ErrStorage, err)
	}
	return &FileStore{dir: dir}, nil
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

// Slug lowercases name and joins its words with dashes.
func Slug(name string) string {
	return strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
}

// Path is where an artifact of name and version lives.
func (s *FileStore) Path(name string, v model.Version) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s-v-%d-%d.gob", Slug(name), v.Major, v.Minor))
}

// Save writes a to a temporary file and renames it into place. An existing
// file for the same version is never overwritten.
func (s *FileStore) Save(_ context.Context, a *Artifact) (string, error) {
	const op = "artifact.Save"
	v, err := model.ParseVersion(a.Version)
	if err != nil {
		return "", err
	}
	path := s.Path(a.Name, v)
	if _, err := os.Stat(path); err == nil {
		return "", model.Kind(op, model.ErrStorage, "artifact %s already exists", path)
	}

	tmp, err := os.CreateTemp(s.dir, ".artifact-*")
	if err != nil {
		return "", model.Wrap(op, model.ErrStorage, err)
	}
	defer os.Remove(tmp.Name())

	if err := gob.NewEncoder(tmp).Encode(a); err != nil {
		_ = tmp.Close()
		return "", model.Wrap(op, model.ErrStorage, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return "", model.Wrap(op, model.ErrStorage, err)
	}
	if err := tmp.Close(); err != nil {
		return "", model.Wrap(op, model.ErrStorage, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", model.Wrap(op, model.ErrStorage, err)
	}
	return path, nil
}

// Load reads the artifact at path. A missing file is ErrModelNotFound.
func (s *FileStore) Load(_ context.Context, path string) (*Artifact, error) {
	const op = "artifact.Load"
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, model.Wrap(op, model.ErrModelNotFound, err)
	}
	if err != nil {
		return nil, model.Wrap(op, model.ErrStorage, err)
	}
	defer f.Close()

	var a Artifact
	if err := gob.NewDecoder(f).Decode(&a); err != nil {
		return nil, model.Wrap(op, model.ErrStorage, err)
	}
	return &a, nil
}
