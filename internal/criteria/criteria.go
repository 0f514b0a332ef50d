// Package criteria loads and saves filter criteria profiles. Sweeps read a
// snapshot at start; edits land in the backing source and apply to the
// next sweep.
package criteria

import (
	"context"
	"errors"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/steinik-group/rentscout/internal/model"
	"github.com/steinik-group/rentscout/internal/store"
)

// Source persists one criteria profile.
type Source interface {
	Load(ctx context.Context) (model.Criteria, error)
	Save(ctx context.Context, c model.Criteria) error
}

// FileSource keeps the criteria in a YAML file next to the binary. A
// missing file yields the default profile.
type FileSource struct {
	Path string
}

// NewFileSource creates a YAML-file-backed source.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

func (f *FileSource) Load(_ context.Context) (model.Criteria, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return model.DefaultCriteria(), nil
	}
	if err != nil {
		return model.Criteria{}, eris.Wrapf(err, "criteria: read %s", f.Path)
	}

	c := model.DefaultCriteria()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return model.Criteria{}, eris.Wrapf(err, "criteria: parse %s", f.Path)
	}
	if err := c.Validate(); err != nil {
		return model.Criteria{}, err
	}
	return c, nil
}

func (f *FileSource) Save(_ context.Context, c model.Criteria) error {
	if err := c.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return eris.Wrap(err, "criteria: marshal")
	}
	if err := os.WriteFile(f.Path, data, 0o644); err != nil {
		return eris.Wrapf(err, "criteria: write %s", f.Path)
	}
	return nil
}

// StoreSource keeps the criteria in the database under a profile name,
// shared between processes pointing at the same store.
type StoreSource struct {
	store store.Store
	name  string
}

// NewStoreSource creates a store-backed source for the named profile.
func NewStoreSource(st store.Store, name string) *StoreSource {
	if name == "" {
		name = "default"
	}
	return &StoreSource{store: st, name: name}
}

func (s *StoreSource) Load(ctx context.Context) (model.Criteria, error) {
	c, err := s.store.LoadCriteria(ctx, s.name)
	if errors.Is(err, store.ErrNotFound) {
		return model.DefaultCriteria(), nil
	}
	if err != nil {
		return model.Criteria{}, err
	}
	if err := c.Validate(); err != nil {
		return model.Criteria{}, err
	}
	return *c, nil
}

func (s *StoreSource) Save(ctx context.Context, c model.Criteria) error {
	if err := c.Validate(); err != nil {
		return err
	}
	return s.store.SaveCriteria(ctx, s.name, c)
}
