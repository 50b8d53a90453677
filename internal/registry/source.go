package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

// Source loads and persists the registry representation.
type Source interface {
	Load(ctx context.Context) (*Registry, error)
	Save(ctx context.Context, reg *Registry) error
}

// FileSource keeps the registry in a JSON schedule file.
type FileSource struct {
	path string
}

// NewFileSource constructs a file-backed source rooted at path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Path returns the schedule file location.
func (s *FileSource) Path() string {
	return s.path
}

// Load reads the schedule file, falling back to the embedded season seed
// when the file does not exist yet.
func (s *FileSource) Load(_ context.Context) (*Registry, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", s.path).Msg("Schedule file not found, using embedded seed")
		return Default()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open schedule file: %w", err)
	}
	defer f.Close()

	reg, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to load schedule file %s: %w", s.path, err)
	}
	return reg, nil
}

// Save writes the registry atomically (tmp file + rename).
func (s *FileSource) Save(_ context.Context, reg *Registry) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("failed to create schedule dir: %w", err)
	}
	data, err := json.MarshalIndent(reg.Document(), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode schedule: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write schedule: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace schedule: %w", err)
	}
	log.Debug().Str("path", s.path).Msg("Schedule file written")
	return nil
}
