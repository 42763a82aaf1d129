package storage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/LucaDeLeo/realitycam-sub001/interfaces"
)

// FileStore archives artifacts on the local filesystem, one file per device.
type FileStore struct {
	baseDir     string
	log         *slog.Logger
	locationURI string
}

// NewFileStore creates a file-backed artifact store rooted at baseDir,
// creating the directory if needed.
func NewFileStore(baseDir string, log *slog.Logger) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create artifact directory: %w", err)
	}

	return &FileStore{
		baseDir:     baseDir,
		log:         log,
		locationURI: fmt.Sprintf("file://%s", baseDir),
	}, nil
}

// Store writes the artifact for the device.
func (s *FileStore) Store(ctx context.Context, id uuid.UUID, data []byte) error {
	path := s.artifactPath(id)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	s.log.Debug("Archived attestation artifact",
		slog.String("path", path),
		slog.Int("size", len(data)))
	return nil
}

// Fetch reads a previously archived artifact.
func (s *FileStore) Fetch(ctx context.Context, id uuid.UUID) ([]byte, error) {
	data, err := os.ReadFile(s.artifactPath(id))
	if os.IsNotExist(err) {
		return nil, interfaces.ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}
	return data, nil
}

// LocationURI returns the URI that identifies this store.
func (s *FileStore) LocationURI() string {
	return s.locationURI
}

func (s *FileStore) artifactPath(id uuid.UUID) string {
	return filepath.Join(s.baseDir, id.String()+".pem")
}
