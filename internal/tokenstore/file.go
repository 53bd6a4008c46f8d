// Package tokenstore persists the token bundle between runs as a single JSON
// file, the same shape the get-token flow writes.
package tokenstore

import (
	"encoding/json"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/mihomelab/xiaoai-broadcast/domain/entities"
	"github.com/mihomelab/xiaoai-broadcast/domain/repositories"
)

// DefaultPath is used when no explicit path is configured.
const DefaultPath = "xiaomi_token.json"

// FileStore reads and writes the token bundle file.
type FileStore struct {
	path   string
	logger *zap.Logger
}

// Ensure FileStore implements the TokenStore interface
var _ repositories.TokenStore = (*FileStore)(nil)

// NewFileStore creates a file-backed token store. An empty path falls back to
// XIAOMI_TOKEN_JSON_PATH, then to DefaultPath.
func NewFileStore(path string, logger *zap.Logger) *FileStore {
	if path == "" {
		path = os.Getenv("XIAOMI_TOKEN_JSON_PATH")
	}
	if path == "" {
		path = DefaultPath
	}
	return &FileStore{path: path, logger: logger}
}

// Load reads the bundle. Validation is left to session restore so callers
// see the full missing-field diagnosis.
func (s *FileStore) Load() (*entities.TokenBundle, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("error opening token file %s: %w", s.path, err)
	}
	defer file.Close()

	var bundle entities.TokenBundle
	if err := json.NewDecoder(file).Decode(&bundle); err != nil {
		return nil, fmt.Errorf("error decoding token file %s: %w", s.path, err)
	}

	s.logger.Info("Token bundle loaded", zap.String("path", s.path))
	return &bundle, nil
}

// Save writes the bundle, replacing any previous file.
func (s *FileStore) Save(bundle *entities.TokenBundle) error {
	file, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("error creating token file %s: %w", s.path, err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(bundle); err != nil {
		return fmt.Errorf("error encoding token bundle: %w", err)
	}

	s.logger.Info("Token bundle saved", zap.String("path", s.path))
	return nil
}
