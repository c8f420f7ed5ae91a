package role

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// FileMetadataStore keeps the role display-metadata map in a JSON file.
// Writes go through a temp file and rename so a crash mid-write can never
// leave a torn document behind.
type FileMetadataStore struct {
	path string
	mu   sync.Mutex
}

func NewFileMetadataStore(path string) *FileMetadataStore {
	return &FileMetadataStore{path: path}
}

func (s *FileMetadataStore) Load() (map[string]Metadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]Metadata{}, nil
		}
		return nil, fmt.Errorf("failed to read role metadata: %w", err)
	}

	out := make(map[string]Metadata)
	if len(data) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to parse role metadata: %w", err)
	}
	return out, nil
}

func (s *FileMetadataStore) Save(meta map[string]Metadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal role metadata: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create metadata directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".role_metadata-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp metadata file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write role metadata: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync role metadata: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp metadata file: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace role metadata file: %w", err)
	}
	return nil
}
