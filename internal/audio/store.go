package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store persists generated WAV clips under {dir}/{batchID}/{recordID}.wav.
type Store struct {
	dir string
}

// NewStore creates a store rooted at dir, defaulting to "audio".
func NewStore(dir string) *Store {
	if dir == "" {
		dir = "audio"
	}
	return &Store{dir: dir}
}

// Save writes data and returns the saved path.
func (s *Store) Save(batchID, recordID string, data []byte) (string, error) {
	dir := filepath.Join(s.dir, sanitize(batchID))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create audio dir: %w", err)
	}
	path := filepath.Join(dir, sanitize(recordID)+".wav")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write audio file: %w", err)
	}
	return path, nil
}

// Load reads a previously saved clip.
func (s *Store) Load(batchID, recordID string) ([]byte, error) {
	return os.ReadFile(s.Path(batchID, recordID))
}

// Path returns the location a clip would be saved to.
func (s *Store) Path(batchID, recordID string) string {
	return filepath.Join(s.dir, sanitize(batchID), sanitize(recordID)+".wav")
}

// Exists reports whether a clip has been generated for the record.
func (s *Store) Exists(batchID, recordID string) bool {
	_, err := os.Stat(s.Path(batchID, recordID))
	return err == nil
}

// RemoveBatch deletes every clip belonging to a batch.
func (s *Store) RemoveBatch(batchID string) error {
	return os.RemoveAll(filepath.Join(s.dir, sanitize(batchID)))
}

// sanitize strips path separators and parent references so IDs can never
// escape the store root.
func sanitize(id string) string {
	id = strings.ReplaceAll(id, "..", "")
	id = strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return -1
		}
		return r
	}, id)
	if id == "" {
		return "_"
	}
	return id
}
