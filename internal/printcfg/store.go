package printcfg

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Store persists the config document as JSON on disk. All writes go through
// Save under the mutex, so concurrent read-modify-write requests serialize
// server-side; clients never hold a lock.
type Store struct {
	mu   sync.Mutex
	path string
}

// NewStore creates a store for the given path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Load reads and validates the config document. On first run the defaults
// are written to disk so subsequent edits have a base to merge onto.
func (s *Store) Load() (Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := Default()
			if err := s.write(cfg); err != nil {
				return Config{}, err
			}
			return cfg, nil
		}
		return Config{}, fmt.Errorf("read config %s: %w", s.path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("config file must be a JSON object: %w", err)
	}
	return Validate(cfg)
}

// Save validates and atomically persists the document, returning the
// normalized copy that was written.
func (s *Store) Save(cfg Config) (Config, error) {
	validated, err := Validate(cfg)
	if err != nil {
		return Config{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.write(validated); err != nil {
		return Config{}, err
	}
	return validated, nil
}

// write performs the atomic tmp+rename. Caller holds the mutex.
func (s *Store) write(cfg Config) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create config dir %s: %w", dir, err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	data = append(data, '\n')

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o640); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
