// Package lastrun remembers the settings of the most recent submission so a
// later run can repeat them.
package lastrun

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"audiogen/internal/api"
)

const lockRetryDelay = 25 * time.Millisecond

// Record is one saved submission.
type Record struct {
	Model      string     `json:"model"`
	Prompt     string     `json:"prompt"`
	Parameters api.Params `json:"parameters"`
	MelodyRef  string     `json:"melody_ref,omitempty"`
	SavedAt    time.Time  `json:"saved_at"`
}

// FromRequest captures the parts of a request worth repeating.
func FromRequest(req api.GenerationRequest, now time.Time) Record {
	return Record{
		Model:      req.Model,
		Prompt:     req.Prompt,
		Parameters: req.Values.Clone(),
		MelodyRef:  req.MelodyURL,
		SavedAt:    now,
	}
}

// Store reads and writes the record file. Concurrent processes are
// serialized through a sibling lock file.
type Store struct {
	path string
	lock *flock.Flock
}

// NewStore returns a store for path.
func NewStore(path string) *Store {
	return &Store{path: path, lock: flock.New(path + ".lock")}
}

// Path returns the record file location.
func (s *Store) Path() string {
	return s.path
}

// Save replaces the stored record.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock last run: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock last run: %s is busy", s.path)
	}
	defer s.lock.Unlock()

	data, err := json.MarshalIndent(rec, "", "    ")
	if err != nil {
		return fmt.Errorf("encode last run: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write last run: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace last run: %w", err)
	}
	return nil
}

// Load returns the stored record. ok is false when nothing was saved yet.
func (s *Store) Load(ctx context.Context) (rec Record, ok bool, err error) {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return Record{}, false, fmt.Errorf("create state directory: %w", err)
	}
	locked, err := s.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return Record{}, false, fmt.Errorf("lock last run: %w", err)
	}
	if !locked {
		return Record{}, false, fmt.Errorf("lock last run: %s is busy", s.path)
	}
	defer s.lock.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Record{}, false, nil
		}
		return Record{}, false, fmt.Errorf("read last run: %w", err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, false, fmt.Errorf("decode last run %s: %w", s.path, err)
	}
	return rec, true, nil
}
