package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"

	"jackpotwatch/internal/fileutil"
)

// AlertState is the single persisted dedupe record.
type AlertState struct {
	LastAlertedDrawID *string `json:"last_alerted_draw_id"`
}

// StateError reports a persisted record that exists but cannot be used.
type StateError struct {
	Path string
	Err  error
}

func (e *StateError) Error() string {
	return fmt.Sprintf("state file %s: %v", e.Path, e.Err)
}

func (e *StateError) Unwrap() error { return e.Err }

// Store reads and writes the id of the last draw that triggered an alert.
type Store interface {
	Read(ctx context.Context) (drawID string, found bool, err error)
	Write(ctx context.Context, drawID string) error
}

// FileStore keeps the record as a JSON document on local disk.
type FileStore struct {
	path string
}

// NewFileStore returns a store backed by path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the location of the record.
func (s *FileStore) Path() string { return s.path }

// Read returns the last alerted draw id. A missing file or a null id is not an error.
func (s *FileStore) Read(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}

	payload, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", false, nil
	}
	if err != nil {
		return "", false, &StateError{Path: s.path, Err: err}
	}

	var record AlertState
	if err := json.Unmarshal(payload, &record); err != nil {
		return "", false, &StateError{Path: s.path, Err: fmt.Errorf("decode: %w", err)}
	}
	if record.LastAlertedDrawID == nil {
		return "", false, nil
	}
	return *record.LastAlertedDrawID, true, nil
}

// Write replaces the record atomically by renaming a temp file over it.
func (s *FileStore) Write(ctx context.Context, drawID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := json.Marshal(AlertState{LastAlertedDrawID: &drawID})
	if err != nil {
		return &StateError{Path: s.path, Err: err}
	}
	if err := fileutil.WriteAtomic(s.path, payload); err != nil {
		return &StateError{Path: s.path, Err: err}
	}
	return nil
}

var _ Store = (*FileStore)(nil)

// MemoryStore keeps the record in process memory. It is safe for concurrent use.
type MemoryStore struct {
	mu     sync.Mutex
	drawID *string
}

// Read returns the last written draw id.
func (s *MemoryStore) Read(ctx context.Context) (string, bool, error) {
	if err := ctx.Err(); err != nil {
		return "", false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.drawID == nil {
		return "", false, nil
	}
	return *s.drawID, true, nil
}

// Write replaces the record.
func (s *MemoryStore) Write(ctx context.Context, drawID string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drawID = &drawID
	return nil
}

var _ Store = (*MemoryStore)(nil)
