// Package file stores session logs as a pretty-printed JSON array on disk.
package file

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/realtyvoice/backend/domain/entities"
	"github.com/realtyvoice/backend/domain/repositories"
)

// ErrCorruptLog means the log file exists but is not a JSON array of entries.
// The file is never rewritten in that state.
var ErrCorruptLog = errors.New("session log file is corrupted")

// SessionLogRepository appends entries to a JSON file. Appends are
// serialized in-process by a mutex and across processes by an advisory lock
// on a sibling .lock file, and the file is replaced atomically.
type SessionLogRepository struct {
	path   string
	logger *zap.Logger
	mu     sync.Mutex
}

var _ repositories.SessionLogRepository = (*SessionLogRepository)(nil)

// NewSessionLogRepository creates a repository writing to path
func NewSessionLogRepository(path string, logger *zap.Logger) *SessionLogRepository {
	return &SessionLogRepository{
		path:   path,
		logger: logger,
	}
}

// Append implements repositories.SessionLogRepository
func (r *SessionLogRepository) Append(ctx context.Context, entry *entities.SessionLogEntry) error {
	if entry == nil {
		return errors.New("entry cannot be nil")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(r.path), 0o755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}

	unlock, err := lockFile(r.path + ".lock")
	if err != nil {
		return fmt.Errorf("failed to lock session log: %w", err)
	}
	defer unlock()

	existing, err := r.read()
	if err != nil {
		return err
	}
	existing = append(existing, *entry)

	data, err := json.MarshalIndent(existing, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session log: %w", err)
	}

	if err := writeAtomic(r.path, data); err != nil {
		return err
	}

	r.logger.Debug("Session log appended",
		zap.String("session_id", entry.SessionID),
		zap.Int("entries", len(existing)))
	return nil
}

// List implements repositories.SessionLogRepository
func (r *SessionLogRepository) List(ctx context.Context) ([]entities.SessionLogEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return r.read()
}

// read loads the current entries. A missing or blank file is an empty log.
func (r *SessionLogRepository) read() ([]entities.SessionLogEntry, error) {
	entries := make([]entities.SessionLogEntry, 0)

	data, err := os.ReadFile(r.path)
	if err != nil {
		if os.IsNotExist(err) {
			return entries, nil
		}
		return nil, fmt.Errorf("failed to read session log: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return entries, nil
	}

	if err := json.Unmarshal(data, &entries); err != nil {
		r.logger.Error("Session log is not a valid JSON array",
			zap.String("path", r.path),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %s: %v", ErrCorruptLog, r.path, err)
	}
	return entries, nil
}

// writeAtomic writes data next to path and renames it into place
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write session log: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to sync session log: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close session log: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace session log: %w", err)
	}
	return nil
}
