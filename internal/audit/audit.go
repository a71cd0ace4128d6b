// Package audit provides append-only structured logging for secret operations.
//
// Every secret access (read, write, delete, clear, rotate, import) is
// recorded to an audit log at ~/.strongbox/audit.log as newline-delimited
// JSON. Values are never logged, only keys.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Action describes what happened.
type Action string

const (
	ActionSecretRead   Action = "secret_read"
	ActionSecretWrite  Action = "secret_write"
	ActionSecretDelete Action = "secret_delete"
	ActionSecretClear  Action = "secret_clear"
	ActionSecretRotate Action = "secret_rotate"
	ActionSecretImport Action = "secret_import"
)

// Entry is a single audit log record.
type Entry struct {
	ID          string    `json:"id"`
	Timestamp   time.Time `json:"ts"`
	Action      Action    `json:"action"`
	Key         string    `json:"key,omitempty"`
	AccessGroup string    `json:"access_group,omitempty"`
	Actor       string    `json:"actor,omitempty"`   // "cli", "browse"
	Trigger     string    `json:"trigger,omitempty"` // "manual", "hook", "import"
	Command     string    `json:"command,omitempty"` // rotation command if applicable
	Error       string    `json:"error,omitempty"`
}

// Logger writes audit entries to an append-only file.
type Logger struct {
	mu   sync.Mutex
	file *os.File
	path string
}

// NewLogger creates or opens an audit log file for appending.
func NewLogger(path string) (*Logger, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	return &Logger{file: f, path: path}, nil
}

// Log writes an audit entry, filling in the ID and timestamp if unset.
func (l *Logger) Log(entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshaling audit entry: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := l.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing audit entry: %w", err)
	}
	return nil
}

// Path returns the file the logger appends to.
func (l *Logger) Path() string {
	return l.path
}

// Close closes the audit log file.
func (l *Logger) Close() error {
	return l.file.Close()
}

// ReadEntries returns every entry in the log at path, oldest first. A
// missing log has no entries. Lines that do not parse are skipped.
func ReadEntries(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening audit log: %w", err)
	}
	defer f.Close()

	var entries []Entry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading audit log: %w", err)
	}
	return entries, nil
}
