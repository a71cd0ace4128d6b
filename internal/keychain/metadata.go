package keychain

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// SecretMetadata tracks rotation and staleness info for a secret.
type SecretMetadata struct {
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at,omitempty"`
	LastRotated time.Time `json:"last_rotated,omitempty"`
	RotateEvery string    `json:"rotate_every,omitempty"`
}

// RotationDue reports whether the secret is older than its rotation
// interval at now. Secrets without an interval are never due.
func (m *SecretMetadata) RotationDue(now time.Time) bool {
	if m.RotateEvery == "" {
		return false
	}
	every, err := ParseInterval(m.RotateEvery)
	if err != nil {
		return false
	}
	last := m.LastRotated
	if last.IsZero() {
		last = m.UpdatedAt
	}
	if last.IsZero() {
		last = m.CreatedAt
	}
	return now.Sub(last) >= every
}

// ParseInterval parses a rotation interval. It accepts Go durations
// ("720h") and whole days ("30d").
func ParseInterval(s string) (time.Duration, error) {
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("invalid interval %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid interval %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid interval %q", s)
	}
	return d, nil
}

var errCorruptMetadata = errors.New("corrupt metadata file")

type groupMetadata map[string]map[string]*SecretMetadata

// metadataFile is the state shared by every group view of one file.
type metadataFile struct {
	mu     sync.RWMutex
	path   string
	groups groupMetadata
}

// read loads the file. A missing file is empty.
func (f *metadataFile) read() (groupMetadata, error) {
	groups := make(groupMetadata)
	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return groups, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading metadata: %w", err)
	}
	if err := json.Unmarshal(data, &groups); err != nil {
		return nil, fmt.Errorf("%w: %v", errCorruptMetadata, err)
	}
	return groups, nil
}

// modify re-reads the file under the advisory lock, applies fn, and writes
// the result back through a temp file and rename. Changes made by other
// processes since this one loaded the file are kept.
func (f *metadataFile) modify(fn func(groupMetadata) bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	unlock, err := lockFile(f.path + ".lock")
	if err != nil {
		return err
	}
	defer unlock()

	groups, err := f.read()
	if err != nil {
		slog.Warn("metadata file unreadable, rewriting from memory", "path", f.path, "error", err)
		groups = f.groups
	}
	if !fn(groups) {
		f.groups = groups
		return nil
	}

	data, err := json.MarshalIndent(groups, "", "  ")
	if err != nil {
		return err
	}
	tmpPath := f.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, f.path); err != nil {
		return err
	}
	f.groups = groups
	return nil
}

// MetadataStore persists secret metadata to a JSON file. Entries are kept
// per access group; a MetadataStore only sees the group it was opened for.
type MetadataStore struct {
	file  *metadataFile
	group string
}

// NewMetadataStore loads or creates a metadata file and returns the view of
// its ungrouped entries.
func NewMetadataStore(path string) (*MetadataStore, error) {
	f := &metadataFile{path: path}
	groups, err := f.read()
	if err != nil {
		if !errors.Is(err, errCorruptMetadata) {
			return nil, err
		}
		slog.Warn("corrupt metadata file, starting fresh", "path", path, "error", err)
		groups = make(groupMetadata)
	}
	f.groups = groups
	return &MetadataStore{file: f}, nil
}

// Group returns a view of the same file scoped to an access group.
func (ms *MetadataStore) Group(group string) *MetadataStore {
	return &MetadataStore{file: ms.file, group: group}
}

// Path returns the file the metadata is persisted to.
func (ms *MetadataStore) Path() string {
	return ms.file.path
}

// Get returns a copy of the metadata for a key, or nil if not tracked.
func (ms *MetadataStore) Get(key string) *SecretMetadata {
	ms.file.mu.RLock()
	defer ms.file.mu.RUnlock()
	m, ok := ms.file.groups[ms.group][key]
	if !ok {
		return nil
	}
	cp := *m
	return &cp
}

// Set records metadata for a key and persists to disk.
func (ms *MetadataStore) Set(key string, meta *SecretMetadata) error {
	cp := *meta
	return ms.file.modify(func(groups groupMetadata) bool {
		ms.entries(groups)[key] = &cp
		return true
	})
}

// Update applies fn to the metadata for key, creating it with CreatedAt set
// to now if it is not tracked yet.
func (ms *MetadataStore) Update(key string, now time.Time, fn func(*SecretMetadata)) error {
	return ms.file.modify(func(groups groupMetadata) bool {
		entries := ms.entries(groups)
		m, ok := entries[key]
		if !ok {
			m = &SecretMetadata{CreatedAt: now}
			entries[key] = m
		}
		fn(m)
		return true
	})
}

// Delete removes metadata for a key.
func (ms *MetadataStore) Delete(key string) error {
	return ms.file.modify(func(groups groupMetadata) bool {
		if _, ok := groups[ms.group][key]; !ok {
			return false
		}
		delete(groups[ms.group], key)
		return true
	})
}

// Reset drops all metadata in the group.
func (ms *MetadataStore) Reset() error {
	return ms.file.modify(func(groups groupMetadata) bool {
		if _, ok := groups[ms.group]; !ok {
			return false
		}
		delete(groups, ms.group)
		return true
	})
}

// All returns copies of all metadata entries in the group.
func (ms *MetadataStore) All() map[string]*SecretMetadata {
	ms.file.mu.RLock()
	defer ms.file.mu.RUnlock()
	entries := ms.file.groups[ms.group]
	result := make(map[string]*SecretMetadata, len(entries))
	for k, v := range entries {
		cp := *v
		result[k] = &cp
	}
	return result
}

func (ms *MetadataStore) entries(groups groupMetadata) map[string]*SecretMetadata {
	entries, ok := groups[ms.group]
	if !ok {
		entries = make(map[string]*SecretMetadata)
		groups[ms.group] = entries
	}
	return entries
}
