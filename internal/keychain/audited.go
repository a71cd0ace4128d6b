package keychain

import (
	"bytes"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/benaskins/strongbox/internal/audit"
)

// AuditedStore wraps a SecretStore and adds audit logging and metadata
// tracking. It satisfies SecretStore itself, so it can stand in wherever the
// plain store is used.
type AuditedStore struct {
	inner    SecretStore
	audit    *audit.Logger
	metadata *MetadataStore
	actor    string // "cli" or "browse"
	group    string
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuditedStore wraps an existing store with audit logging.
func NewAuditedStore(inner SecretStore, auditLog *audit.Logger, metadata *MetadataStore, actor string) *AuditedStore {
	s := &AuditedStore{
		inner:    inner,
		audit:    auditLog,
		metadata: metadata,
		actor:    actor,
		logger:   slog.With("component", "audited-store"),
		now:      func() time.Time { return time.Now().UTC() },
	}
	if scoped, ok := inner.(interface{ AccessGroup() string }); ok {
		s.group = scoped.AccessGroup()
	}
	s.metadata = metadata.Group(s.group)
	return s
}

// Audit logging is best-effort: a failure to log never blocks the operation.
func (s *AuditedStore) log(e audit.Entry) {
	e.Actor = s.actor
	e.AccessGroup = s.group
	if err := s.audit.Log(e); err != nil {
		s.logger.Warn("audit log write failed", "action", e.Action, "key", e.Key, "error", err)
	}
}

func (s *AuditedStore) Keys() []string {
	return s.inner.Keys()
}

func (s *AuditedStore) Data(key string) ([]byte, bool) {
	data, ok := s.inner.Data(key)
	if !ok {
		return nil, false
	}
	s.log(audit.Entry{Action: audit.ActionSecretRead, Key: key, Trigger: "manual"})
	return data, true
}

func (s *AuditedStore) SetData(key string, data []byte) {
	s.inner.SetData(key, data)
	s.log(audit.Entry{Action: audit.ActionSecretWrite, Key: key, Trigger: "manual"})
	s.touch(key)
}

func (s *AuditedStore) Delete(key string) {
	s.inner.Delete(key)
	s.log(audit.Entry{Action: audit.ActionSecretDelete, Key: key, Trigger: "manual"})
	if err := s.metadata.Delete(key); err != nil {
		s.logger.Warn("deleting metadata", "key", key, "error", err)
	}
}

func (s *AuditedStore) Clear() {
	s.inner.Clear()
	s.log(audit.Entry{Action: audit.ActionSecretClear, Trigger: "manual"})
	if err := s.metadata.Reset(); err != nil {
		s.logger.Warn("resetting metadata", "error", err)
	}
}

// Import stores every pair in values and records them as imported.
func (s *AuditedStore) Import(values map[string][]byte, source string) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		s.inner.SetData(key, values[key])
		s.log(audit.Entry{Action: audit.ActionSecretImport, Key: key, Trigger: "import", Command: source})
		s.touch(key)
	}
}

// SetRotation sets the rotation interval for key, e.g. "30d" or "12h".
func (s *AuditedStore) SetRotation(key, every string) error {
	if _, err := ParseInterval(every); err != nil {
		return err
	}
	return s.metadata.Update(key, s.now(), func(m *SecretMetadata) {
		m.RotateEvery = every
	})
}

// Rotate runs a rotation command, captures its output, stores the new value,
// and logs the rotation. The stored value is read back, since the store
// does not report refused writes.
func (s *AuditedStore) Rotate(key, command string) error {
	output, err := runRotationCommand(command)
	if err != nil {
		s.log(audit.Entry{
			Action:  audit.ActionSecretRotate,
			Key:     key,
			Trigger: "hook",
			Command: command,
			Error:   err.Error(),
		})
		return fmt.Errorf("rotation command failed: %w", err)
	}

	value := []byte(output)
	s.inner.SetData(key, value)
	if got, ok := s.inner.Data(key); !ok || !bytes.Equal(got, value) {
		err := fmt.Errorf("rotated value for %q was not persisted", key)
		s.log(audit.Entry{
			Action:  audit.ActionSecretRotate,
			Key:     key,
			Trigger: "hook",
			Command: command,
			Error:   err.Error(),
		})
		return err
	}

	s.log(audit.Entry{
		Action:  audit.ActionSecretRotate,
		Key:     key,
		Trigger: "hook",
		Command: command,
	})

	now := s.now()
	return s.metadata.Update(key, now, func(m *SecretMetadata) {
		m.UpdatedAt = now
		m.LastRotated = now
	})
}

// Stale returns the keys whose rotation interval has elapsed at now, sorted.
func (s *AuditedStore) Stale(now time.Time) []string {
	var stale []string
	for key, m := range s.metadata.All() {
		if m.RotationDue(now) {
			stale = append(stale, key)
		}
	}
	sort.Strings(stale)
	return stale
}

// Metadata returns the metadata for the store's access group.
func (s *AuditedStore) Metadata() *MetadataStore {
	return s.metadata
}

func (s *AuditedStore) touch(key string) {
	now := s.now()
	err := s.metadata.Update(key, now, func(m *SecretMetadata) {
		m.UpdatedAt = now
	})
	if err != nil {
		s.logger.Warn("saving metadata", "key", key, "error", err)
	}
}
