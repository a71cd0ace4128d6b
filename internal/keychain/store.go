package keychain

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/benaskins/strongbox/internal/codec"
)

// Store is a SecretStore backed by a Vault and bound to one access group.
// SetData, Data, Delete and Clear are serialized by a per-Store mutex.
// Keys is not: it may observe a concurrent mutation half done.
type Store struct {
	mu          sync.Mutex
	vault       Vault
	accessGroup string
	logger      *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithAccessGroup scopes the store to an access group. Without it the store
// sees only ungrouped items.
func WithAccessGroup(group string) Option {
	return func(s *Store) {
		s.accessGroup = group
	}
}

// WithLogger sets the logger vault refusals are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates a store over v. The access group is fixed for the
// lifetime of the store.
func NewStore(v Vault, opts ...Option) *Store {
	s := &Store{
		vault:  v,
		logger: slog.With("component", "keychain"),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.accessGroup != "" {
		s.logger = s.logger.With("access_group", s.accessGroup)
	}
	return s
}

// NewDefaultStore creates an ungrouped store over the system vault. Build it
// once at startup and share it.
func NewDefaultStore(opts ...Option) *Store {
	return NewStore(NewSystemVault(ServiceName), opts...)
}

// AccessGroup returns the group the store is bound to, or "" for the ungrouped scope.
func (s *Store) AccessGroup() string {
	return s.accessGroup
}

// Keys returns the account of every item visible in the store's scope.
func (s *Store) Keys() []string {
	records, err := s.vault.Query(Query{
		AccessGroup:      s.accessGroup,
		ReturnAttributes: true,
		Limit:            MatchAll,
	})
	if err != nil {
		s.refused("query all", "", err)
		return nil
	}

	seen := make(map[string]bool, len(records))
	keys := make([]string, 0, len(records))
	for _, r := range records {
		if seen[r.Account] {
			continue
		}
		seen[r.Account] = true
		keys = append(keys, r.Account)
	}
	return keys
}

// SetData replaces the item under key. The previous item is removed before
// the new one is inserted; if the insert is refused the key is left empty.
func (s *Store) SetData(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.vault.Delete(s.query(key)); err != nil {
		s.refused("delete", key, err)
	}

	err := s.vault.Insert(Record{
		Account:     key,
		AccessGroup: s.accessGroup,
		Data:        data,
		Accessible:  AccessibleWhenUnlockedThisDeviceOnly,
	})
	if err != nil {
		s.logger.Warn("vault refused insert, key left without a value", "key", key, "error", err)
	}
}

// Data returns the payload stored under key. A missing item and a refused
// query are indistinguishable.
func (s *Store) Data(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	q := s.query(key)
	q.ReturnData = true
	records, err := s.vault.Query(q)
	if err != nil {
		s.refused("query", key, err)
		return nil, false
	}
	if len(records) == 0 {
		return nil, false
	}
	data := records[0].Data
	if data == nil {
		data = []byte{}
	}
	return data, true
}

// Delete removes the item under key if present.
func (s *Store) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.vault.Delete(s.query(key)); err != nil {
		s.refused("delete", key, err)
	}
}

// Clear removes every item in the store's scope.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.vault.Delete(Query{AccessGroup: s.accessGroup, Limit: MatchAll})
	if err != nil {
		s.refused("delete all", "", err)
	}
}

func (s *Store) query(key string) Query {
	return Query{Account: key, AccessGroup: s.accessGroup, Limit: MatchOne}
}

func (s *Store) refused(op, key string, err error) {
	if errors.Is(err, ErrItemNotFound) {
		return
	}
	s.logger.Debug("vault refused request", "op", op, "key", key, "error", err)
}

// Get decodes the value stored under key with c. It reports false if the
// key is missing or its payload does not decode.
func Get[T any](s SecretStore, key string, c codec.Codec[T]) (T, bool) {
	data, ok := s.Data(key)
	return codec.Decode(c, data, ok)
}

// Set encodes v with c and stores it under key.
func Set[T any](s SecretStore, key string, v T, c codec.Codec[T]) {
	s.SetData(key, c.Encode(v))
}
