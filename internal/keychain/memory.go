package keychain

import (
	"fmt"
	"slices"
	"sort"
	"sync"
)

// MemoryStore is an in-memory implementation of SecretStore for testing.
type MemoryStore struct {
	mu      sync.Mutex
	secrets map[string][]byte
}

// NewMemoryStore creates a new in-memory secret store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{secrets: make(map[string][]byte)}
}

func (s *MemoryStore) Keys() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	keys := make([]string, 0, len(s.secrets))
	for k := range s.secrets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (s *MemoryStore) Data(key string) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	val, ok := s.secrets[key]
	if !ok {
		return nil, false
	}
	return slices.Clone(val), true
}

func (s *MemoryStore) SetData(key string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if data == nil {
		data = []byte{}
	}
	s.secrets[key] = slices.Clone(data)
}

func (s *MemoryStore) Delete(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.secrets, key)
}

func (s *MemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.secrets)
}

type itemKey struct {
	group   string
	account string
}

// MemoryVault is an in-memory Vault. It refuses duplicate inserts and
// reports ErrItemNotFound like the Keychain does, so a Store over it behaves
// as it would over the real thing.
type MemoryVault struct {
	mu    sync.Mutex
	items map[itemKey]Record
}

// NewMemoryVault creates an empty in-memory vault.
func NewMemoryVault() *MemoryVault {
	return &MemoryVault{items: make(map[itemKey]Record)}
}

// matching returns the keys selected by q, ordered by group then account.
// An empty group matches only ungrouped items.
func (v *MemoryVault) matching(q Query) []itemKey {
	var keys []itemKey
	for k := range v.items {
		if q.Account != "" && k.account != q.Account {
			continue
		}
		if k.group != q.AccessGroup {
			continue
		}
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].group != keys[j].group {
			return keys[i].group < keys[j].group
		}
		return keys[i].account < keys[j].account
	})
	return keys
}

func (v *MemoryVault) Query(q Query) ([]Record, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	keys := v.matching(q)
	if len(keys) == 0 {
		return nil, ErrItemNotFound
	}
	if q.Limit == MatchOne {
		keys = keys[:1]
	}

	records := make([]Record, 0, len(keys))
	for _, k := range keys {
		r := v.items[k]
		if q.ReturnData {
			r.Data = slices.Clone(r.Data)
		} else {
			r.Data = nil
		}
		records = append(records, r)
	}
	return records, nil
}

func (v *MemoryVault) Insert(r Record) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	k := itemKey{group: r.AccessGroup, account: r.Account}
	if _, exists := v.items[k]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateItem, r.Account)
	}
	r.Data = slices.Clone(r.Data)
	if r.Data == nil {
		r.Data = []byte{}
	}
	v.items[k] = r
	return nil
}

func (v *MemoryVault) Delete(q Query) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	keys := v.matching(q)
	if len(keys) == 0 {
		return ErrItemNotFound
	}
	for _, k := range keys {
		delete(v.items, k)
	}
	return nil
}

// Len returns the number of items across all groups.
func (v *MemoryVault) Len() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.items)
}
