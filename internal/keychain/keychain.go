// Package keychain provides typed secret storage over a platform vault.
//
// Secrets are stored as generic passwords identified by:
//   - Account: the secret key (e.g. "chat/database-url")
//   - Access group: an optional partition; a Store only sees its own group
//
// Items are written with AccessibleWhenUnlockedThisDeviceOnly: never synced,
// never exported, never readable while the device is locked.
//
// A Store never returns errors to its caller. Vault refusals collapse into
// absent results or silent no-ops, so a Get after a Set may still come back
// empty and callers that need durability must read back what they wrote.
package keychain

import "errors"

var (
	// ErrItemNotFound is returned by a Vault when no item matches a request.
	ErrItemNotFound = errors.New("item not found")

	// ErrDuplicateItem is returned by Vault.Insert when the account already
	// exists in the access group.
	ErrDuplicateItem = errors.New("duplicate item")
)

// Accessibility is the vault-enforced rule for when an item may be read.
type Accessibility int

const (
	// AccessibleWhenUnlockedThisDeviceOnly allows reads only while the device
	// is unlocked, and never migrates the item to another device.
	AccessibleWhenUnlockedThisDeviceOnly Accessibility = iota + 1
)

func (a Accessibility) String() string {
	switch a {
	case AccessibleWhenUnlockedThisDeviceOnly:
		return "when-unlocked-this-device-only"
	default:
		return "unspecified"
	}
}

// MatchLimit bounds how many records a Query returns.
type MatchLimit int

const (
	MatchOne MatchLimit = iota
	MatchAll
)

// Query filters generic password items. Empty fields match everything.
type Query struct {
	Account          string
	AccessGroup      string
	ReturnData       bool
	ReturnAttributes bool
	Limit            MatchLimit
}

// Record is a generic password item as seen across the Vault boundary.
type Record struct {
	Account     string
	AccessGroup string
	Data        []byte
	Accessible  Accessibility
}

// Vault is the opaque secure storage a Store is driven through. Each call
// is a single request to the backing service.
type Vault interface {
	// Query returns matching records. No match is either an empty result
	// or ErrItemNotFound.
	Query(q Query) ([]Record, error)
	// Insert adds a record, failing with ErrDuplicateItem if the account is
	// already present in the access group.
	Insert(r Record) error
	// Delete removes every record matching q.
	Delete(q Query) error
}

// SecretStore is the interface for secret storage operations. Store is the
// vault-backed implementation; MemoryStore substitutes in tests.
type SecretStore interface {
	// Keys lists the stored keys. Order is not guaranteed.
	Keys() []string
	// Data returns the payload stored under key.
	Data(key string) ([]byte, bool)
	// SetData replaces the payload stored under key.
	SetData(key string, data []byte)
	// Delete removes key. Removing a missing key is a no-op.
	Delete(key string)
	// Clear removes every key.
	Clear()
}
