//go:build integration && darwin

package keychain

import (
	"testing"

	"github.com/benaskins/strongbox/internal/codec"
)

// Integration tests use real macOS Keychain.
// Run with: go test -tags integration ./internal/keychain/
//
// Requires an unlocked login Keychain and an interactive session
// (first run may prompt for Keychain access approval).

func integrationStore() *Store {
	return NewStore(NewSystemVault("com.strongbox.test"))
}

func cleanupIntegration(t *testing.T, s *Store, keys ...string) {
	t.Helper()
	for _, k := range keys {
		s.Delete(k)
	}
}

func TestKeychainSetAndGet(t *testing.T) {
	s := integrationStore()
	key := "test/integration-set-get"
	defer cleanupIntegration(t, s, key)

	Set(s, key, "hello-keychain", codec.String)

	val, ok := Get(s, key, codec.String)
	if !ok {
		t.Fatal("expected value")
	}
	if val != "hello-keychain" {
		t.Errorf("expected 'hello-keychain', got %q", val)
	}
}

func TestKeychainOverwrite(t *testing.T) {
	s := integrationStore()
	key := "test/integration-overwrite"
	defer cleanupIntegration(t, s, key)

	Set(s, key, 1, codec.Int)
	Set(s, key, 2, codec.Int)

	val, ok := Get(s, key, codec.Int)
	if !ok || val != 2 {
		t.Errorf("expected 2, got %d, %v", val, ok)
	}
}

func TestKeychainDelete(t *testing.T) {
	s := integrationStore()
	key := "test/integration-delete"

	Set(s, key, "to-delete", codec.String)
	s.Delete(key)
	s.Delete(key)

	if _, ok := s.Data(key); ok {
		t.Error("expected no value after delete")
	}
}

func TestKeychainKeysAndClear(t *testing.T) {
	s := integrationStore()
	keys := []string{"test/integration-list-a", "test/integration-list-b"}
	defer cleanupIntegration(t, s, keys...)

	for _, k := range keys {
		Set(s, k, true, codec.Bool)
	}

	found := make(map[string]bool)
	for _, k := range s.Keys() {
		found[k] = true
	}
	for _, k := range keys {
		if !found[k] {
			t.Errorf("expected %q in keys, not found", k)
		}
	}

	s.Clear()
	if listed := s.Keys(); len(listed) != 0 {
		t.Errorf("expected no keys after clear, got %v", listed)
	}
}
