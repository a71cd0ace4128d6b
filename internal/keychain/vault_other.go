//go:build !darwin

package keychain

// ServiceName is the service attribute for all strongbox secrets.
const ServiceName = "com.strongbox"

// NewSystemVault returns a MemoryVault on non-darwin platforms.
// The macOS Keychain is not available outside of macOS; secrets are
// stored in memory only and will not persist across restarts.
func NewSystemVault(service string) *MemoryVault {
	return NewMemoryVault()
}
