// Package tenant holds per-tenant custom provider configurations. Tenants
// may bring their own vendor credentials; the pipeline tries those before
// the default pool. Credentials are stored sealed and only decrypted when
// that vendor's turn actually comes up.
package tenant

import (
	"fmt"
	"sync"

	"github.com/relayforge/relayforge/internal/catalog"
	"github.com/relayforge/relayforge/internal/domain"
)

// ProviderConfig is one (vendor, sealed credential) tuple in a tenant's
// ordered provider list.
type ProviderConfig struct {
	ID     string
	Vendor catalog.Vendor
	// Sealed is the encrypted credential produced by Cipher.Seal.
	Sealed string
}

// Store maps tenant ids to their ordered provider configurations.
type Store struct {
	mu      sync.RWMutex
	cipher  *Cipher
	configs map[string][]ProviderConfig
}

// NewStore creates a store decrypting credentials with the given cipher.
func NewStore(cipher *Cipher) *Store {
	return &Store{
		cipher:  cipher,
		configs: make(map[string][]ProviderConfig),
	}
}

// SetProviders replaces a tenant's provider list. Order is significant; the
// pipeline attempts configs in the order given here.
func (s *Store) SetProviders(tenantID string, configs []ProviderConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[tenantID] = configs
}

// ProvidersFor returns a tenant's provider list, still sealed.
func (s *Store) ProvidersFor(tenantID string) []ProviderConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.configs[tenantID]
}

// Decrypt opens one config's sealed credential.
func (s *Store) Decrypt(cfg ProviderConfig) (domain.Credential, error) {
	cred, err := s.cipher.Open(cfg.Sealed)
	if err != nil {
		return domain.Credential{}, fmt.Errorf("decrypt credential %s: %w", cfg.ID, err)
	}
	cred.ID = cfg.ID
	return cred, nil
}

// Seal encrypts a credential for storage in a ProviderConfig.
func (s *Store) Seal(cred domain.Credential) (string, error) {
	return s.cipher.Seal(cred)
}
