package repository

import (
	"context"
	"sync"

	"defi_portfolio/internal/entity"
	"defi_portfolio/internal/port"
)

// InMemoryRegistryStore is a map-backed RegistryStore. It stands in for the
// persistent store collaborator when none is wired and backs tests.
type InMemoryRegistryStore struct {
	mu       sync.RWMutex
	verified map[entity.Network]map[string]entity.VerifiedToken
	unlisted map[entity.Network]map[string]entity.UnlistedToken
	metadata map[entity.Network]map[string]entity.TokenMetadata
}

// NewInMemoryRegistryStore creates an empty in-memory registry store.
func NewInMemoryRegistryStore() *InMemoryRegistryStore {
	return &InMemoryRegistryStore{
		verified: make(map[entity.Network]map[string]entity.VerifiedToken),
		unlisted: make(map[entity.Network]map[string]entity.UnlistedToken),
		metadata: make(map[entity.Network]map[string]entity.TokenMetadata),
	}
}

var _ port.RegistryStore = (*InMemoryRegistryStore)(nil)

func (s *InMemoryRegistryStore) LoadVerified(_ context.Context, network entity.Network) ([]entity.VerifiedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.VerifiedToken, 0, len(s.verified[network]))
	for _, t := range s.verified[network] {
		out = append(out, t)
	}
	return out, nil
}

func (s *InMemoryRegistryStore) LoadUnlisted(_ context.Context, network entity.Network) ([]entity.UnlistedToken, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.UnlistedToken, 0, len(s.unlisted[network]))
	for _, t := range s.unlisted[network] {
		out = append(out, t)
	}
	return out, nil
}

func (s *InMemoryRegistryStore) LoadMetadata(_ context.Context, network entity.Network) ([]entity.TokenMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]entity.TokenMetadata, 0, len(s.metadata[network]))
	for _, m := range s.metadata[network] {
		out = append(out, m)
	}
	return out, nil
}

func (s *InMemoryRegistryStore) WriteVerified(_ context.Context, network entity.Network, token entity.VerifiedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.verified[network] == nil {
		s.verified[network] = make(map[string]entity.VerifiedToken)
	}
	s.verified[network][entity.CanonicalAddress(token.Address)] = token
	return nil
}

func (s *InMemoryRegistryStore) WriteUnlisted(_ context.Context, network entity.Network, token entity.UnlistedToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.unlisted[network] == nil {
		s.unlisted[network] = make(map[string]entity.UnlistedToken)
	}
	s.unlisted[network][entity.CanonicalAddress(token.Address)] = token
	return nil
}

func (s *InMemoryRegistryStore) WriteMetadata(_ context.Context, network entity.Network, meta entity.TokenMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.metadata[network] == nil {
		s.metadata[network] = make(map[string]entity.TokenMetadata)
	}
	s.metadata[network][entity.CanonicalAddress(meta.Address)] = meta
	return nil
}

func (s *InMemoryRegistryStore) RemoveUnlisted(_ context.Context, network entity.Network, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.unlisted[network], entity.CanonicalAddress(address))
	return nil
}
