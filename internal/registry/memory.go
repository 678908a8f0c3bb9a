package registry

import (
	"context"
	"sync"
	"time"
)

// Ensure MemoryStore implements the Store interface
var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps registrations in process memory. Used by tests and
// single-node development setups.
type MemoryStore struct {
	mu   sync.RWMutex
	regs map[string]*Registration // key: teamID|provider|domain
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{regs: make(map[string]*Registration)}
}

func key(teamID, provider, domain string) string {
	return teamID + "|" + provider + "|" + domain
}

func (s *MemoryStore) FindByDomain(_ context.Context, teamID, provider, domain string) (*Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if reg, ok := s.regs[key(teamID, provider, domain)]; ok {
		copied := *reg
		return &copied, nil
	}
	return nil, ErrRegistrationNotFound
}

func (s *MemoryStore) FindAny(_ context.Context, teamID, provider string) (*Registration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var newest *Registration
	for _, reg := range s.regs {
		if reg.TeamID != teamID || reg.Provider != provider {
			continue
		}
		if newest == nil || reg.CreatedAt.After(newest.CreatedAt) {
			newest = reg
		}
	}
	if newest == nil {
		return nil, ErrRegistrationNotFound
	}
	copied := *newest
	return &copied, nil
}

func (s *MemoryStore) Upsert(_ context.Context, reg *Registration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := *reg
	if copied.CreatedAt.IsZero() {
		copied.CreatedAt = time.Now()
	}
	s.regs[key(reg.TeamID, reg.Provider, reg.Domain)] = &copied
	return nil
}

func (s *MemoryStore) Close() error {
	return nil
}
