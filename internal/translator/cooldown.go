package translator

import (
	"context"
	"sync"
	"time"
)

// CooldownStore persists when each credential last hit a temporary failure.
// SetCooldown never moves a timestamp backwards.
type CooldownStore interface {
	Cooldowns(ctx context.Context) (map[string]time.Time, error)
	SetCooldown(ctx context.Context, credentialID string, at time.Time) error
	ClearCooldown(ctx context.Context, credentialID string) error
}

// MemoryCooldownStore is a process-local CooldownStore
type MemoryCooldownStore struct {
	mu sync.RWMutex
	m  map[string]time.Time
}

func NewMemoryCooldownStore() *MemoryCooldownStore {
	return &MemoryCooldownStore{m: make(map[string]time.Time)}
}

func (s *MemoryCooldownStore) Cooldowns(_ context.Context) (map[string]time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]time.Time, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out, nil
}

func (s *MemoryCooldownStore) SetCooldown(_ context.Context, credentialID string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.m[credentialID]; ok && prev.After(at) {
		return nil
	}
	s.m[credentialID] = at
	return nil
}

func (s *MemoryCooldownStore) ClearCooldown(_ context.Context, credentialID string) error {
	s.mu.Lock()
	delete(s.m, credentialID)
	s.mu.Unlock()
	return nil
}
