package credential

import (
	"context"
	"sync"
)

// MemoryStore keeps credentials in process memory. Suitable for tests and
// short-lived tools; nothing survives a restart.
type MemoryStore struct {
	mu      sync.RWMutex
	pair    TokenPair
	profile []byte
}

// NewMemoryStore describes the newmemorystore operation and its observable behavior.
//
// NewMemoryStore does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// AccessToken describes the accesstoken operation and its observable behavior.
//
// AccessToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *MemoryStore) AccessToken(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pair.AccessToken, nil
}

// RefreshToken describes the refreshtoken operation and its observable behavior.
//
// RefreshToken does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *MemoryStore) RefreshToken(context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.pair.RefreshToken, nil
}

// Profile describes the profile operation and its observable behavior.
//
// Profile does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
func (m *MemoryStore) Profile(context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.profile == nil {
		return nil, nil
	}
	out := make([]byte, len(m.profile))
	copy(out, m.profile)
	return out, nil
}

// SetSession describes the setsession operation and its observable behavior.
//
// SetSession may return an error when input validation or dependency calls fail.
func (m *MemoryStore) SetSession(_ context.Context, pair TokenPair, profile []byte) error {
	stored := make([]byte, len(profile))
	copy(stored, profile)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = pair
	m.profile = stored
	return nil
}

// SetTokens describes the settokens operation and its observable behavior.
//
// SetTokens may return an error when input validation or dependency calls fail.
func (m *MemoryStore) SetTokens(_ context.Context, pair TokenPair) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = pair
	return nil
}

// SetProfile describes the setprofile operation and its observable behavior.
//
// SetProfile may return an error when input validation or dependency calls fail.
func (m *MemoryStore) SetProfile(_ context.Context, profile []byte) error {
	stored := make([]byte, len(profile))
	copy(stored, profile)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.profile = stored
	return nil
}

// Clear describes the clear operation and its observable behavior.
//
// Clear may return an error when input validation or dependency calls fail.
func (m *MemoryStore) Clear(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pair = TokenPair{}
	m.profile = nil
	return nil
}
