package store

import (
	"context"
	"sync"

	"github.com/atelier-agent-org/atelier-agent/pkg/types"
)

// MemoryStore is the fast cache tier: an in-process map of deep-copied
// session states. Contents do not survive a restart.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]*types.SessionState
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*types.SessionState),
	}
}

func (s *MemoryStore) Load(ctx context.Context, projectID string) (*types.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.sessions[projectID]
	if !ok {
		return nil, ErrNotFound
	}
	return state.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, projectID string, state *types.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[projectID] = state.Clone()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, projectID)
	return nil
}
