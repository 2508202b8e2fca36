package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/atelier-agent-org/atelier-agent/pkg/types"
)

// FSStore is the durable tier. One JSON document per project:
//
//	rootDir/
//	└── sessions/
//	    └── {projectID}.json
//
// Writes go through a temp file and rename so a crash mid-write never
// leaves a truncated document behind.
type FSStore struct {
	rootDir string
	mu      sync.RWMutex
}

func NewFSStore(rootDir string) (*FSStore, error) {
	dir := filepath.Join(rootDir, "sessions")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return &FSStore{rootDir: rootDir}, nil
}

func (s *FSStore) Load(ctx context.Context, projectID string) (*types.SessionState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	data, err := os.ReadFile(s.sessionPath(projectID))
	if os.IsNotExist(err) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var state types.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("corrupt session document: %w", err)
	}
	return &state, nil
}

func (s *FSStore) Save(ctx context.Context, projectID string, state *types.SessionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	path := s.sessionPath(projectID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("commit session: %w", err)
	}
	return nil
}

func (s *FSStore) Delete(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.sessionPath(projectID))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (s *FSStore) sessionPath(projectID string) string {
	// Project IDs come from callers; keep the filename flat.
	safe := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, projectID)
	return filepath.Join(s.rootDir, "sessions", safe+".json")
}
