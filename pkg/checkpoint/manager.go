// Package checkpoint owns the ordered rollback-point list of a project.
package checkpoint

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/atelier-agent-org/atelier-agent/pkg/types"
)

var ErrNotFound = errors.New("checkpoint not found")

// Manager exclusively owns the checkpoint list for one project. The list
// is always ordered by timestamp; that order is the sole key for "is this
// checkpoint current" and "what gets discarded on revert".
type Manager struct {
	mu          sync.Mutex
	checkpoints []types.Checkpoint
	log         *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{log: logger}
}

// Create snapshots conversation and file state. Both inputs are
// deep-copied, so later mutation of the live session cannot leak into the
// snapshot.
func (m *Manager) Create(userQuery string, messages []types.Message, files []types.FileRecord) string {
	cp := types.Checkpoint{
		ID:        types.GenerateCheckpointID(),
		Timestamp: time.Now(),
		Messages:  types.CloneMessages(messages),
		Files:     types.CloneFiles(files),
		Metadata: types.CheckpointMetadata{
			MessageCount: len(messages),
			UserQuery:    userQuery,
		},
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints = append(m.checkpoints, cp)
	m.log.Debug("checkpoint created", "id", cp.ID, "messages", cp.Metadata.MessageCount)
	return cp.ID
}

// Revert returns a deep copy of the snapshot and discards every
// checkpoint with a strictly later timestamp. Reverting is destructive to
// future history, not a branch; reverting twice to the same id restores
// identical state.
func (m *Manager) Revert(id string) (types.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := m.indexOf(id)
	if idx < 0 {
		return types.Checkpoint{}, ErrNotFound
	}

	target := m.checkpoints[idx]
	cut := len(m.checkpoints)
	for i := idx + 1; i < len(m.checkpoints); i++ {
		if m.checkpoints[i].Timestamp.After(target.Timestamp) {
			cut = i
			break
		}
	}

	discarded := len(m.checkpoints) - cut
	m.checkpoints = m.checkpoints[:cut]
	m.log.Info("reverted to checkpoint", "id", id, "discarded", discarded)

	return target.Clone(), nil
}

// IsLatest reports whether the id names the most recent checkpoint.
func (m *Manager) IsLatest(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := len(m.checkpoints)
	return n > 0 && m.checkpoints[n-1].ID == id
}

// List returns deep copies of all checkpoints in timestamp order.
func (m *Manager) List() []types.Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return types.CloneCheckpoints(m.checkpoints)
}

// Load replaces the list with persisted checkpoints (session restore).
func (m *Manager) Load(cps []types.Checkpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints = types.CloneCheckpoints(cps)
}

func (m *Manager) indexOf(id string) int {
	for i, cp := range m.checkpoints {
		if cp.ID == id {
			return i
		}
	}
	return -1
}
