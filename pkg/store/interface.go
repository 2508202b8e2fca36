package store

import (
	"context"
	"errors"

	"github.com/atelier-agent-org/atelier-agent/pkg/types"
)

var ErrNotFound = errors.New("not found")

// Store persists per-project session state: the live conversation plus
// the checkpoint list.
type Store interface {
	// Load returns the session state for a project, or ErrNotFound.
	Load(ctx context.Context, projectID string) (*types.SessionState, error)

	// Save durably stores the session state for a project.
	Save(ctx context.Context, projectID string, state *types.SessionState) error

	// Delete removes the session state for a project. Deleting a missing
	// project is not an error.
	Delete(ctx context.Context, projectID string) error
}
