package types

import "time"

// FileRecord is one file of the project's virtual file set.
type FileRecord struct {
	ID        string    `json:"id"`
	Path      string    `json:"path"`
	Name      string    `json:"name"`
	Content   string    `json:"content"`
	MimeType  string    `json:"mime_type,omitempty"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CloneFiles deep-copies a file slice.
func CloneFiles(files []FileRecord) []FileRecord {
	if files == nil {
		return nil
	}
	out := make([]FileRecord, len(files))
	copy(out, files)
	return out
}

// CheckpointMetadata carries display information about a checkpoint.
type CheckpointMetadata struct {
	MessageCount int    `json:"message_count"`
	UserQuery    string `json:"user_query"`
}

// Checkpoint is an immutable snapshot of conversation and file state,
// usable for rollback. Messages and Files are deep copies taken at
// creation time.
type Checkpoint struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	Messages  []Message          `json:"messages"`
	Files     []FileRecord       `json:"files"`
	Metadata  CheckpointMetadata `json:"metadata"`
}

// Clone creates a deep copy of the Checkpoint
func (c Checkpoint) Clone() Checkpoint {
	clone := c
	clone.Messages = CloneMessages(c.Messages)
	clone.Files = CloneFiles(c.Files)
	return clone
}

// CloneCheckpoints deep-copies a checkpoint slice.
func CloneCheckpoints(cps []Checkpoint) []Checkpoint {
	if cps == nil {
		return nil
	}
	out := make([]Checkpoint, len(cps))
	for i, cp := range cps {
		out[i] = cp.Clone()
	}
	return out
}

// SessionState is the per-project persisted value: the live conversation
// plus the checkpoint list.
type SessionState struct {
	Messages     []Message    `json:"messages"`
	Checkpoints  []Checkpoint `json:"checkpoints"`
	LastModified time.Time    `json:"lastModified"`
}

// Clone creates a deep copy of the SessionState
func (s *SessionState) Clone() *SessionState {
	if s == nil {
		return nil
	}
	return &SessionState{
		Messages:     CloneMessages(s.Messages),
		Checkpoints:  CloneCheckpoints(s.Checkpoints),
		LastModified: s.LastModified,
	}
}
