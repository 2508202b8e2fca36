package dto

import "time"

// CheckpointResponse represents a checkpoint summary.
type CheckpointResponse struct {
	ID           string    `json:"id"`
	Timestamp    time.Time `json:"timestamp"`
	MessageCount int       `json:"message_count"`
	FileCount    int       `json:"file_count"`
	UserQuery    string    `json:"user_query,omitempty"`
	Latest       bool      `json:"latest"`
}

// CheckpointListResponse contains the list of checkpoints.
type CheckpointListResponse struct {
	Checkpoints []CheckpointResponse `json:"checkpoints"`
}

// RewindResponse contains the result of a rewind operation.
type RewindResponse struct {
	Success            bool               `json:"success"`
	RestoredCheckpoint CheckpointResponse `json:"restored_checkpoint"`
}
