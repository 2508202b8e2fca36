package dto

// CreateSessionRequest is the request body for opening a session.
type CreateSessionRequest struct {
	ProjectID string `json:"project_id" binding:"required"`
	Goal      string `json:"goal,omitempty"` // Optional: if empty, the session starts idle
}

// GoalRequest is the request body for posting a goal to a session.
type GoalRequest struct {
	Goal string `json:"goal" binding:"required"`
}

// RewindRequest names the checkpoint to restore.
type RewindRequest struct {
	CheckpointID string `json:"checkpoint_id" binding:"required"`
}
