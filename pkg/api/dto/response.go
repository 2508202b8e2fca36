package dto

import (
	"time"

	"github.com/atelier-agent-org/atelier-agent/pkg/types"
)

// SessionResponse is the response for a single session.
type SessionResponse struct {
	ID        string    `json:"id"`
	ProjectID string    `json:"project_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	Error     string    `json:"error,omitempty"`
}

// SessionListResponse is the response for listing sessions.
type SessionListResponse struct {
	Sessions []SessionResponse `json:"sessions"`
}

// MessageListResponse is the session transcript.
type MessageListResponse struct {
	Messages []types.Message `json:"messages"`
}

// FileResponse is one project file.
type FileResponse struct {
	Path     string `json:"path"`
	Content  string `json:"content,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
	Size     int64  `json:"size"`
}

// FileListResponse lists project files without their contents.
type FileListResponse struct {
	Files []FileResponse `json:"files"`
}

// HealthResponse is the response for health check.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ErrorResponse is a standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// DeleteResponse is the response for delete operations.
type DeleteResponse struct {
	Deleted bool `json:"deleted"`
}
