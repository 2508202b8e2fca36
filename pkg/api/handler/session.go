package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atelier-agent-org/atelier-agent/pkg/api/dto"
	"github.com/atelier-agent-org/atelier-agent/pkg/api/service"
	"github.com/atelier-agent-org/atelier-agent/pkg/checkpoint"
)

// SessionHandler handles session-related requests.
type SessionHandler struct {
	svc *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(svc *service.SessionService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

func (h *SessionHandler) Create(c *gin.Context) {
	var req dto.CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
		return
	}

	session, err := h.svc.Create(c.Request.Context(), req.ProjectID, req.Goal)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusCreated, sessionResponse(session))
}

func (h *SessionHandler) List(c *gin.Context) {
	sessions := h.svc.List()

	resp := dto.SessionListResponse{
		Sessions: make([]dto.SessionResponse, 0, len(sessions)),
	}
	for _, sess := range sessions {
		resp.Sessions = append(resp.Sessions, sessionResponse(sess))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SessionHandler) Get(c *gin.Context) {
	session, err := h.svc.Get(c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

func (h *SessionHandler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Param("id")); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.DeleteResponse{Deleted: true})
}

func (h *SessionHandler) Cancel(c *gin.Context) {
	id := c.Param("id")
	if err := h.svc.Cancel(id); err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.SessionResponse{ID: id, Status: "cancelled"})
}

func (h *SessionHandler) Goal(c *gin.Context) {
	var req dto.GoalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
		return
	}

	session, err := h.svc.Goal(c.Param("id"), req.Goal)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, sessionResponse(session))
}

func (h *SessionHandler) Messages(c *gin.Context) {
	msgs, err := h.svc.Messages(c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.MessageListResponse{Messages: msgs})
}

func (h *SessionHandler) ListCheckpoints(c *gin.Context) {
	cps, err := h.svc.ListCheckpoints(c.Param("id"))
	if err != nil {
		writeServiceError(c, err)
		return
	}

	resp := dto.CheckpointListResponse{
		Checkpoints: make([]dto.CheckpointResponse, 0, len(cps)),
	}
	for i, cp := range cps {
		resp.Checkpoints = append(resp.Checkpoints, dto.CheckpointResponse{
			ID:           cp.ID,
			Timestamp:    cp.Timestamp,
			MessageCount: cp.Metadata.MessageCount,
			FileCount:    len(cp.Files),
			UserQuery:    cp.Metadata.UserQuery,
			Latest:       i == len(cps)-1,
		})
	}
	c.JSON(http.StatusOK, resp)
}

func (h *SessionHandler) Rewind(c *gin.Context) {
	id := c.Param("id")
	var req dto.RewindRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "invalid request body"})
		return
	}

	if err := h.svc.Rewind(c.Request.Context(), id, req.CheckpointID); err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "checkpoint not found"})
			return
		}
		writeServiceError(c, err)
		return
	}

	// Rewind trimmed the list; the target is now the latest checkpoint.
	cps, err := h.svc.ListCheckpoints(id)
	if err != nil {
		writeServiceError(c, err)
		return
	}
	resp := dto.RewindResponse{Success: true}
	if len(cps) > 0 {
		cp := cps[len(cps)-1]
		resp.RestoredCheckpoint = dto.CheckpointResponse{
			ID:           cp.ID,
			Timestamp:    cp.Timestamp,
			MessageCount: cp.Metadata.MessageCount,
			FileCount:    len(cp.Files),
			UserQuery:    cp.Metadata.UserQuery,
			Latest:       true,
		}
	}
	c.JSON(http.StatusOK, resp)
}

func sessionResponse(sess *service.Session) dto.SessionResponse {
	status, lastErr := sess.Status()
	return dto.SessionResponse{
		ID:        sess.ID,
		ProjectID: sess.ProjectID,
		Status:    status,
		CreatedAt: sess.CreatedAt,
		Error:     lastErr,
	}
}

func writeServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrSessionNotFound):
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "session not found"})
	case errors.Is(err, service.ErrSessionBusy):
		c.JSON(http.StatusConflict, dto.ErrorResponse{Error: "session is busy"})
	default:
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
	}
}
