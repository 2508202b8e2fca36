package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atelier-agent-org/atelier-agent/pkg/api/dto"
	"github.com/atelier-agent-org/atelier-agent/pkg/api/service"
	"github.com/atelier-agent-org/atelier-agent/pkg/vfs"
)

// FileHandler exposes a session's project files.
type FileHandler struct {
	svc *service.SessionService
}

func NewFileHandler(svc *service.SessionService) *FileHandler {
	return &FileHandler{svc: svc}
}

// List returns file metadata, optionally filtered by a glob pattern via
// the "pattern" query parameter.
func (h *FileHandler) List(c *gin.Context) {
	records, err := h.svc.ListFiles(c.Param("id"), c.Query("pattern"))
	if err != nil {
		if errors.Is(err, service.ErrSessionNotFound) {
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "session not found"})
			return
		}
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	resp := dto.FileListResponse{Files: make([]dto.FileResponse, 0, len(records))}
	for _, rec := range records {
		resp.Files = append(resp.Files, dto.FileResponse{
			Path:     rec.Path,
			MimeType: rec.MimeType,
			Size:     rec.Size,
		})
	}
	c.JSON(http.StatusOK, resp)
}

// Get returns one file with its content. The path comes from the
// wildcard segment of the route.
func (h *FileHandler) Get(c *gin.Context) {
	path := c.Param("path")
	rec, err := h.svc.GetFile(c.Param("id"), path)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSessionNotFound):
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "session not found"})
		case errors.Is(err, vfs.ErrFileNotFound):
			c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "file not found"})
		default:
			c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		}
		return
	}

	c.JSON(http.StatusOK, dto.FileResponse{
		Path:     rec.Path,
		Content:  rec.Content,
		MimeType: rec.MimeType,
		Size:     rec.Size,
	})
}
