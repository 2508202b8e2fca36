package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atelier-agent-org/atelier-agent/pkg/api/dto"
)

// Health reports server liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, dto.HealthResponse{
		Status:  "healthy",
		Version: "1.0.0",
	})
}
