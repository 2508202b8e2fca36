package api

import (
	"github.com/atelier-agent-org/atelier-agent/pkg/api/handler"
	"github.com/atelier-agent-org/atelier-agent/pkg/api/middleware"
)

// setupRoutes configures all API routes.
func (s *Server) setupRoutes() {
	// Health (no auth required)
	s.engine.GET("/health", handler.Health)

	v1 := s.engine.Group("/api/v1")
	v1.Use(middleware.Auth(s.config.APIKey))

	sessionHandler := handler.NewSessionHandler(s.sessionSvc)
	v1.POST("/session", sessionHandler.Create)
	v1.GET("/session", sessionHandler.List)
	v1.GET("/session/:id", sessionHandler.Get)
	v1.DELETE("/session/:id", sessionHandler.Delete)
	v1.POST("/session/:id/goal", sessionHandler.Goal)
	v1.POST("/session/:id/cancel", sessionHandler.Cancel)
	v1.GET("/session/:id/message", sessionHandler.Messages)
	v1.GET("/session/:id/checkpoint", sessionHandler.ListCheckpoints)
	v1.POST("/session/:id/rewind", sessionHandler.Rewind)

	fileHandler := handler.NewFileHandler(s.sessionSvc)
	v1.GET("/session/:id/files", fileHandler.List)
	v1.GET("/session/:id/file/*path", fileHandler.Get)

	// K8s health probe
	s.engine.GET("/healthz", handler.Health)
}
