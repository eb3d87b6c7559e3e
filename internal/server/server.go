// Package server provides the HTTP API for the caption generation service.
//
// The server package implements REST API endpoints using Gin framework:
// caption generation and quota status for clients, plus a token-guarded
// admin surface for credential management and the vault audit trail.
package server

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/creatorkit/captiongen/internal/generate"
	"github.com/creatorkit/captiongen/internal/vault"
	"github.com/creatorkit/captiongen/pkg/telemetry"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Server is the HTTP server for the caption generation API
type Server struct {
	service    *generate.Service
	vault      *vault.Vault
	tracker    *telemetry.UsageTracker
	provider   string
	model      string
	adminToken string
	port       int
	logger     zerolog.Logger
	engine     *gin.Engine
}

// New creates a new HTTP server
func New(service *generate.Service, v *vault.Vault, tracker *telemetry.UsageTracker, provider, model, adminToken string, port int, logger zerolog.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()

	// Add logging middleware
	engine.Use(ginLogger(logger))

	// Add recovery middleware
	engine.Use(gin.Recovery())

	server := &Server{
		service:    service,
		vault:      v,
		tracker:    tracker,
		provider:   provider,
		model:      model,
		adminToken: adminToken,
		port:       port,
		logger:     logger,
		engine:     engine,
	}

	server.setupRoutes()

	return server
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	// Health check
	s.engine.GET("/health", s.handleHealth)

	// Metrics
	s.engine.GET("/metrics", s.handleMetrics)

	v1 := s.engine.Group("/api/v1")
	{
		v1.POST("/generate", s.handleGenerate)
		v1.GET("/quota", s.handleQuota)
	}

	admin := v1.Group("/admin", s.adminAuth())
	{
		admin.PUT("/credentials/:provider", s.handleSaveCredential)
		admin.GET("/credentials/:provider", s.handleCredentialStatus)
		admin.DELETE("/credentials/:provider", s.handleDeleteCredential)
		admin.GET("/audit", s.handleAudit)
	}
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.port)
	s.logger.Info().
		Str("addr", addr).
		Str("provider", s.provider).
		Msg("Starting HTTP server")

	return s.engine.Run(addr)
}

// adminAuth guards the admin group with a constant-time bearer token check.
// An unset token disables the admin surface entirely.
func (s *Server) adminAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.adminToken == "" {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Error: "Admin API is disabled",
			})
			return
		}

		auth := c.GetHeader("Authorization")
		const prefix = "Bearer "
		if len(auth) <= len(prefix) || auth[:len(prefix)] != prefix ||
			subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(s.adminToken)) != 1 {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Error: "Invalid admin token",
			})
			return
		}

		c.Next()
	}
}

// ginLogger creates a Gin middleware that logs using zerolog. Every request
// gets an id, echoed in the X-Request-ID response header.
func ginLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Writer.Header().Set("X-Request-ID", requestID)

		// Process request
		c.Next()

		// Log after processing
		logger.Info().
			Str("request_id", requestID).
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("client_ip", c.ClientIP()).
			Msg("HTTP request")
	}
}
