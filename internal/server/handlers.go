package server

import (
	"errors"
	"net/http"

	"github.com/creatorkit/captiongen/internal/generate"
	"github.com/creatorkit/captiongen/internal/parse"
	"github.com/creatorkit/captiongen/internal/provider"
	"github.com/creatorkit/captiongen/internal/quota"
	"github.com/creatorkit/captiongen/internal/vault"
	"github.com/gin-gonic/gin"
)

// GenerateRequest is the request body for the /api/v1/generate endpoint
type GenerateRequest struct {
	Description string   `json:"description" binding:"required"`
	Tone        string   `json:"tone" binding:"required"`
	Platforms   []string `json:"platforms" binding:"required"`
}

// GenerateResponse is the response body for the /api/v1/generate endpoint
type GenerateResponse struct {
	Items map[string][]parse.Item `json:"items"`
	Meta  generate.Meta           `json:"meta"`
}

// ErrorResponse is the response body for errors
type ErrorResponse struct {
	Error string `json:"error"`
	Limit int    `json:"limit,omitempty"`
}

// handleGenerate handles POST /api/v1/generate requests
func (s *Server) handleGenerate(c *gin.Context) {
	var req GenerateRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request: " + err.Error(),
		})
		return
	}

	result, err := s.service.Generate(c.Request.Context(), generate.Request{
		Description: req.Description,
		Tone:        req.Tone,
		Platforms:   req.Platforms,
		Identity:    s.identity(c),
		Tier:        s.tier(c),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, GenerateResponse{
		Items: result.Items,
		Meta:  result.Meta,
	})
}

// QuotaResponse is the response body for /api/v1/quota
type QuotaResponse struct {
	Remaining int    `json:"remaining"`
	Limit     int    `json:"limit"`
	Tier      string `json:"tier"`
}

// handleQuota handles GET /api/v1/quota requests
func (s *Server) handleQuota(c *gin.Context) {
	identity := s.identity(c)
	tier := s.tier(c)

	remaining, err := s.service.QuotaStatus(c.Request.Context(), identity, tier)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, QuotaResponse{
		Remaining: remaining,
		Limit:     s.service.QuotaLimit(identity, tier),
		Tier:      string(s.service.Tier(identity, tier)),
	})
}

// identity resolves the quota subject: the authenticated user id when
// present, otherwise the client IP derived from proxy headers.
func (s *Server) identity(c *gin.Context) generate.Identity {
	if userID := c.GetHeader("X-User-ID"); userID != "" {
		return generate.Identity{UserID: userID}
	}
	return generate.Identity{IP: quota.ClientIP(c.Request.Header, c.Request.RemoteAddr)}
}

// tier returns the caller's base tier. Premium promotion happens inside the
// limiter, keyed on identity.
func (s *Server) tier(c *gin.Context) quota.Tier {
	if c.GetHeader("X-User-ID") != "" {
		return quota.TierFree
	}
	return quota.TierGuest
}

// writeError maps typed pipeline errors onto HTTP statuses. Upstream
// provider detail stays in the logs, not the response body.
func (s *Server) writeError(c *gin.Context, err error) {
	var (
		validationErr *generate.ValidationError
		formatErr     *vault.FormatError
		permErr       *vault.PermissionError
		quotaErr      *quota.QuotaExceededError
		timeoutErr    *generate.TimeoutError
		notImplErr    *provider.NotImplementedError
		providerErr   *provider.ProviderError
		networkErr    *provider.NetworkError
		malformedErr  *provider.MalformedResponseError
	)

	switch {
	case errors.As(err, &validationErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: validationErr.Error()})
	case errors.As(err, &formatErr):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: formatErr.Error()})
	case errors.As(err, &permErr):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: permErr.Error()})
	case errors.As(err, &quotaErr):
		c.JSON(http.StatusTooManyRequests, ErrorResponse{
			Error: "Generation limit reached, try again later",
			Limit: quotaErr.Limit,
		})
	case errors.As(err, &timeoutErr):
		c.JSON(http.StatusGatewayTimeout, ErrorResponse{Error: "Generation timed out"})
	case errors.As(err, &notImplErr):
		c.JSON(http.StatusNotImplemented, ErrorResponse{Error: notImplErr.Error()})
	case errors.As(err, &providerErr), errors.As(err, &networkErr), errors.As(err, &malformedErr):
		s.logger.Error().Err(err).Msg("Upstream provider failure")
		c.JSON(http.StatusBadGateway, ErrorResponse{Error: "Content generation is temporarily unavailable"})
	default:
		s.logger.Error().Err(err).Msg("Unhandled request failure")
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal error"})
	}
}

// HealthResponse is the response body for /health
type HealthResponse struct {
	Status   string `json:"status"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// handleHealth handles GET /health requests
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{
		Status:   "healthy",
		Provider: s.provider,
		Model:    s.model,
	})
}

// MetricsResponse is the response body for /metrics
type MetricsResponse struct {
	Daily telemetryStats `json:"daily"`
	Total telemetryStats `json:"total"`
}

type telemetryStats struct {
	Requests        int64 `json:"requests"`
	CacheHits       int64 `json:"cache_hits"`
	CacheMisses     int64 `json:"cache_misses"`
	QuotaRejections int64 `json:"quota_rejections"`
	ProviderErrors  int64 `json:"provider_errors"`
}

// handleMetrics handles GET /metrics requests
func (s *Server) handleMetrics(c *gin.Context) {
	daily := s.tracker.GetDailyStats()
	total := s.tracker.GetTotalStats()

	c.JSON(http.StatusOK, MetricsResponse{
		Daily: telemetryStats{
			Requests:        daily.Requests,
			CacheHits:       daily.CacheHits,
			CacheMisses:     daily.CacheMisses,
			QuotaRejections: daily.QuotaRejections,
			ProviderErrors:  daily.ProviderErrors,
		},
		Total: telemetryStats{
			Requests:        total.Requests,
			CacheHits:       total.CacheHits,
			CacheMisses:     total.CacheMisses,
			QuotaRejections: total.QuotaRejections,
			ProviderErrors:  total.ProviderErrors,
		},
	})
}
