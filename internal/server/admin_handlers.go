package server

import (
	"net/http"

	"github.com/creatorkit/captiongen/internal/vault"
	"github.com/gin-gonic/gin"
)

// adminActor builds the vault actor for an authenticated admin request. The
// token check already happened in middleware, so the capability is granted.
func adminActor(c *gin.Context) vault.Actor {
	return vault.Actor{
		Name:   "admin",
		Admin:  true,
		Origin: c.ClientIP(),
	}
}

// SaveCredentialRequest is the request body for PUT /api/v1/admin/credentials/:provider
type SaveCredentialRequest struct {
	APIKey string `json:"api_key" binding:"required"`
}

// handleSaveCredential handles PUT /api/v1/admin/credentials/:provider
func (s *Server) handleSaveCredential(c *gin.Context) {
	var req SaveCredentialRequest

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request: " + err.Error(),
		})
		return
	}

	providerName := c.Param("provider")
	if err := s.vault.SaveKey(c.Request.Context(), adminActor(c), providerName, req.APIKey); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"provider": providerName,
		"status":   "saved",
	})
}

// CredentialStatusResponse reports whether a credential is configured. The
// key material itself is never returned.
type CredentialStatusResponse struct {
	Provider   string `json:"provider"`
	Configured bool   `json:"configured"`
}

// handleCredentialStatus handles GET /api/v1/admin/credentials/:provider
func (s *Server) handleCredentialStatus(c *gin.Context) {
	providerName := c.Param("provider")
	key := s.vault.GetKey(c.Request.Context(), adminActor(c), providerName)

	c.JSON(http.StatusOK, CredentialStatusResponse{
		Provider:   providerName,
		Configured: key != "",
	})
}

// handleDeleteCredential handles DELETE /api/v1/admin/credentials/:provider
func (s *Server) handleDeleteCredential(c *gin.Context) {
	providerName := c.Param("provider")
	if err := s.vault.DeleteKey(c.Request.Context(), adminActor(c), providerName); err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"provider": providerName,
		"status":   "deleted",
	})
}

// AuditResponse is the response body for GET /api/v1/admin/audit
type AuditResponse struct {
	Entries []vault.AuditEntry `json:"entries"`
}

// handleAudit handles GET /api/v1/admin/audit
func (s *Server) handleAudit(c *gin.Context) {
	c.JSON(http.StatusOK, AuditResponse{
		Entries: s.vault.AuditEntries(),
	})
}
