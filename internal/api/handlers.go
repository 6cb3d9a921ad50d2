package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/veilscope/veilscope/internal/auth"
	"github.com/veilscope/veilscope/internal/credits"
	"github.com/veilscope/veilscope/pkg/correlation"
	"github.com/veilscope/veilscope/pkg/types"
)

type correlateResponse struct {
	Success bool `json:"success"`
	*types.CorrelationResult
}

func (s *Server) handleCorrelate(c *gin.Context) {
	result, err := s.engine.Correlate(c.Request.Context(), correlation.Request{
		ScanID:   c.Param("id"),
		Identity: identityFrom(c),
	})
	if err != nil {
		s.renderCorrelationError(c, err)
		return
	}

	c.JSON(http.StatusOK, correlateResponse{Success: true, CorrelationResult: result})
}

// renderCorrelationError maps the engine's error taxonomy onto HTTP. The
// default branch deliberately hides detail: internal failures surface as an
// opaque 500 while the specifics go to the log.
func (s *Server) renderCorrelationError(c *gin.Context, err error) {
	var upgrade *auth.UpgradeRequiredError
	var insufficient *credits.InsufficientCreditsError

	switch {
	case errors.Is(err, auth.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
	case errors.As(err, &upgrade):
		c.JSON(http.StatusForbidden, gin.H{
			"error":           "premium_required",
			"upgradeRequired": true,
			"currentTier":     upgrade.Current,
			"requiredTier":    upgrade.Required,
		})
	case errors.Is(err, correlation.ErrScanNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "scan_not_found"})
	case errors.As(err, &insufficient):
		c.JSON(http.StatusPaymentRequired, gin.H{
			"error":    "insufficient_credits",
			"balance":  insufficient.Balance,
			"required": insufficient.Required,
		})
	default:
		s.log.LogError(c.Request.Context(), err, "api.correlate", "scan_id", c.Param("id"))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}

func (s *Server) handleBalance(c *gin.Context) {
	identity := identityFrom(c)
	if identity == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
		return
	}

	balance, err := s.ledger.Balance(c.Request.Context(), identity.WorkspaceID)
	if err != nil {
		s.log.LogError(c.Request.Context(), err, "api.balance", "workspace_id", identity.WorkspaceID)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"workspaceId": identity.WorkspaceID,
		"balance":     balance,
	})
}

func (s *Server) handleHealth(c *gin.Context) {
	if s.health != nil {
		if err := s.health.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"error":  "database unreachable",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "veilscope"})
}
