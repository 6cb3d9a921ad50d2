package api

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/veilscope/veilscope/internal/auth"
	"github.com/veilscope/veilscope/internal/logger"
	"github.com/veilscope/veilscope/internal/ratelimit"
)

const identityKey = "veilscope.identity"

func requestLogger(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithContext(c.Request.Context()).Infow("Request handled",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"client_ip", c.ClientIP(),
		)
	}
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// requestTimeout bounds every handler by the configured deadline so a slow
// store read cannot hold a connection open indefinitely.
func requestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// authMiddleware resolves the bearer token to an identity. Requests without
// a resolvable identity are rejected here; tier checks happen downstream in
// the engine, which owns the charge ordering.
func authMiddleware(validator auth.TokenValidator, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c.GetHeader("Authorization"))
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		identity, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			if err != auth.ErrUnauthenticated {
				log.WithContext(c.Request.Context()).Errorw("Token validation failed", "error", err)
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthenticated"})
			return
		}

		c.Set(identityKey, identity)
		c.Next()
	}
}

func bearerToken(header string) string {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

func identityFrom(c *gin.Context) *auth.Identity {
	if value, ok := c.Get(identityKey); ok {
		if identity, ok := value.(*auth.Identity); ok {
			return identity
		}
	}
	return nil
}

// rateLimitMiddleware keys authenticated traffic by workspace so one noisy
// tenant cannot starve the others, and falls back to client IP.
func rateLimitMiddleware(limiter ratelimit.Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.ClientIP()
		if identity := identityFrom(c); identity != nil {
			key = identity.WorkspaceID
		}

		if !limiter.Allow(key) {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{"error": "rate_limited"})
			return
		}
		c.Next()
	}
}
