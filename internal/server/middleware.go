package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/holdpay/holdpay/internal/identity"
	"go.uber.org/zap"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderAPIToken  = "X-Api-Token"
)

func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := strings.TrimSpace(c.GetHeader(HeaderRequestID))
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(HeaderRequestID, id)
		c.Set("request_id", id)
		c.Next()
	}
}

// Identity resolves the API token header to a principal when present. An
// unknown token is rejected here; a missing header just leaves the request
// anonymous, and AuthRequired gates the routes that need a principal.
func (s *Server) Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := strings.TrimSpace(c.GetHeader(HeaderAPIToken))
		if token == "" {
			c.Next()
			return
		}

		principal, err := s.resolver.Resolve(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		c.Request = c.Request.WithContext(identity.WithPrincipal(c.Request.Context(), principal))
		c.Next()
	}
}

func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := identity.PrincipalFromContext(c.Request.Context()); !ok {
			AbortWithError(c, identity.ErrUnauthenticated)
			return
		}
		c.Next()
	}
}

// RateLimit buckets mutating requests per principal, falling back to the
// client IP. Limiter errors fail open; redis being down should not take
// payments with it.
func (s *Server) RateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if s.limiter == nil {
			c.Next()
			return
		}

		key := "ratelimit/"
		if principal, ok := identity.PrincipalFromContext(c.Request.Context()); ok {
			key += principal.String()
		} else {
			key += c.ClientIP()
		}

		res, err := s.limiter.Allow(c.Request.Context(), key, s.cfg.RateLimitPerSecond, s.cfg.RateLimitBurst)
		if err != nil {
			s.log.Warn("rate limiter unavailable", zap.Error(err))
			c.Next()
			return
		}

		if !res.Allowed {
			c.Header("Retry-After", strconv.Itoa(int(res.RetryAfter.Seconds())+1))
			c.AbortWithStatusJSON(429, errorResponse{Error: errorPayload{
				Type:    "rate_limited",
				Message: "rate limited",
			}})
			return
		}

		c.Next()
	}
}

func principal(c *gin.Context) identity.Identity {
	p, _ := identity.PrincipalFromContext(c.Request.Context())
	return p
}
