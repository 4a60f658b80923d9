package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/redtape-api/internal/service"
	appErrors "github.com/noah-isme/redtape-api/pkg/errors"
	"github.com/noah-isme/redtape-api/pkg/response"
)

// IPLimiter decides whether another request from an address fits its window.
type IPLimiter interface {
	AllowIP(ctx context.Context, ip string) service.RateLimitDecision
}

// RateLimitByIP rejects requests over the per-address quota with 429.
func RateLimitByIP(limiter IPLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}
		decision := limiter.AllowIP(c.Request.Context(), c.ClientIP())
		if !decision.Allowed {
			c.Header("Retry-After", decision.RetryAfterSeconds())
			response.Error(c, appErrors.Clone(appErrors.ErrTooManyRequests, "too many submissions from this address, try again later"))
			c.Abort()
			return
		}
		c.Next()
	}
}
