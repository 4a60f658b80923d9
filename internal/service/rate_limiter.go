package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/redtape-api/pkg/logger"
)

type rateLimitStore interface {
	Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// RateLimitRule is a fixed-window quota.
type RateLimitRule struct {
	Limit  int
	Window time.Duration
}

// RateLimitDecision reports the outcome of one hit.
type RateLimitDecision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// RateLimiter throttles report submissions by IP and by email.
type RateLimiter struct {
	store   rateLimitStore
	byIP    RateLimitRule
	byEmail RateLimitRule
	logger  *zap.Logger
}

// NewRateLimiter constructs the limiter. A rule with Limit <= 0 is disabled.
func NewRateLimiter(store rateLimitStore, byIP, byEmail RateLimitRule, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{store: store, byIP: byIP, byEmail: byEmail, logger: log}
}

// AllowIP records a submission attempt from ip.
func (l *RateLimiter) AllowIP(ctx context.Context, ip string) RateLimitDecision {
	if l == nil {
		return RateLimitDecision{Allowed: true}
	}
	return l.allow(ctx, "rl:reports:ip:"+ip, l.byIP, zap.String("ip", ip))
}

// AllowEmail records a submission attempt for email.
func (l *RateLimiter) AllowEmail(ctx context.Context, email string) RateLimitDecision {
	if l == nil {
		return RateLimitDecision{Allowed: true}
	}
	normalized := strings.ToLower(strings.TrimSpace(email))
	return l.allow(ctx, "rl:reports:email:"+normalized, l.byEmail, logger.Email("email", normalized))
}

// allow fails open: when the store errors the request is let through.
func (l *RateLimiter) allow(ctx context.Context, key string, rule RateLimitRule, field zap.Field) RateLimitDecision {
	if l.store == nil || rule.Limit <= 0 {
		return RateLimitDecision{Allowed: true}
	}
	count, ttl, err := l.store.Hit(ctx, key, rule.Window)
	if err != nil {
		l.logger.Warn("rate limit store unavailable, allowing request", field, zap.Error(err))
		return RateLimitDecision{Allowed: true}
	}
	if count > int64(rule.Limit) {
		l.logger.Info("rate limit exceeded", field, zap.Int64("count", count), zap.Int("limit", rule.Limit))
		return RateLimitDecision{Allowed: false, RetryAfter: ttl}
	}
	return RateLimitDecision{Allowed: true, Remaining: rule.Limit - int(count)}
}

// RetryAfterSeconds renders the Retry-After header value.
func (d RateLimitDecision) RetryAfterSeconds() string {
	secs := int(d.RetryAfter.Round(time.Second) / time.Second)
	if secs < 1 {
		secs = 1
	}
	return fmt.Sprintf("%d", secs)
}
