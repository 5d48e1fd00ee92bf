package services

import (
	"context"
	"time"

	"github.com/AnshRaj112/municipal-portal-backend/internal/metrics"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// ActionLimitKeyPrefix namespaces per-action counters: rate_limit:<action>:<subject>
	ActionLimitKeyPrefix = "rate_limit:"

	DefaultActionMax    = 5
	DefaultActionWindow = 60 * time.Minute
)

// Rate-limited actions.
const (
	ActionComplaintSubmit    = "complaint_submit"
	ActionContact            = "contact"
	ActionOTPSend            = "otp_send"
	ActionOTPConfirm         = "otp_confirm"
	ActionServiceApplication = "service_application"
	ActionPrivilegeChange    = "privilege_change"
)

// LimitResult describes one counted attempt.
type LimitResult struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

// ActionLimiter caps how often a subject (user id or IP) may repeat an
// action within a fixed window. It is advisory: when Redis is unreachable
// every attempt is allowed.
type ActionLimiter struct {
	rdb    *redis.Client
	max    int
	window time.Duration
	log    *zap.Logger
}

func NewActionLimiter(rdb *redis.Client, max int, window time.Duration, log *zap.Logger) *ActionLimiter {
	if max <= 0 {
		max = DefaultActionMax
	}
	if window <= 0 {
		window = DefaultActionWindow
	}
	return &ActionLimiter{rdb: rdb, max: max, window: window, log: log}
}

// Allow counts one attempt of action by subject.
func (l *ActionLimiter) Allow(ctx context.Context, action, subject string) LimitResult {
	key := ActionLimitKeyPrefix + action + ":" + subject

	pipe := l.rdb.TxPipeline()
	incr := pipe.Incr(ctx, key)
	ttl := pipe.TTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		l.log.Warn("action limiter unavailable, allowing request", zap.String("action", action), zap.Error(err))
		return LimitResult{Allowed: true, Limit: l.max, Remaining: l.max}
	}

	count := int(incr.Val())
	remainingTTL := ttl.Val()
	// First hit in the window, or a counter that lost its expiry.
	if count == 1 || remainingTTL < 0 {
		if err := l.rdb.Expire(ctx, key, l.window).Err(); err != nil {
			l.log.Warn("failed to set action limit window", zap.String("key", key), zap.Error(err))
		}
		remainingTTL = l.window
	}

	if count > l.max {
		metrics.RateLimited.WithLabelValues(action).Inc()
		return LimitResult{Allowed: false, Limit: l.max, Remaining: 0, RetryAfter: remainingTTL}
	}
	return LimitResult{Allowed: true, Limit: l.max, Remaining: l.max - count}
}

// Reset clears the counter, e.g. after a successful verification.
func (l *ActionLimiter) Reset(ctx context.Context, action, subject string) error {
	return l.rdb.Del(ctx, ActionLimitKeyPrefix+action+":"+subject).Err()
}
