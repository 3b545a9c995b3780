// Package ratelimit keeps per-IP request counters and per-email cooldowns in
// Redis for the auth endpoints. A Limiter without a Redis client allows
// everything.
package ratelimit

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultIPLimit       = 10
	defaultIPWindow      = 15 * time.Minute
	defaultEmailCooldown = 2 * time.Minute
)

// Limiter handles auth rate limiting state in Redis
type Limiter struct {
	client        *redis.Client
	ipLimit       int64
	ipWindow      time.Duration
	emailCooldown time.Duration
}

type Option func(*Limiter)

// WithIPLimit overrides the per-purpose request budget per window.
func WithIPLimit(limit int, window time.Duration) Option {
	return func(l *Limiter) {
		l.ipLimit = int64(limit)
		l.ipWindow = window
	}
}

func WithEmailCooldown(d time.Duration) Option {
	return func(l *Limiter) { l.emailCooldown = d }
}

// NewLimiter returns a limiter backed by client. client may be nil.
func NewLimiter(client *redis.Client, opts ...Option) *Limiter {
	l := &Limiter{
		client:        client,
		ipLimit:       defaultIPLimit,
		ipWindow:      defaultIPWindow,
		emailCooldown: defaultEmailCooldown,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Enabled reports whether limits are enforced.
func (l *Limiter) Enabled() bool {
	return l != nil && l.client != nil
}

// CheckIPRateLimitWithPurpose reports whether ip has used up its budget for purpose.
func (l *Limiter) CheckIPRateLimitWithPurpose(ctx context.Context, ip, purpose string) (bool, error) {
	if !l.Enabled() {
		return false, nil
	}

	count, err := l.client.Get(ctx, ipKey(ip, purpose)).Int64()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read rate limit counter: %w", err)
	}
	return count >= l.ipLimit, nil
}

// RecordIPRequestWithPurpose counts one request; the window starts on the first.
func (l *Limiter) RecordIPRequestWithPurpose(ctx context.Context, ip, purpose string) error {
	if !l.Enabled() {
		return nil
	}

	key := ipKey(ip, purpose)
	pipe := l.client.TxPipeline()
	pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.ipWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record rate limit counter: %w", err)
	}
	return nil
}

// CheckEmailCooldown reports whether a mail for purpose was sent to email recently.
func (l *Limiter) CheckEmailCooldown(ctx context.Context, email, purpose string) (bool, error) {
	if !l.Enabled() || email == "" {
		return false, nil
	}

	n, err := l.client.Exists(ctx, cooldownKey(email, purpose)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read email cooldown: %w", err)
	}
	return n > 0, nil
}

func (l *Limiter) SetEmailCooldown(ctx context.Context, email, purpose string) error {
	if !l.Enabled() || email == "" {
		return nil
	}

	if err := l.client.Set(ctx, cooldownKey(email, purpose), 1, l.emailCooldown).Err(); err != nil {
		return fmt.Errorf("failed to set email cooldown: %w", err)
	}
	return nil
}

func ipKey(ip, purpose string) string {
	return fmt.Sprintf("ratelimit:%s:ip:%s", purpose, ip)
}

// cooldownKey hashes the address so raw emails never land in Redis keys.
func cooldownKey(email, purpose string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(strings.TrimSpace(email))))
	return fmt.Sprintf("ratelimit:%s:email:%s", purpose, hex.EncodeToString(sum[:]))
}
