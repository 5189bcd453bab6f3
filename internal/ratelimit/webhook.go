package ratelimit

import (
	"context"
	"fmt"
	"strings"

	"github.com/namevault/namevault/internal/config"
	redis "github.com/redis/go-redis/v9"
)

const keyWebhookProvider = "webhook:ingest:%s"

// WebhookLimiter throttles inbound payment webhooks per provider. Disabled
// (or redis-less) deployments accept everything; the capture handler is
// idempotent, so shedding load here only delays processing.
type WebhookLimiter struct {
	enabled bool
	bucket  *TokenBucket
	rate    float64
	burst   int
}

func NewWebhookLimiter(cfg config.Config, client *redis.Client) *WebhookLimiter {
	limitCfg := cfg.RateLimit
	if !limitCfg.Enabled || client == nil {
		return &WebhookLimiter{}
	}
	return &WebhookLimiter{
		enabled: true,
		bucket:  NewTokenBucket(client),
		rate:    limitCfg.WebhookRate,
		burst:   limitCfg.WebhookBurst,
	}
}

func (l *WebhookLimiter) Enabled() bool {
	return l != nil && l.enabled
}

func (l *WebhookLimiter) Allow(ctx context.Context, provider string) (bool, error) {
	if !l.Enabled() {
		return true, nil
	}
	key := fmt.Sprintf(keyWebhookProvider, strings.TrimSpace(strings.ToLower(provider)))
	return l.bucket.Allow(ctx, key, l.rate, l.burst)
}
