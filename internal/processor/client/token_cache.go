package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2"
)

const tokenCacheKey = "processor:oauth_token"

// redisTokenSource shares the processor access token across replicas so each
// instance does not burn a token grant on startup.
type redisTokenSource struct {
	redis *redis.Client
	next  oauth2.TokenSource
}

func newRedisTokenSource(client *redis.Client, next oauth2.TokenSource) oauth2.TokenSource {
	return &redisTokenSource{redis: client, next: next}
}

func (s *redisTokenSource) Token() (*oauth2.Token, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if raw, err := s.redis.Get(ctx, tokenCacheKey).Bytes(); err == nil {
		var token oauth2.Token
		if json.Unmarshal(raw, &token) == nil && token.Valid() {
			return &token, nil
		}
	}

	token, err := s.next.Token()
	if err != nil {
		return nil, err
	}

	if raw, err := json.Marshal(token); err == nil {
		ttl := time.Until(token.Expiry) - 30*time.Second
		if ttl > 0 {
			// Cache write failures only cost an extra grant later.
			_ = s.redis.Set(ctx, tokenCacheKey, raw, ttl).Err()
		}
	}
	return token, nil
}
