package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

const revocationKeyPrefix = "revoked:"

// RevocationCache keeps unusable-token verdicts in Redis so replayed revoked
// tokens do not hit Postgres on every request. Only dead verdicts are cached:
// revocation is monotonic, so a cached "unusable" can never go stale, while a
// cached "usable" could mask a concurrent revocation. Usable verdicts always
// go to the ledger.
type RevocationCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRevocationCache wraps a Redis client. Entries live as long as the
// session TTL; past natural expiry the codec rejects the token anyway.
func NewRevocationCache(client *redis.Client, ttl time.Duration) *RevocationCache {
	return &RevocationCache{client: client, ttl: ttl}
}

// MarkUnusable records dead verdicts for the given token values.
func (c *RevocationCache) MarkUnusable(ctx context.Context, tokens ...string) error {
	if c == nil || c.client == nil || len(tokens) == 0 {
		return nil
	}
	pipe := c.client.Pipeline()
	for _, token := range tokens {
		pipe.Set(ctx, revocationKey(token), "1", c.ttl)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// IsUnusable reports whether a dead verdict is cached for the token. A cache
// error counts as a miss; the ledger remains the authority.
func (c *RevocationCache) IsUnusable(ctx context.Context, token string) (bool, error) {
	if c == nil || c.client == nil {
		return false, nil
	}
	_, err := c.client.Get(ctx, revocationKey(token)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Tokens are hashed before use as cache keys so raw bearer credentials never
// land in Redis.
func revocationKey(token string) string {
	sum := sha256.Sum256([]byte(token))
	return revocationKeyPrefix + hex.EncodeToString(sum[:])
}
