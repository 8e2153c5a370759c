package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const revokedKeyPrefix = "session:revoked:"

func revokedKey(tokenID string) string {
	return revokedKeyPrefix + tokenID
}

// Revoke marks a session token as signed out. The key expires together with
// the token, so the set never outgrows the live sessions.
func (c *Cache) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := c.client.Set(ctx, revokedKey(tokenID), 1, ttl).Err(); err != nil {
		return fmt.Errorf("redis set revoked session: %w", err)
	}
	return nil
}

// IsRevoked reports whether tokenID was revoked. Lookup errors are returned,
// not treated as a miss.
func (c *Cache) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	err := c.client.Get(ctx, revokedKey(tokenID)).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("redis get revoked session: %w", err)
	}
	return true, nil
}
