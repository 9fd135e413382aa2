package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist tracks revoked token ids until they would have expired anyway.
type Denylist struct {
	client redis.Cmdable
	prefix string
}

// NewDenylist constructs a Redis-backed denylist.
func NewDenylist(client redis.Cmdable) *Denylist {
	return &Denylist{client: client, prefix: "auth:denylist:"}
}

// Revoke stores the token id until expiresAt.
func (d *Denylist) Revoke(ctx context.Context, jti string, expiresAt time.Time) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return d.client.Set(ctx, d.prefix+jti, 1, ttl).Err()
}

// IsRevoked reports whether the token id was revoked.
func (d *Denylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := d.client.Get(ctx, d.prefix+jti).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
