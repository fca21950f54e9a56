package token

import (
	"context"
	"errors"
	"time"

	"github.com/go-authgate/usergate/internal/cache"
	"github.com/go-authgate/usergate/internal/core"
)

const denylistKeyPrefix = "revoked:"

// Denylist records revoked token ids until the tokens would have expired anyway
type Denylist struct {
	cache core.Cache[bool]
}

func NewDenylist(c core.Cache[bool]) *Denylist {
	return &Denylist{cache: c}
}

// Revoke denylists the token described by claims. Expired tokens are ignored.
func (d *Denylist) Revoke(ctx context.Context, claims *Claims) error {
	if claims == nil || claims.ID == "" {
		return ErrInvalidToken
	}
	if claims.ExpiresAt == nil {
		return nil
	}
	ttl := time.Until(claims.ExpiresAt.Time)
	if ttl <= 0 {
		return nil
	}
	return d.cache.Set(ctx, denylistKeyPrefix+claims.ID, true, ttl)
}

// IsRevoked reports whether the token id has been revoked
func (d *Denylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	revoked, err := d.cache.Get(ctx, denylistKeyPrefix+jti)
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return revoked, nil
}
