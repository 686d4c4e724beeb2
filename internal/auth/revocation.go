// AngelaMos | 2026
// revocation.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aquasense/sonda-api/internal/core"
)

// RevocationList rejects access tokens before their natural expiry, either
// one token id at a time or every token of a user below a token version.
type RevocationList interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
	RevokeIssuedBefore(ctx context.Context, userID string, version int, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID, userID string, version int) (bool, error)
}

type redisRevocationList struct {
	client *redis.Client
}

func NewRedisRevocationList(client *redis.Client) RevocationList {
	return &redisRevocationList{client: client}
}

func revocationKey(tokenID string) string {
	return core.Key("revoked", tokenID)
}

func versionFloorKey(userID string) string {
	return core.Key("revoked", "user", userID)
}

func (l *redisRevocationList) Revoke(
	ctx context.Context,
	tokenID string,
	expiresAt time.Time,
) error {
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}

	if err := l.client.Set(ctx, revocationKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

// RevokeIssuedBefore rejects the user's tokens carrying a version below
// version. ttl is the access token lifetime; after it no such token is alive.
func (l *redisRevocationList) RevokeIssuedBefore(
	ctx context.Context,
	userID string,
	version int,
	ttl time.Duration,
) error {
	err := l.client.Set(ctx, versionFloorKey(userID), strconv.Itoa(version), ttl).Err()
	if err != nil {
		return fmt.Errorf("revoke tokens of %s: %w", userID, err)
	}
	return nil
}

func (l *redisRevocationList) IsRevoked(
	ctx context.Context,
	tokenID, userID string,
	version int,
) (bool, error) {
	pipe := l.client.Pipeline()
	byID := pipe.Exists(ctx, revocationKey(tokenID))
	floor := pipe.Get(ctx, versionFloorKey(userID))

	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return false, fmt.Errorf("check revocation: %w", err)
	}

	if byID.Val() > 0 {
		return true, nil
	}

	minVersion, err := floor.Int()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("read version floor: %w", err)
	}
	return version < minVersion, nil
}
