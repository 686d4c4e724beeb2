// AngelaMos | 2026
// redis.go

package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/aquasense/sonda-api/internal/config"
)

// Key joins parts under the "sonda:" namespace.
func Key(parts ...string) string {
	return "sonda:" + strings.Join(parts, ":")
}

// Redis backs the rate limiter and the access-token revocation list. Both
// treat it as optional, so a failed probe degrades readiness instead of
// failing it.
type Redis struct {
	Client    *redis.Client
	opTimeout time.Duration
}

func NewRedis(ctx context.Context, cfg config.RedisConfig) (*Redis, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("redis url: %w", err)
	}

	opts.PoolSize = cfg.PoolSize
	opts.MinIdleConns = cfg.MinIdleConns
	opts.PoolTimeout = cfg.PoolTimeout
	opts.ReadTimeout = cfg.OpTimeout
	opts.WriteTimeout = cfg.OpTimeout
	opts.ConnMaxIdleTime = 5 * time.Minute

	r := &Redis{Client: redis.NewClient(opts), opTimeout: cfg.OpTimeout}
	if r.opTimeout <= 0 {
		r.opTimeout = 2 * time.Second
	}

	if err := r.Ping(ctx); err != nil {
		_ = r.Client.Close()
		return nil, fmt.Errorf("connect redis %s: %w", opts.Addr, err)
	}

	return r, nil
}

func (r *Redis) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.opTimeout)
	defer cancel()
	return r.Client.Ping(ctx).Err()
}

func (r *Redis) PoolStats() *redis.PoolStats {
	return r.Client.PoolStats()
}

func (r *Redis) Close() error {
	if r == nil || r.Client == nil {
		return nil
	}
	return r.Client.Close()
}
