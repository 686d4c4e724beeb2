// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/aquasense/sonda-api/internal/core"
)

// quota is the outcome of one admission check.
type quota struct {
	allowed    bool
	remaining  int
	retryAfter time.Duration
	resetAfter time.Duration
}

type bucketStore interface {
	take(ctx context.Context, key string, limit redis_rate.Limit) (quota, error)
}

type RateLimitConfig struct {
	Limit    redis_rate.Limit
	KeyFunc  func(*http.Request) string
	FailOpen bool
	Skip     func(*http.Request) bool
}

// RateLimiter admits requests through a shared Redis GCRA bucket. When Redis
// errors it degrades to a per-process bucket with the same limit, and only
// when that fails too does FailOpen decide.
type RateLimiter struct {
	shared bucketStore
	local  *localBuckets
	cfg    RateLimitConfig
}

// NewRateLimiter builds a limiter. A nil client limits in-process only.
func NewRateLimiter(rdb *redis.Client, cfg RateLimitConfig) *RateLimiter {
	if cfg.KeyFunc == nil {
		cfg.KeyFunc = KeyByIP
	}

	rl := &RateLimiter{local: newLocalBuckets(10 * time.Minute), cfg: cfg}
	if rdb != nil {
		rl.shared = redisBuckets{limiter: redis_rate.NewLimiter(rdb)}
	}
	return rl
}

func (rl *RateLimiter) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rl.cfg.Skip != nil && rl.cfg.Skip(r) {
			next.ServeHTTP(w, r)
			return
		}

		key := rl.cfg.KeyFunc(r)
		q, err := rl.take(r.Context(), key)
		if err != nil {
			if !rl.cfg.FailOpen {
				core.JSON(w, http.StatusServiceUnavailable, core.Response{
					Error: &core.ErrorBody{Code: core.CodeInternal, Message: "rate limiter unavailable"},
				})
				return
			}
			slog.WarnContext(r.Context(), "rate limit skipped", "key", key, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		writeQuotaHeaders(w.Header(), q, rl.cfg.Limit)
		if !q.allowed {
			rejectOverQuota(w, q)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (rl *RateLimiter) take(ctx context.Context, key string) (quota, error) {
	if rl.shared != nil {
		q, err := rl.shared.take(ctx, key, rl.cfg.Limit)
		if err == nil {
			return q, nil
		}
		slog.DebugContext(ctx, "shared rate limit down, using local bucket", "error", err)
	}
	return rl.local.take(ctx, key, rl.cfg.Limit)
}

type redisBuckets struct {
	limiter *redis_rate.Limiter
}

func (b redisBuckets) take(ctx context.Context, key string, limit redis_rate.Limit) (quota, error) {
	res, err := b.limiter.Allow(ctx, key, limit)
	if err != nil {
		return quota{}, err
	}
	return quota{
		allowed:    res.Allowed > 0,
		remaining:  res.Remaining,
		retryAfter: res.RetryAfter,
		resetAfter: res.ResetAfter,
	}, nil
}

// localBuckets keeps one token bucket per key and forgets keys idle for
// longer than idle.
type localBuckets struct {
	mu      sync.Mutex
	buckets map[string]*localBucket
	idle    time.Duration
	swept   time.Time
}

type localBucket struct {
	limiter *rate.Limiter
	seen    time.Time
}

func newLocalBuckets(idle time.Duration) *localBuckets {
	return &localBuckets{buckets: map[string]*localBucket{}, idle: idle, swept: time.Now()}
}

func (b *localBuckets) take(_ context.Context, key string, limit redis_rate.Limit) (quota, error) {
	if limit.Rate <= 0 || limit.Period <= 0 {
		return quota{}, fmt.Errorf("local bucket: limit %s is not usable", limit)
	}

	now := time.Now()
	perToken := limit.Period / time.Duration(limit.Rate)

	b.mu.Lock()
	defer b.mu.Unlock()

	if now.Sub(b.swept) > b.idle {
		for k, bucket := range b.buckets {
			if now.Sub(bucket.seen) > b.idle {
				delete(b.buckets, k)
			}
		}
		b.swept = now
	}

	bucket, ok := b.buckets[key]
	if !ok {
		bucket = &localBucket{limiter: rate.NewLimiter(rate.Every(perToken), limit.Burst)}
		b.buckets[key] = bucket
	}
	bucket.seen = now

	allowed := bucket.limiter.AllowN(now, 1)
	q := quota{
		allowed:    allowed,
		remaining:  int(math.Max(0, math.Floor(bucket.limiter.TokensAt(now)))),
		retryAfter: -1,
		resetAfter: perToken,
	}
	if !allowed {
		q.retryAfter = perToken
	}
	return q, nil
}

func writeQuotaHeaders(h http.Header, q quota, limit redis_rate.Limit) {
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(q.remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(q.resetAfter).Unix(), 10))
	h.Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d", limit.Rate, int(limit.Period.Seconds())))
	h.Set("RateLimit", fmt.Sprintf("%d;t=%d", q.remaining, int(q.resetAfter.Seconds())))
}

func rejectOverQuota(w http.ResponseWriter, q quota) {
	wait := max(1, int(math.Ceil(q.retryAfter.Seconds())))

	w.Header().Set("Retry-After", strconv.Itoa(wait))
	core.JSON(w, http.StatusTooManyRequests, core.Response{
		Error: &core.ErrorBody{
			Code:    core.CodeRateLimited,
			Message: fmt.Sprintf("too many requests, retry in %ds", wait),
		},
	})
}

func KeyByIP(r *http.Request) string {
	return core.Key("ratelimit", "ip", ClientIP(r))
}

// KeyByUser buckets signed-in callers by user id and everyone else by IP.
func KeyByUser(r *http.Request) string {
	if userID := GetUserID(r.Context()); userID != "" {
		return core.Key("ratelimit", "user", userID)
	}
	return KeyByIP(r)
}

// KeyByIPAndEndpoint gives each route template its own budget per IP, so
// login attempts do not consume the refresh budget.
func KeyByIPAndEndpoint(r *http.Request) string {
	return KeyByIP(r) + ":" + normalizeEndpoint(r.URL.Path)
}

// normalizeEndpoint collapses ids in a path into {id}.
func normalizeEndpoint(path string) string {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	for i, seg := range segments {
		if isID(seg) {
			segments[i] = "{id}"
		}
	}
	return "/" + strings.Join(segments, "/")
}

func isID(seg string) bool {
	if _, err := uuid.Parse(seg); err == nil && len(seg) == 36 {
		return true
	}
	_, err := strconv.ParseUint(seg, 10, 64)
	return err == nil
}

// Window is rate requests per period with the given burst. A non-positive
// period means one minute.
func Window(rate, burst int, period time.Duration) redis_rate.Limit {
	if period <= 0 {
		period = time.Minute
	}
	return redis_rate.Limit{Rate: rate, Burst: burst, Period: period}
}

func PerMinute(rate, burst int) redis_rate.Limit {
	return Window(rate, burst, time.Minute)
}
