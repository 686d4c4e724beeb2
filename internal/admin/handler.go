// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/aquasense/sonda-api/internal/core"
)

type HandlerConfig struct {
	Stats      StatsRepository
	DBStats    func() sql.DBStats
	DBPing     func(ctx context.Context) error
	RedisStats func() *redis.PoolStats
	RedisPing  func(ctx context.Context) error
}

type Handler struct {
	cfg HandlerConfig
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{cfg: cfg}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.With(authenticator, adminOnly).Route("/admin/stats", func(r chi.Router) {
		r.Get("/", h.GetSystemStats)
		r.Get("/runtime", h.GetRuntimeStats)
	})
}

// GetSystemStats reports domain row counts next to pool state. Redis is
// omitted entirely when the deployment runs without it.
func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp := SystemStatsResponse{
		Database: Backend{Healthy: alive(ctx, h.cfg.DBPing)},
		Runtime:  snapshotRuntime(),
	}
	if h.cfg.DBStats != nil {
		resp.Database.Pool = sqlPool(h.cfg.DBStats())
	}

	if h.cfg.RedisPing != nil {
		resp.Redis = &Backend{Healthy: alive(ctx, h.cfg.RedisPing)}
		if h.cfg.RedisStats != nil {
			resp.Redis.Pool = redisPool(h.cfg.RedisStats())
		}
	}

	if h.cfg.Stats != nil {
		counts, err := h.cfg.Stats.Counts(ctx)
		if err != nil {
			core.InternalServerError(w, err)
			return
		}
		resp.Counts = counts
	}

	core.OK(w, resp)
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, _ *http.Request) {
	core.OK(w, snapshotRuntime())
}

func alive(ctx context.Context, ping func(context.Context) error) bool {
	return ping != nil && ping(ctx) == nil
}

func snapshotRuntime() RuntimeStats {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return RuntimeStats{
		GoVersion:  runtime.Version(),
		Goroutines: runtime.NumGoroutine(),
		CPUs:       runtime.NumCPU(),
		HeapBytes:  mem.HeapAlloc,
		SysBytes:   mem.Sys,
		GCCycles:   mem.NumGC,
	}
}

func sqlPool(s sql.DBStats) map[string]any {
	return map[string]any{
		"max_open":      s.MaxOpenConnections,
		"open":          s.OpenConnections,
		"in_use":        s.InUse,
		"idle":          s.Idle,
		"wait_count":    s.WaitCount,
		"wait_duration": s.WaitDuration.String(),
	}
}

func redisPool(s *redis.PoolStats) map[string]any {
	if s == nil {
		return nil
	}
	return map[string]any{
		"hits":     s.Hits,
		"misses":   s.Misses,
		"timeouts": s.Timeouts,
		"total":    s.TotalConns,
		"idle":     s.IdleConns,
	}
}

type SystemStatsResponse struct {
	Counts   *Counts      `json:"counts,omitempty"`
	Database Backend      `json:"database"`
	Redis    *Backend     `json:"redis,omitempty"`
	Runtime  RuntimeStats `json:"runtime"`
}

// Backend is the reachability and pool state of one backing store.
type Backend struct {
	Healthy bool           `json:"healthy"`
	Pool    map[string]any `json:"pool,omitempty"`
}

type RuntimeStats struct {
	GoVersion  string `json:"go_version"`
	Goroutines int    `json:"goroutines"`
	CPUs       int    `json:"cpus"`
	HeapBytes  uint64 `json:"heap_bytes"`
	SysBytes   uint64 `json:"sys_bytes"`
	GCCycles   uint32 `json:"gc_cycles"`
}
