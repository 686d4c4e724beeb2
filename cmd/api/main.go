// AngelaMos | 2026
// main.go

package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aquasense/sonda-api/internal/access"
	"github.com/aquasense/sonda-api/internal/admin"
	"github.com/aquasense/sonda-api/internal/auth"
	"github.com/aquasense/sonda-api/internal/branch"
	"github.com/aquasense/sonda-api/internal/config"
	"github.com/aquasense/sonda-api/internal/core"
	"github.com/aquasense/sonda-api/internal/health"
	"github.com/aquasense/sonda-api/internal/installation"
	"github.com/aquasense/sonda-api/internal/middleware"
	"github.com/aquasense/sonda-api/internal/process"
	"github.com/aquasense/sonda-api/internal/sensor"
	"github.com/aquasense/sonda-api/internal/server"
	"github.com/aquasense/sonda-api/internal/task"
	"github.com/aquasense/sonda-api/internal/user"
)

func main() {
	configPath := flag.String("config", "", "optional YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		slog.Error("sonda-api exited", "error", err)
		os.Exit(1)
	}
}

// backends holds the long-lived connections every module shares.
type backends struct {
	db        *core.Database
	redis     *core.Redis
	signer    *auth.TokenSigner
	telemetry *core.Telemetry
}

func (b *backends) close(ctx context.Context, logger *slog.Logger) {
	if b.telemetry != nil {
		if err := b.telemetry.Shutdown(ctx); err != nil {
			logger.Error("flush traces", "error", err)
		}
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil {
			logger.Error("close redis", "error", err)
		}
	}
	if b.db != nil {
		if err := b.db.Close(); err != nil {
			logger.Error("close database", "error", err)
		}
	}
}

func run(configPath string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)
	core.ExposeInternalErrors(!cfg.IsProduction())

	logger.Info("sonda-api starting",
		"version", cfg.App.Version,
		"environment", cfg.App.Environment,
		"delete_rule", cfg.Access.DeleteRule,
	)

	b, err := connect(ctx, cfg, logger)
	if err != nil {
		b.close(context.Background(), logger)
		return err
	}

	probes := health.NewHandler(
		health.Dependency{Name: "database", Checker: b.db},
		health.Dependency{Name: "redis", Checker: b.redis, Optional: true},
	)

	srv := server.New(server.Config{
		ServerConfig:  cfg.Server,
		HealthHandler: probes,
		Logger:        logger,
	})
	mount(srv.Router(), cfg, b, probes, logger)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.Start() }()

	select {
	case err := <-serveErr:
		b.close(context.Background(), logger)
		return err
	case <-ctx.Done():
		logger.Info("signal received, draining", "drain_delay", cfg.Server.DrainDelay)
	}

	shutdownCtx, cancel := context.WithTimeout(
		context.Background(),
		cfg.Server.DrainDelay+cfg.Server.ShutdownTimeout,
	)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx, cfg.Server.DrainDelay); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	b.close(shutdownCtx, logger)

	logger.Info("sonda-api stopped")
	return nil
}

// connect opens storage and signing keys in dependency order. On error the
// partially filled backends is still returned for cleanup.
func connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*backends, error) {
	b := &backends{}

	if cfg.Otel.Enabled {
		tel, err := core.NewTelemetry(ctx, cfg.Otel, cfg.App)
		if err != nil {
			logger.Warn("tracing disabled", "error", err)
		} else {
			b.telemetry = tel
			logger.Info("tracing enabled", "endpoint", cfg.Otel.Endpoint)
		}
	}

	if cfg.Database.Migrate {
		if err := core.Migrate(cfg.Database.URL, logger); err != nil {
			return b, err
		}
	}

	db, err := core.NewDatabase(ctx, cfg.Database)
	if err != nil {
		return b, err
	}
	b.db = db

	rdb, err := core.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return b, err
	}
	b.redis = rdb

	signer, err := auth.NewTokenSigner(cfg.Tokens)
	if err != nil {
		return b, err
	}
	b.signer = signer

	logger.Info("backends ready",
		"db_pool", cfg.Database.MaxOpenConns,
		"redis_pool", cfg.Redis.PoolSize,
		"token_kid", signer.KeyID(),
		"access_ttl", signer.AccessTTL(),
	)

	return b, nil
}

func newPolicy(cfg config.AccessConfig, loader access.FactsLoader, logger *slog.Logger) *access.Policy {
	policy := access.NewPolicy(loader, logger)
	if cfg.DeleteRule == config.DeleteRuleCreator {
		policy = policy.WithRule(access.ActionDelete, access.Creator)
	}
	return policy
}

func mount(
	router *chi.Mux,
	cfg *config.Config,
	b *backends,
	healthHandler *health.Handler,
	logger *slog.Logger,
) {
	tx := core.NewTxRunner(b.db.DB)

	users := user.NewService(user.NewRepository(b.db.DB, tx), logger)
	sessions := auth.NewService(
		auth.NewRepository(b.db.DB),
		b.signer,
		users,
		auth.NewRedisRevocationList(b.redis.Client),
		logger,
	)

	grants := access.NewRepository(b.db.DB)
	policy := newPolicy(cfg.Access, grants, logger)

	router.Use(middleware.RequestID)
	if b.telemetry != nil {
		router.Use(middleware.Trace)
	}
	router.Use(
		middleware.Recoverer(logger),
		middleware.Logger(logger),
	)
	if cfg.Metrics.Enabled {
		router.Use(middleware.Metrics)
	}
	router.Use(
		middleware.SecurityHeaders(cfg.IsProduction()),
		middleware.CORS(cfg.CORS),
		middleware.Timeout(cfg.Server.RequestTimeout),
		middleware.MaxBody(cfg.Server.MaxBodyBytes),
		middleware.NewRateLimiter(b.redis.Client, middleware.RateLimitConfig{
			Limit:    middleware.Window(cfg.RateLimit.Requests, cfg.RateLimit.Burst, cfg.RateLimit.Window),
			FailOpen: true,
		}).Handler,
	)

	healthHandler.RegisterRoutes(router)
	if cfg.Metrics.Enabled {
		router.Handle(cfg.Metrics.Path, promhttp.Handler())
	}
	router.Get("/.well-known/jwks.json", b.signer.JWKS())

	authenticator := middleware.Authenticator(sessions)
	adminOnly := middleware.RequireAccountAdmin
	loginLimiter := middleware.NewRateLimiter(b.redis.Client, middleware.RateLimitConfig{
		Limit:    middleware.Window(cfg.RateLimit.AuthRequests, cfg.RateLimit.AuthBurst, cfg.RateLimit.Window),
		KeyFunc:  middleware.KeyByIPAndEndpoint,
		FailOpen: true,
	}).Handler

	stats := admin.NewHandler(admin.HandlerConfig{
		Stats:      admin.NewStatsRepository(b.db.DB),
		DBStats:    b.db.Stats,
		DBPing:     b.db.Ping,
		RedisStats: b.redis.PoolStats,
		RedisPing:  b.redis.Ping,
	})

	router.Route("/v1", func(r chi.Router) {
		auth.NewHandler(sessions).RegisterRoutes(
			r, authenticator, middleware.OptionalAuth(sessions), loginLimiter,
		)

		userHandler := user.NewHandler(users, sessions)
		userHandler.RegisterRoutes(r, authenticator)
		userHandler.RegisterAdminRoutes(r, authenticator, adminOnly)
		stats.RegisterRoutes(r, authenticator, adminOnly)

		branch.NewHandler(branch.NewRepository(b.db.DB)).RegisterRoutes(r, authenticator)
		installation.NewHandler(installation.NewService(
			installation.NewRepository(b.db.DB, tx), policy, logger,
		)).RegisterRoutes(r, authenticator)
		access.NewHandler(access.NewService(policy, grants, logger)).RegisterRoutes(r, authenticator)
		sensor.NewHandler(sensor.NewService(sensor.NewRepository(b.db.DB), policy)).
			RegisterRoutes(r, authenticator)
		task.NewHandler(task.NewService(task.NewRepository(b.db.DB), policy, logger)).
			RegisterRoutes(r, authenticator)
		process.NewHandler(process.NewService(process.NewRepository(b.db.DB), policy)).
			RegisterRoutes(r, authenticator)
	})
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(cfg.Level))); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "text") {
		return slog.New(slog.NewTextHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewJSONHandler(os.Stdout, opts))
}
