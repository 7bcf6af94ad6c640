package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/medisys/hms/internal/app"
	"github.com/medisys/hms/internal/auth"
	"github.com/medisys/hms/internal/facility/rooms"
	"github.com/medisys/hms/internal/observability"
	"github.com/medisys/hms/internal/platform/cache"
	"github.com/medisys/hms/internal/platform/db"
	"github.com/medisys/hms/internal/rbac"
	"github.com/medisys/hms/internal/shared"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := app.NewLogger(cfg)

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("hms stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *app.Config, logger *slog.Logger) error {
	pool, err := db.New(ctx, cfg.PGDSN, db.Options{MaxConns: cfg.PGMaxConns})
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	applied, err := db.Migrate(ctx, pool)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	if len(applied) > 0 {
		logger.Info("migrations applied", slog.Any("versions", applied))
	}

	var redisClient *redis.Client
	if !cfg.RBACDisablePubSub {
		redisClient, err = cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		if err != nil {
			// Invalidations stay process local; other replicas converge via the cache TTL.
			logger.Warn("redis unavailable, rbac invalidation is local only", slog.Any("error", err))
			redisClient = nil
		} else {
			defer func() {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", slog.Any("error", err))
				}
			}()
		}
	}

	metrics := observability.NewMetrics()
	rbacMetrics := rbac.NewMetrics(metrics.Registerer())

	store := rbac.NewPGStore(pool)
	permissionCache := rbac.NewCache(store, cfg.RBACCacheTTL, rbac.WithCacheMetrics(rbacMetrics))
	defer permissionCache.Close()
	invalidator := rbac.NewRedisInvalidator(permissionCache, redisClient, cfg.RBACInvalidationChannel, logger)

	tokens, err := auth.NewManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.SessionTimeout)
	if err != nil {
		return fmt.Errorf("jwt: %w", err)
	}

	registry := app.DeclareRoutes(rbac.NewRegistry())
	authorizer := rbac.NewAuthorizer(registry, permissionCache)
	router := app.NewRouter(app.RouterParams{
		Logger:       logger,
		Config:       cfg,
		Verifier:     tokens,
		Filter:       rbac.NewFilter(authorizer, logger, rbacMetrics),
		Metrics:      metrics,
		RBACHandler:  rbac.NewHandler(logger, rbac.NewService(store, invalidator)).WithAudit(shared.NewAuditLogger(pool)),
		RoomsHandler: rooms.NewHandler(logger, rooms.NewService(rooms.NewRepository(pool))),
	})
	if err := registry.Verify(router); err != nil {
		return fmt.Errorf("route declarations: %w", err)
	}

	seeder := rbac.NewSeeder(store, registry, invalidator, rbac.SeederConfig{
		AdminRole:   cfg.RBACAdminRole,
		CreateAdmin: true,
	}, logger)
	if _, err := seeder.Seed(ctx); err != nil {
		return fmt.Errorf("seed permission catalog: %w", err)
	}

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := invalidator.Listen(gctx, nil); err != nil {
			logger.Warn("rbac invalidation listener stopped", slog.Any("error", err))
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown", slog.Any("error", err))
		}
		return nil
	})
	return g.Wait()
}
