// Package main is the entrypoint for the secure-tokens API server.
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

	"github.com/arkham-district/secure-tokens/internal/api"
	"github.com/arkham-district/secure-tokens/internal/api/handler"
	mw "github.com/arkham-district/secure-tokens/internal/api/middleware"
	"github.com/arkham-district/secure-tokens/internal/auth"
	"github.com/arkham-district/secure-tokens/internal/cache"
	"github.com/arkham-district/secure-tokens/internal/config"
	"github.com/arkham-district/secure-tokens/internal/metrics"
	"github.com/arkham-district/secure-tokens/internal/sealed"
	"github.com/arkham-district/secure-tokens/internal/store"
	"github.com/arkham-district/secure-tokens/pkg/models"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load config, failing fast on invalid values
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	slog.Info("config loaded",
		"env", cfg.Server.Env,
		"token_environment", cfg.Tokens.Environment,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 2. Connect to database and apply migrations
	pool, err := store.Connect(ctx, cfg.Database)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	slog.Info("database connected")

	// 3. Create Redis cache
	redisCache, err := cache.NewRedisCache(cfg.Redis.URL)
	if err != nil {
		return fmt.Errorf("create redis cache: %w", err)
	}
	defer redisCache.Close()

	if err := redisCache.Ping(ctx); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	slog.Info("redis connected")

	// 4. Build router with dependencies
	router, err := newRouter(cfg, store.NewPostgresStore(pool), redisCache, metrics.New())
	if err != nil {
		return err
	}

	// 5. Start HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		slog.Info("server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// Wait for shutdown signal or server error
	select {
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		slog.Info("shutdown signal received, draining connections...")
	}

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("server stopped gracefully")
	return nil
}

// newRouter wires the token services over s and c.
func newRouter(cfg *config.Config, s store.Store, c cache.Cache, m *metrics.Metrics) (http.Handler, error) {
	box, err := sealed.NewFromBase64(cfg.Tokens.MasterKey)
	if err != nil {
		return nil, fmt.Errorf("create secret box: %w", err)
	}

	owners := auth.NewOwnerRegistry()
	owners.Register(models.OwnerKindTenant, auth.TenantLoader(s))

	resolver := auth.NewResolver(s, owners, box)
	issuer := auth.NewIssuer(s, box, auth.IssuerConfig{
		SecretPrefix: cfg.Tokens.SecretPrefix,
		PublicPrefix: cfg.Tokens.PublicPrefix,
		Environment:  cfg.Tokens.Environment,
		DefaultTTL:   cfg.Tokens.DefaultTTL,
	})
	credentials := handler.NewCredentialsHandler(issuer, m)

	return api.NewRouter(api.Dependencies{
		Auth:      mw.NewAuth(resolver, m),
		RateLimit: mw.NewRateLimit(c, cfg.RateLimit.RequestsPerMinute, m),
		Signature: mw.NewSignature(m),
		Metrics:   m,

		HealthHandler:    handler.NewHealthHandler(s, c),
		MeHandler:        handler.NewMeHandler(),
		ListCredentials:  credentials.List,
		IssueCredential:  credentials.Create,
		RevokeCredential: credentials.Delete,
		VerifyHandler:    handler.NewVerifyHandler(),
	}), nil
}
