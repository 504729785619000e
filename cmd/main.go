// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Shivanand-hulikatti/foundation-portal/internal/cms"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/config"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/database"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/handler"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/lock"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/repository"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/service"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/session"
	"github.com/Shivanand-hulikatti/foundation-portal/internal/upload"
)

func main() {
	ctx := context.Background()
	cfg := config.Load()
	logger := config.NewLogger(cfg, os.Stderr)
	slog.SetDefault(logger)

	// ── 1. Optional backing services ──────────────────────────────────────
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		client, err := session.NewRedisClient(cfg.RedisURL)
		if err != nil {
			// The identity cache is an optimisation; run without it.
			logger.Warn("redis unavailable, identity cache and seat lock disabled", "error", err)
		} else {
			rdb = client
			defer rdb.Close()
			logger.Info("connected to redis")
		}
	}

	var journal service.OutcomeJournal
	if cfg.DatabaseURL != "" {
		pool, err := database.NewPool(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			logger.Error("database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := database.EnsureSchema(ctx, pool); err != nil {
			logger.Error("database schema", "error", err)
			os.Exit(1)
		}
		journal = repository.NewOutcomeRepository(pool)
		logger.Info("connected to postgres, draft save outcomes are journaled")
	}

	var locker service.Locker
	if cfg.SeatLock {
		if rdb == nil {
			logger.Warn("SEAT_LOCK_ENABLED is set but redis is not configured; registrations run unlocked")
		} else {
			seatLock := lock.NewRedisLocker(rdb, logger)
			// Held across the event read, the identity lookup and the write.
			seatLock.TTL = lock.HoldTTL(3, cfg.CMSTimeout)
			locker = seatLock
		}
	}

	// ── 2. Wire up layers ────────────────────────────────────────────────
	client := cms.New(cfg.CMSURL, cfg.CMSToken, cfg.CMSTimeout, logger)
	identity := session.NewIdentityResolver(client, rdb, cfg.IdentityTTL, logger)
	uploader := upload.New(client, cfg.UploadReconcileDelay, logger)

	router := handler.NewRouter(handler.Deps{
		Events:     service.NewEventService(client, identity, locker, logger),
		Drafts:     service.NewDraftService(client, uploader, journal, logger),
		Sessions:   session.NewVerifier(cfg.SessionSecret),
		CORSOrigin: cfg.CORSOrigin,
		Logger:     logger,
	})

	// ── 3. Start server with graceful shutdown ────────────────────────────
	srv := &http.Server{
		Addr:        cfg.Addr,
		Handler:     router,
		ReadTimeout: 60 * time.Second,
		// Draft saves may run the full upload chain for several files.
		WriteTimeout: 2 * time.Minute,
		IdleTimeout:  60 * time.Second,
	}

	// Run in background goroutine so we can listen for shutdown signal.
	go func() {
		logger.Info("server listening", "addr", cfg.Addr, "cms", cfg.CMSURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Block until SIGINT or SIGTERM.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		return
	}
	logger.Info("server stopped")
}
