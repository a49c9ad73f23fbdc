package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/relayonprem/control-plane/internal/config"
	"github.com/relayonprem/control-plane/internal/crypto"
	"github.com/relayonprem/control-plane/internal/store"
	"github.com/relayonprem/control-plane/internal/webhook"
	"github.com/relayonprem/control-plane/pkg/logger"
)

// Delivers queued webhook events. Runs alongside the API as a separate
// process so slow receivers never occupy request goroutines.
func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := config.Load()

	log := logger.Setup(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	log.Info("webhook_worker_startup", "env", cfg.Env)

	dbURL := cfg.DatabaseURL
	if dbURL == "" {
		log.Error("database_url_missing")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		log.Error("database_pool_create_failed", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		log.Error("database_ping_failed", "error", err)
		os.Exit(1)
	}
	log.Info("database_connected")

	st := store.New(pool)
	urlCheck := webhook.NewURLChecker(cfg.DebugAllowHTTPURLs && !cfg.IsProduction())
	sender := webhook.NewSender(st, urlCheck, crypto.SignPayload)

	worker := webhook.NewWorker(st, sender, 5*time.Second, 20)
	worker.Run(ctx)

	log.Info("webhook_worker_shutdown_complete")
}
