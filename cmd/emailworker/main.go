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
	"github.com/relayonprem/control-plane/internal/notify"
	"github.com/relayonprem/control-plane/internal/store"
	"github.com/relayonprem/control-plane/pkg/logger"
)

// Drains the email queue over SMTP. Without SMTP configured the queue just
// accumulates, so this process refuses to start rather than spin uselessly.
func main() {
	_ = godotenv.Load(".env.local")
	_ = godotenv.Load()

	cfg := config.Load()

	log := logger.Setup(cfg.Env, cfg.LogLevel, cfg.LogFormat)
	log.Info("email_worker_startup", "env", cfg.Env)

	dbURL := cfg.DatabaseURL
	if dbURL == "" {
		log.Error("database_url_missing")
		os.Exit(1)
	}

	sender, err := notify.NewSMTPSender(notify.SMTPConfig{
		Host:             cfg.SMTPHost,
		Port:             cfg.SMTPPort,
		User:             cfg.SMTPUser,
		Password:         cfg.SMTPPassword,
		TLSMode:          cfg.SMTPTLSMode,
		From:             cfg.EmailFrom,
		ReplyTo:          cfg.EmailReplyTo,
		AllowPrivateHost: !cfg.IsProduction(),
	})
	if err != nil {
		log.Error("smtp_config_invalid", "error", err)
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

	worker := notify.NewEmailWorker(st, sender, 10*time.Second, 20)
	worker.Run(ctx)

	log.Info("email_worker_shutdown_complete")
}
