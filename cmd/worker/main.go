package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/suPer8Hu/consult-desk/internal/app"
	"github.com/suPer8Hu/consult-desk/internal/config"
	"github.com/suPer8Hu/consult-desk/internal/db"
	"github.com/suPer8Hu/consult-desk/internal/logging"
	"github.com/suPer8Hu/consult-desk/internal/store/rabbitmq"
	"github.com/suPer8Hu/consult-desk/internal/summary"
	"github.com/suPer8Hu/consult-desk/internal/transcript"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", "err", err)
	}
	if cfg.RabbitURL == "" {
		logger.Fatal("RABBIT_URL is required for the summary worker")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatal("db connect", "driver", cfg.DBDriver, "err", err)
	}
	repo := transcript.NewRepo(gdb)

	svc, closeCache, err := app.Summaries(ctx, cfg, repo, logger)
	if err != nil {
		logger.Fatal("summary service", "err", err)
	}
	defer closeCache()

	consumer, err := rabbitmq.NewConsumer(cfg.RabbitURL, cfg.RabbitQueue, cfg.WorkerConcurrency, logger)
	if err != nil {
		logger.Fatal("rabbit consumer", "err", err)
	}
	defer consumer.Close()

	err = consumer.Run(ctx, func(ctx context.Context, job rabbitmq.SummaryJob) error {
		_, err := svc.Regenerate(ctx, job.SessionID, job.Audience)
		if errors.Is(err, summary.ErrSessionNotFound) {
			logger.Warn("summary job for unknown session", "session_id", job.SessionID)
		}
		return err
	})
	if err != nil {
		logger.Error("worker stopped", "err", err)
	}
}
