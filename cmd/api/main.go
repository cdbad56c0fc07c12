package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/suPer8Hu/consult-desk/internal/app"
	"github.com/suPer8Hu/consult-desk/internal/config"
	"github.com/suPer8Hu/consult-desk/internal/consult"
	"github.com/suPer8Hu/consult-desk/internal/db"
	"github.com/suPer8Hu/consult-desk/internal/gateway"
	"github.com/suPer8Hu/consult-desk/internal/httpapi"
	"github.com/suPer8Hu/consult-desk/internal/httpapi/handlers"
	"github.com/suPer8Hu/consult-desk/internal/logging"
	"github.com/suPer8Hu/consult-desk/internal/store/rabbitmq"
	"github.com/suPer8Hu/consult-desk/internal/transcript"
)

func main() {
	cfg := config.Load()
	logger := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", "err", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DBDriver, cfg.DBDSN)
	if err != nil {
		logger.Fatal("db connect", "driver", cfg.DBDriver, "err", err)
	}
	repo := transcript.NewRepo(gdb)

	summaries, closeCache, err := app.Summaries(ctx, cfg, repo, logger)
	if err != nil {
		logger.Fatal("summary service", "err", err)
	}
	defer closeCache()

	opts := consult.Options{
		PurgeDelay:         cfg.PurgeDelay,
		MirrorTimeout:      cfg.MirrorTimeout,
		WaitingExcludeRole: cfg.WaitingExcludeRole,
	}
	if cfg.AutoSummary && cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			logger.Fatal("rabbit publisher", "err", err)
		}
		defer pub.Close()
		opts.Queue = pub
		opts.SummaryAudiences = []transcript.Audience{transcript.AudienceUser, transcript.AudienceConsultant}
		logger.Info("auto summary enabled", "queue", cfg.RabbitQueue)
	}

	orch := consult.NewOrchestrator(repo, logger, opts)
	defer orch.Shutdown()

	h := handlers.NewHandler(summaries, gateway.New(orch, logger, cfg.CORSOrigin), logger)
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           httpapi.NewRouter(cfg, h),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("api listening", "addr", cfg.HTTPAddr, "ai_provider", cfg.AIProvider, "db", cfg.DBDriver)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("http server", "err", err)
		}
	}()

	<-ctx.Done()
	logger.Info("api shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "err", err)
	}
}
