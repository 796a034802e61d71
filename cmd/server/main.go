package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	httpapi "github.com/streampay/streampay/internal/api/http"
	"github.com/streampay/streampay/internal/application/history"
	"github.com/streampay/streampay/internal/application/policy"
	"github.com/streampay/streampay/internal/application/rate"
	"github.com/streampay/streampay/internal/application/reconcile"
	appStream "github.com/streampay/streampay/internal/application/stream"
	"github.com/streampay/streampay/internal/config"
	"github.com/streampay/streampay/internal/domain/ledger"
	"github.com/streampay/streampay/internal/infrastructure/metrics"
	"github.com/streampay/streampay/internal/infrastructure/postgres"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := newLogger(cfg)

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db error: %v", err)
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool, cfg.MigrationsDir); err != nil {
		log.Fatalf("migration error: %v", err)
	}

	// repositories
	streamRepo := postgres.NewStreamRepository(pool)
	eventRepo := postgres.NewEventRepository(pool)
	accountLedger := postgres.NewAccountLedger(pool)
	idSource := postgres.NewIDSource(pool)
	txRunner := postgres.NewTxRunner(pool)

	createPolicy, err := policy.New(cfg.CreatePolicy)
	if err != nil {
		log.Fatalf("create policy error: %v", err)
	}

	// services
	m := metrics.New()
	streamSvc := appStream.NewService(streamRepo, eventRepo, txRunner, accountLedger, ledger.SystemClock{}, idSource, createPolicy, m, logger)
	rateSvc := rate.NewService(streamRepo, ledger.SystemClock{}, logger)
	historySvc := history.NewService(eventRepo, logger)
	reconcileSvc := reconcile.NewService(streamRepo, eventRepo, logger)

	apiServer := httpapi.NewServer(streamSvc, rateSvc, historySvc, reconcileSvc, accountLedger)

	httpServer := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", cfg.ServerAddr).Msg("http server started")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	ctxShutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	logger := zerolog.New(os.Stdout).Level(level).With().Timestamp().Logger()
	if cfg.LogPretty {
		logger = logger.Output(zerolog.ConsoleWriter{Out: os.Stdout})
	}
	return logger
}
