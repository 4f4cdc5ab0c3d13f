package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/oakbooks/ledger/internal/app"
	"github.com/oakbooks/ledger/internal/ledger"
	"github.com/oakbooks/ledger/internal/ledger/accounts"
	"github.com/oakbooks/ledger/internal/ledger/currency"
	"github.com/oakbooks/ledger/internal/ledger/documents"
	"github.com/oakbooks/ledger/internal/platform/cache"
	"github.com/oakbooks/ledger/internal/platform/db"
	"github.com/oakbooks/ledger/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
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

	pool, err := db.New(ctx, cfg.PGDSN)
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cfg.RedisAddr)
	if err != nil {
		// The rate cache degrades to DB+provider lookups without Redis, but
		// asynq itself needs it, so fail hard here.
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	ledgerRepo := ledger.NewRepository(pool)
	info, err := ledgerRepo.GetLedger(ctx, cfg.LedgerID)
	if err != nil {
		logger.Error("load ledger", slog.Int64("ledger_id", cfg.LedgerID), slog.Any("error", err))
		os.Exit(1)
	}

	chart := accounts.NewChart(accounts.NewRepository(pool), info.ID, info.CurrencyID)
	currencyRepo := currency.NewRepository(pool)
	rateSource := currency.NewHTTPRateSource(cfg.RateSourceURL, nil)
	exchange := currency.NewExchange(currencyRepo, rateSource, redisClient, cfg.RateCacheTTL, logger)
	docsRepo := documents.NewRepository(pool)
	svc := ledger.NewService(ledgerRepo, docsRepo, chart, currencyRepo, exchange, info, logger)

	worker := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts: asynq.RedisClientOpt{Addr: cfg.RedisAddr},
		Logger:    logger,
		Handlers:  jobs.NewLedgerHandlers(svc, chart, logger),
	})
	logger.Info("worker starting",
		slog.Int64("ledger_id", info.ID),
		slog.String("base_currency", info.BaseCurrency))
	if err := worker.Run(ctx); err != nil {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
