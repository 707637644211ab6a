package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/cogniseal/cogniseal-ledger/internal/config"
	"github.com/cogniseal/cogniseal-ledger/internal/database"
	"github.com/cogniseal/cogniseal-ledger/internal/fhe"
	"github.com/cogniseal/cogniseal-ledger/internal/handler"
	"github.com/cogniseal/cogniseal-ledger/internal/ledger"
	"github.com/cogniseal/cogniseal-ledger/internal/logger"
	"github.com/cogniseal/cogniseal-ledger/internal/middleware"
	"github.com/cogniseal/cogniseal-ledger/internal/repository"
	"github.com/cogniseal/cogniseal-ledger/internal/router"
	"github.com/cogniseal/cogniseal-ledger/internal/service"
	"github.com/cogniseal/cogniseal-ledger/internal/validator"
	"github.com/cogniseal/cogniseal-ledger/internal/worker"
)

func main() {
	// ─── Load Configuration ────────────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		bootLog := zerolog.New(os.Stderr)
		bootLog.Fatal().Err(err).Msg("Invalid configuration")
	}

	// ─── Initialize Logger ─────────────────────────────────────────────
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat, cfg.LogFile)
	log.Info().
		Str("port", cfg.ServerPort).
		Str("mode", cfg.GinMode).
		Str("store", cfg.StoreDriver).
		Uint64("chain_id", cfg.ChainID).
		Str("contract", cfg.ContractAddress.String()).
		Msg("Starting CogniSeal ledger")

	// ─── Initialize Validator ──────────────────────────────────────────
	validator.Setup()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ─── Connect to Redis ──────────────────────────────────────────────
	rdb, err := database.NewRedisClient(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to Redis")
	}
	defer rdb.Close()

	// ─── Ledger Store ──────────────────────────────────────────────────
	var (
		store       ledger.Store
		ciphertexts fhe.CiphertextStore
	)
	switch cfg.StoreDriver {
	case config.StoreDriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
		}
		defer pool.Close()
		store = repository.NewLedgerRepository(pool)
		ciphertexts = repository.NewCiphertextRepository(pool)
	default:
		log.Warn().Msg("Using in-memory ledger store; state is lost on restart")
		store = ledger.NewMemoryStore()
		ciphertexts = fhe.NewMemoryStore()
	}

	// ─── FHE Coprocessor + Ledger ──────────────────────────────────────
	cop, err := fhe.NewCoprocessor(cfg.ChainID, []byte(cfg.FHEMasterKey), ciphertexts)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize FHE coprocessor")
	}
	logQueue := repository.NewLogQueueRepository(rdb)
	l := ledger.New(cfg.ContractAddress, store, cop, ledger.WithLogSink(logQueue))

	head, err := l.BlockNumber(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read chain head")
	}
	log.Info().Uint64("block", head).Msg("Ledger ready")

	// ─── Initialize Repositories ───────────────────────────────────────
	examCache := repository.NewExamCacheRepository(rdb)
	challenges := repository.NewChallengeRepository(rdb)
	logFeed := repository.NewLogFeedRepository(rdb)

	// ─── Initialize Services ──────────────────────────────────────────
	authService := service.NewAuthService(cfg, challenges)
	examService := service.NewExamService(l, examCache, log)

	// ─── Initialize Middlewares ───────────────────────────────────────
	metrics := middleware.NewMetrics()
	txLimiter := middleware.NewRateLimiter(cfg.TxRatePerMinute)
	limiterStop := make(chan struct{})
	go txLimiter.Run(limiterStop)

	// ─── Initialize Handlers ──────────────────────────────────────────
	handlers := &router.Handlers{
		Auth:   handler.NewAuthHandler(authService, log),
		Exam:   handler.NewExamHandler(l, examService, log),
		Ledger: handler.NewLedgerHandler(l, log),
		Tx:     handler.NewTxHandler(l, metrics, log),
		WS:     handler.NewWSHandler(logFeed, log, cfg.AllowedOrigins),
	}

	// ─── Start Background Workers ─────────────────────────────────────
	workerCtx, workerCancel := context.WithCancel(context.Background())
	workerDone := make(chan struct{})

	relayWorker := worker.NewRelayWorker(logQueue, logFeed, examService, log)
	go func() {
		relayWorker.Start(workerCtx)
		close(workerDone)
	}()

	// ─── Setup Router ──────────────────────────────────────────────────
	r := router.SetupRouter(authService, examService, handlers, &router.Middlewares{
		Metrics:   metrics,
		TxLimiter: txLimiter,
	}, cfg)

	// ─── Create HTTP Server ────────────────────────────────────────────
	srv := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ─── Start Server in Goroutine ─────────────────────────────────────
	go func() {
		log.Info().Str("addr", ":"+cfg.ServerPort).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server error")
		}
	}()

	// ─── Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	log.Info().Str("signal", sig.String()).Msg("Shutting down gracefully...")

	// 1. Stop accepting new HTTP requests (5s timeout).
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	// 2. Stop background workers and let the relay flush its batch.
	close(limiterStop)
	workerCancel()
	select {
	case <-workerDone:
	case <-time.After(5 * time.Second):
		log.Warn().Msg("Relay worker did not stop in time")
	}

	log.Info().Msg("Shutdown complete")
}

// init sets zerolog global defaults before main runs.
func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
