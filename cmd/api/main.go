package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/learning-analytics-service/internal/cache"
	"github.com/BarkinBalci/learning-analytics-service/internal/config"
	"github.com/BarkinBalci/learning-analytics-service/internal/handler"
	"github.com/BarkinBalci/learning-analytics-service/internal/logger"
	"github.com/BarkinBalci/learning-analytics-service/internal/queue/sqs"
	"github.com/BarkinBalci/learning-analytics-service/internal/repository/postgres"
	"github.com/BarkinBalci/learning-analytics-service/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	// Initialize logger
	log, err := logger.New(cfg.Service.Environment)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer func(log *zap.Logger) {
		err := log.Sync()
		if err != nil {
			log.Error("Failed to sync logger", zap.Error(err))
		}
	}(log)

	log.Info("Starting API service",
		zap.String("environment", cfg.Service.Environment),
		zap.String("port", cfg.Service.APIPort))

	ctx := context.Background()

	// Initialize SQS client
	sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
	if err != nil {
		log.Fatal("Failed to create SQS client", zap.Error(err))
	}

	// Initialize Postgres client
	pgClient, err := postgres.NewClient(ctx, &cfg.Postgres, log)
	if err != nil {
		log.Fatal("Failed to create Postgres client", zap.Error(err))
	}
	defer func(pgClient *postgres.Client) {
		if err := pgClient.Close(); err != nil {
			log.Error("Failed to close Postgres client", zap.Error(err))
		}
	}(pgClient)

	// Initialize repository
	repo := postgres.NewRepository(pgClient, log)

	if err := repo.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}

	// Initialize redis client and cache accessors
	rdb, err := cache.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		log.Fatal("Failed to create redis client", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Error("Failed to close redis client", zap.Error(err))
		}
	}()

	metricsCache := cache.NewMetricsCache(rdb, log)
	aggCache := cache.NewAggregationCache(rdb, log)

	// Initialize the ingestion engine for the synchronous path
	stats := service.NewStatsTracker()
	aggregator := service.NewAggregator(aggCache, log)
	processor := service.NewProcessor(repo, metricsCache, aggregator, stats, sqsClient, log)

	// The synchronous path marks buckets pending and users dirty, so this
	// binary runs its own flush cycle. The upserts are idempotent, which
	// makes running it alongside the consumer's cycle safe.
	flusher := service.NewFlusher(repo, aggCache, metricsCache, service.FlusherConfig{
		Interval:  time.Duration(cfg.Flush.IntervalSec) * time.Second,
		BatchSize: cfg.Flush.BatchSize,
	}, log)

	flushCtx, stopFlusher := context.WithCancel(ctx)
	defer stopFlusher()

	flusherDone := make(chan struct{})
	go func() {
		defer close(flusherDone)
		flusher.Start(flushCtx)
	}()

	// Initialize handler
	h := handler.NewHandler(processor, sqsClient, log)

	addr := fmt.Sprintf(":%s", cfg.Service.APIPort)
	server := &http.Server{Addr: addr, Handler: h}

	go func() {
		log.Info("API server starting", zap.String("address", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start API server", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down API service gracefully")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Failed to shut down API server", zap.Error(err))
	}

	// Stop the flush cycle and wait for its final drain to finish.
	stopFlusher()
	<-flusherDone
}
