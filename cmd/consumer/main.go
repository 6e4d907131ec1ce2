package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/BarkinBalci/learning-analytics-service/internal/cache"
	"github.com/BarkinBalci/learning-analytics-service/internal/config"
	"github.com/BarkinBalci/learning-analytics-service/internal/consumer"
	"github.com/BarkinBalci/learning-analytics-service/internal/logger"
	"github.com/BarkinBalci/learning-analytics-service/internal/queue/sqs"
	"github.com/BarkinBalci/learning-analytics-service/internal/repository/postgres"
	"github.com/BarkinBalci/learning-analytics-service/internal/service"
)

func main() {
	// Load configuration
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

	log.Info("Starting consumer service",
		zap.String("environment", cfg.Service.Environment))

	ctx := context.Background()

	// Initialize Postgres client
	pgClient, err := postgres.NewClient(ctx, &cfg.Postgres, log)
	if err != nil {
		log.Fatal("Failed to create Postgres client", zap.Error(err))
	}
	defer func() {
		if err := pgClient.Close(); err != nil {
			log.Error("Failed to close Postgres client", zap.Error(err))
		}
	}()

	// Initialize repository
	repo := postgres.NewRepository(pgClient, log)

	// Initialize schema (create tables if not exist)
	if err := repo.InitSchema(ctx); err != nil {
		log.Fatal("Failed to initialize schema", zap.Error(err))
	}
	log.Info("Database schema initialized")

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

	// Initialize SQS client
	sqsClient, err := sqs.NewClient(ctx, cfg.SQS, log)
	if err != nil {
		log.Fatal("Failed to create SQS client", zap.Error(err))
	}

	// Initialize the ingestion engine
	stats := service.NewStatsTracker()
	aggregator := service.NewAggregator(aggCache, log)
	processor := service.NewProcessor(repo, metricsCache, aggregator, stats, sqsClient, log)

	processor.SubscribeStruggling(func(signal service.StrugglingSignal) {
		log.Warn("Struggling student detected",
			zap.String("user_id", signal.UserID),
			zap.String("assessment_id", signal.AssessmentID),
			zap.Float64("score", signal.Score),
			zap.Int("attempts", signal.Attempts))
	})

	// Initialize the batch flush cycle
	flusher := service.NewFlusher(repo, aggCache, metricsCache, service.FlusherConfig{
		Interval:  time.Duration(cfg.Flush.IntervalSec) * time.Second,
		BatchSize: cfg.Flush.BatchSize,
	}, log)

	// Initialize consumer
	c := consumer.NewConsumer(cfg, sqsClient, processor, stats, log)

	// Start health check endpoint
	go func() {
		http.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			if err := repo.Ping(r.Context()); err != nil {
				log.Warn("Health check failed", zap.Error(err))
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.WriteHeader(http.StatusOK)
		})

		addr := ":" + cfg.Consumer.HealthCheckPort
		log.Info("Health check server starting", zap.String("address", addr))
		if err := http.ListenAndServe(addr, nil); err != nil {
			log.Error("Health check server error", zap.Error(err))
		}
	}()

	consumerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start the flush cycle
	flusherDone := make(chan struct{})
	go func() {
		defer close(flusherDone)
		flusher.Start(consumerCtx)
	}()

	// Start consumer
	log.Info("Consumer starting")

	go func() {
		if err := c.Start(consumerCtx); err != nil {
			log.Fatal("Consumer error", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	log.Info("Shutting down consumer gracefully")
	cancel()

	// Wait for the flush cycle's final drain before exiting.
	<-flusherDone
}
