package cache

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	envConfig "github.com/BarkinBalci/learning-analytics-service/internal/config"
)

// NewClient creates a redis client and verifies the connection
func NewClient(ctx context.Context, cfg envConfig.Redis, log *zap.Logger) (*goredis.Client, error) {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)

	log.Info("Connecting to redis",
		zap.String("addr", addr),
		zap.Int("db", cfg.DB))

	rdb := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	log.Info("Redis connection established successfully")
	return rdb, nil
}
