package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/BarkinBalci/learning-analytics-service/internal/config"
)

// Client wraps the Postgres connection pool
type Client struct {
	pool   *pgxpool.Pool
	config *config.Postgres
	log    *zap.Logger
}

// NewClient creates a new Postgres client with the given configuration
func NewClient(ctx context.Context, config *config.Postgres, log *zap.Logger) (*Client, error) {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		config.User, config.Password, config.Host, config.Port, config.Database, config.SSLMode)

	log.Info("Connecting to Postgres",
		zap.String("host", config.Host),
		zap.String("port", config.Port),
		zap.String("database", config.Database))

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Postgres config: %w", err)
	}
	poolConfig.MaxConns = config.MaxConns
	poolConfig.MaxConnLifetime = time.Duration(config.ConnLifetimeSec) * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		log.Error("Failed to connect to Postgres", zap.Error(err))
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		log.Error("Failed to ping Postgres", zap.Error(err))
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	log.Info("Postgres connection established successfully")

	return &Client{pool: pool, config: config, log: log}, nil
}

// Pool returns the underlying connection pool
func (c *Client) Pool() *pgxpool.Pool {
	return c.pool
}

// Close closes the Postgres connection pool
func (c *Client) Close() error {
	c.log.Info("Closing Postgres connection pool")
	c.pool.Close()
	return nil
}
