package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Service struct {
	Environment string `envconfig:"SERVICE_ENVIRONMENT" required:"true"`
	APIPort     string `envconfig:"SERVICE_API_PORT" default:"8080"`
}

type SQS struct {
	Endpoint string `envconfig:"SQS_ENDPOINT"`
	QueueURL string `envconfig:"SQS_QUEUE_URL" required:"true"`
	Region   string `envconfig:"SQS_REGION" required:"true"`
}

type Postgres struct {
	Host            string `envconfig:"POSTGRES_HOST" required:"true"`
	Port            string `envconfig:"POSTGRES_PORT" default:"5432"`
	Database        string `envconfig:"POSTGRES_DB" required:"true"`
	User            string `envconfig:"POSTGRES_USER" required:"true"`
	Password        string `envconfig:"POSTGRES_PASSWORD" default:""`
	SSLMode         string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns        int32  `envconfig:"POSTGRES_MAX_CONNS" default:"10"`
	ConnLifetimeSec int    `envconfig:"POSTGRES_CONN_MAX_LIFETIME_SEC" default:"3600"`
}

type Redis struct {
	Host     string `envconfig:"REDIS_HOST" required:"true"`
	Port     string `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type Consumer struct {
	MaxMessages     int32  `envconfig:"CONSUMER_MAX_MESSAGES" default:"10"`
	WaitTimeSeconds int32  `envconfig:"CONSUMER_WAIT_TIME_SEC" default:"20"`
	BufferSize      int    `envconfig:"CONSUMER_BUFFER_SIZE" default:"100"`
	HealthCheckPort string `envconfig:"CONSUMER_HEALTH_CHECK_PORT" default:"8081"`
}

type Flush struct {
	IntervalSec int `envconfig:"FLUSH_INTERVAL_SEC" default:"5"`
	BatchSize   int `envconfig:"FLUSH_BATCH_SIZE" default:"1000"`
}

type Config struct {
	Service  Service
	SQS      SQS
	Postgres Postgres
	Redis    Redis
	Consumer Consumer
	Flush    Flush
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	return &cfg, nil
}
