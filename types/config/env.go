package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type envConfig struct {
	Instance string `envconfig:"INSTANCE" default:"postfire-1"`
	APIPort  uint   `envconfig:"API_PORT" default:"8080"`
	APIToken string `envconfig:"API_TOKEN"`

	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"`
	LogConsole bool   `envconfig:"LOG_CONSOLE" default:"false"`

	PostgresURL   string `envconfig:"DATABASE_URL" required:"true"`
	RedisAddress  string `envconfig:"REDIS_ADDRESS" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	RedisPrefix   string `envconfig:"REDIS_PREFIX" default:"postfire"`

	WorkerCount            int           `envconfig:"WORKER_COUNT" default:"10"`
	BatchSize              int           `envconfig:"BATCH_SIZE" default:"100"`
	MaxRetries             int           `envconfig:"MAX_RETRIES" default:"3"`
	TickInterval           time.Duration `envconfig:"TICK_INTERVAL" default:"60s"`
	CleanupInterval        time.Duration `envconfig:"CLEANUP_INTERVAL" default:"1h"`
	HealthInterval         time.Duration `envconfig:"HEALTH_INTERVAL" default:"5m"`
	FailedRetention        time.Duration `envconfig:"FAILED_RETENTION" default:"168h"`
	StaleProcessingTimeout time.Duration `envconfig:"STALE_PROCESSING_TIMEOUT" default:"15m"`
	CompletedRetention     time.Duration `envconfig:"COMPLETED_RETENTION" default:"24h"`
	PostLockTTL            time.Duration `envconfig:"POST_LOCK_TTL" default:"2m"`
	TokenCacheTTL          time.Duration `envconfig:"TOKEN_CACHE_TTL" default:"10m"`

	// PLATFORM_ENDPOINTS=twitter=https://x.example/api,linkedin=https://li.example/api
	PlatformEndpoints []string `envconfig:"PLATFORM_ENDPOINTS"`
	PlatformRate      float64  `envconfig:"PLATFORM_RATE_PER_SEC" default:"5"`
	PlatformBurst     int      `envconfig:"PLATFORM_BURST" default:"5"`

	RabbitMQURL      string `envconfig:"RABBITMQ_URL"`
	RabbitMQExchange string `envconfig:"RABBITMQ_EXCHANGE" default:"postfire.events"`
	RabbitMQQueue    string `envconfig:"RABBITMQ_QUEUE" default:"postfire.events"`
	RabbitMQBinding  string `envconfig:"RABBITMQ_BINDING_KEY" default:"post.#"`
}

// FromEnv builds a PostfireConfig from POSTFIRE_* environment variables, reading .env first.
func FromEnv() (*PostfireConfig, error) {
	// a missing .env is fine, variables may come from the shell
	_ = godotenv.Load(".env")

	var env envConfig
	if err := envconfig.Process("POSTFIRE", &env); err != nil {
		return nil, fmt.Errorf("read environment: %w", err)
	}
	return env.build()
}

func (e envConfig) build() (*PostfireConfig, error) {
	opts := []ContainerOption{
		WithAPIPort(e.APIPort),
		WithAPIToken(e.APIToken),
		WithLogLevel(e.LogLevel, e.LogConsole),
		WithPostgresConfig(PostgresConfig{ConnectionUrl: e.PostgresURL}),
		WithRedisConfig(RedisConfig{
			Address:   e.RedisAddress,
			Password:  e.RedisPassword,
			DB:        e.RedisDB,
			KeyPrefix: e.RedisPrefix,
		}),
		WithWorkerCount(e.WorkerCount),
		WithBatchSize(e.BatchSize),
		WithMaxRetries(e.MaxRetries),
		WithTickInterval(e.TickInterval),
		WithCleanupInterval(e.CleanupInterval),
		WithHealthInterval(e.HealthInterval),
		WithFailedRetention(e.FailedRetention),
		WithStaleProcessingTimeout(e.StaleProcessingTimeout),
		WithCompletedRetention(e.CompletedRetention),
		WithPostLockTTL(e.PostLockTTL),
		WithTokenCacheTTL(e.TokenCacheTTL),
	}
	for _, pair := range e.PlatformEndpoints {
		name, endpoint, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid platform endpoint %q, want name=url", pair)
		}
		opts = append(opts, WithPlatformEndpoint(strings.TrimSpace(name), strings.TrimSpace(endpoint), e.PlatformRate, e.PlatformBurst))
	}
	if e.RabbitMQURL != "" {
		opts = append(opts, WithRabbitMQConfig(RabbitMQConfig{
			URL:        e.RabbitMQURL,
			Exchange:   e.RabbitMQExchange,
			Queue:      e.RabbitMQQueue,
			RoutingKey: e.RabbitMQBinding,
		}))
	}
	return NewPostfireConfig(e.Instance, opts...)
}
