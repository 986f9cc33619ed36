package app

import (
	"database/sql"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/RezaEskandarii/postfire/internal/message_broaker"
)

// ContainerOption configures Container creation. Used for testing and customization.
type ContainerOption func(*containerConfig)

type containerConfig struct {
	// Optional: inject connections instead of creating them from config
	db     *sql.DB
	redis  redis.UniversalClient
	broker message_broaker.MessageBroker
	log    *zerolog.Logger
}

// WithDB injects a custom database connection. Useful for testing.
func WithDB(db *sql.DB) ContainerOption {
	return func(c *containerConfig) {
		c.db = db
	}
}

// WithRedis injects a custom Redis client. Useful for testing.
func WithRedis(redis redis.UniversalClient) ContainerOption {
	return func(c *containerConfig) {
		c.redis = redis
	}
}

// WithMessageBroker replaces the RabbitMQ connection built from config.
func WithMessageBroker(broker message_broaker.MessageBroker) ContainerOption {
	return func(c *containerConfig) {
		c.broker = broker
	}
}

func WithLogger(log zerolog.Logger) ContainerOption {
	return func(c *containerConfig) {
		c.log = &log
	}
}
