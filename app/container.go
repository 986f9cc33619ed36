package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/RezaEskandarii/postfire/internal/db"
	"github.com/RezaEskandarii/postfire/internal/dispatcher"
	"github.com/RezaEskandarii/postfire/internal/gateway"
	"github.com/RezaEskandarii/postfire/internal/lock"
	"github.com/RezaEskandarii/postfire/internal/logging"
	"github.com/RezaEskandarii/postfire/internal/message_broaker"
	"github.com/RezaEskandarii/postfire/internal/scheduler"
	"github.com/RezaEskandarii/postfire/internal/store"
	"github.com/RezaEskandarii/postfire/internal/store/postgres"
	"github.com/RezaEskandarii/postfire/internal/store/redisstore"
	"github.com/RezaEskandarii/postfire/types"
	"github.com/RezaEskandarii/postfire/types/config"
	"github.com/RezaEskandarii/postfire/web"
)

const platformHTTPTimeout = 30 * time.Second

// Container holds all application dependencies. It is the single source of truth
// for dependency injection and ensures connections and services are created once.
type Container struct {
	Config *config.PostfireConfig
	Log    zerolog.Logger

	// Storage connections (created once, shared by all stores)
	DB    *sql.DB
	Redis redis.UniversalClient

	// Stores (implement interfaces for testability)
	JobStore       store.JobStore
	ScheduledPosts store.ScheduledPostStore
	Contents       store.ContentStore
	Tokens         store.TokenStore

	// Infrastructure
	LockManager   lock.DistributedLockManager
	PostLocker    lock.KeyedLocker
	MessageBroker message_broaker.MessageBroker

	Gateway    *gateway.Gateway
	Scheduler  *scheduler.Scheduler
	JobHandler *dispatcher.JobHandler
	Dispatcher *dispatcher.Dispatcher
	API        *web.HttpRouteHandler

	ownsDB    bool
	ownsRedis bool
}

// NewContainer creates and wires all dependencies. Single entry point for DI.
// Call this once per application lifecycle.
// Pass optional WithDB, WithRedis to inject connections for testing.
func NewContainer(ctx context.Context, cfg *config.PostfireConfig, opts ...ContainerOption) (*Container, error) {
	opt := &containerConfig{}
	for _, o := range opts {
		o(opt)
	}

	log := logging.New(cfg.LogLevel, cfg.LogConsole)
	if opt.log != nil {
		log = *opt.log
	}
	log = log.With().Str("instance", cfg.Instance).Logger()

	c := &Container{Config: cfg, Log: log, DB: opt.db, Redis: opt.redis}
	if c.DB == nil || c.Redis == nil {
		if err := c.initStorageConnections(ctx); err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
	}

	c.JobStore = redisstore.NewRedisJobStore(c.Redis,
		redisstore.WithKeyPrefix(cfg.RedisConfig.KeyPrefix),
		redisstore.WithCompletedRetention(cfg.CompletedRetention),
	)
	c.ScheduledPosts = postgres.NewPostgresScheduledPostStore(c.DB)
	c.Contents = postgres.NewPostgresContentStore(c.DB)
	c.Tokens = postgres.NewPostgresTokenStore(c.DB)

	c.LockManager = lock.NewPostgresDistributedLockManager(c.DB)
	c.PostLocker = lock.NewRedisKeyedLocker(c.Redis, cfg.RedisConfig.KeyPrefix, cfg.PostLockTTL, log)

	c.Gateway = gateway.NewGateway(c.tokenProvider(), log, c.gatewayOptions()...)

	schedulerOpts := []scheduler.Option{
		scheduler.WithLocker(c.PostLocker),
		scheduler.WithMaxRetries(cfg.MaxRetries),
	}
	c.MessageBroker = opt.broker
	if c.MessageBroker == nil && cfg.UseEventBroker {
		broker, err := createMessageBroker(cfg)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("init message broker: %w", err)
		}
		c.MessageBroker = broker
	}
	if c.MessageBroker != nil {
		schedulerOpts = append(schedulerOpts, scheduler.WithEvents(message_broaker.NewEventPublisher(c.MessageBroker, log)))
	}
	c.Scheduler = scheduler.NewScheduler(c.JobStore, c.ScheduledPosts, c.Contents, c.Gateway, log, schedulerOpts...)

	c.JobHandler = dispatcher.NewJobHandler()
	if err := c.JobHandler.Register(types.JobTypePublishPost, c.Scheduler.Execute); err != nil {
		c.Close()
		return nil, err
	}
	c.Dispatcher = dispatcher.NewDispatcher(c.JobStore, c.JobHandler, c.LockManager, dispatcher.Settings{
		WorkerCount:            cfg.WorkerCount,
		BatchSize:              cfg.BatchSize,
		TickInterval:           cfg.TickInterval,
		CleanupInterval:        cfg.CleanupInterval,
		HealthInterval:         cfg.HealthInterval,
		FailedRetention:        cfg.FailedRetention,
		StaleProcessingTimeout: cfg.StaleProcessingTimeout,
	}, cfg.Instance, log)

	c.API = web.NewRouteHandler(c.Scheduler, map[string]web.HealthCheck{
		"postgres": c.DB.PingContext,
		"redis":    func(ctx context.Context) error { return c.Redis.Ping(ctx).Err() },
	}, cfg.APIToken, cfg.APIPort, log)

	return c, nil
}

// Migrate applies the embedded schema under the migration advisory lock.
func (c *Container) Migrate(ctx context.Context) error {
	return db.Init(ctx, c.Config.PostgresConfig.ConnectionUrl, c.LockManager, c.Log)
}

// Close releases the connections the container opened itself.
func (c *Container) Close() error {
	var errs []error
	if c.MessageBroker != nil {
		errs = append(errs, c.MessageBroker.Close())
	}
	if c.ownsRedis && c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.ownsDB && c.DB != nil {
		errs = append(errs, c.DB.Close())
	}
	return errors.Join(errs...)
}

// initStorageConnections creates the connections missing from the options and pings them.
func (c *Container) initStorageConnections(ctx context.Context) error {
	if c.DB == nil {
		pg, err := openPostgresDB(c.Config.PostgresConfig.ConnectionUrl)
		if err != nil {
			return err
		}
		c.DB, c.ownsDB = pg, true
	}
	if c.Redis == nil {
		c.ownsRedis = true
		c.Redis = redis.NewClient(&redis.Options{
			Addr:     c.Config.RedisConfig.Address,
			Password: c.Config.RedisConfig.Password,
			DB:       c.Config.RedisConfig.DB,
		})
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.DB.PingContext(pingCtx); err != nil {
		c.Close()
		return fmt.Errorf("ping postgres: %w", err)
	}
	if err := c.Redis.Ping(pingCtx).Err(); err != nil {
		c.Close()
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

func (c *Container) tokenProvider() gateway.TokenProvider {
	if c.Config.TokenCacheTTL <= 0 {
		return gateway.NewStoreTokenProvider(c.Tokens)
	}
	return gateway.NewCachedTokenProvider(c.Tokens, c.Redis, c.Config.RedisConfig.KeyPrefix, c.Config.TokenCacheTTL, c.Log)
}

func (c *Container) gatewayOptions() []gateway.Option {
	httpClient := &http.Client{Timeout: platformHTTPTimeout}

	var opts []gateway.Option
	for platform, pc := range c.Config.Platforms {
		opts = append(opts,
			gateway.WithClient(platform, gateway.NewHTTPPlatformClient(platform, pc.Endpoint, httpClient)),
			gateway.WithRateLimit(platform, pc.RatePerSec, pc.Burst),
		)
	}
	for _, platform := range types.AllPlatforms {
		if _, ok := c.Config.Platforms[platform]; !ok {
			c.Log.Warn().Str("platform", platform.String()).Msg("no endpoint configured, publishes will fail")
		}
	}
	return opts
}

func createMessageBroker(cfg *config.PostfireConfig) (message_broaker.MessageBroker, error) {
	switch cfg.MQDriver {
	case config.RabbitMQ:
		return message_broaker.NewRabbitMQ(
			cfg.RabbitMQConfig.URL,
			cfg.RabbitMQConfig.Exchange,
			cfg.RabbitMQConfig.Queue,
			cfg.RabbitMQConfig.RoutingKey,
		)
	default:
		return nil, fmt.Errorf("unsupported message queue driver: %v", cfg.MQDriver)
	}
}

func openPostgresDB(connectionURL string) (*sql.DB, error) {
	conn, err := sql.Open("postgres", connectionURL)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	return conn, nil
}
