package config

import "time"

const (
	DefaultLogLevel               = "info"
	DefaultWorkerCount            = 10
	DefaultBatchSize              = 100
	DefaultTickInterval           = 60 * time.Second
	DefaultCleanupInterval        = time.Hour
	DefaultHealthInterval         = 5 * time.Minute
	DefaultFailedRetention        = 7 * 24 * time.Hour
	DefaultCompletedRetention     = 24 * time.Hour
	DefaultStaleProcessingTimeout = 15 * time.Minute
	DefaultPostLockTTL            = 2 * time.Minute
	DefaultTokenCacheTTL          = 10 * time.Minute
	DefaultRedisAddress           = "localhost:6379"
	DefaultKeyPrefix              = "postfire"
	DefaultPlatformRatePerSec     = 5
	DefaultEventExchange          = "postfire.events"
	DefaultEventBindingKey        = "post.#"
)
