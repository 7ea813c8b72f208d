package engine

import (
	"time"

	"mdmdispatch/internal/config"
)

const (
	defaultWorkers             = 10
	defaultQueueSize           = 10000
	defaultMaxRetries          = 5
	defaultPushTimeout         = 10 * time.Second
	defaultRetryBackoffInitial = 100 * time.Millisecond
	defaultRetryBackoffMax     = 5 * time.Second
)

// Config holds configuration for the dispatch engine.
type Config struct {
	Workers             int           // concurrent dispatch goroutines (default: 10)
	QueueSize           int           // pending command buffer (default: 10000)
	MaxRetries          int           // additional attempts after the first send (default: 5)
	Topic               string        // push topic carried on every notification
	PushTimeout         time.Duration // per-send gateway timeout (default: 10s)
	RetryBackoffInitial time.Duration // backoff before the first retry (default: 100ms)
	RetryBackoffMax     time.Duration // backoff ceiling (default: 5s)
}

// LoadConfigFromEnv loads engine configuration from environment variables.
// Topic is not read here; it comes from the gateway configuration.
func LoadConfigFromEnv() Config {
	cfg := Config{
		Workers:             config.GetIntEnv("DISPATCH_WORKERS", defaultWorkers),
		QueueSize:           config.GetIntEnv("DISPATCH_QUEUE_SIZE", defaultQueueSize),
		MaxRetries:          config.GetIntEnv("DISPATCH_MAX_RETRIES", defaultMaxRetries),
		PushTimeout:         config.GetDurationEnv("DISPATCH_PUSH_TIMEOUT", defaultPushTimeout),
		RetryBackoffInitial: config.GetDurationEnv("DISPATCH_RETRY_BACKOFF_INITIAL", defaultRetryBackoffInitial),
		RetryBackoffMax:     config.GetDurationEnv("DISPATCH_RETRY_BACKOFF_MAX", defaultRetryBackoffMax),
	}
	return cfg.withDefaults()
}

// withDefaults fills in zero values with defaults. MaxRetries zero is kept:
// it means a single attempt with no retries.
func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.QueueSize <= 0 {
		c.QueueSize = defaultQueueSize
	}
	if c.MaxRetries < 0 {
		c.MaxRetries = defaultMaxRetries
	}
	if c.PushTimeout <= 0 {
		c.PushTimeout = defaultPushTimeout
	}
	if c.RetryBackoffInitial <= 0 {
		c.RetryBackoffInitial = defaultRetryBackoffInitial
	}
	if c.RetryBackoffMax <= 0 {
		c.RetryBackoffMax = defaultRetryBackoffMax
	}
	return c
}
