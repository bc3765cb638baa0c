package config

import (
	"fmt"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL string `env:"RABBITMQ_URL,required=true"`
	RedisURL    string `env:"REDIS_URL,required=true"`

	ResendAPIKey    string `env:"RESEND_API_KEY,required=true"`
	ResendFromEmail string `env:"RESEND_FROM_EMAIL,required=true"`

	APIPort     int    `env:"API_PORT,default=8080"`
	MetricsPort int    `env:"METRICS_PORT,default=9090"`
	LogLevel    string `env:"LOG_LEVEL,default=info"`

	SchedulerIntervalSec int `env:"SCHEDULER_INTERVAL_SEC,default=60"`
	SchedulerLookbackHrs int `env:"SCHEDULER_LOOKBACK_HOURS,default=72"`
	SchedulerScanLimit   int `env:"SCHEDULER_SCAN_LIMIT,default=500"`

	DispatcherConcurrency int `env:"DISPATCHER_CONCURRENCY,default=8"`
	MaxAttempts           int `env:"MAX_ATTEMPTS,default=3"`
	RetryBaseDelaySec     int `env:"RETRY_BASE_DELAY_SEC,default=30"`
	RetryMaxDelaySec      int `env:"RETRY_MAX_DELAY_SEC,default=3600"`
	ProviderTimeoutSec    int `env:"PROVIDER_TIMEOUT_SEC,default=10"`
	RateLimitPerSec       int `env:"RATE_LIMIT_PER_SEC,default=50"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) SchedulerInterval() time.Duration {
	return time.Duration(c.SchedulerIntervalSec) * time.Second
}

func (c *Config) SchedulerLookback() time.Duration {
	return time.Duration(c.SchedulerLookbackHrs) * time.Hour
}

func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.RetryBaseDelaySec) * time.Second
}

func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.RetryMaxDelaySec) * time.Second
}

func (c *Config) ProviderTimeout() time.Duration {
	return time.Duration(c.ProviderTimeoutSec) * time.Second
}
