package config

import (
	"fmt"

	"github.com/Netflix/go-env"
)

type Config struct {
	DatabaseDSN        string `env:"DATABASE_DSN,required=true"`
	RabbitMQURL        string `env:"RABBITMQ_URL,required=true"`
	RedisURL           string `env:"REDIS_URL,required=true"`
	ClassifierURL      string `env:"CLASSIFIER_URL,required=true"`
	StorageURL         string `env:"STORAGE_URL,required=true"`
	GitLabBaseURL      string `env:"GITLAB_BASE_URL,default=https://gitlab.com"`
	GitLabToken        string `env:"GITLAB_TOKEN,default="`
	WorkerConcurrency  int    `env:"WORKER_CONCURRENCY,default=8"`
	APIPort            int    `env:"API_PORT,default=8000"`
	LogLevel           string `env:"LOG_LEVEL,default=info"`
	WatchPollSeconds   int    `env:"WATCH_POLL_SECONDS,default=5"`
	WatchMaxWaitSecond int    `env:"WATCH_MAX_WAIT_SECONDS,default=300"`
	PayloadTTLHours    int    `env:"PAYLOAD_TTL_HOURS,default=24"`
}

func Load() (*Config, error) {
	var cfg Config
	_, err := env.UnmarshalFromEnviron(&cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}
