package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
)

type Config struct {
	HTTPAddr         string        `env:"HTTP_ADDR,default=:8080"`
	StoreDriver      string        `env:"STORE_DRIVER,default=postgres"`
	DatabaseURL      string        `env:"DB_URL"`
	RedisURL         string        `env:"REDIS_URL"`
	LogLevel         string        `env:"LOG_LEVEL,default=INFO"`
	RegistryShards   int           `env:"REGISTRY_SHARDS,default=32"`
	NicknameCacheTTL time.Duration `env:"NICKNAME_CACHE_TTL,default=10m"`
	AsynqConcurrency int           `env:"ASYNQ_CONCURRENCY,default=10"`
	// CSV of queue weights such as "chat=6,default=1".
	AsynqQueues    string        `env:"ASYNQ_QUEUES"`
	ReadTimeout    time.Duration `env:"READ_TIMEOUT,default=60s"`
	RequestTimeout time.Duration `env:"REQUEST_TIMEOUT,default=3s"`
	SendTimeout    time.Duration `env:"SEND_TIMEOUT,default=5s"`
	// Usernames created at boot by the memory store, separated by commas.
	SeedMembers string `env:"SEED_MEMBERS"`
}

const (
	driverPostgres = "postgres"
	driverMemory   = "memory"
)

func loadConfig(es env.EnvSet) (Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch c.StoreDriver {
	case driverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DB_URL is required with STORE_DRIVER=%s", driverPostgres)
		}
	case driverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	return nil
}

func (c Config) seedUsernames() []string {
	var names []string
	for _, n := range strings.Split(c.SeedMembers, ",") {
		if n = strings.TrimSpace(n); n != "" {
			names = append(names, n)
		}
	}
	return names
}
