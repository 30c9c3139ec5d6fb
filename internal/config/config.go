package config

import (
	"flag"
	"fmt"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	DatabaseURI    string        `env:"DATABASE_URI"`
	MetricsAddress string        `env:"METRICS_ADDRESS" env-default:":9090"`
	OpTimeout      time.Duration `env:"OP_TIMEOUT" env-default:"5s"`
}

func Load() (*Config, error) {
	cfg := &Config{}

	flag.StringVar(&cfg.DatabaseURI, "d", "", "database URI (empty runs with the in-memory store)")
	flag.StringVar(&cfg.MetricsAddress, "m", ":9090", "metrics server address")
	flag.DurationVar(&cfg.OpTimeout, "t", 5*time.Second, "per-operation timeout")

	flag.Parse()

	if err := cleanenv.ReadEnv(cfg); err != nil {
		return nil, fmt.Errorf("couldn't read environment variables: %w", err)
	}

	return cfg, nil
}
