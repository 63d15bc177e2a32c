package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type Config struct {
	CoinCap struct {
		APIURL               string `toml:"api_url"`
		APIKey               string `toml:"api_key"`
		MaxConcurrentFetches int    `toml:"max_concurrent_fetches"`
		RefreshIntervalMs    int    `toml:"refresh_interval_ms"`
	} `toml:"coincap"`

	Storage struct {
		Driver string `toml:"driver"` // sqlite | postgres
		Path   string `toml:"path"`   // sqlite file
		DSN    string `toml:"dsn"`    // postgres dsn
	} `toml:"storage"`

	Redis struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
		TTLSec  int    `toml:"ttl_sec"`
	} `toml:"redis"`

	Server struct {
		Listen string `toml:"listen"`
	} `toml:"server"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.CoinCap.MaxConcurrentFetches <= 0 {
		cfg.CoinCap.MaxConcurrentFetches = 3
	}
	if cfg.Storage.Driver == "" {
		cfg.Storage.Driver = "sqlite"
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "data/coinfolio.db"
	}
	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "localhost:6379"
	}
	if cfg.Server.Listen == "" {
		cfg.Server.Listen = ":8080"
	}
}

func validate(cfg *Config) error {
	if strings.TrimSpace(cfg.CoinCap.APIURL) == "" {
		return errors.New("coincap.api_url is empty")
	}
	// the process must never serve traffic without a provider credential
	if strings.TrimSpace(cfg.CoinCap.APIKey) == "" {
		return errors.New("coincap.api_key is required but not configured")
	}
	if cfg.CoinCap.RefreshIntervalMs <= 0 {
		return errors.New("coincap.refresh_interval_ms must be positive")
	}

	switch cfg.Storage.Driver {
	case "sqlite":
	case "postgres":
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			return errors.New("storage.dsn is empty but driver is postgres")
		}
	default:
		return fmt.Errorf("unknown storage.driver %q", cfg.Storage.Driver)
	}
	return nil
}
