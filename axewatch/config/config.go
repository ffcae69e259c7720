// Package config loads service configuration from defaults, an optional
// YAML file, a .env file, and environment variables, in that order.
package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds everything the service needs to talk to its backends.
type Config struct {
	// ListenAddr is the HTTP bind address for the API server.
	ListenAddr string `yaml:"listen_addr"`
	// ValkeyAddr is the host:port of the cache backend.
	ValkeyAddr string `yaml:"valkey_addr"`
	// DatabaseDSN selects the durable-log database. DSNs starting with
	// postgres:// or host= use the postgres driver; anything else is
	// treated as a sqlite file path.
	DatabaseDSN string `yaml:"database_dsn"`
	// RabbitURL enables the AMQP scan-result listener when non-empty.
	RabbitURL string `yaml:"rabbit_url"`
	// ScanQueue is the AMQP queue name scan submissions arrive on.
	ScanQueue string `yaml:"scan_queue"`
	// SiteBaseURL is the public base URL of the scanned site, used when
	// inverting report slugs back to literal URLs.
	SiteBaseURL string `yaml:"site_base_url"`
}

// Default returns the local development configuration.
func Default() Config {
	return Config{
		ListenAddr:  ":8090",
		ValkeyAddr:  "localhost:6379",
		DatabaseDSN: "data/axewatch.db",
		RabbitURL:   "",
		ScanQueue:   "scan-results",
		SiteBaseURL: "https://localhost",
	}
}

// Load builds the effective configuration. A YAML file named by
// AXEWATCH_CONFIG overrides defaults; .env and environment variables
// override both.
func Load() (Config, error) {
	cfg := Default()

	if path := os.Getenv("AXEWATCH_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	// Missing .env is fine; env vars may be set directly.
	_ = godotenv.Load()

	overlay(&cfg.ListenAddr, "AXEWATCH_LISTEN_ADDR")
	overlay(&cfg.ValkeyAddr, "AXEWATCH_VALKEY_ADDR")
	overlay(&cfg.DatabaseDSN, "AXEWATCH_DATABASE_DSN")
	overlay(&cfg.RabbitURL, "AXEWATCH_RABBITMQ_URL")
	overlay(&cfg.ScanQueue, "AXEWATCH_SCAN_QUEUE")
	overlay(&cfg.SiteBaseURL, "AXEWATCH_SITE_BASE_URL")

	return cfg, nil
}

func overlay(dst *string, envKey string) {
	if v := os.Getenv(envKey); v != "" {
		*dst = v
	}
}
