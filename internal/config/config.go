// Package config loads configuration from environment variables and .env files.
package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the knowledge base service.
type Config struct {
	// Transport
	Transport string `env:"TRANSPORT" envDefault:"stdio"` // "stdio" or "sse"
	HTTPPort  int    `env:"HTTP_PORT" envDefault:"8080"`

	// Logging
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Elasticsearch backend (§6.5)
	ESAddresses       []string      `env:"ES_ADDRESSES" envSeparator:"," envDefault:"http://localhost:9200"`
	ESAPIKey          string        `env:"ES_API_KEY"`
	ESUsername        string        `env:"ES_USERNAME"`
	ESPassword        string        `env:"ES_PASSWORD"`
	ESRequestTimeout  time.Duration `env:"ES_REQUEST_TIMEOUT" envDefault:"30s"`
	ESBulkMaxItems    int           `env:"ES_BULK_MAX_ITEMS" envDefault:"1000"`
	ESBulkMaxBytes    int           `env:"ES_BULK_MAX_BYTES" envDefault:"5242880"`
	ESStartupPingTime time.Duration `env:"ES_STARTUP_PING_TIMEOUT" envDefault:"5s"`

	// Knowledge base index naming (§6.5)
	BaseIndexPrefix string `env:"BASE_INDEX_PREFIX" envDefault:"kbmcp"`

	// Crawler (§6.5)
	DockerImage  string `env:"CRAWLER_DOCKER_IMAGE" envDefault:"docker.elastic.co/integrations/crawler:latest"`
	DockerSocket string `env:"CRAWLER_DOCKER_SOCKET"`
	ESPipeline   string `env:"CRAWLER_ES_PIPELINE"`

	// Search fan-out
	SearchTimeout time.Duration `env:"SEARCH_TIMEOUT" envDefault:"600s"`
}

// IndexPattern returns the wildcard pattern that selects every knowledge
// base index owned by this service (§6.5: "<prefix>-*").
func (c *Config) IndexPattern() string {
	return c.BaseIndexPrefix + "-*"
}

// Load loads configuration from a .env file (if present) and the
// environment, then validates it.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate enforces the startup invariants named in §6.5: exactly one
// backend authentication method must be configured, and the transport
// must be a supported value.
func (c *Config) Validate() error {
	hasAPIKey := c.ESAPIKey != ""
	hasBasicAuth := c.ESUsername != "" || c.ESPassword != ""

	if hasAPIKey == hasBasicAuth {
		if hasAPIKey {
			return errors.New("config: exactly one of ES_API_KEY or ES_USERNAME/ES_PASSWORD must be set, both were provided")
		}
		return errors.New("config: exactly one of ES_API_KEY or ES_USERNAME/ES_PASSWORD must be set, neither was provided")
	}

	if hasBasicAuth && (c.ESUsername == "" || c.ESPassword == "") {
		return errors.New("config: basic auth requires both ES_USERNAME and ES_PASSWORD")
	}

	switch c.Transport {
	case "stdio", "sse":
	default:
		return fmt.Errorf("config: unsupported TRANSPORT %q, want stdio or sse", c.Transport)
	}

	return nil
}
