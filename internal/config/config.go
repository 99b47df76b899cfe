// Package config provides hierarchical configuration loading for the Haggl
// console. Precedence: defaults < YAML file < environment variables.
package config

import "time"

// Config holds all runtime configuration for the console daemon.
type Config struct {
	Server  Server  `yaml:"server"`
	Agent   Agent   `yaml:"agent"`
	Stream  Stream  `yaml:"stream"`
	NATS    NATS    `yaml:"nats"`
	Cache   Cache   `yaml:"cache"`
	Logging Logging `yaml:"logging"`
	Breaker Breaker `yaml:"breaker"`
}

// Server holds the console's own HTTP server configuration.
type Server struct {
	Port       string `yaml:"port"`
	CORSOrigin string `yaml:"cors_origin"`
}

// Agent holds connection settings for the upstream sourcing-agent API.
type Agent struct {
	BaseURL     string        `yaml:"base_url"`
	RecentLimit int           `yaml:"recent_limit"` // events requested on backfill (default: 20)
	HTTPTimeout time.Duration `yaml:"http_timeout"` // backfill request timeout
}

// Stream holds live-subscription reconnect policy.
type Stream struct {
	InitialBackoff time.Duration `yaml:"initial_backoff"` // first reconnect delay (default: 500ms)
	MaxBackoff     time.Duration `yaml:"max_backoff"`     // backoff ceiling (default: 15s)
	MaxRetries     uint          `yaml:"max_retries"`     // attempts before escalating to unavailable
}

// NATS holds the optional event-mirror configuration. An empty URL disables
// mirroring.
type NATS struct {
	URL string `yaml:"url"`
}

// Cache holds the backfill response cache configuration.
type Cache struct {
	MaxSizeMB int64         `yaml:"max_size_mb"`
	RecentTTL time.Duration `yaml:"recent_ttl"`
}

// Logging holds structured logging configuration.
type Logging struct {
	Level   string `yaml:"level"`
	Service string `yaml:"service"`
}

// Breaker holds circuit breaker configuration for agent API calls.
type Breaker struct {
	MaxFailures int           `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
}

// Defaults returns a Config with sensible default values for local
// development against an agent running on localhost.
func Defaults() Config {
	return Config{
		Server: Server{
			Port:       "8090",
			CORSOrigin: "http://localhost:3000",
		},
		Agent: Agent{
			BaseURL:     "http://localhost:8001",
			RecentLimit: 20,
			HTTPTimeout: 10 * time.Second,
		},
		Stream: Stream{
			InitialBackoff: 500 * time.Millisecond,
			MaxBackoff:     15 * time.Second,
			MaxRetries:     8,
		},
		NATS: NATS{
			URL: "",
		},
		Cache: Cache{
			MaxSizeMB: 8,
			RecentTTL: 2 * time.Second,
		},
		Logging: Logging{
			Level:   "info",
			Service: "haggl-console",
		},
		Breaker: Breaker{
			MaxFailures: 5,
			Timeout:     30 * time.Second,
		},
	}
}
