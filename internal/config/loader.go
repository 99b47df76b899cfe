package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the path checked for YAML configuration.
const DefaultConfigFile = "hagglconsole.yaml"

// Load returns a Config using the hierarchy: defaults < YAML < ENV.
// YAML file is optional; missing file is not an error.
func Load() (*Config, error) {
	return LoadFrom(DefaultConfigFile)
}

// LoadFrom returns a Config loaded from the given YAML path using the
// hierarchy: defaults < YAML < ENV. The YAML file is optional.
func LoadFrom(yamlPath string) (*Config, error) {
	cfg := Defaults()

	if err := loadYAML(&cfg, yamlPath); err != nil {
		return nil, fmt.Errorf("config yaml: %w", err)
	}

	loadEnv(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validate: %w", err)
	}

	return &cfg, nil
}

// loadYAML reads the YAML file and unmarshals it over cfg.
// Returns nil if the file does not exist.
func loadYAML(cfg *Config, path string) error {
	data, err := os.ReadFile(path) //nolint:gosec // G304: path is validated by caller
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	return nil
}

// loadEnv overlays environment variables onto cfg.
// Only non-empty env values override the current config.
func loadEnv(cfg *Config) {
	setString(&cfg.Server.Port, "HAGGL_PORT")
	setString(&cfg.Server.CORSOrigin, "HAGGL_CORS_ORIGIN")
	setString(&cfg.Agent.BaseURL, "HAGGL_AGENT_URL")
	setInt(&cfg.Agent.RecentLimit, "HAGGL_RECENT_LIMIT")
	setDuration(&cfg.Agent.HTTPTimeout, "HAGGL_AGENT_HTTP_TIMEOUT")
	setDuration(&cfg.Stream.InitialBackoff, "HAGGL_STREAM_INITIAL_BACKOFF")
	setDuration(&cfg.Stream.MaxBackoff, "HAGGL_STREAM_MAX_BACKOFF")
	setUint(&cfg.Stream.MaxRetries, "HAGGL_STREAM_MAX_RETRIES")
	setString(&cfg.NATS.URL, "NATS_URL")
	setInt64(&cfg.Cache.MaxSizeMB, "HAGGL_CACHE_SIZE_MB")
	setDuration(&cfg.Cache.RecentTTL, "HAGGL_CACHE_RECENT_TTL")
	setString(&cfg.Logging.Level, "HAGGL_LOG_LEVEL")
	setString(&cfg.Logging.Service, "HAGGL_LOG_SERVICE")
	setInt(&cfg.Breaker.MaxFailures, "HAGGL_BREAKER_MAX_FAILURES")
	setDuration(&cfg.Breaker.Timeout, "HAGGL_BREAKER_TIMEOUT")
}

// validate checks that required fields are set.
func validate(cfg *Config) error {
	if cfg.Server.Port == "" {
		return errors.New("server.port is required")
	}
	if cfg.Agent.BaseURL == "" {
		return errors.New("agent.base_url is required")
	}
	if cfg.Agent.RecentLimit < 1 {
		return errors.New("agent.recent_limit must be >= 1")
	}
	if cfg.Stream.MaxRetries < 1 {
		return errors.New("stream.max_retries must be >= 1")
	}
	if cfg.Stream.InitialBackoff <= 0 {
		return errors.New("stream.initial_backoff must be positive")
	}
	if cfg.Breaker.MaxFailures < 1 {
		return errors.New("breaker.max_failures must be >= 1")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setUint(dst *uint, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			*dst = uint(n)
		}
	}
}

func setDuration(dst *time.Duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}
