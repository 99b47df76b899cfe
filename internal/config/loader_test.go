package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaults(t *testing.T) {
	cfg := Defaults()

	if cfg.Server.Port != "8090" {
		t.Errorf("expected port 8090, got %s", cfg.Server.Port)
	}
	if cfg.Agent.BaseURL != "http://localhost:8001" {
		t.Errorf("expected local agent URL, got %s", cfg.Agent.BaseURL)
	}
	if cfg.Agent.RecentLimit != 20 {
		t.Errorf("expected recent_limit 20, got %d", cfg.Agent.RecentLimit)
	}
	if cfg.Stream.MaxRetries != 8 {
		t.Errorf("expected max_retries 8, got %d", cfg.Stream.MaxRetries)
	}
	if cfg.Breaker.Timeout != 30*time.Second {
		t.Errorf("expected breaker timeout 30s, got %v", cfg.Breaker.Timeout)
	}
	if cfg.NATS.URL != "" {
		t.Errorf("expected mirror disabled by default, got %s", cfg.NATS.URL)
	}
}

func TestLoadYAMLOverride(t *testing.T) {
	dir := t.TempDir()
	yamlPath := filepath.Join(dir, "test.yaml")

	content := `
server:
  port: "9090"
agent:
  base_url: "http://agent.internal:8001"
  recent_limit: 50
stream:
  max_retries: 3
logging:
  level: "debug"
`
	if err := os.WriteFile(yamlPath, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Defaults()
	if err := loadYAML(&cfg, yamlPath); err != nil {
		t.Fatal(err)
	}

	if cfg.Server.Port != "9090" {
		t.Errorf("expected port 9090, got %s", cfg.Server.Port)
	}
	if cfg.Agent.BaseURL != "http://agent.internal:8001" {
		t.Errorf("expected overridden agent URL, got %s", cfg.Agent.BaseURL)
	}
	if cfg.Agent.RecentLimit != 50 {
		t.Errorf("expected recent_limit 50, got %d", cfg.Agent.RecentLimit)
	}
	if cfg.Stream.MaxRetries != 3 {
		t.Errorf("expected max_retries 3, got %d", cfg.Stream.MaxRetries)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("expected log level debug, got %s", cfg.Logging.Level)
	}
	// Unchanged fields keep defaults
	if cfg.Stream.InitialBackoff != 500*time.Millisecond {
		t.Errorf("expected default initial backoff, got %v", cfg.Stream.InitialBackoff)
	}
}

func TestLoadYAMLMissingFileIsOK(t *testing.T) {
	cfg := Defaults()
	if err := loadYAML(&cfg, filepath.Join(t.TempDir(), "absent.yaml")); err != nil {
		t.Fatalf("missing yaml should not error, got %v", err)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("HAGGL_AGENT_URL", "http://env-agent:8001")
	t.Setenv("HAGGL_STREAM_MAX_RETRIES", "12")
	t.Setenv("HAGGL_STREAM_INITIAL_BACKOFF", "250ms")
	t.Setenv("HAGGL_CACHE_RECENT_TTL", "5s")

	cfg := Defaults()
	loadEnv(&cfg)

	if cfg.Agent.BaseURL != "http://env-agent:8001" {
		t.Errorf("expected env agent URL, got %s", cfg.Agent.BaseURL)
	}
	if cfg.Stream.MaxRetries != 12 {
		t.Errorf("expected max_retries 12, got %d", cfg.Stream.MaxRetries)
	}
	if cfg.Stream.InitialBackoff != 250*time.Millisecond {
		t.Errorf("expected initial backoff 250ms, got %v", cfg.Stream.InitialBackoff)
	}
	if cfg.Cache.RecentTTL != 5*time.Second {
		t.Errorf("expected recent TTL 5s, got %v", cfg.Cache.RecentTTL)
	}
}

func TestEnvIgnoresMalformedValues(t *testing.T) {
	t.Setenv("HAGGL_STREAM_MAX_RETRIES", "not-a-number")

	cfg := Defaults()
	loadEnv(&cfg)

	if cfg.Stream.MaxRetries != 8 {
		t.Errorf("expected default retained on malformed env, got %d", cfg.Stream.MaxRetries)
	}
}

func TestValidate(t *testing.T) {
	cfg := Defaults()
	if err := validate(&cfg); err != nil {
		t.Fatalf("defaults should validate, got %v", err)
	}

	bad := Defaults()
	bad.Agent.BaseURL = ""
	if err := validate(&bad); err == nil {
		t.Error("expected error for empty agent.base_url")
	}

	bad = Defaults()
	bad.Stream.MaxRetries = 0
	if err := validate(&bad); err == nil {
		t.Error("expected error for zero max_retries")
	}
}
