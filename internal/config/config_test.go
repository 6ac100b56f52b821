package config

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shaiso/Relay/internal/engine"
	"github.com/shaiso/Relay/internal/repo"
)

func env(values map[string]string) func(string) string {
	return func(key string) string { return values[key] }
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(env(nil))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Addr() != ":8080" {
		t.Errorf("expected :8080, got %s", cfg.Addr())
	}
	if cfg.WorkflowVariant != engine.VariantIP {
		t.Errorf("expected ip variant, got %s", cfg.WorkflowVariant)
	}
	if cfg.StoreBackend != repo.BackendMemory {
		t.Errorf("expected memory backend, got %s", cfg.StoreBackend)
	}
	if cfg.RateLimitRPS != 0 || cfg.RateLimitBurst != 1 {
		t.Errorf("rate limit should be disabled by default: %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

func TestLoad_Values(t *testing.T) {
	cfg, err := Load(env(map[string]string{
		"API_PORT":         "9090",
		"WORKFLOW_TIMEOUT": "30s",
		"STORE_BACKEND":    "DynamoDB",
		"RATE_LIMIT_RPS":   "2.5",
		"RATE_LIMIT_BURST": "5",
		"SCHEDULE_CRON":    "@every 1m",
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Addr() != ":9090" {
		t.Errorf("unexpected addr %s", cfg.Addr())
	}
	if cfg.WorkflowTimeout != 30*time.Second {
		t.Errorf("unexpected timeout %v", cfg.WorkflowTimeout)
	}
	if cfg.StoreBackend != repo.BackendDynamoDB {
		t.Errorf("backend should be lower-cased, got %s", cfg.StoreBackend)
	}
	if cfg.RateLimitRPS != 2.5 || cfg.RateLimitBurst != 5 {
		t.Errorf("unexpected rate limit %v/%d", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want error
	}{
		{"bad timeout", map[string]string{"WORKFLOW_TIMEOUT": "soon"}, ErrInvalidConfig},
		{"negative timeout", map[string]string{"WORKFLOW_TIMEOUT": "-1s"}, ErrInvalidConfig},
		{"bad rps", map[string]string{"RATE_LIMIT_RPS": "fast"}, ErrInvalidConfig},
		{"zero burst", map[string]string{"RATE_LIMIT_BURST": "0"}, ErrInvalidConfig},
		{"unknown backend", map[string]string{"STORE_BACKEND": "redis"}, ErrUnknownBackend},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(env(tt.env))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestLoadDefinition_Overrides(t *testing.T) {
	cfg, err := Load(env(map[string]string{
		"WORKFLOW_VARIANT": "weather",
		"UPSTREAM_URL":     "http://localhost:9999/weather",
		"WORKFLOW_TIMEOUT": "1500ms",
		"STORE_TABLE":      "weather_events",
	}))
	if err != nil {
		t.Fatal(err)
	}

	// Бюджет fetch шага (10s) больше таймаута — валидация должна упасть
	if _, err := cfg.LoadDefinition(); !errors.Is(err, engine.ErrInvalidTimeout) {
		t.Fatalf("expected ErrInvalidTimeout, got %v", err)
	}

	cfg.WorkflowTimeout = 20 * time.Second
	def, err := cfg.LoadDefinition()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if def.TimeoutSec != 20 {
		t.Errorf("expected 20s timeout, got %d", def.TimeoutSec)
	}
	if def.Steps[0].Fetch.URL != "http://localhost:9999/weather" {
		t.Errorf("upstream override not applied: %s", def.Steps[0].Fetch.URL)
	}
	if def.Steps[2].Persist.Table != "weather_events" {
		t.Errorf("table override not applied: %s", def.Steps[2].Persist.Table)
	}
}

func TestLoadDefinition_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "workflow.yaml")
	data := `
name: echo
steps:
  - id: fetch
    kind: fetch
    fetch:
      url: https://example.com/
output: $.http.body
`
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(env(map[string]string{"WORKFLOW_FILE": path, "WORKFLOW_VARIANT": "weather"}))
	if err != nil {
		t.Fatal(err)
	}

	def, err := cfg.LoadDefinition()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if def.Name != "echo" {
		t.Errorf("file should take precedence over variant, got %s", def.Name)
	}
}

func TestLoadDefinition_UnknownVariant(t *testing.T) {
	cfg, _ := Load(env(map[string]string{"WORKFLOW_VARIANT": "nope"}))
	if _, err := cfg.LoadDefinition(); !errors.Is(err, engine.ErrUnknownVariant) {
		t.Errorf("expected ErrUnknownVariant, got %v", err)
	}
}

func TestOpenStore_Memory(t *testing.T) {
	cfg, _ := Load(env(nil))

	store, closeFn, err := cfg.OpenStore(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	if store.Backend() != repo.BackendMemory {
		t.Errorf("expected memory store, got %s", store.Backend())
	}
}

func TestOpenEventSink_LogOnly(t *testing.T) {
	cfg, _ := Load(env(nil))

	sink, closeFn, err := cfg.OpenEventSink(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err != nil {
		t.Fatal(err)
	}
	defer closeFn()

	if sink.Name() != "log" {
		t.Errorf("expected log sink without RABBITMQ_URL, got %s", sink.Name())
	}
}
