package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/artpar/warpmodel/config"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
server:
  host: "127.0.0.1"
  port: 9090
  request_timeout: 15s

database:
  driver: "sqlite"
  dsn: ":memory:"

models:
  dir: "./defs"
  strict: true

storage:
  base_url: "https://cdn.example.com/files"

security:
  password_cost: 12

logging:
  level: debug
  format: console
`

	cfg := writeAndLoad(t, content)

	if cfg.Server.Addr() != "127.0.0.1:9090" {
		t.Errorf("Addr() = %s, want 127.0.0.1:9090", cfg.Server.Addr())
	}
	if cfg.Server.RequestTimeout != 15*time.Second {
		t.Errorf("RequestTimeout = %v, want 15s", cfg.Server.RequestTimeout)
	}
	if cfg.Database.DSN != ":memory:" {
		t.Errorf("Database.DSN = %s, want :memory:", cfg.Database.DSN)
	}
	if cfg.Models.Dir != "./defs" || !cfg.Models.Strict {
		t.Errorf("Models = %+v", cfg.Models)
	}
	if cfg.Storage.BaseURL != "https://cdn.example.com/files" {
		t.Errorf("Storage.BaseURL = %s", cfg.Storage.BaseURL)
	}
	if cfg.Security.PasswordCost != 12 {
		t.Errorf("PasswordCost = %d, want 12", cfg.Security.PasswordCost)
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "console" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg := writeAndLoad(t, "{}\n")

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Host = %s, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Server.Port)
	}
	if cfg.Server.ReadTimeout != 30*time.Second {
		t.Errorf("ReadTimeout = %v, want 30s", cfg.Server.ReadTimeout)
	}
	if cfg.Server.WriteTimeout != 60*time.Second {
		t.Errorf("WriteTimeout = %v, want 60s", cfg.Server.WriteTimeout)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.DSN != "warpmodel.db" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Models.Dir != "models" || cfg.Models.Pattern != "**/*.{yaml,yml}" {
		t.Errorf("Models = %+v", cfg.Models)
	}
	if cfg.Security.PasswordCost != 8 {
		t.Errorf("PasswordCost = %d, want 8", cfg.Security.PasswordCost)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Metrics.Enabled || cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if cfg.Docs.Enabled || cfg.Docs.Title != "warpmodel API" {
		t.Errorf("Docs = %+v", cfg.Docs)
	}
	if cfg.Events.NatsURL != "" || cfg.Events.SubjectPrefix != "warpmodel" {
		t.Errorf("Events = %+v", cfg.Events)
	}
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("TEST_WARP_DSN", "/tmp/expanded.db")

	cfg := writeAndLoad(t, `
database:
  dsn: "${TEST_WARP_DSN}"
`)

	if cfg.Database.DSN != "/tmp/expanded.db" {
		t.Errorf("DSN = %s, want /tmp/expanded.db", cfg.Database.DSN)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("WARP_SERVER_PORT", "7000")
	t.Setenv("WARP_SERVER_REQUEST_TIMEOUT", "5s")
	t.Setenv("WARP_MODELS_DIR", "/srv/models")
	t.Setenv("WARP_MODELS_STRICT", "yes")
	t.Setenv("WARP_SECURITY_PASSWORD_COST", "10")
	t.Setenv("WARP_LOG_LEVEL", "warn")
	t.Setenv("WARP_METRICS_ENABLED", "1")
	t.Setenv("WARP_METRICS_PATH", "/custom-metrics")
	t.Setenv("WARP_DOCS_ENABLED", "true")
	t.Setenv("WARP_EVENTS_NATS_URL", "nats://broker:4222")

	cfg := writeAndLoad(t, `
server:
  port: 9090
models:
  dir: "./defs"
`)

	if cfg.Server.Port != 7000 {
		t.Errorf("Port = %d, want 7000 (env wins)", cfg.Server.Port)
	}
	if cfg.Server.RequestTimeout != 5*time.Second {
		t.Errorf("RequestTimeout = %v, want 5s", cfg.Server.RequestTimeout)
	}
	if cfg.Models.Dir != "/srv/models" || !cfg.Models.Strict {
		t.Errorf("Models = %+v", cfg.Models)
	}
	if cfg.Security.PasswordCost != 10 {
		t.Errorf("PasswordCost = %d, want 10", cfg.Security.PasswordCost)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %s, want warn", cfg.Logging.Level)
	}
	if !cfg.Metrics.Enabled || cfg.Metrics.Path != "/custom-metrics" {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if !cfg.Docs.Enabled {
		t.Error("Docs.Enabled should be set from WARP_DOCS_ENABLED")
	}
	if cfg.Events.NatsURL != "nats://broker:4222" {
		t.Errorf("Events.NatsURL = %s", cfg.Events.NatsURL)
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "unsupported driver",
			content: "database:\n  driver: postgres\n",
			wantErr: "database",
		},
		{
			name:    "port out of range",
			content: "server:\n  port: 70000\n",
			wantErr: "server",
		},
		{
			name:    "password cost too low",
			content: "security:\n  password_cost: 2\n",
			wantErr: "security",
		},
		{
			name:    "unknown log level",
			content: "logging:\n  level: verbose\n",
			wantErr: "logging",
		},
		{
			name:    "unknown log format",
			content: "logging:\n  format: xml\n",
			wantErr: "logging",
		},
		{
			name:    "storage base url",
			content: "storage:\n  base_url: \"not a url\"\n",
			wantErr: "storage",
		},
		{
			name:    "metrics path",
			content: "metrics:\n  path: metrics\n",
			wantErr: "metrics",
		},
		{
			name:    "models pattern",
			content: "models:\n  pattern: \"[oops\"\n",
			wantErr: "models",
		},
		{
			name:    "events subject prefix",
			content: "events:\n  subject_prefix: \"bad prefix.\"\n",
			wantErr: "events",
		},
		{
			name:    "events nats url",
			content: "events:\n  nats_url: \"http://broker:4222\"\n",
			wantErr: "events",
		},
		{
			name:    "malformed yaml",
			content: "server: [\n",
			wantErr: "parse config",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeConfig(t, tt.content)
			_, err := config.Load(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(strings.ToLower(err.Error()), tt.wantErr) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadWithFallback(t *testing.T) {
	t.Setenv("WARP_DATABASE_DSN", "env.db")

	cfg, err := config.LoadWithFallback(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Database.DSN != "env.db" {
		t.Errorf("DSN = %s, want env.db", cfg.Database.DSN)
	}

	path := writeConfig(t, "models:\n  dir: from-file\n")
	cfg, err = config.LoadWithFallback(path)
	if err != nil {
		t.Fatalf("LoadWithFallback error: %v", err)
	}
	if cfg.Models.Dir != "from-file" {
		t.Errorf("Models.Dir = %s, want from-file", cfg.Models.Dir)
	}
}

func writeAndLoad(t *testing.T, content string) *config.Config {
	t.Helper()
	cfg, err := config.Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	return cfg
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "warpmodel.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}
