package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ccollicutt/logsift/pkg/parser"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.LogSources = []string{"nginx_logs.txt"}
	return cfg
}

func TestLoad_ValidConfig(t *testing.T) {
	content := `
log_sources:
  - /var/log/nginx/*.log
query_policy: skip
sentinels: ["NULL", "-", "N/A"]
snapshots:
  dir: out
database:
  enabled: true
  host: db.internal
  port: 3307
  user: loader
  password: secret
  name: access
  table: requests
  timeout: 2s
charts:
  enabled: true
  dir: out/charts
  kinds: [status_codes, http_methods]
logging:
  level: debug
  format: json
`
	path := writeTempFile(t, "config.yaml", content)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.LogSources) != 1 {
		t.Errorf("LogSources = %d, want 1", len(cfg.LogSources))
	}
	if cfg.QueryPolicy != parser.QueryPolicySkip {
		t.Errorf("QueryPolicy = %q, want skip", cfg.QueryPolicy)
	}
	if len(cfg.Sentinels) != 3 {
		t.Errorf("Sentinels = %v, want 3 entries", cfg.Sentinels)
	}
	if !cfg.Snapshots.Enabled() || cfg.Snapshots.Parsed != DefaultParsedSnapshot {
		t.Errorf("Snapshots = %+v", cfg.Snapshots)
	}
	if cfg.Database.Addr() != "db.internal:3307" {
		t.Errorf("Database.Addr() = %q", cfg.Database.Addr())
	}
	if cfg.Database.Timeout != 2*time.Second {
		t.Errorf("Database.Timeout = %v, want 2s", cfg.Database.Timeout)
	}
	if cfg.Charts.Width != DefaultChartWidth || len(cfg.Charts.Kinds) != 2 {
		t.Errorf("Charts = %+v", cfg.Charts)
	}
	if cfg.Logging.Format != "json" {
		t.Errorf("Logging.Format = %q, want json", cfg.Logging.Format)
	}
}

func TestLoad_Minimal(t *testing.T) {
	path := writeTempFile(t, "config.yaml", "log_sources: [nginx_logs.txt]\n")
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.QueryPolicy != DefaultQueryPolicy {
		t.Errorf("QueryPolicy = %q, want %q", cfg.QueryPolicy, DefaultQueryPolicy)
	}
	if len(cfg.Sentinels) != 2 || cfg.Sentinels[0] != "NULL" || cfg.Sentinels[1] != "-" {
		t.Errorf("Sentinels = %v, want [NULL -]", cfg.Sentinels)
	}
	if cfg.Snapshots.Enabled() {
		t.Error("Snapshots should be disabled without a dir")
	}
	if cfg.Database.Enabled || cfg.Charts.Enabled {
		t.Error("database and charts should be disabled by default")
	}
	if cfg.Database.Name != DefaultDBName || cfg.Database.Table != DefaultDBTable {
		t.Errorf("Database = %+v", cfg.Database)
	}
}

func TestLoad_FileNotFound(t *testing.T) {
	_, err := Load(context.Background(), "/nonexistent/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeTempFile(t, "invalid.yaml", `invalid: yaml: content: [`)
	_, err := Load(context.Background(), path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv(EnvLogSources, "a.log, b.log ,")
	t.Setenv(EnvDBHost, "envhost")
	t.Setenv(EnvDBUser, "envuser")
	t.Setenv(EnvDBPassword, "envpass")
	t.Setenv(EnvLogLevel, "warn")

	path := writeTempFile(t, "config.yaml", "log_sources: [ignored.log]\n")
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.LogSources) != 2 || cfg.LogSources[1] != "b.log" {
		t.Errorf("LogSources = %v, want [a.log b.log]", cfg.LogSources)
	}
	if cfg.Database.Host != "envhost" || cfg.Database.User != "envuser" || cfg.Database.Password != "envpass" {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}
}

func TestValidate_NoLogSources(t *testing.T) {
	cfg := validConfig()
	cfg.LogSources = nil
	if err := Validate(cfg); err == nil {
		t.Error("Validate() expected error for empty log_sources")
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"bad query policy", func(c *Config) { c.QueryPolicy = "drop" }},
		{"empty sentinel", func(c *Config) { c.Sentinels = []string{"NULL", ""} }},
		{"db no host", func(c *Config) { c.Database.Enabled = true; c.Database.Host = "" }},
		{"db bad port", func(c *Config) { c.Database.Enabled = true; c.Database.Port = 70000 }},
		{"db no user", func(c *Config) { c.Database.Enabled = true; c.Database.User = "" }},
		{"db injected name", func(c *Config) { c.Database.Enabled = true; c.Database.Name = "logs; DROP TABLE x" }},
		{"db bad table", func(c *Config) { c.Database.Enabled = true; c.Database.Table = "1logs" }},
		{"unknown chart", func(c *Config) { c.Charts.Kinds = []string{"pie"} }},
		{"negative max bars", func(c *Config) { c.Charts.MaxBars = -1 }},
		{"bad log level", func(c *Config) { c.Logging.Level = "loud" }},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			if err := Validate(cfg); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestValidate_DisabledDatabaseSkipsChecks(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Host = ""
	cfg.Database.Name = "not valid"
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate_FillsDefaults(t *testing.T) {
	cfg := &Config{LogSources: []string{"x.log"}}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Charts.Width != DefaultChartWidth || cfg.Charts.Dir != DefaultChartsDir {
		t.Errorf("Charts = %+v", cfg.Charts)
	}
	if cfg.Database.Timeout != DefaultDBTimeout {
		t.Errorf("Database.Timeout = %v", cfg.Database.Timeout)
	}
	if cfg.Logging.Level != DefaultLogLevel || cfg.Logging.Format != DefaultLogFormat {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
	if cfg.Snapshots.Clean != DefaultCleanSnapshot {
		t.Errorf("Snapshots.Clean = %q", cfg.Snapshots.Clean)
	}
}

func TestValidate_PasswordFromEnv(t *testing.T) {
	t.Setenv("TEST_DB_SECRET", "hunter2")
	cfg := validConfig()
	cfg.Database.Password = "${TEST_DB_SECRET}"
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Database.Password != "hunter2" {
		t.Errorf("Password = %q, want hunter2", cfg.Database.Password)
	}
}

func TestDatabaseConfig_StringHidesPassword(t *testing.T) {
	db := DefaultConfig().Database
	db.Password = "secret"
	if s := db.String(); s != "root@localhost:3306/log_analysis.logs" {
		t.Errorf("String() = %q", s)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.LogSources == nil {
		t.Error("LogSources should be initialized")
	}
	if cfg.Database.Port != DefaultDBPort {
		t.Errorf("Database.Port = %d, want %d", cfg.Database.Port, DefaultDBPort)
	}
}

func TestValidate_Webhook_Valid(t *testing.T) {
	cfg := validConfig()
	cfg.Webhooks = []WebhookConfig{{
		Name:    "test-webhook",
		URL:     "https://example.com/webhook",
		Trigger: WebhookTriggerOnIssues,
		Timeout: 10 * time.Second,
	}}
	if err := Validate(cfg); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestValidate_Webhook_Invalid(t *testing.T) {
	tests := []struct {
		name string
		wh   WebhookConfig
	}{
		{"missing url", WebhookConfig{Name: "no-url"}},
		{"bad scheme", WebhookConfig{URL: "ftp://example.com/hook"}},
		{"no host", WebhookConfig{URL: "http:///hook"}},
		{"bad trigger", WebhookConfig{URL: "https://example.com", Trigger: "sometimes"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			cfg.Webhooks = []WebhookConfig{tt.wh}
			if err := Validate(cfg); err == nil {
				t.Error("Validate() expected error")
			}
		})
	}
}

func TestValidate_Webhook_Defaults(t *testing.T) {
	cfg := validConfig()
	cfg.Webhooks = []WebhookConfig{{URL: "http://localhost:8080/webhook"}}
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if cfg.Webhooks[0].Trigger != WebhookTriggerOnIssues {
		t.Errorf("Trigger = %q, want on_issues", cfg.Webhooks[0].Trigger)
	}
	if cfg.Webhooks[0].Timeout != DefaultWebhookTimeout {
		t.Errorf("Timeout = %v, want %v", cfg.Webhooks[0].Timeout, DefaultWebhookTimeout)
	}
}

func TestExpandEnvVar(t *testing.T) {
	t.Setenv("TEST_WEBHOOK_TOKEN", "secret-value")

	tests := []struct {
		input string
		want  string
	}{
		{"${TEST_WEBHOOK_TOKEN}", "secret-value"},
		{"$TEST_WEBHOOK_TOKEN", "secret-value"},
		{"plain-value", "plain-value"},
		{"", ""},
		{"${NONEXISTENT_VAR}", ""},
	}

	for _, tt := range tests {
		got := expandEnvVar(tt.input)
		if got != tt.want {
			t.Errorf("expandEnvVar(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestLoad_WithWebhooks(t *testing.T) {
	content := `
log_sources:
  - /var/log/*.log
webhooks:
  - name: test-webhook
    url: "https://example.com/webhook"
    trigger: on_issues
    timeout: 30s
  - url: "https://backup.example.com/webhook"
    trigger: always
`
	path := writeTempFile(t, "config-with-webhooks.yaml", content)
	cfg, err := Load(context.Background(), path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if len(cfg.Webhooks) != 2 {
		t.Fatalf("Webhooks = %d, want 2", len(cfg.Webhooks))
	}
	if cfg.Webhooks[0].Timeout != 30*time.Second {
		t.Errorf("Webhook[0].Timeout = %v, want 30s", cfg.Webhooks[0].Timeout)
	}
	if cfg.Webhooks[1].Trigger != WebhookTriggerAlways {
		t.Errorf("Webhook[1].Trigger = %v, want %v", cfg.Webhooks[1].Trigger, WebhookTriggerAlways)
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}
