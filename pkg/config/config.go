package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ccollicutt/logsift/pkg/charts"
	"github.com/ccollicutt/logsift/pkg/logging"
	"github.com/ccollicutt/logsift/pkg/normalizer"
	"github.com/ccollicutt/logsift/pkg/parser"
)

// identifierPattern restricts database and table names, which are
// interpolated into DDL.
var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Load reads and validates a configuration file.
func Load(_ context.Context, path string) (*Config, error) {
	data, err := os.ReadFile(path) // #nosec G304 -- user-provided config path is expected
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyEnvironmentOverrides()

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks a configuration for errors and fills in defaults.
func Validate(cfg *Config) error {
	if len(cfg.LogSources) == 0 {
		return errors.New("log_sources: at least one log source is required")
	}

	if cfg.QueryPolicy == "" {
		cfg.QueryPolicy = DefaultQueryPolicy
	}
	if _, err := parser.ParseQueryPolicy(string(cfg.QueryPolicy)); err != nil {
		return fmt.Errorf("query_policy: %w", err)
	}

	if len(cfg.Sentinels) == 0 {
		cfg.Sentinels = append([]string(nil), normalizer.DefaultSentinels...)
	}
	for i, s := range cfg.Sentinels {
		if s == "" {
			return fmt.Errorf("sentinels[%d]: empty sentinel (empty fields are always treated as missing)", i)
		}
	}

	validateSnapshots(&cfg.Snapshots)

	if err := validateDatabase(&cfg.Database); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if err := validateCharts(&cfg.Charts); err != nil {
		return fmt.Errorf("charts: %w", err)
	}

	if err := validateLogging(&cfg.Logging); err != nil {
		return fmt.Errorf("logging: %w", err)
	}

	for i := range cfg.Webhooks {
		if err := validateWebhook(&cfg.Webhooks[i]); err != nil {
			name := cfg.Webhooks[i].Name
			if name == "" {
				name = cfg.Webhooks[i].URL
			}
			return fmt.Errorf("webhooks[%d] (%s): %w", i, name, err)
		}
	}

	return nil
}

func validateSnapshots(s *SnapshotConfig) {
	if s.Parsed == "" {
		s.Parsed = DefaultParsedSnapshot
	}
	if s.Clean == "" {
		s.Clean = DefaultCleanSnapshot
	}
}

func validateDatabase(db *DatabaseConfig) error {
	db.Password = expandEnvVar(db.Password)

	if db.Timeout <= 0 {
		db.Timeout = DefaultDBTimeout
	}

	if !db.Enabled {
		return nil
	}

	if db.Host == "" {
		return errors.New("host is required when the database is enabled")
	}
	if db.Port <= 0 || db.Port > 65535 {
		return fmt.Errorf("port %d out of range", db.Port)
	}
	if db.User == "" {
		return errors.New("user is required when the database is enabled")
	}
	if !identifierPattern.MatchString(db.Name) {
		return fmt.Errorf("invalid database name %q", db.Name)
	}
	if !identifierPattern.MatchString(db.Table) {
		return fmt.Errorf("invalid table name %q", db.Table)
	}

	return nil
}

func validateCharts(c *ChartsConfig) error {
	if c.Dir == "" {
		c.Dir = DefaultChartsDir
	}
	if c.Width <= 0 {
		c.Width = DefaultChartWidth
	}
	if c.Height <= 0 {
		c.Height = DefaultChartHeight
	}
	if c.MaxBars < 0 {
		return fmt.Errorf("max_bars must be >= 0, got %d", c.MaxBars)
	}
	if _, err := charts.ParseKinds(c.Kinds); err != nil {
		return err
	}
	return nil
}

func validateLogging(l *LoggingConfig) error {
	if l.Level == "" {
		l.Level = DefaultLogLevel
	}
	if l.Format == "" {
		l.Format = DefaultLogFormat
	}
	if _, err := logging.ParseLevel(l.Level); err != nil {
		return err
	}
	switch logging.Format(l.Format) {
	case logging.FormatJSON, logging.FormatConsole:
	default:
		return fmt.Errorf("invalid format %q (must be json or console)", l.Format)
	}
	return nil
}

func validateWebhook(wh *WebhookConfig) error {
	if wh.URL == "" {
		return errors.New("url is required")
	}

	u, err := url.Parse(wh.URL)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}

	if u.Host == "" {
		return errors.New("url must have a host")
	}

	wh.Token = expandEnvVar(wh.Token)

	if wh.Trigger != "" {
		switch wh.Trigger {
		case WebhookTriggerOnIssues, WebhookTriggerAlways, WebhookTriggerNever:
		default:
			return fmt.Errorf("invalid trigger %q (must be on_issues, always, or never)", wh.Trigger)
		}
	} else {
		wh.Trigger = WebhookTriggerOnIssues
	}

	if wh.Timeout <= 0 {
		wh.Timeout = DefaultWebhookTimeout
	}

	return nil
}

// expandEnvVar expands a value written as ${VAR} or $VAR.
func expandEnvVar(s string) string {
	if s == "" {
		return s
	}

	if strings.HasPrefix(s, "${") && strings.HasSuffix(s, "}") {
		return os.Getenv(s[2 : len(s)-1])
	}

	if strings.HasPrefix(s, "$") && !strings.HasPrefix(s, "${") {
		return os.Getenv(s[1:])
	}

	return s
}
