// Package config provides configuration loading and validation for logsift.
package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/ccollicutt/logsift/pkg/parser"
)

// Config is the root configuration structure loaded from YAML.
type Config struct {
	LogSources  []string           `yaml:"log_sources"`
	QueryPolicy parser.QueryPolicy `yaml:"query_policy,omitempty"`
	Sentinels   []string           `yaml:"sentinels,omitempty"`
	Snapshots   SnapshotConfig     `yaml:"snapshots,omitempty"`
	Database    DatabaseConfig     `yaml:"database,omitempty"`
	Charts      ChartsConfig       `yaml:"charts,omitempty"`
	Webhooks    []WebhookConfig    `yaml:"webhooks,omitempty"`
	Logging     LoggingConfig      `yaml:"logging,omitempty"`
}

// SnapshotConfig controls the CSV files written after parsing and cleaning.
// Snapshots are written only when Dir is set.
type SnapshotConfig struct {
	Dir    string `yaml:"dir,omitempty"`
	Parsed string `yaml:"parsed,omitempty"`
	Clean  string `yaml:"clean,omitempty"`
}

// Enabled reports whether snapshots should be written.
func (s SnapshotConfig) Enabled() bool {
	return s.Dir != ""
}

// DatabaseConfig describes the MySQL server records are saved to.
type DatabaseConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Host     string        `yaml:"host,omitempty"`
	Port     int           `yaml:"port,omitempty"`
	User     string        `yaml:"user,omitempty"`
	Password string        `yaml:"password,omitempty"`
	Name     string        `yaml:"name,omitempty"`
	Table    string        `yaml:"table,omitempty"`
	Timeout  time.Duration `yaml:"timeout,omitempty"`
}

// Addr returns host:port.
func (d DatabaseConfig) Addr() string {
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// String describes the connection without the password.
func (d DatabaseConfig) String() string {
	return fmt.Sprintf("%s@%s/%s.%s", d.User, d.Addr(), d.Name, d.Table)
}

// ChartsConfig controls chart rendering.
type ChartsConfig struct {
	Enabled bool     `yaml:"enabled"`
	Dir     string   `yaml:"dir,omitempty"`
	Width   float64  `yaml:"width,omitempty"`  // inches
	Height  float64  `yaml:"height,omitempty"` // inches
	Kinds   []string `yaml:"kinds,omitempty"`
	MaxBars int      `yaml:"max_bars,omitempty"` // 0 means all
}

// LoggingConfig controls diagnostic logging.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty"`
	Format string `yaml:"format,omitempty"`
}

// WebhookTrigger determines when a webhook fires.
type WebhookTrigger string

const (
	// WebhookTriggerOnIssues fires only when the run had issues (default).
	WebhookTriggerOnIssues WebhookTrigger = "on_issues"
	// WebhookTriggerAlways fires after every run.
	WebhookTriggerAlways WebhookTrigger = "always"
	// WebhookTriggerNever disables the webhook.
	WebhookTriggerNever WebhookTrigger = "never"
)

// WebhookConfig defines a webhook endpoint for sending run reports.
type WebhookConfig struct {
	// Name is an optional identifier for the webhook.
	Name string `yaml:"name,omitempty"`

	// URL is the webhook endpoint (required).
	URL string `yaml:"url"`

	// Token is an optional bearer token for authentication.
	Token string `yaml:"token,omitempty"`

	// Trigger determines when the webhook fires.
	// Defaults to "on_issues" if not specified.
	Trigger WebhookTrigger `yaml:"trigger,omitempty"`

	// Timeout is the HTTP request timeout.
	// Defaults to 10s if not specified.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}
