package config

import (
	"os"
	"strings"
	"time"

	"github.com/ccollicutt/logsift/pkg/parser"
)

// Default values for configuration.
const (
	DefaultDBHost         = "localhost"
	DefaultDBPort         = 3306
	DefaultDBUser         = "root"
	DefaultDBName         = "log_analysis"
	DefaultDBTable        = "logs"
	DefaultDBTimeout      = 5 * time.Second
	DefaultParsedSnapshot = "parsed_log_step_1.csv"
	DefaultCleanSnapshot  = "parsed_log_step_2.csv"
	DefaultChartsDir      = "charts"
	DefaultChartWidth     = 10.0
	DefaultChartHeight    = 6.0
	DefaultWebhookTimeout = 10 * time.Second
	DefaultLogLevel       = "info"
	DefaultLogFormat      = "console"
	DefaultQueryPolicy    = parser.QueryPolicyEmpty
)

// Environment variable names.
const (
	EnvLogSources = "LOGSIFT_LOG_SOURCES"
	EnvDBHost     = "LOGSIFT_DB_HOST"
	EnvDBUser     = "LOGSIFT_DB_USER"
	EnvDBPassword = "LOGSIFT_DB_PASSWORD"
	EnvLogLevel   = "LOGSIFT_LOG_LEVEL"
)

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		LogSources:  []string{},
		QueryPolicy: DefaultQueryPolicy,
		Snapshots: SnapshotConfig{
			Parsed: DefaultParsedSnapshot,
			Clean:  DefaultCleanSnapshot,
		},
		Database: DatabaseConfig{
			Host:    DefaultDBHost,
			Port:    DefaultDBPort,
			User:    DefaultDBUser,
			Name:    DefaultDBName,
			Table:   DefaultDBTable,
			Timeout: DefaultDBTimeout,
		},
		Charts: ChartsConfig{
			Dir:    DefaultChartsDir,
			Width:  DefaultChartWidth,
			Height: DefaultChartHeight,
		},
		Logging: LoggingConfig{
			Level:  DefaultLogLevel,
			Format: DefaultLogFormat,
		},
	}
}

// applyEnvironmentOverrides applies environment variable overrides to the config.
func (c *Config) applyEnvironmentOverrides() {
	if v := os.Getenv(EnvLogSources); v != "" {
		var sources []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.TrimSpace(s); s != "" {
				sources = append(sources, s)
			}
		}
		c.LogSources = sources
	}
	if v := os.Getenv(EnvDBHost); v != "" {
		c.Database.Host = v
	}
	if v := os.Getenv(EnvDBUser); v != "" {
		c.Database.User = v
	}
	if v := os.Getenv(EnvDBPassword); v != "" {
		c.Database.Password = v
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		c.Logging.Level = v
	}
}
