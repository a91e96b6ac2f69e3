package commands

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/ccollicutt/logsift/pkg/config"
	"github.com/ccollicutt/logsift/pkg/logging"
	"github.com/ccollicutt/logsift/pkg/store"
)

// ExitCode is set by commands to indicate the result
var ExitCode = 0

// Exit codes.
const (
	ExitClean  = 0
	ExitIssues = 1
	ExitError  = 2
)

// GlobalOptions holds the persistent root flags.
type GlobalOptions struct {
	LogLevel  string
	LogFormat string
}

// logger builds the diagnostic logger. Flags win over the config file.
func (g *GlobalOptions) logger(cfg *config.LoggingConfig, w io.Writer) (*logging.ZerologAdapter, error) {
	opts := logging.Options{
		Level:  config.DefaultLogLevel,
		Format: logging.Format(config.DefaultLogFormat),
		Output: w,
	}
	if cfg != nil {
		opts.Level = cfg.Level
		opts.Format = logging.Format(cfg.Format)
	}
	if g != nil && g.LogLevel != "" {
		opts.Level = g.LogLevel
	}
	if g != nil && g.LogFormat != "" {
		opts.Format = logging.Format(g.LogFormat)
	}
	return logging.New(opts)
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// dbExecutor is what commands need from a database connection.
type dbExecutor interface {
	store.Executor
	Ping(ctx context.Context) error
	Close() error
}

// newExecutor opens the configured database. Tests replace it.
var newExecutor = func(cfg config.DatabaseConfig) dbExecutor {
	return store.NewMySQLExecutor(cfg)
}
