package commands

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/logsift/pkg/config"
	"github.com/ccollicutt/logsift/pkg/output"
	"github.com/ccollicutt/logsift/pkg/parser"
	"github.com/ccollicutt/logsift/pkg/pipeline"
)

// ParseOptions holds command-line options for the parse command.
type ParseOptions struct {
	Clean       bool
	SampleSize  int
	QueryPolicy string
	WriteConfig string

	global *GlobalOptions
}

// NewParseCommand creates the parse command.
func NewParseCommand(global *GlobalOptions) *cobra.Command {
	opts := &ParseOptions{global: global}

	cmd := &cobra.Command{
		Use:   "parse <log-file>",
		Short: "Parse an access log and print records as JSON lines",
		Long: `Parse an access log without a configuration file.

Each record is printed to stdout as one JSON document. Lines that do not
match the access log format are reported on stderr.

With --clean, records are deduplicated and rows with missing fields
("NULL", "-") are dropped before printing.

Optionally generates a starter config file with --write-config.

Example:
  logsift parse /var/log/nginx/access.log
  logsift parse --clean --sample 1000 access.log.gz
  logsift parse --write-config logsift.yaml access.log`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runParse(cmd, args, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.Clean, "clean", false, "Deduplicate and drop records with missing fields")
	cmd.Flags().IntVarP(&opts.SampleSize, "sample", "n", 0, "Only read the first n lines (0 reads all)")
	cmd.Flags().StringVar(&opts.QueryPolicy, "query-policy", string(config.DefaultQueryPolicy), "Query segments without '=' (empty|skip|reject)")
	cmd.Flags().StringVarP(&opts.WriteConfig, "write-config", "w", "", "Write starter config to file (will not overwrite)")

	return cmd
}

func runParse(cmd *cobra.Command, args []string, opts *ParseOptions) error {
	logFile := args[0]
	ctx := commandContext(cmd)
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	if _, err := os.Stat(logFile); os.IsNotExist(err) {
		return fmt.Errorf("log file not found: %s", logFile)
	}

	policy, err := parser.ParseQueryPolicy(opts.QueryPolicy)
	if err != nil {
		return err
	}
	if opts.SampleSize < 0 {
		return fmt.Errorf("invalid --sample %d (must be >= 0)", opts.SampleSize)
	}

	// Failures are printed below; the logger only speaks when asked to.
	log, err := opts.global.logger(&config.LoggingConfig{Level: "error"}, stderr)
	if err != nil {
		return err
	}

	lines, err := parser.Sample(ctx, logFile, opts.SampleSize)
	if err != nil {
		return fmt.Errorf("reading %s: %w", logFile, err)
	}

	runner := pipeline.NewRunner(
		pipeline.WithQueryPolicy(policy),
		pipeline.WithLogger(log),
		pipeline.WithParsedRecords(!opts.Clean),
	)
	result, err := runner.Run(ctx, parser.NewSliceSource(lines))
	if err != nil {
		return fmt.Errorf("parse failed: %w", err)
	}

	if opts.WriteConfig != "" {
		if err := writeStarterConfig(logFile, opts.WriteConfig, policy, result.Stats, stderr); err != nil {
			return err
		}
	}

	if err := writeRecords(stdout, result, opts.Clean); err != nil {
		return fmt.Errorf("writing records: %w", err)
	}

	for _, f := range result.Failures {
		fmt.Fprintln(stderr, f.Error())
	}

	if len(result.Failures) > 0 {
		ExitCode = ExitIssues
	}

	return nil
}

func writeRecords(w io.Writer, result *pipeline.Result, clean bool) error {
	jw := output.NewJSONLinesWriter(w)
	if clean {
		for _, r := range result.Clean {
			if err := jw.WriteClean(r); err != nil {
				return err
			}
		}
		return nil
	}
	for _, r := range result.Parsed {
		if err := jw.WriteParsed(r); err != nil {
			return err
		}
	}
	return nil
}

// writeStarterConfig generates a starter config file for logFile.
func writeStarterConfig(logFile, configPath string, policy parser.QueryPolicy, stats pipeline.Stats, w io.Writer) error {
	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config file already exists: %s (will not overwrite)", configPath)
	}

	if stats.Parsed == 0 {
		return fmt.Errorf("cannot generate config: no lines in %s match the access log format", logFile)
	}

	content := generateStarterConfig(logFile, policy, stats)

	// #nosec G306 - config file doesn't need restrictive permissions
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	fmt.Fprintf(w, "Wrote starter config to: %s\n", configPath)
	return nil
}

// generateStarterConfig creates a YAML config template.
func generateStarterConfig(logFile string, policy parser.QueryPolicy, stats pipeline.Stats) string {
	absLogFile := logFile
	if abs, err := filepath.Abs(logFile); err == nil {
		absLogFile = abs
	}

	return fmt.Sprintf(`# logsift configuration
# Generated by: logsift parse --write-config
# Sample: %d of %d lines matched the access log format

log_sources:
  - %s

query_policy: %s
sentinels: ["NULL", "-"]

# CSV snapshots after parsing and cleaning. Set dir to enable.
snapshots:
  dir: ""
  parsed: %s
  clean: %s

database:
  enabled: false
  host: %s
  port: %d
  user: %s
  password: ${%s}
  name: %s
  table: %s

charts:
  enabled: false
  dir: %s

# webhooks:
#   - name: alerts
#     url: https://example.com/hooks/logsift
#     trigger: on_issues

logging:
  level: %s
  format: %s
`,
		stats.Parsed, stats.LinesRead,
		absLogFile,
		policy,
		config.DefaultParsedSnapshot, config.DefaultCleanSnapshot,
		config.DefaultDBHost, config.DefaultDBPort, config.DefaultDBUser, config.EnvDBPassword,
		config.DefaultDBName, config.DefaultDBTable,
		config.DefaultChartsDir,
		config.DefaultLogLevel, config.DefaultLogFormat,
	)
}
