package commands

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ccollicutt/logsift/pkg/charts"
	"github.com/ccollicutt/logsift/pkg/config"
	"github.com/ccollicutt/logsift/pkg/logging"
	"github.com/ccollicutt/logsift/pkg/metrics"
	"github.com/ccollicutt/logsift/pkg/output"
	"github.com/ccollicutt/logsift/pkg/parser"
	"github.com/ccollicutt/logsift/pkg/pipeline"
	"github.com/ccollicutt/logsift/pkg/store"
	"github.com/ccollicutt/logsift/pkg/webhook"
)

// IngestOptions holds command-line options for the ingest command.
type IngestOptions struct {
	Output      string
	Verbose     bool
	Quiet       bool
	SkipDB      bool
	SkipCharts  bool
	SnapshotDir string
	MetricsFile string

	// Webhook options
	WebhookURL     string
	WebhookToken   string
	WebhookTrigger string

	global *GlobalOptions
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(global *GlobalOptions) *cobra.Command {
	opts := &IngestOptions{global: global}

	cmd := &cobra.Command{
		Use:   "ingest <config-file>",
		Short: "Parse, clean and store access logs",
		Long: `Run the full ingest pipeline described by the configuration file.

Stages:
  - Parse every line of the configured log sources
  - Drop duplicates and records with missing fields
  - Write CSV snapshots (if snapshots.dir is set)
  - Insert clean records into MySQL (if database.enabled)
  - Render charts (if charts.enabled)

Exit codes:
  0 - All lines parsed and all records stored
  1 - Some lines failed to parse or some records failed to store
  2 - Configuration or runtime error`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Output, "output", "o", "text", "Output format (text|json)")
	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "List every failed line and row")
	cmd.Flags().BoolVarP(&opts.Quiet, "quiet", "q", false, "Summary only, no details")
	cmd.Flags().BoolVar(&opts.SkipDB, "skip-db", false, "Do not store records even if the database is enabled")
	cmd.Flags().BoolVar(&opts.SkipCharts, "skip-charts", false, "Do not render charts even if charts are enabled")
	cmd.Flags().StringVar(&opts.SnapshotDir, "snapshot-dir", "", "Write CSV snapshots to this directory")
	cmd.Flags().StringVar(&opts.MetricsFile, "metrics-file", "", "Write Prometheus metrics to this file")

	// Webhook flags
	cmd.Flags().StringVar(&opts.WebhookURL, "webhook-url", "", "Webhook endpoint URL")
	cmd.Flags().StringVar(&opts.WebhookToken, "webhook-token", "", "Bearer token for webhook auth")
	cmd.Flags().StringVar(&opts.WebhookTrigger, "webhook-trigger", "on_issues", "When to fire webhook (on_issues|always|never)")

	return cmd
}

func runIngest(cmd *cobra.Command, args []string, opts *IngestOptions) error {
	configPath := args[0]
	ctx := commandContext(cmd)
	started := time.Now()
	stdout := cmd.OutOrStdout()
	stderr := cmd.ErrOrStderr()

	formatter, err := output.NewFormatter(opts.Output, output.FormatOptions{
		Verbose: opts.Verbose,
		Quiet:   opts.Quiet,
		Color:   opts.Output == "text" && isTerminal(stdout) && !color.NoColor,
	})
	if err != nil {
		return err
	}

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	applyIngestOverrides(cfg, opts)

	runID := output.NewRunID()
	baseLog, err := opts.global.logger(&cfg.Logging, stderr)
	if err != nil {
		return err
	}
	log := baseLog.With(logging.String("run_id", runID))

	var m *metrics.Metrics
	if opts.MetricsFile != "" {
		if m, err = metrics.New(); err != nil {
			return err
		}
	}

	files, err := parser.ExpandSources(cfg.LogSources)
	if err != nil {
		return fmt.Errorf("expanding log sources: %w", err)
	}
	log.Info("starting ingest",
		logging.String("config", configPath),
		logging.Int("files", len(files)),
	)

	prog := newProgress(stderr, !opts.Quiet)
	prog.Start()
	defer prog.Stop()

	prog.Stage("parsing")
	source := parser.NewFileSource(files...)
	defer source.Close()

	runner := pipeline.NewRunner(
		pipeline.WithQueryPolicy(cfg.QueryPolicy),
		pipeline.WithSentinels(cfg.Sentinels...),
		pipeline.WithLogger(log),
		pipeline.WithMetrics(m),
		pipeline.WithParsedRecords(cfg.Snapshots.Enabled()),
	)
	result, err := runner.Run(ctx, source)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	report := output.NewReport(result, runID, configPath, started)

	if cfg.Snapshots.Enabled() {
		prog.Stage("writing snapshots")
		paths, err := writeSnapshots(cfg.Snapshots, result)
		if err != nil {
			return err
		}
		report.Snapshots = paths
	}

	if cfg.Database.Enabled {
		prog.Stage("storing records")
		saved, err := persist(ctx, cfg.Database, result, log)
		if err != nil {
			return err
		}
		report.AddSaveResult(saved)
		m.Persisted(saved.Inserted, len(saved.Failed))
	}

	if cfg.Charts.Enabled {
		prog.Stage("rendering charts")
		paths, err := renderCharts(ctx, cfg.Charts, result)
		if err != nil {
			return err
		}
		report.Charts = paths
		m.ChartsRendered(len(paths))
	}

	prog.Stop()
	report.Finish(time.Now())

	if err := formatter.Format(ctx, report, stdout); err != nil {
		return fmt.Errorf("formatting output: %w", err)
	}

	// Webhook failures are logged and never fail the run
	webhook.NewClient(webhook.WithLogger(log)).Dispatch(ctx, report, collectWebhooks(cfg, opts))

	if opts.MetricsFile != "" {
		if err := m.WriteTextfile(opts.MetricsFile); err != nil {
			return err
		}
	}

	if report.HasIssues() {
		ExitCode = ExitIssues
	}

	return nil
}

// applyIngestOverrides folds command-line flags into the loaded config.
func applyIngestOverrides(cfg *config.Config, opts *IngestOptions) {
	if opts.SkipDB {
		cfg.Database.Enabled = false
	}
	if opts.SkipCharts {
		cfg.Charts.Enabled = false
	}
	if opts.SnapshotDir != "" {
		cfg.Snapshots.Dir = opts.SnapshotDir
	}
}

func writeSnapshots(sc config.SnapshotConfig, result *pipeline.Result) ([]string, error) {
	parsedPath := filepath.Join(sc.Dir, sc.Parsed)
	err := output.WriteSnapshot(parsedPath, func(w io.Writer) error {
		return output.WriteParsedCSV(w, result.Parsed)
	})
	if err != nil {
		return nil, err
	}

	cleanPath := filepath.Join(sc.Dir, sc.Clean)
	err = output.WriteSnapshot(cleanPath, func(w io.Writer) error {
		return output.WriteCleanCSV(w, result.Clean)
	})
	if err != nil {
		return nil, err
	}

	return []string{parsedPath, cleanPath}, nil
}

func persist(ctx context.Context, dbc config.DatabaseConfig, result *pipeline.Result, log logging.Logger) (*store.SaveResult, error) {
	exec := newExecutor(dbc)
	defer exec.Close()

	repo := store.NewRepository(exec, dbc.Name, dbc.Table, store.WithLogger(log))
	if err := repo.Setup(ctx); err != nil {
		return nil, fmt.Errorf("preparing database: %w", err)
	}

	saved, err := repo.Save(ctx, result.Clean)
	if err != nil {
		return nil, fmt.Errorf("storing records: %w", err)
	}
	return saved, nil
}

func renderCharts(ctx context.Context, cc config.ChartsConfig, result *pipeline.Result) ([]string, error) {
	kinds, err := charts.ParseKinds(cc.Kinds)
	if err != nil {
		return nil, err
	}

	r := charts.NewRenderer(charts.Options{
		Dir:     cc.Dir,
		Width:   cc.Width,
		Height:  cc.Height,
		Kinds:   kinds,
		MaxBars: cc.MaxBars,
	})
	paths, err := r.Render(ctx, result.Clean)
	if err != nil {
		return nil, fmt.Errorf("rendering charts: %w", err)
	}
	return paths, nil
}

// collectWebhooks merges config file webhooks with CLI webhook.
func collectWebhooks(cfg *config.Config, opts *IngestOptions) []config.WebhookConfig {
	webhooks := make([]config.WebhookConfig, 0, len(cfg.Webhooks)+1)
	webhooks = append(webhooks, cfg.Webhooks...)

	if opts.WebhookURL != "" {
		trigger := config.WebhookTrigger(opts.WebhookTrigger)
		if trigger == "" {
			trigger = config.WebhookTriggerOnIssues
		}

		webhooks = append(webhooks, config.WebhookConfig{
			Name:    "cli",
			URL:     opts.WebhookURL,
			Token:   opts.WebhookToken,
			Trigger: trigger,
			Timeout: config.DefaultWebhookTimeout,
		})
	}

	return webhooks
}
