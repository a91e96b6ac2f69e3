package commands

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/logsift/pkg/config"
	"github.com/ccollicutt/logsift/pkg/parser"
)

const (
	// diagnoseSampleSize is how many lines of the first log file are checked.
	diagnoseSampleSize = 20

	// webhookProbeTimeout bounds the HEAD request sent in verbose mode.
	webhookProbeTimeout = 5 * time.Second

	writeConfigHint = "Use 'logsift parse <log-file> --write-config logsift.yaml' to generate a starter config"
)

// checkStatus is the outcome of one diagnostic check.
type checkStatus string

const (
	statusOK    checkStatus = "ok"
	statusWarn  checkStatus = "warning"
	statusError checkStatus = "error"
)

func (s checkStatus) label() string {
	switch s {
	case statusOK:
		return "PASS"
	case statusWarn:
		return "WARN"
	default:
		return "FAIL"
	}
}

// DiagnoseOptions holds options for the diagnose command.
type DiagnoseOptions struct {
	Verbose bool
}

// DiagnosticResult is the outcome of a single check.
type DiagnosticResult struct {
	Check    string
	Status   checkStatus
	Message  string
	Details  []string
	Suggests []string
}

func passed(check, msg string, details ...string) DiagnosticResult {
	return DiagnosticResult{Check: check, Status: statusOK, Message: msg, Details: details}
}

func warned(check, msg string, details ...string) DiagnosticResult {
	return DiagnosticResult{Check: check, Status: statusWarn, Message: msg, Details: details}
}

func failed(check, msg string, suggests ...string) DiagnosticResult {
	return DiagnosticResult{Check: check, Status: statusError, Message: msg, Suggests: suggests}
}

// NewDiagnoseCommand creates the diagnose command.
func NewDiagnoseCommand() *cobra.Command {
	opts := &DiagnoseOptions{}

	cmd := &cobra.Command{
		Use:   "diagnose <config-file>",
		Short: "Check a configuration against the files and services it names",
		Long: `Check a configuration against the files and services it names.

Checks run in order:
  config file      exists, is readable and parses
  log sources      every pattern matches at least one readable file
  line format      sample lines from the first file match the access-log grammar
  database         the server answers a ping (when enabled)
  webhooks         URLs and triggers are valid; verbose mode also probes them

diagnose always exits 0; problems are reported in its output.

Example:
  logsift diagnose logsift.yaml
  logsift diagnose -v logsift.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiagnose(commandContext(cmd), cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Verbose, "verbose", "v", false, "Show details for passing checks and probe webhooks")

	return cmd
}

func runDiagnose(ctx context.Context, w io.Writer, configPath string, opts *DiagnoseOptions) error {
	results := []DiagnosticResult{checkConfigExists(configPath)}
	defer func() { printDiagnostics(w, results, opts) }()

	if results[0].Status == statusError {
		return nil
	}

	cfg, parsed := checkConfigParseable(ctx, configPath)
	results = append(results, parsed)
	if cfg == nil {
		return nil
	}

	files, sourceResults := checkLogSources(cfg)
	results = append(results, sourceResults...)
	results = append(results, checkLineFormat(ctx, cfg, files, opts)...)
	results = append(results, checkDatabase(ctx, cfg, opts)...)
	results = append(results, checkWebhooks(cfg, opts)...)
	return nil
}

func checkConfigExists(path string) DiagnosticResult {
	const check = "Config File"

	info, err := os.Stat(path)
	switch {
	case os.IsNotExist(err):
		return failed(check, fmt.Sprintf("Config file not found: %s", path),
			"Check the file path is correct", writeConfigHint)
	case err != nil:
		return failed(check, fmt.Sprintf("Cannot access config file: %v", err), "Check file permissions")
	case info.IsDir():
		return failed(check, "Path is a directory, not a file")
	case info.Size() == 0:
		return failed(check, "Config file is empty", writeConfigHint)
	}

	return passed(check, fmt.Sprintf("Found: %s (%d bytes)", path, info.Size()))
}

func checkConfigParseable(ctx context.Context, path string) (*config.Config, DiagnosticResult) {
	const check = "Config Syntax"

	cfg, err := config.Load(ctx, path)
	if err != nil {
		result := failed(check, fmt.Sprintf("Failed to parse config: %v", err))
		if strings.Contains(err.Error(), "yaml") {
			result.Suggests = []string{"Check YAML indentation; tabs are not allowed"}
		}
		return nil, result
	}

	return cfg, passed(check, "Config file parsed successfully",
		fmt.Sprintf("Log sources: %d", len(cfg.LogSources)),
		fmt.Sprintf("Query policy: %s", cfg.QueryPolicy),
		fmt.Sprintf("Sentinels: %s", strings.Join(cfg.Sentinels, ", ")),
	)
}

// checkLogSources reports on each configured source and returns the
// readable, non-empty files found.
func checkLogSources(cfg *config.Config) ([]string, []DiagnosticResult) {
	var results []DiagnosticResult
	var readable []string

	for _, source := range cfg.LogSources {
		check := "Log Source: " + source

		files, err := parser.ExpandSources([]string{source})
		if err != nil {
			results = append(results, failed(check, err.Error()))
			continue
		}

		var found, missing []string
		empty := 0
		for _, f := range files {
			info, err := os.Stat(f)
			switch {
			case err != nil, info.IsDir():
				// A directory with no log files in it expands to itself.
				missing = append(missing, f)
			case info.Size() == 0:
				empty++
			default:
				readable = append(readable, f)
				found = append(found, fmt.Sprintf("%s (%d bytes)", f, info.Size()))
			}
		}

		switch {
		case len(found) == 0 && empty == 0:
			r := failed(check, "No log files found",
				"Check if the log file path is correct",
				"Directories are searched for *.log, *.txt, *.gz and *.zst files")
			r.Details = missing
			results = append(results, r)
		case len(found) == 0:
			results = append(results, warned(check, "File is empty (0 bytes)"))
		default:
			results = append(results, passed(check, fmt.Sprintf("Matches %d file(s)", len(found)), found...))
		}
	}

	if len(readable) == 0 {
		results = append(results, failed("Log Files Summary", "No accessible log files found",
			"Ensure at least one log file exists and is readable"))
	}

	return readable, results
}

// checkLineFormat samples the first file and reports how many lines the
// grammar and the configured query policy accept.
func checkLineFormat(ctx context.Context, cfg *config.Config, files []string, opts *DiagnoseOptions) []DiagnosticResult {
	if len(files) == 0 {
		return nil
	}

	logFile := files[0]
	check := "Format Test: " + filepath.Base(logFile)

	lines, err := parser.Sample(ctx, logFile, diagnoseSampleSize)
	if err != nil {
		return []DiagnosticResult{warned(check, fmt.Sprintf("Cannot read file: %v", err))}
	}

	lp := parser.NewLineParser(parser.WithQueryPolicy(cfg.QueryPolicy))
	total, matched := 0, 0
	var firstMatch, firstFailure string
	for _, line := range lines {
		if line.Content == "" {
			continue
		}
		total++
		var err error
		if f := line.Failure(); f != nil {
			err = f
		} else {
			_, err = lp.Parse(line.Content)
		}
		switch {
		case err == nil:
			matched++
			if firstMatch == "" {
				firstMatch = line.Content
			}
		case firstFailure == "":
			firstFailure = err.Error()
		}
	}

	var result DiagnosticResult
	switch {
	case total == 0:
		result = warned(check, "No non-empty lines to test")
	case matched == 0:
		result = failed(check, "Access log format matches no lines in log file",
			`Lines must look like: 1.2.3.4 - - [17/May/2015:08:05:32 +0000] "GET /path HTTP/1.1" 200 512`,
			"Only HTTP/1.1 request lines are recognised")
		if cfg.QueryPolicy == parser.QueryPolicyReject {
			result.Suggests = append(result.Suggests, "query_policy is reject; try empty or skip")
		}
		result.Details = []string{"Sample failure:", truncate(firstFailure, 100)}
	case matched < total/2:
		result = warned(check, fmt.Sprintf("Format matches only %d/%d sample lines", matched, total),
			"Sample failure:", truncate(firstFailure, 100))
	default:
		result = passed(check, fmt.Sprintf("Format matches %d/%d sample lines", matched, total))
		if opts.Verbose && firstMatch != "" {
			result.Details = []string{"Sample match:", truncate(firstMatch, 100)}
		}
	}

	return []DiagnosticResult{result}
}

func checkDatabase(ctx context.Context, cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	const check = "Database"

	if !cfg.Database.Enabled {
		if opts.Verbose {
			return []DiagnosticResult{passed(check, "Database disabled (records will not be stored)")}
		}
		return nil
	}

	if strings.HasPrefix(cfg.Database.Password, "$") {
		return []DiagnosticResult{warned(check, "Password appears to be an unresolved env var", cfg.Database.String())}
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Database.Timeout)
	defer cancel()

	exec := newExecutor(cfg.Database)
	defer exec.Close()

	if err := exec.Ping(pingCtx); err != nil {
		r := failed(check, fmt.Sprintf("Cannot connect: %v", err),
			"Check database.host, database.port and credentials",
			fmt.Sprintf("Set the password with %s", config.EnvDBPassword))
		r.Details = []string{cfg.Database.String()}
		return []DiagnosticResult{r}
	}

	return []DiagnosticResult{passed(check, fmt.Sprintf("Reachable at %s", cfg.Database.Addr()), cfg.Database.String())}
}

func checkWebhooks(cfg *config.Config, opts *DiagnoseOptions) []DiagnosticResult {
	if len(cfg.Webhooks) == 0 {
		if opts.Verbose {
			return []DiagnosticResult{passed("Webhooks", "No webhooks configured (optional)")}
		}
		return nil
	}

	var results []DiagnosticResult
	for _, wh := range cfg.Webhooks {
		results = append(results, checkWebhookConfig(wh, opts))
	}

	if opts.Verbose {
		for _, wh := range cfg.Webhooks {
			if wh.URL == "" {
				continue
			}
			r := checkWebhookConnectivity(wh)
			r.Check = "Webhook Connectivity: " + webhookName(wh)
			results = append(results, r)
		}
	}

	return results
}

func webhookName(wh config.WebhookConfig) string {
	if wh.Name != "" {
		return wh.Name
	}
	return wh.URL
}

func checkWebhookConfig(wh config.WebhookConfig, opts *DiagnoseOptions) DiagnosticResult {
	check := "Webhook: " + webhookName(wh)

	var issues []string
	if wh.URL == "" {
		issues = append(issues, "Missing url")
	} else if u, err := url.Parse(wh.URL); err != nil {
		issues = append(issues, fmt.Sprintf("Invalid URL: %v", err))
	} else if u.Scheme != "http" && u.Scheme != "https" {
		issues = append(issues, fmt.Sprintf("URL scheme must be http or https, got %q", u.Scheme))
	} else if u.Host == "" {
		issues = append(issues, "URL must have a host")
	}

	switch wh.Trigger {
	case "", config.WebhookTriggerOnIssues, config.WebhookTriggerAlways, config.WebhookTriggerNever:
	default:
		issues = append(issues, fmt.Sprintf("Invalid trigger %q (use on_issues, always, or never)", wh.Trigger))
	}

	if len(issues) > 0 {
		r := failed(check, fmt.Sprintf("%d configuration issue(s)", len(issues)))
		r.Details = issues
		return r
	}

	if strings.HasPrefix(wh.Token, "$") {
		return warned(check, "1 warning(s)",
			fmt.Sprintf("Token appears to be an unresolved env var: %s", wh.Token))
	}

	r := passed(check, fmt.Sprintf("Trigger: %s", wh.Trigger))
	if opts.Verbose {
		r.Details = []string{
			fmt.Sprintf("URL: %s", wh.URL),
			fmt.Sprintf("Timeout: %s", wh.Timeout),
		}
		if wh.Token != "" {
			r.Details = append(r.Details, "Token: configured")
		}
	}
	return r
}

// checkWebhookConnectivity sends a HEAD request to the endpoint. Receivers
// often only accept POST, so any response is at worst a warning.
func checkWebhookConnectivity(wh config.WebhookConfig) DiagnosticResult {
	ctx, cancel := context.WithTimeout(context.Background(), webhookProbeTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, wh.URL, nil)
	if err != nil {
		return warned("", fmt.Sprintf("Cannot create request: %v", err))
	}
	if wh.Token != "" {
		req.Header.Set("Authorization", "Bearer "+wh.Token)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		r := warned("", fmt.Sprintf("Cannot connect: %v", err))
		r.Suggests = []string{"Check the webhook URL and network connectivity"}
		return r
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		r := warned("", fmt.Sprintf("Reachable but returned status %d", resp.StatusCode))
		r.Suggests = []string{"The endpoint may only accept POST", "Check authentication if using a token"}
		return r
	}
	return passed("", fmt.Sprintf("Reachable (status %d)", resp.StatusCode))
}

func printDiagnostics(w io.Writer, results []DiagnosticResult, opts *DiagnoseOptions) {
	counts := make(map[checkStatus]int)

	fmt.Fprintf(w, "=== logsift Configuration Diagnostics ===\n\n")
	for _, r := range results {
		counts[r.Status]++

		fmt.Fprintf(w, "[%s] %s\n    %s\n", r.Status.label(), r.Check, r.Message)
		if opts.Verbose || r.Status != statusOK {
			for _, d := range r.Details {
				fmt.Fprintf(w, "      - %s\n", d)
			}
		}
		for _, s := range r.Suggests {
			fmt.Fprintf(w, "      Hint: %s\n", s)
		}
		fmt.Fprintln(w)
	}

	fmt.Fprintf(w, "---\nSummary: %d passed, %d warnings, %d errors\n\n",
		counts[statusOK], counts[statusWarn], counts[statusError])

	switch {
	case counts[statusError] > 0:
		fmt.Fprintln(w, "Fix the errors above before running ingest.")
	case counts[statusWarn] > 0:
		fmt.Fprintln(w, "Configuration is usable but has warnings.")
	default:
		fmt.Fprintln(w, "Configuration looks good!")
	}
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
