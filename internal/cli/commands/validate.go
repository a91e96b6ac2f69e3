package commands

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/logsift/pkg/config"
	"github.com/ccollicutt/logsift/pkg/parser"
)

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config-file>",
		Short: "Validate a configuration file",
		Long: `Validate a logsift configuration file without reading any logs.

Checks:
  - YAML syntax
  - Required fields
  - Query policy, sentinels and chart kinds
  - Database and table names
  - Webhook URLs and triggers
  - Log source file existence (warning only)`,
		Args: cobra.ExactArgs(1),
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	configPath := args[0]
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	fmt.Fprintf(out, "Validating %s...\n", configPath)

	cfg, err := config.Load(ctx, configPath)
	if err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	fmt.Fprintf(out, "\nConfiguration valid!\n")
	fmt.Fprintf(out, "  Log sources:  %d pattern(s)\n", len(cfg.LogSources))
	fmt.Fprintf(out, "  Query policy: %s\n", cfg.QueryPolicy)
	fmt.Fprintf(out, "  Sentinels:    %s\n", strings.Join(cfg.Sentinels, ", "))
	if cfg.Snapshots.Enabled() {
		fmt.Fprintf(out, "  Snapshots:    %s\n", cfg.Snapshots.Dir)
	} else {
		fmt.Fprintf(out, "  Snapshots:    disabled\n")
	}
	if cfg.Database.Enabled {
		fmt.Fprintf(out, "  Database:     %s\n", cfg.Database)
	} else {
		fmt.Fprintf(out, "  Database:     disabled\n")
	}
	if cfg.Charts.Enabled {
		fmt.Fprintf(out, "  Charts:       %s\n", cfg.Charts.Dir)
	} else {
		fmt.Fprintf(out, "  Charts:       disabled\n")
	}
	fmt.Fprintf(out, "  Webhooks:     %d\n", len(cfg.Webhooks))

	// Missing log files are warnings only
	files, err := parser.ExpandSources(cfg.LogSources)
	if err != nil {
		fmt.Fprintf(out, "\nWarning: Error expanding log source patterns: %v\n", err)
		return nil
	}

	fmt.Fprintf(out, "\nLog files matched: %d\n", len(files))
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			fmt.Fprintf(out, "  - %s (warning: %v)\n", f, err)
			continue
		}
		fmt.Fprintf(out, "  - %s\n", f)
	}
	return nil
}
