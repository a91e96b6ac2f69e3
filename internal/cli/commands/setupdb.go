package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/logsift/pkg/config"
	"github.com/ccollicutt/logsift/pkg/store"
)

// NewSetupDBCommand creates the setup-db command.
func NewSetupDBCommand(global *GlobalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "setup-db <config-file>",
		Short: "Create the database and table",
		Long: `Create the configured MySQL database and logs table if they do not exist.

The database section of the config file must be present; database.enabled is
not required for this command.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSetupDB(cmd, args, global)
		},
	}
}

func runSetupDB(cmd *cobra.Command, args []string, global *GlobalOptions) error {
	ctx := commandContext(cmd)
	out := cmd.OutOrStdout()

	cfg, err := config.Load(ctx, args[0])
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Run the enabled-database checks even when ingest would skip it.
	cfg.Database.Enabled = true
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	log, err := global.logger(&cfg.Logging, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	exec := newExecutor(cfg.Database)
	defer exec.Close()

	repo := store.NewRepository(exec, cfg.Database.Name, cfg.Database.Table, store.WithLogger(log))
	if err := repo.Setup(ctx); err != nil {
		return err
	}

	fmt.Fprintf(out, "Database ready: %s\n", cfg.Database)
	return nil
}
