// Package cli provides the command-line interface for logsift.
package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/ccollicutt/logsift/internal/cli/commands"
	"github.com/ccollicutt/logsift/internal/cli/plugins"
)

// Execute runs the root command and returns the exit code.
func Execute() int {
	return Run(os.Args[1:], os.Stdout, os.Stderr)
}

// Run executes logsift with args and returns the exit code. Plugins always
// run on the process's own stdio.
func Run(args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)

	// An unknown first word may name a plugin
	potential := firstCommand(args)
	if potential != "" && !isBuiltinCommand(rootCmd, potential) {
		if pluginPath, err := plugins.FindPlugin(potential); err == nil {
			return plugins.Execute(pluginPath, args[1:])
		}
	}

	commands.ExitCode = commands.ExitClean
	if err := rootCmd.Execute(); err != nil {
		if potential != "" && !isBuiltinCommand(rootCmd, potential) {
			_, _ = fmt.Fprintln(stderr, plugins.FormatNotFoundError(potential))
			return commands.ExitError
		}
		// SilenceErrors stops cobra from printing this
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return commands.ExitError
	}
	return commands.ExitCode
}

// firstCommand returns args[0] when it is not a flag.
func firstCommand(args []string) string {
	if len(args) == 0 || len(args[0]) == 0 || args[0][0] == '-' {
		return ""
	}
	return args[0]
}

// isBuiltinCommand checks if a command name is a built-in cobra command.
func isBuiltinCommand(rootCmd *cobra.Command, name string) bool {
	for _, cmd := range rootCmd.Commands() {
		if cmd.Name() == name || cmd.HasAlias(name) {
			return true
		}
	}
	return name == "help" || name == "completion"
}

// NewRootCommand creates the root cobra command.
func NewRootCommand() *cobra.Command {
	global := &commands.GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "logsift",
		Short: "Parse, clean and store web server access logs",
		Long: `logsift is a batch tool for web server access logs.

It parses each line with a fixed access log grammar, drops duplicate records
and records with missing fields, and can store the result in MySQL, write CSV
snapshots and render summary charts.

PLUGINS:
  Unknown commands are dispatched to standalone binaries named
  logsift-<command>.

  Plugin locations (searched in order):
    1. Same directory as the logsift binary
    2. ~/.logsift/plugins/
    3. Anywhere in PATH`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&global.LogLevel, "log-level", "", "Log level (debug|info|warn|error); overrides the config file")
	rootCmd.PersistentFlags().StringVar(&global.LogFormat, "log-format", "", "Log format (json|console); overrides the config file")

	rootCmd.AddCommand(commands.NewIngestCommand(global))
	rootCmd.AddCommand(commands.NewParseCommand(global))
	rootCmd.AddCommand(commands.NewSetupDBCommand(global))
	rootCmd.AddCommand(commands.NewDiagnoseCommand())
	rootCmd.AddCommand(commands.NewValidateCommand())
	rootCmd.AddCommand(commands.NewVersionCommand())

	return rootCmd
}
