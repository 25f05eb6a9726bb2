// Package cli implements the gains command line.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// noSetup marks commands that run without loading the service config.
const noSetup = "no-setup"

func NewRootCmd() *cobra.Command {
	a := &app{}

	cmd := &cobra.Command{
		Use:           "gains",
		Short:         "Gains: stock trade gain/loss reports",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	// Global / persistent flags
	cmd.PersistentFlags().StringVar(&a.configPath, "config", "", "Path to config file (optional)")
	cmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "Log level: debug|info|warn|error (overrides config)")

	cmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if _, skip := cmd.Annotations[noSetup]; skip {
			return nil
		}
		return a.setup(cmd)
	}

	// Subcommands
	cmd.AddCommand(
		newServeCmd(a),
		newReportCmd(a),
		newUsersCmd(a),
		newTradesCmd(a),
		newConfigCmd(),
		newVersionCmd(),
	)
	return cmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
