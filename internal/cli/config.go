package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/gains/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Generate or validate configuration files",
		Long: `Manage configuration files.

Subcommands:
  init     - Generate a default configuration file
  validate - Validate an existing configuration file

Examples:
  gains config init -o gains.yaml
  gains config validate -f gains.yaml`,
		Annotations: map[string]string{noSetup: ""},
	}

	var output string
	initCmd := &cobra.Command{
		Use:         "init",
		Short:       "Generate a default configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{noSetup: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := config.Default().SaveToFile(output); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Created default configuration: %s\n", output)
			fmt.Fprintln(out, "\nSet the quote token in the environment and run with:")
			fmt.Fprintf(out, "  gains serve --config %s\n", output)
			return nil
		},
	}
	initCmd.Flags().StringVarP(&output, "output", "o", "gains.yaml", "output config file path")

	var path string
	validateCmd := &cobra.Command{
		Use:         "validate",
		Short:       "Validate a configuration file",
		Args:        cobra.NoArgs,
		Annotations: map[string]string{noSetup: ""},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadFromFile(path)
			if err != nil {
				return fmt.Errorf("validation failed: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Configuration valid: %s\n", path)
			fmt.Fprintf(out, "  Server: %s (%s)\n", cfg.Server.Addr, cfg.Server.Mode)
			fmt.Fprintf(out, "  Database: %s\n", cfg.Database.Driver)
			fmt.Fprintf(out, "  Source: %s\n", cfg.Source.Type)
			fmt.Fprintf(out, "  Quotes: %s (token from $%s)\n", cfg.Quote.BaseURL, cfg.Quote.TokenEnv)
			return nil
		},
	}
	validateCmd.Flags().StringVarP(&path, "file", "f", "", "path to config file (required)")
	_ = validateCmd.MarkFlagRequired("file")

	cmd.AddCommand(initCmd, validateCmd)
	return cmd
}
