package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/gains/report"
)

func newReportCmd(a *app) *cobra.Command {
	var (
		from    string
		to      string
		short   bool
		offline bool
	)

	cmd := &cobra.Command{
		Use:   "report <username>",
		Short: "Print a gain/loss report as JSON",
		Long: `Compute realized and unrealized gain/loss for a user and print the report.

Examples:
  gains report tim_apple
  gains report tim_apple --from 2020-01-01 --to 2020-12-31 --short
  gains report john_simple --offline`,
		Args: cobra.ExactArgs(1),
	}

	cmd.Flags().StringVar(&from, "from", "", "window start, YYYY-MM-DD or YYYY-MM-DD HH:MM:SS (default "+report.DefaultFrom+")")
	cmd.Flags().StringVar(&to, "to", "", "window end (default now)")
	cmd.Flags().BoolVar(&short, "short", false, "omit per-lot detail")
	cmd.Flags().BoolVar(&offline, "offline", false, "do not look up current prices")

	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		svc, err := a.reportService(cmd.Context(), offline)
		if err != nil {
			return err
		}

		rep, err := svc.Generate(cmd.Context(), report.Request{
			User: args[0],
			From: from,
			To:   to,
			Long: !short,
		})
		if err != nil {
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(rep)
	})
	return cmd
}
