package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/gains/source"
	"github.com/rustyeddy/gains/trade"
)

func newTradesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trades",
		Short: "Load trade history into the database",
	}

	imp := &cobra.Command{
		Use:   "import <username> <file>",
		Short: "Import delimited trade rows for a user",
		Long: `Read trade rows (user_id, buy|sell, symbol, quantity, price, YYYY-MM-DD HH:MM:SS)
and store them for <username>. Rows that do not parse are reported and skipped.

Example:
  gains trades import tim_apple trades.csv`,
		Args: cobra.ExactArgs(2),
	}

	imp.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[1])
		if err != nil {
			return fmt.Errorf("read trades: %w", err)
		}

		recs, warnings := trade.Parse(string(data))
		for _, w := range warnings {
			fmt.Fprintf(cmd.ErrOrStderr(), "skipped %s\n", w)
		}

		conn, err := a.database(cmd.Context())
		if err != nil {
			return err
		}
		n, err := source.NewSQL(conn).Import(cmd.Context(), args[0], recs)
		if err != nil {
			return err
		}

		a.logger.Info("trades imported", "user", args[0], "rows", n, "skipped", len(warnings))
		fmt.Fprintf(cmd.OutOrStdout(), "imported %d trades for %s (%d skipped)\n", n, args[0], len(warnings))
		return nil
	})

	cmd.AddCommand(imp)
	return cmd
}
