package cli

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/rustyeddy/gains/gains"
	"github.com/rustyeddy/gains/internal/config"
	"github.com/rustyeddy/gains/internal/db"
	"github.com/rustyeddy/gains/internal/logging"
	"github.com/rustyeddy/gains/quote"
	"github.com/rustyeddy/gains/report"
	"github.com/rustyeddy/gains/source"
)

// app carries what the subcommands share: the loaded config, the logger and
// anything that has to be closed on exit.
type app struct {
	configPath string
	logLevel   string

	cfg     *config.Config
	logger  *slog.Logger
	db      *sql.DB
	closers []io.Closer
}

func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}

	logger, closer, err := logging.New(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	a.cfg, a.logger = cfg, logger
	a.closers = append(a.closers, closer)
	return nil
}

// run wraps a command body so everything opened during it is closed, even
// when it fails.
func (a *app) run(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		err := fn(cmd, args)
		return errors.Join(err, a.close())
	}
}

func (a *app) close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i].Close())
	}
	a.closers = nil
	a.db = nil
	return errors.Join(errs...)
}

// database opens the configured database once per command.
func (a *app) database(ctx context.Context) (*sql.DB, error) {
	if a.db != nil {
		return a.db, nil
	}
	conn, err := db.Open(ctx, a.cfg.Database.Driver, a.cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	a.db = conn
	a.closers = append(a.closers, conn)
	return conn, nil
}

func (a *app) source(ctx context.Context) (source.Source, error) {
	if a.cfg.Source.Type != "sql" {
		a.logger.Debug("using built-in demo trades")
		return source.Mock{}, nil
	}
	conn, err := a.database(ctx)
	if err != nil {
		return nil, err
	}
	return source.NewSQL(conn), nil
}

// oracle returns the finnhub client, or an oracle that knows no prices when
// offline is set.
func (a *app) oracle(offline bool) (quote.Oracle, error) {
	if offline {
		return quote.Static(nil), nil
	}
	if a.cfg.Quote.Token == "" {
		a.logger.Warn("no quote token configured; open positions will have no price",
			"env", a.cfg.Quote.TokenEnv)
	}
	c, err := quote.NewClient(a.cfg.Quote.ClientConfig(), a.logger)
	if err != nil {
		return nil, fmt.Errorf("quote client: %w", err)
	}
	a.closers = append(a.closers, c)
	return c, nil
}

func (a *app) reportService(ctx context.Context, offline bool) (*report.Service, error) {
	src, err := a.source(ctx)
	if err != nil {
		return nil, err
	}
	o, err := a.oracle(offline)
	if err != nil {
		return nil, err
	}
	m := gains.NewMatcher(o,
		gains.WithWorkers(a.cfg.Quote.Workers),
		gains.WithOversellReport(a.cfg.Report.ReportOversell),
		gains.WithLogger(a.logger),
	)
	return report.NewService(src, m, report.WithLogger(a.logger)), nil
}
