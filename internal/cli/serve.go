package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/rustyeddy/gains/internal/api"
	"github.com/rustyeddy/gains/users"
)

func newServeCmd(a *app) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides server.addr)")

	cmd.RunE = a.run(func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		conn, err := a.database(ctx)
		if err != nil {
			return err
		}
		svc, err := a.reportService(ctx, false)
		if err != nil {
			return err
		}

		gin.SetMode(a.cfg.Server.Mode)
		router := api.NewRouter(api.Deps{
			Reports: svc,
			Users:   users.NewStore(conn),
			DB:      conn,
			Logger:  a.logger,
			Long:    a.cfg.Report.Long,
		})

		sc := api.ServerConfig{
			Addr:            a.cfg.Server.Addr,
			ReadTimeout:     a.cfg.Server.ReadTimeout,
			WriteTimeout:    a.cfg.Server.WriteTimeout,
			ShutdownTimeout: a.cfg.Server.ShutdownTimeout,
		}
		if addr != "" {
			sc.Addr = addr
		}

		a.logger.Info("starting gains",
			"source", a.cfg.Source.Type,
			"db_driver", a.cfg.Database.Driver,
			"quote_token", a.cfg.Quote.Token != "",
		)
		return api.Serve(ctx, sc, router, a.logger)
	})
	return cmd
}
