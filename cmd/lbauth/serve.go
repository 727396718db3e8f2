package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mkrupp/lostbuddy/internal/app"
)

func newServeCmd(root *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the account HTTP server",
		Long: `Run the account HTTP server on the configured local storage until
interrupted.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) (err error) {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg := root.cfg.HTTP
			if addr != "" {
				cfg.ServerAddr = addr
			}

			svc, err := app.New(ctx, root.cfg)
			if err != nil {
				return err
			}
			defer func() { err = errors.Join(err, svc.Close()) }()

			return svc.Serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides LOSTBUDDY_HTTP_SERVER_ADDR)")

	return cmd
}
