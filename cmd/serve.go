package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/AdeilsonR/puppeteer-themis/internal/observability"
	"github.com/AdeilsonR/puppeteer-themis/internal/server"
)

func newServeCmd() *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serves POST /buscar-processo, POST /cadastrar-processo and GET / until
SIGINT or SIGTERM, then drains in-flight requests and closes the browser.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := getConfigFromContext(cmd.Context())
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			comps, err := initializeComponents(ctx, cfg, logger)
			defer comps.Shutdown()
			if err != nil {
				return err
			}

			srv := server.New(cfg, comps.Workflow, comps.BrowserMode, logger)
			logger.Info("Starting Themis automation service.",
				zap.String("version", Version),
				zap.String("address", cfg.Server.Addr()),
				zap.String("browser_mode", comps.BrowserMode))
			if err := srv.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			logger.Info("Service stopped.")
			return nil
		},
	}

	serveCmd.Flags().IntP("port", "p", 0, "listen port (overrides PORT/config)")
	serveCmd.Flags().String("host", "", "listen host (overrides config/env)")
	return serveCmd
}
