package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"maitred/internal/config"
	"maitred/internal/logging"
	"maitred/internal/proxy"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the request router",
	Long: `Run the reverse proxy that fronts all traffic: backend API and admin
requests are forwarded upstream, static assets, media and the SPA bundle are
served from the shared volumes.`,
	Run: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if err := logging.Setup(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	server, err := proxy.NewServer(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize router")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("Router error")
	}

	log.Info().Msg("Router stopped")
}
