package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"maitred/internal/bootstrap"
	"maitred/internal/config"
	"maitred/internal/logging"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap -- <app-command> [args...]",
	Short: "Prepare the backend and exec the application server",
	Long: `Run the bootstrap sequence: apply pending schema migrations, collect
static assets into the staging directory, publish them into the shared static
volume, then replace this process with the application server.

Re-running with nothing pending is a no-op that succeeds. Any step failure
exits nonzero so the container restart policy can take effect.`,
	Args: cobra.MinimumNArgs(1),
	Run:  runBootstrap,
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)
}

func runBootstrap(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if err := logging.Setup(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sequencer := bootstrap.NewSequencer(cfg, bootstrap.NewSchemaMigrator(cfg.Database))
	if err := sequencer.Run(ctx); err != nil {
		log.Fatal().Err(err).Str("state", sequencer.State().String()).Msg("Bootstrap failed")
	}

	// On success this never returns: the process image is replaced by the
	// application server.
	if err := bootstrap.Handoff(args); err != nil {
		log.Fatal().Err(err).Msg("Handoff failed")
	}
}
