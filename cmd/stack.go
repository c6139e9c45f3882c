package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"maitred/internal/config"
	"maitred/internal/logging"
	"maitred/internal/stack"
)

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Start the deployment topology on the local docker engine",
	Long: `Create the stack network and shared volumes, then start the database,
backend, frontend publisher and proxy containers in dependency order.`,
	Run: runUp,
}

var downCmd = &cobra.Command{
	Use:   "down",
	Short: "Stop and remove the stack containers",
	Long: `Stop and remove every container of the deployment. Shared volumes are
preserved; they live as long as the deployment, not any single container.`,
	Run: runDown,
}

func init() {
	rootCmd.AddCommand(upCmd)
	rootCmd.AddCommand(downCmd)
}

func stackManager() (*config.Config, *stack.Manager) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if err := logging.Setup(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	manager, err := stack.NewManager(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to docker")
	}

	return cfg, manager
}

func runUp(cmd *cobra.Command, args []string) {
	_, manager := stackManager()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.Up(ctx); err != nil {
		log.Fatal().Err(err).Msg("Stack start failed")
	}
}

func runDown(cmd *cobra.Command, args []string) {
	_, manager := stackManager()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := manager.Down(ctx); err != nil {
		log.Fatal().Err(err).Msg("Stack stop failed")
	}
}
