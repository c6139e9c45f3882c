package cmd

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"maitred/internal/config"
	"maitred/internal/logging"
	"maitred/internal/publish"
)

var (
	publishBuildDir string
	publishDest     string
)

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the frontend build into the shared volume",
	Long: `Copy the frontend build output into the volume the router serves the
SPA from, then stamp it with the readiness marker. Runs to completion and
exits; re-running overwrites the previous output.`,
	Run: runPublish,
}

func init() {
	rootCmd.AddCommand(publishCmd)
	publishCmd.Flags().StringVar(&publishBuildDir, "build-dir", "build", "frontend build output directory")
	publishCmd.Flags().StringVar(&publishDest, "dest", "", "target volume directory (default: configured SPA root)")
}

func runPublish(cmd *cobra.Command, args []string) {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	if err := logging.Setup(cfg); err != nil {
		log.Fatal().Err(err).Msg("Failed to set up logging")
	}

	dest := publishDest
	if dest == "" {
		dest = cfg.Paths.SPARoot
	}

	if err := publish.Run(publishBuildDir, dest); err != nil {
		log.Fatal().Err(err).Msg("Publish failed")
	}
}
