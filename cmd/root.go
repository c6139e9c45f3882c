package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"maitred/internal/config"
)

var (
	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "maitred",
	Short: "maitred - edge router and bootstrap sequencer",
	Long: `maitred fronts a web application deployment: it routes inbound traffic
to the backend, serves static assets and uploaded media, prepares the backend
container before it accepts traffic, and publishes frontend builds into the
shared volumes.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./maitred.toml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "flat KEY=VALUE file loaded into the environment")
}

func initConfig() {
	// Console logging until the config tells us otherwise.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := config.LoadEnvFile(envFile); err != nil {
		log.Warn().Err(err).Msg("Failed to load env file")
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("maitred")
		viper.SetConfigType("toml")

		viper.AddConfigPath(".")

		if userConfigDir, err := os.UserConfigDir(); err == nil {
			viper.AddConfigPath(userConfigDir + "/maitred")
		}

		viper.AddConfigPath("/etc/maitred")
	}

	viper.SetEnvPrefix("MAITRED")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}
