package main

import (
	"os"

	"github.com/prisonfinance/ledger-sync/internal/config"
	"github.com/prisonfinance/ledger-sync/internal/logging"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// @title Prisoner Finance Ledger Sync API
// @version 1.0
// @description Idempotent sync and balance engine for the prisoner finance ledger
// @BasePath /

var configFile string

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ledger-sync",
		Short:         "Prisoner finance ledger synchronization and balance engine",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loadConfig()
			logging.Setup(config.Load().Log)
			return nil
		},
	}
	root.PersistentFlags().StringVar(&configFile, "config", ".env", "config file")

	root.AddCommand(newServeCmd(), newSchemaCmd(), newConsolidateCmd())
	return root
}

func loadConfig() {
	viper.SetConfigFile(configFile)
	viper.SetConfigType("env")
	config.BindEnv()

	if err := viper.ReadInConfig(); err != nil {
		log.WithError(err).Debug("Config file not found, using environment and defaults")
	}
}
