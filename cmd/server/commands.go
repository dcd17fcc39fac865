package main

import (
	"github.com/pkg/errors"
	"github.com/prisonfinance/ledger-sync/internal/config"
	"github.com/prisonfinance/ledger-sync/internal/database"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

func newSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Create the ledger tables if they do not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := database.InitDB(config.Load().Database)
			if err != nil {
				return err
			}
			defer db.Close()

			if err := database.ApplySchema(cmd.Context(), db); err != nil {
				return err
			}
			log.Info("Schema applied")
			return nil
		},
	}
}

func newConsolidateCmd() *cobra.Command {
	var from, to string
	cmd := &cobra.Command{
		Use:   "consolidate",
		Short: "Merge one prisoner's accounts into another's",
		RunE: func(cmd *cobra.Command, args []string) error {
			if from == "" || to == "" {
				return errors.New("--from and --to are required")
			}
			a, err := buildApp(config.Load(), false)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.merge.Consolidate(cmd.Context(), from, to)
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "prison number being merged away")
	cmd.Flags().StringVar(&to, "to", "", "surviving prison number")
	return cmd
}
