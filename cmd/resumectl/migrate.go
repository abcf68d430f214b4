package main

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/resume-parser/internal/bootstrap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply audit store migrations for the configured DB_DRIVER",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		if cfg.Database.Driver == "none" {
			return errors.New("DB_DRIVER is none; nothing to migrate")
		}
		ctx, stop := signalContext()
		defer stop()

		// opening the store applies pending migrations
		store, err := bootstrap.OpenStore(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		store.Close()
		printErr("%s schema is up to date\n", cfg.Database.Driver)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
