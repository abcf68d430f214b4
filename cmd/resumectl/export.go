package main

import (
	"errors"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/resume-parser/internal/bootstrap"
	"github.com/joseph-ayodele/resume-parser/internal/export"
)

var (
	exportOut    string
	exportCaller string
)

var exportCmd = &cobra.Command{
	Use:   "export <run-id>",
	Short: "Export a stored parse run as XLSX",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return errors.New("run id must be a UUID")
		}
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		store, err := bootstrap.OpenStore(ctx, cfg.Database, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		if store.Runs == nil {
			return errors.New("DB_DRIVER is none; there is no audit store to export from")
		}

		b, err := export.NewService(store.Runs, logger).ExportRunXLSX(ctx, id, exportCaller)
		if err != nil {
			return err
		}
		if err := os.WriteFile(exportOut, b, 0o644); err != nil {
			return err
		}
		printErr("wrote %s\n", exportOut)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVar(&exportOut, "out", "parse-run.xlsx", "output workbook path")
	exportCmd.Flags().StringVar(&exportCaller, "caller", "", "only export runs owned by this caller")
}
