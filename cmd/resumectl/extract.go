package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/resume-parser/internal/bootstrap"
)

var extractCmd = &cobra.Command{
	Use:   "extract <file.pdf>",
	Short: "Print the text extracted from a PDF",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		res, err := bootstrap.NewExtractor(cfg.Extract, logger).Extract(ctx, data)
		if err != nil {
			return err
		}
		printErr("pages: %d, method: %s, chars: %d, elapsed: %s\n", res.Pages, res.Method, len(res.Text), res.Duration)
		for _, w := range res.Warnings {
			printErr("warning: %s\n", w)
		}
		fmt.Println(res.Text)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(extractCmd)
}
