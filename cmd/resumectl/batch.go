package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/resume-parser/internal/bootstrap"
	"github.com/joseph-ayodele/resume-parser/internal/export"
	"github.com/joseph-ayodele/resume-parser/internal/ingest"
)

var (
	batchWorkers    int
	batchXLSX       string
	batchCaller     string
	batchSkipHidden bool
)

var batchCmd = &cobra.Command{
	Use:   "batch <dir>",
	Short: "Parse every PDF under a directory",
	Long: `Walks the directory, skips files whose content was already seen, and parses
the rest on a worker pool. --xlsx writes one workbook with a row set per file.`,
	Args: cobra.ExactArgs(1),
	RunE: runBatch,
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchCmd.Flags().IntVar(&batchWorkers, "workers", 4, "parallel parses")
	batchCmd.Flags().StringVar(&batchXLSX, "xlsx", "", "write results to this workbook")
	batchCmd.Flags().StringVar(&batchCaller, "caller", "batch", "caller id recorded with each run")
	batchCmd.Flags().BoolVar(&batchSkipHidden, "skip-hidden", true, "skip dot files and directories")
}

func runBatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signalContext()
	defer stop()

	stack, err := bootstrap.Build(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	items, stats, err := ingest.Batch{
		Parser:     stack.Processor,
		CallerID:   batchCaller,
		Workers:    batchWorkers,
		Timeout:    cfg.Server.ParseTimeout,
		SkipHidden: batchSkipHidden,
		Logger:     logger,
		MaxBytes:   cfg.Limits.MaxUploadBytes,
	}.Run(ctx, args[0])
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "FILE\tSUCCESS\tDROPPED\tERROR")
	failed := 0
	entries := make([]export.Entry, 0, len(items))
	for _, it := range items {
		errText := ""
		if it.Result.Error != nil {
			errText = *it.Result.Error
			failed++
		}
		_, _ = fmt.Fprintf(tw, "%s\t%t\t%d\t%s\n", it.Candidate.Ref, it.Result.Success, len(it.Result.Dropped), errText)
		entries = append(entries, export.Entry{Ref: it.Candidate.Ref, Result: it.Result})
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	printErr("matched: %d, parsed: %d, failed: %d, duplicates skipped: %d\n", stats.Matched, len(items), failed, stats.Deduplicated)

	if batchXLSX != "" {
		b, err := stack.Exporter.WorkbookXLSX(entries)
		if err != nil {
			return err
		}
		if err := os.WriteFile(batchXLSX, b, 0o644); err != nil {
			return err
		}
		printErr("wrote %s\n", batchXLSX)
	}
	return nil
}
