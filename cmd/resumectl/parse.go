package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/resume-parser/internal/bootstrap"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
	"github.com/joseph-ayodele/resume-parser/internal/ingest"
)

var (
	parseCaller string
	parseTimes  int
	parseOut    string
)

var parseCmd = &cobra.Command{
	Use:   "parse <file.pdf|file.txt>",
	Short: "Parse one resume and print the result",
	Long: `Parses a PDF (or already extracted .txt) and prints the ParseResult JSON.

--times N repeats the parse and reports whether every run produced the same result.`,
	Args: cobra.ExactArgs(1),
	RunE: runParse,
}

func init() {
	rootCmd.AddCommand(parseCmd)
	parseCmd.Flags().StringVar(&parseCaller, "caller", "cli", "caller id recorded with the run")
	parseCmd.Flags().IntVar(&parseTimes, "times", 1, "number of times to run the parse")
	parseCmd.Flags().StringVar(&parseOut, "out", "", "write the result JSON to this file instead of stdout")
}

func runParse(cmd *cobra.Command, args []string) error {
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

	path := args[0]
	parseOnce := func() (entity.ParseResult, error) {
		if strings.EqualFold(filepath.Ext(path), ".txt") {
			text, err := os.ReadFile(path)
			if err != nil {
				return entity.ParseResult{}, err
			}
			return stack.Processor.ParseText(ctx, string(text), parseCaller), nil
		}
		doc, err := ingest.LoadDocument(path, filepath.Base(path), cfg.Limits.MaxUploadBytes)
		if code := common.CodeOf(err); code != "" {
			return entity.Failed(code, err.Error()), nil
		}
		if err != nil {
			return entity.ParseResult{}, err
		}
		return stack.Processor.ParseDocument(ctx, doc, parseCaller), nil
	}

	if parseTimes < 1 {
		parseTimes = 1
	}
	var first, out []byte
	var last entity.ParseResult
	identical := true
	for i := 0; i < parseTimes; i++ {
		res, err := parseOnce()
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return err
		}
		if i == 0 {
			first = b
		} else if !bytes.Equal(first, b) {
			identical = false
			printErr("run %d differs from run 1\n", i+1)
		}
		out, last = b, res
	}

	for _, d := range last.Dropped {
		printErr("dropped %s %q (%s)\n", d.Field, d.Value, d.Reason)
	}
	if parseTimes > 1 {
		printErr("runs: %d, identical: %t\n", parseTimes, identical)
	}

	if parseOut != "" {
		if err := os.WriteFile(parseOut, append(out, '\n'), 0o644); err != nil {
			return err
		}
		printErr("wrote %s\n", parseOut)
	} else {
		fmt.Println(string(out))
	}
	if !last.Success {
		return fmt.Errorf("parse failed: %s", last.ErrorCode)
	}
	return nil
}
