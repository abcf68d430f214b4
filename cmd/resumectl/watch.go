package main

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/resume-parser/internal/async"
	"github.com/joseph-ayodele/resume-parser/internal/bootstrap"
	"github.com/joseph-ayodele/resume-parser/internal/ingest"
)

var (
	watchCaller  string
	watchWorkers int
	watchInitial bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Parse PDFs as they appear in a directory",
	Long:  `Watches the directory tree and prints one JSON line per parsed file until interrupted.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchCaller, "caller", "watch", "caller id recorded with each run")
	watchCmd.Flags().IntVar(&watchWorkers, "workers", 2, "parallel parses")
	watchCmd.Flags().BoolVar(&watchInitial, "initial", false, "also parse files already present")
}

func runWatch(cmd *cobra.Command, args []string) error {
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

	root := args[0]
	var outMu sync.Mutex
	q := async.NewParseQueue(stack.Processor, func(o async.Outcome) {
		line, err := json.Marshal(map[string]any{
			"file":       o.Job.Doc.Ref,
			"result":     o.Result,
			"run_id":     o.Result.RunID,
			"elapsed_ms": o.Elapsed.Milliseconds(),
		})
		if err != nil {
			logger.Error("watch.encode_failed", "error", err)
			return
		}
		outMu.Lock()
		defer outMu.Unlock()
		fmt.Println(string(line))
	}, logger, async.WithWorkers(watchWorkers), async.WithProcessTimeout(cfg.Server.ParseTimeout))

	events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
		Roots:       []string{root},
		InitialScan: watchInitial,
		Debounce:    500 * time.Millisecond,
		SkipHidden:  true,
		Logger:      logger,
	})
	if err != nil {
		_ = q.Shutdown(context.Background())
		return err
	}
	printErr("watching %s\n", root)

	for events != nil || errs != nil {
		select {
		case path, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			ref, rerr := filepath.Rel(root, path)
			if rerr != nil {
				ref = filepath.Base(path)
			}
			doc, err := ingest.LoadDocument(path, filepath.ToSlash(ref), cfg.Limits.MaxUploadBytes)
			if err != nil {
				logger.Warn("watch.load_failed", "path", path, "error", err)
				continue
			}
			if err := q.Enqueue(ctx, async.Job{CallerID: watchCaller, Doc: doc}); err != nil {
				logger.Warn("watch.enqueue_failed", "path", path, "error", err)
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			logger.Warn("watch.error", "error", err)
		}
	}

	printErr("draining queue\n")
	return q.Shutdown(context.Background())
}
