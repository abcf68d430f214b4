package ingest

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/joseph-ayodele/resume-parser/internal/async"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
)

// Batch parses every allowed file under a directory on a worker pool.
type Batch struct {
	Parser     async.Parser
	CallerID   string
	Workers    int
	Timeout    time.Duration
	SkipHidden bool
	Logger     *slog.Logger

	// MaxBytes fails larger files with PAYLOAD_TOO_LARGE without reading them; 0 disables.
	MaxBytes int64
}

// BatchItem is the outcome for one scanned file.
type BatchItem struct {
	Candidate Candidate
	Result    entity.ParseResult
	Elapsed   time.Duration
}

// Run scans root, parses each unique file and returns the items sorted by Ref.
// Unreadable files get a failed result; duplicates are skipped.
func (b Batch) Run(ctx context.Context, root string) ([]BatchItem, DirStats, error) {
	logger := b.Logger
	if logger == nil {
		logger = slog.Default()
	}
	start := time.Now()

	candidates, stats, err := ScanDirectory(ctx, root, b.SkipHidden)
	if err != nil {
		return nil, stats, err
	}

	var mu sync.Mutex
	items := make([]BatchItem, 0, len(candidates))
	add := func(it BatchItem) {
		mu.Lock()
		defer mu.Unlock()
		items = append(items, it)
	}

	byRef := map[string]Candidate{}
	q := async.NewParseQueue(b.Parser, func(o async.Outcome) {
		mu.Lock()
		c := byRef[o.Job.Doc.Ref]
		mu.Unlock()
		add(BatchItem{Candidate: c, Result: o.Result, Elapsed: o.Elapsed})
	}, logger, async.WithWorkers(b.Workers), async.WithProcessTimeout(b.Timeout))

	for _, c := range candidates {
		if c.Deduplicated {
			logger.Info("batch.skip.duplicate", "ref", c.Ref, "hash", c.HashHex)
			continue
		}
		if c.Err != "" {
			add(BatchItem{Candidate: c, Result: entity.Failed(common.CodeInvalidRequest, common.CodeInvalidRequest+": "+c.Err)})
			continue
		}
		doc, err := LoadDocument(c.Path, c.Ref, b.MaxBytes)
		if err != nil {
			add(BatchItem{Candidate: c, Result: loadFailure(err)})
			continue
		}
		mu.Lock()
		byRef[c.Ref] = c
		mu.Unlock()
		if err := q.Enqueue(ctx, async.Job{CallerID: b.CallerID, Doc: doc}); err != nil {
			_ = q.Shutdown(context.WithoutCancel(ctx))
			return nil, stats, err
		}
	}
	if err := q.Shutdown(ctx); err != nil {
		return nil, stats, err
	}

	sort.Slice(items, func(i, j int) bool { return items[i].Candidate.Ref < items[j].Candidate.Ref })
	logger.Info("batch.run.finish",
		"root", root,
		"matched", stats.Matched,
		"parsed", len(items),
		"deduplicated", stats.Deduplicated,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return items, stats, nil
}

func loadFailure(err error) entity.ParseResult {
	if code := common.CodeOf(err); code != "" {
		return entity.Failed(code, err.Error())
	}
	return entity.Failed(common.CodeInvalidRequest, common.CodeInvalidRequest+": "+err.Error())
}
