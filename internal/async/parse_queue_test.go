package async

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/resume-parser/internal/entity"
	"github.com/joseph-ayodele/resume-parser/internal/pipeline"
)

type fakeParser struct {
	calls   atomic.Int32
	active  atomic.Int32
	maxSeen atomic.Int32
	delay   time.Duration
	block   chan struct{}
}

func (f *fakeParser) ParseDocument(ctx context.Context, doc pipeline.Document, callerID string) entity.ParseResult {
	f.calls.Add(1)
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		m := f.maxSeen.Load()
		if n <= m || f.maxSeen.CompareAndSwap(m, n) {
			break
		}
	}
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
		}
	}
	time.Sleep(f.delay)
	if doc.Ref == "bad.pdf" {
		return entity.Failed("INSUFFICIENT_TEXT", "INSUFFICIENT_TEXT: too short")
	}
	return entity.Succeeded(entity.ExtractedProfile{PersonalInfo: entity.PersonalInfo{Name: callerID + "/" + doc.Ref}}, nil)
}

type collector struct {
	mu  sync.Mutex
	out []Outcome
}

func (c *collector) add(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, o)
}

func TestParseQueue_DrainsAllJobs(t *testing.T) {
	p := &fakeParser{delay: 5 * time.Millisecond}
	c := &collector{}
	q := NewParseQueue(p, c.add, nil, WithWorkers(3), WithQueueSize(2))

	refs := []string{"a.pdf", "b.pdf", "bad.pdf", "c.pdf", "d.pdf", "e.pdf"}
	for _, ref := range refs {
		require.NoError(t, q.Enqueue(context.Background(), Job{CallerID: "batch", Doc: pipeline.Document{Ref: ref}}))
	}
	require.NoError(t, q.Shutdown(context.Background()))

	assert.Equal(t, int32(len(refs)), p.calls.Load())
	assert.LessOrEqual(t, p.maxSeen.Load(), int32(3))
	require.Len(t, c.out, len(refs))

	failed := 0
	for _, o := range c.out {
		assert.NotEmpty(t, o.Job.ID)
		assert.False(t, o.Job.SubmittedAt.IsZero())
		if !o.Result.Success {
			failed++
			assert.Equal(t, "bad.pdf", o.Job.Doc.Ref)
			continue
		}
		assert.Equal(t, "batch/"+o.Job.Doc.Ref, o.Result.Data.PersonalInfo.Name)
	}
	assert.Equal(t, 1, failed)
}

func TestParseQueue_EnqueueAfterShutdown(t *testing.T) {
	q := NewParseQueue(&fakeParser{}, nil, nil, WithWorkers(1))
	require.NoError(t, q.Shutdown(context.Background()))
	require.NoError(t, q.Shutdown(context.Background()))

	err := q.Enqueue(context.Background(), Job{Doc: pipeline.Document{Ref: "late.pdf"}})
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestParseQueue_ShutdownHonorsContext(t *testing.T) {
	p := &fakeParser{block: make(chan struct{})}
	q := NewParseQueue(p, nil, nil, WithWorkers(1), WithProcessTimeout(time.Minute))
	require.NoError(t, q.Enqueue(context.Background(), Job{Doc: pipeline.Document{Ref: "slow.pdf"}}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Shutdown(ctx), context.DeadlineExceeded)

	close(p.block)
}

func TestParseQueue_EnqueueBackpressureHonorsContext(t *testing.T) {
	p := &fakeParser{block: make(chan struct{})}
	q := NewParseQueue(p, nil, nil, WithWorkers(1), WithQueueSize(1))
	defer func() {
		close(p.block)
		_ = q.Shutdown(context.Background())
	}()

	// one job held by the worker, one filling the buffer
	require.NoError(t, q.Enqueue(context.Background(), Job{Doc: pipeline.Document{Ref: "1.pdf"}}))
	require.Eventually(t, func() bool { return p.active.Load() == 1 }, time.Second, time.Millisecond)
	require.NoError(t, q.Enqueue(context.Background(), Job{Doc: pipeline.Document{Ref: "2.pdf"}}))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Enqueue(ctx, Job{Doc: pipeline.Document{Ref: "3.pdf"}}), context.DeadlineExceeded)
}
