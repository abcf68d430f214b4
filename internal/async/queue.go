package async

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/resume-parser/internal/entity"
	"github.com/joseph-ayodele/resume-parser/internal/pipeline"
)

// ErrQueueClosed is returned by Enqueue once Shutdown has started.
var ErrQueueClosed = errors.New("queue is shutting down")

// Job is one document waiting for a worker.
type Job struct {
	ID          uuid.UUID
	CallerID    string
	Doc         pipeline.Document
	SubmittedAt time.Time
}

// Outcome is what a worker produced for a job.
type Outcome struct {
	Job     Job
	Result  entity.ParseResult
	Elapsed time.Duration
}

// Parser is the slice of the pipeline the workers call.
type Parser interface {
	ParseDocument(ctx context.Context, doc pipeline.Document, callerID string) entity.ParseResult
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context) error
}
