package pipeline

import (
	"context"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
)

// RunStart describes a request when it enters the pipeline.
type RunStart struct {
	CallerID    string
	DocumentRef string
	MediaType   string
	ByteSize    int64
}

// TextOutcome is recorded once text passed the length gate.
type TextOutcome struct {
	Pages     int
	TextChars int
	Method    string
}

// ParseOutcome is recorded on success.
type ParseOutcome struct {
	ModelName string
	Profile   entity.ExtractedProfile
	Dropped   []entity.DroppedField
}

// RunRecorder keeps an audit trail of parse runs. Errors are logged by the processor and
// never change the result.
type RunRecorder interface {
	Start(ctx context.Context, in RunStart) (uuid.UUID, error)
	MarkTextExtracted(ctx context.Context, id uuid.UUID, out TextOutcome) error
	FinishSuccess(ctx context.Context, id uuid.UUID, out ParseOutcome) error
	FinishFailure(ctx context.Context, id uuid.UUID, code, message string) error
}
