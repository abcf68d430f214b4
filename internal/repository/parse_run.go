package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
	"github.com/joseph-ayodele/resume-parser/internal/pipeline"
)

// ParseRunRepository is the audit trail of parse requests.
type ParseRunRepository interface {
	pipeline.RunRecorder
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ParseRun, error)
	ListByCaller(ctx context.Context, callerID string, limit int) ([]entity.ParseRun, error)
}

const runColumns = `id, caller_id, document_ref, media_type, byte_size, status, error_code, error_message,
	page_count, text_chars, extract_method, model_name, profile_json, dropped_json, started_at, finished_at`

const defaultListLimit = 50

func notFound(id uuid.UUID) error {
	return fmt.Errorf("parse run %s: %w", id, common.ErrNotFound)
}

// encodeOutcome renders the validated profile and manifest for storage.
func encodeOutcome(out pipeline.ParseOutcome) (profile, dropped []byte, err error) {
	profile, err = json.Marshal(out.Profile)
	if err != nil {
		return nil, nil, fmt.Errorf("encode profile: %w", err)
	}
	manifest := out.Dropped
	if manifest == nil {
		manifest = []entity.DroppedField{}
	}
	dropped, err = json.Marshal(manifest)
	if err != nil {
		return nil, nil, fmt.Errorf("encode dropped: %w", err)
	}
	return profile, dropped, nil
}

func listLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return defaultListLimit
	}
	return limit
}
