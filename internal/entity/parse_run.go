package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ParseRun is one row of the parse audit trail.
type ParseRun struct {
	ID            uuid.UUID       `json:"id"`
	CallerID      string          `json:"caller_id"`
	DocumentRef   string          `json:"document_ref"`
	MediaType     string          `json:"media_type"`
	ByteSize      int64           `json:"byte_size"`
	Status        string          `json:"status"`
	ErrorCode     *string         `json:"error_code,omitempty"`
	ErrorMessage  *string         `json:"error_message,omitempty"`
	PageCount     *int            `json:"page_count,omitempty"`
	TextChars     *int            `json:"text_chars,omitempty"`
	ExtractMethod *string         `json:"extract_method,omitempty"`
	ModelName     *string         `json:"model_name,omitempty"`
	ProfileJSON   json.RawMessage `json:"profile,omitempty"`
	DroppedJSON   json.RawMessage `json:"dropped,omitempty"`
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    *time.Time      `json:"finished_at,omitempty"`
}

// Profile decodes the stored validated profile, if any.
func (r ParseRun) Profile() (*ExtractedProfile, error) {
	if len(r.ProfileJSON) == 0 {
		return nil, nil
	}
	var p ExtractedProfile
	if err := json.Unmarshal(r.ProfileJSON, &p); err != nil {
		return nil, err
	}
	p.Normalize()
	return &p, nil
}

// Dropped decodes the stored manifest.
func (r ParseRun) Dropped() ([]DroppedField, error) {
	if len(r.DroppedJSON) == 0 {
		return nil, nil
	}
	var out []DroppedField
	if err := json.Unmarshal(r.DroppedJSON, &out); err != nil {
		return nil, err
	}
	return out, nil
}
