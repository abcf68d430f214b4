package entity

// Drop reasons recorded in the manifest.
const (
	DropNotInSource = "not_in_source"
	DropEmptyKey    = "empty_key"
)

// DroppedField is one manifest line: what was removed or blanked and why.
type DroppedField struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

// ParseResult is the only shape a caller of the pipeline ever sees.
// Only success, data and error are serialized.
type ParseResult struct {
	Success bool              `json:"success"`
	Data    *ExtractedProfile `json:"data"`
	Error   *string           `json:"error"`

	// ErrorCode lets transports pick a status without parsing Error.
	ErrorCode string `json:"-"`
	// Dropped is the provenance manifest, for logs and the audit trail.
	Dropped []DroppedField `json:"-"`
	// RunID is set when the request was recorded in the audit store.
	RunID string `json:"-"`
}

// Succeeded builds a successful result.
func Succeeded(profile ExtractedProfile, dropped []DroppedField) ParseResult {
	profile.Normalize()
	return ParseResult{Success: true, Data: &profile, Dropped: dropped}
}

// Failed builds a hard-failure result; no partial data is ever attached.
func Failed(code, message string) ParseResult {
	return ParseResult{Success: false, Error: &message, ErrorCode: code}
}
