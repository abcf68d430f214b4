package constants

// RunStatus is the canonical status for rows in parse_run.
type RunStatus string

// Stable values (store these exact strings in DB).
const (
	RunStatusRunning RunStatus = "RUNNING"  // request accepted, extracting
	RunStatusTextOK  RunStatus = "TEXT_OK"  // text extracted and long enough
	RunStatusParseOK RunStatus = "PARSE_OK" // completion coerced and validated
	RunStatusFailed  RunStatus = "FAILED"   // terminal failure
)
