package constants

import "strings"

// MediaTypePDF is the only declared media type accepted for parsing.
const MediaTypePDF = "application/pdf"

const (
	// MaxUploadBytesDefault is the upload ceiling (5 MiB).
	MaxUploadBytesDefault int64 = 5 << 20
	// MinTextCharsDefault is the shortest extracted text worth sending to the model.
	MinTextCharsDefault = 50
)

// AllowedExtensions holds the file extensions picked up by batch and watch modes.
var AllowedExtensions = map[string]struct{}{
	"pdf": {},
}

// NormalizeExt lowercases and trims the dot from a file extension.
func NormalizeExt(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// IsAllowedExt reports whether ext (with or without the dot) is picked up by batch modes.
func IsAllowedExt(ext string) bool {
	_, ok := AllowedExtensions[NormalizeExt(ext)]
	return ok
}
