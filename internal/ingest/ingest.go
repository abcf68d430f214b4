package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/pipeline"
	"github.com/joseph-ayodele/resume-parser/internal/upload"
)

// Candidate is one file picked up by a directory scan.
type Candidate struct {
	Path         string
	Ref          string // path relative to the scan root
	Size         int64
	HashHex      string
	Deduplicated bool // same content as an earlier candidate
	Err          string
}

// DirStats summarizes a directory scan.
type DirStats struct {
	Scanned      uint32
	Matched      uint32
	Deduplicated uint32
	Failed       uint32
}

// AllowedExt checks if a file extension is picked up by batch modes.
func AllowedExt(ext string) bool {
	return constants.IsAllowedExt(ext)
}

// IsHidden checks if a file or directory is hidden (starts with '.').
func IsHidden(path string) bool {
	base := filepath.Base(path)
	return strings.HasPrefix(base, ".") && base != "." && base != ".."
}

// LoadDocument reads a file into a pipeline document. The media type comes from the
// extension or the leading bytes. A file larger than maxBytes (when positive) is
// rejected with PAYLOAD_TOO_LARGE before it is read.
func LoadDocument(path, ref string, maxBytes int64) (pipeline.Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return pipeline.Document{}, err
	}
	defer func() { _ = f.Close() }()

	if maxBytes > 0 {
		info, err := f.Stat()
		if err != nil {
			return pipeline.Document{}, err
		}
		if info.Size() > maxBytes {
			return pipeline.Document{}, tooLarge(info.Size(), maxBytes)
		}
	}

	var r io.Reader = f
	if maxBytes > 0 {
		// the file may grow between Stat and read
		r = io.LimitReader(f, maxBytes+1)
	}
	b, err := io.ReadAll(r)
	if err != nil {
		return pipeline.Document{}, err
	}
	if maxBytes > 0 && int64(len(b)) > maxBytes {
		return pipeline.Document{}, tooLarge(int64(len(b)), maxBytes)
	}

	if ref == "" {
		ref = filepath.Base(path)
	}
	head := b
	if len(head) > 8 {
		head = head[:8]
	}
	return pipeline.Document{
		Bytes:     b,
		MediaType: upload.DetectMediaType("", path, head),
		Ref:       ref,
	}, nil
}

func tooLarge(size, maxBytes int64) error {
	return common.NewAppError(common.CodePayloadTooLarge, fmt.Sprintf("file is %d bytes, limit is %d", size, maxBytes), nil)
}
