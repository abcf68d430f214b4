package upload

import (
	"bytes"
	"mime"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/common"
)

// Gate checks requests and uploads before any work is done. It has no side effects.
type Gate struct {
	MaxUploadBytes int64
}

func NewGate(maxUploadBytes int64) Gate {
	if maxUploadBytes <= 0 {
		maxUploadBytes = constants.MaxUploadBytesDefault
	}
	return Gate{MaxUploadBytes: maxUploadBytes}
}

// ValidateRequest requires a document reference and a caller identity.
func (g Gate) ValidateRequest(documentRef, callerID string) error {
	v := common.NewValidator().
		Field("documentRef", documentRef, common.Required).
		Field("callerId", callerID, common.Required)
	if v.HasErrors() {
		return v.AppError()
	}
	return nil
}

// ValidateUpload accepts only PDFs of 1..MaxUploadBytes bytes.
func (g Gate) ValidateUpload(mediaType string, size int64) error {
	v := common.NewValidator().
		Field("mediaType", BaseMediaType(mediaType), common.OneOf(common.CodeUnsupportedFormat, constants.MediaTypePDF)).
		Field("size", size, common.Positive, common.AtMost(common.CodePayloadTooLarge, g.MaxUploadBytes))
	if v.HasErrors() {
		return v.AppError()
	}
	return nil
}

// BaseMediaType strips parameters and lower-cases a declared media type.
func BaseMediaType(declared string) string {
	declared = strings.TrimSpace(declared)
	if mt, _, err := mime.ParseMediaType(declared); err == nil {
		return mt
	}
	return strings.ToLower(declared)
}

var pdfMagic = []byte("%PDF-")

// DetectMediaType fills in a missing declared type from the file name or the leading
// bytes. A declared type other than the generic octet-stream is returned unchanged.
func DetectMediaType(declared, filename string, head []byte) string {
	base := BaseMediaType(declared)
	if base != "" && base != "application/octet-stream" {
		return declared
	}
	if constants.NormalizeExt(filepath.Ext(filename)) == "pdf" || bytes.HasPrefix(head, pdfMagic) {
		return constants.MediaTypePDF
	}
	return declared
}
