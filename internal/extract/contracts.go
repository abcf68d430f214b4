package extract

import (
	"context"
	"time"
)

// TextExtractor turns document bytes into plain text.
type TextExtractor interface {
	Extract(ctx context.Context, data []byte) (TextExtractionResult, error)
}

type TextExtractionResult struct {
	Text     string
	Pages    int
	Method   string // "pdf-native" | "pdftotext" | "pdf-ocr"
	Warnings []string
	Duration time.Duration
}

const (
	MethodNative    = "pdf-native"
	MethodPdftotext = "pdftotext"
	MethodOCR       = "pdf-ocr"
)

// ExtractorFunc adapts a function to TextExtractor.
type ExtractorFunc func(ctx context.Context, data []byte) (TextExtractionResult, error)

func (f ExtractorFunc) Extract(ctx context.Context, data []byte) (TextExtractionResult, error) {
	return f(ctx, data)
}
