package extract

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/ledongthuc/pdf"
)

type Config struct {
	Pdftotext string // binary name or absolute path; if empty -> "pdftotext"
	Fallback  bool   // run pdftotext when native parsing fails or yields no text
	MaxPages  int    // 0 = no limit

	OCR       bool   // render and OCR pages when no text layer is found
	Pdftoppm  string // if empty -> "pdftoppm"
	Tesseract string // if empty -> "tesseract"
	OCRLang   string // tesseract -l; if empty -> "eng"
	DPI       int    // pdftoppm -r; if 0 -> 300
}

// PDFExtractor reads text with the native parser first, pdftotext second and,
// when enabled, tesseract OCR last.
type PDFExtractor struct {
	cfg    Config
	runner Runner
	native func(data []byte, maxPages int) (string, int, error)
	logger *slog.Logger
}

func NewPDFExtractor(cfg Config, logger *slog.Logger) *PDFExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Pdftotext == "" {
		cfg.Pdftotext = "pdftotext"
	}
	if cfg.Pdftoppm == "" {
		cfg.Pdftoppm = "pdftoppm"
	}
	if cfg.Tesseract == "" {
		cfg.Tesseract = "tesseract"
	}
	if cfg.OCRLang == "" {
		cfg.OCRLang = "eng"
	}
	if cfg.DPI <= 0 {
		cfg.DPI = 300
	}
	return &PDFExtractor{cfg: cfg, runner: ExecRunner{Logger: logger}, native: nativeText, logger: logger}
}

// WithRunner swaps the command runner.
func (e *PDFExtractor) WithRunner(r Runner) *PDFExtractor {
	e.runner = r
	return e
}

func (e *PDFExtractor) Extract(ctx context.Context, data []byte) (TextExtractionResult, error) {
	start := time.Now()
	if len(data) == 0 {
		return TextExtractionResult{}, common.NewAppError(common.CodeExtractionFailed, "document is empty", nil)
	}
	if err := ctx.Err(); err != nil {
		return TextExtractionResult{}, common.NewAppError(common.CodeExtractionFailed, "extraction cancelled", err)
	}

	var warns []string
	text, pages, nativeErr := e.native(data, e.cfg.MaxPages)
	if nativeErr == nil && strings.TrimSpace(text) != "" {
		res := TextExtractionResult{Text: CleanText(text), Pages: pages, Method: MethodNative, Duration: time.Since(start)}
		e.logger.Debug("extract.pdf.ok", "method", res.Method, "pages", pages, "chars", len(res.Text), "elapsed_ms", res.Duration.Milliseconds())
		return res, nil
	}
	if nativeErr != nil {
		warns = append(warns, "native: "+nativeErr.Error())
		e.logger.Warn("extract.pdf.native_failed", "error", nativeErr, "bytes", len(data))
	} else {
		warns = append(warns, "native: no text")
	}

	if !e.cfg.Fallback {
		if nativeErr != nil {
			return TextExtractionResult{Warnings: warns}, common.NewAppError(common.CodeExtractionFailed, "cannot read PDF", nativeErr)
		}
		return TextExtractionResult{Pages: pages, Method: MethodNative, Warnings: warns, Duration: time.Since(start)}, nil
	}

	path, cleanup, err := e.writeTemp(data)
	if err != nil {
		return TextExtractionResult{Warnings: warns}, common.NewAppError(common.CodeExtractionFailed, "cannot stage PDF", err)
	}
	defer cleanup()

	out, fbPages, w, fbErr := e.pdfToText(ctx, path)
	warns = append(warns, w...)
	if fbErr == nil && strings.TrimSpace(out) != "" {
		res := TextExtractionResult{Text: CleanText(out), Pages: fbPages, Method: MethodPdftotext, Warnings: warns, Duration: time.Since(start)}
		e.logger.Info("extract.pdf.fallback_ok", "pages", fbPages, "chars", len(res.Text), "elapsed_ms", res.Duration.Milliseconds())
		return res, nil
	}
	if fbErr == nil {
		warns = append(warns, "pdftotext: no text")
	}

	if e.cfg.OCR {
		text, n, w, err := e.ocrPages(ctx, path)
		warns = append(warns, w...)
		if err == nil {
			res := TextExtractionResult{Text: CleanText(text), Pages: n, Method: MethodOCR, Warnings: warns, Duration: time.Since(start)}
			e.logger.Info("extract.pdf.ocr_ok", "pages", n, "chars", len(res.Text), "elapsed_ms", res.Duration.Milliseconds())
			return res, nil
		}
		warns = append(warns, "ocr: "+err.Error())
		e.logger.Warn("extract.pdf.ocr_failed", "error", err)
	}

	switch {
	case fbErr == nil:
		// readable but image-only; let the length gate report it
		return TextExtractionResult{Pages: fbPages, Method: MethodPdftotext, Warnings: warns, Duration: time.Since(start)}, nil
	case nativeErr == nil:
		return TextExtractionResult{Pages: pages, Method: MethodNative, Warnings: warns, Duration: time.Since(start)}, nil
	default:
		return TextExtractionResult{Warnings: warns}, common.NewAppError(common.CodeExtractionFailed, "cannot read PDF", fmt.Errorf("native: %v; pdftotext: %w", nativeErr, fbErr))
	}
}

// writeTemp stages data for the command-line tools.
func (e *PDFExtractor) writeTemp(data []byte) (string, func(), error) {
	f, err := os.CreateTemp("", "resume-*.pdf")
	if err != nil {
		return "", nil, fmt.Errorf("temp file: %w", err)
	}
	cleanup := func() {
		if err := os.Remove(f.Name()); err != nil {
			e.logger.Warn("extract.pdf.temp_cleanup_failed", "path", f.Name(), "error", err)
		}
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		cleanup()
		return "", nil, fmt.Errorf("write temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		cleanup()
		return "", nil, fmt.Errorf("close temp file: %w", err)
	}
	return f.Name(), cleanup, nil
}

func (e *PDFExtractor) pdfToText(ctx context.Context, path string) (string, int, []string, error) {
	// pdftotext -layout -enc UTF-8 -eol unix [-f 1 -l N] <path> -
	args := []string{"-layout", "-enc", "UTF-8", "-eol", "unix"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(e.cfg.MaxPages))
	}
	args = append(args, path, "-")

	out, errb, err := e.runner.Run(ctx, e.cfg.Pdftotext, args...)
	if err != nil {
		return "", 0, []string{strings.TrimSpace(string(errb))}, fmt.Errorf("pdftotext: %w", err)
	}
	text := strings.TrimRight(string(out), "\f")
	// a form-feed separates pages
	return text, 1 + strings.Count(text, "\f"), nil, nil
}

// nativeText reads page text with ledongthuc/pdf. The parser panics on some damaged
// files, so panics are returned as errors.
func nativeText(data []byte, maxPages int) (text string, pages int, err error) {
	defer func() {
		if r := recover(); r != nil {
			text, pages, err = "", 0, fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", 0, err
	}
	n := r.NumPage()
	if maxPages > 0 && n > maxPages {
		n = maxPages
	}

	var b strings.Builder
	fonts := make(map[string]*pdf.Font)
	for i := 1; i <= n; i++ {
		p := r.Page(i)
		if p.V.IsNull() {
			continue
		}
		for _, name := range p.Fonts() {
			if _, ok := fonts[name]; !ok {
				f := p.Font(name)
				fonts[name] = &f
			}
		}
		t, err := p.GetPlainText(fonts)
		if err != nil {
			return "", 0, fmt.Errorf("page %d: %w", i, err)
		}
		if b.Len() > 0 {
			b.WriteString("\f")
		}
		b.WriteString(t)
	}
	return b.String(), n, nil
}
