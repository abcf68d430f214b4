package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// runs of box-drawing and underline characters tesseract reads from rules and borders
var reBoxNoise = regexp.MustCompile(`[│┃┆┊╎║▌▐■□▪▫_]{3,}`)

// ocrPages renders each page to PNG with pdftoppm and reads it with tesseract.
// Pages are joined with form feeds so CleanText keeps them apart.
func (e *PDFExtractor) ocrPages(ctx context.Context, path string) (string, int, []string, error) {
	dir, err := os.MkdirTemp("", "resume-ocr-*")
	if err != nil {
		return "", 0, nil, fmt.Errorf("temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			e.logger.Warn("extract.ocr.temp_cleanup_failed", "path", dir, "error", err)
		}
	}()

	// pdftoppm -r <dpi> -png [-f 1 -l N] <path> <dir>/page
	prefix := filepath.Join(dir, "page")
	args := []string{"-r", strconv.Itoa(e.cfg.DPI), "-png"}
	if e.cfg.MaxPages > 0 {
		args = append(args, "-f", "1", "-l", strconv.Itoa(e.cfg.MaxPages))
	}
	args = append(args, path, prefix)
	if _, errb, err := e.runner.Run(ctx, e.cfg.Pdftoppm, args...); err != nil {
		return "", 0, []string{strings.TrimSpace(string(errb))}, fmt.Errorf("pdftoppm: %w", err)
	}

	images, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return "", 0, nil, fmt.Errorf("list pages: %w", err)
	}
	if len(images) == 0 {
		return "", 0, nil, errors.New("pdftoppm produced no pages")
	}
	// pdftoppm zero-pads page numbers, so lexical order is page order
	sort.Strings(images)

	var warns []string
	texts := make([]string, 0, len(images))
	for i, img := range images {
		if err := ctx.Err(); err != nil {
			return "", 0, warns, err
		}
		out, errb, err := e.runner.Run(ctx, e.cfg.Tesseract, img, "stdout", "-l", e.cfg.OCRLang)
		if err != nil {
			// one unreadable page should not lose the rest
			warns = append(warns, fmt.Sprintf("tesseract page %d: %s", i+1, strings.TrimSpace(string(errb))))
			continue
		}
		texts = append(texts, reBoxNoise.ReplaceAllString(string(out), ""))
	}
	if len(texts) == 0 {
		return "", 0, warns, errors.New("tesseract failed on every page")
	}
	return strings.Join(texts, "\f"), len(images), warns, nil
}
