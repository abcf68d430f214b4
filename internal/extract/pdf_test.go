package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubRunner struct {
	out  string
	err  error
	name string
	args []string
	seen []byte
}

func (s *stubRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	s.name, s.args = name, args
	// the input path is the second to last argument
	if len(args) >= 2 {
		s.seen, _ = os.ReadFile(args[len(args)-2])
	}
	if s.err != nil {
		return nil, []byte("Syntax Error"), s.err
	}
	return []byte(s.out), nil, nil
}

func TestExtractFallsBackToPdftotext(t *testing.T) {
	runner := &stubRunner{out: "Jane Doe\n\tAcme   Corp\fPage two\f"}
	e := NewPDFExtractor(Config{Fallback: true, MaxPages: 3}, nil).WithRunner(runner)

	res, err := e.Extract(context.Background(), []byte("%PDF-1.4 not really"))
	require.NoError(t, err)

	assert.Equal(t, MethodPdftotext, res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "Jane Doe\n Acme Corp\n\nPage two", res.Text)
	assert.NotEmpty(t, res.Warnings)

	assert.Equal(t, "pdftotext", runner.name)
	assert.Equal(t, []string{"-layout", "-enc", "UTF-8", "-eol", "unix", "-f", "1", "-l", "3"}, runner.args[:9])
	assert.Equal(t, "-", runner.args[len(runner.args)-1])
	assert.Equal(t, []byte("%PDF-1.4 not really"), runner.seen)
}

func TestExtractPrefersNative(t *testing.T) {
	runner := &stubRunner{out: "never"}
	e := NewPDFExtractor(Config{Fallback: true}, nil).WithRunner(runner)
	e.native = func([]byte, int) (string, int, error) { return "Native text", 1, nil }

	res, err := e.Extract(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, MethodNative, res.Method)
	assert.Equal(t, "Native text", res.Text)
	assert.Empty(t, runner.name)
}

func TestExtractFailures(t *testing.T) {
	t.Run("both fail", func(t *testing.T) {
		e := NewPDFExtractor(Config{Fallback: true}, nil).WithRunner(&stubRunner{err: errors.New("exit 1")})
		_, err := e.Extract(context.Background(), []byte("garbage"))
		assert.True(t, common.IsCode(err, common.CodeExtractionFailed))
	})
	t.Run("fallback disabled", func(t *testing.T) {
		runner := &stubRunner{out: "x"}
		e := NewPDFExtractor(Config{}, nil).WithRunner(runner)
		_, err := e.Extract(context.Background(), []byte("garbage"))
		assert.True(t, common.IsCode(err, common.CodeExtractionFailed))
		assert.Empty(t, runner.name)
	})
	t.Run("empty input", func(t *testing.T) {
		_, err := NewPDFExtractor(Config{}, nil).Extract(context.Background(), nil)
		assert.True(t, common.IsCode(err, common.CodeExtractionFailed))
	})
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := NewPDFExtractor(Config{}, nil).Extract(ctx, []byte("%PDF"))
		assert.True(t, common.IsCode(err, common.CodeExtractionFailed))
	})
}

func TestExtractImageOnlyPDFReturnsEmptyText(t *testing.T) {
	e := NewPDFExtractor(Config{Fallback: true}, nil).WithRunner(&stubRunner{err: errors.New("exit 1")})
	e.native = func([]byte, int) (string, int, error) { return "  ", 2, nil }

	res, err := e.Extract(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Empty(t, res.Text)
	assert.Equal(t, 2, res.Pages)
}

// ocrRunner fakes pdftoppm by writing page files, and tesseract by echoing
// the page file name.
type ocrRunner struct {
	pages     int
	textLayer string
	failPage  string
	calls     []string
}

func (r *ocrRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	r.calls = append(r.calls, name)
	switch name {
	case "pdftotext":
		return []byte(r.textLayer), nil, nil
	case "pdftoppm":
		prefix := args[len(args)-1]
		for i := r.pages; i >= 1; i-- {
			if err := os.WriteFile(prefix+"-"+string(rune('0'+i))+".png", []byte("png"), 0o600); err != nil {
				return nil, nil, err
			}
		}
		return nil, nil, nil
	case "tesseract":
		page := strings.TrimSuffix(filepath.Base(args[0]), ".png")
		if page == r.failPage {
			return nil, []byte("Error in pixReadStream"), errors.New("exit 1")
		}
		return []byte("text of " + page + "\n________\n"), nil, nil
	}
	return nil, nil, errors.New("unexpected command " + name)
}

func TestExtractOCRForImageOnlyPDF(t *testing.T) {
	runner := &ocrRunner{pages: 2, textLayer: "\f\f"}
	e := NewPDFExtractor(Config{Fallback: true, OCR: true}, nil).WithRunner(runner)
	e.native = func([]byte, int) (string, int, error) { return "", 2, nil }

	res, err := e.Extract(context.Background(), []byte("%PDF"))
	require.NoError(t, err)

	assert.Equal(t, MethodOCR, res.Method)
	assert.Equal(t, 2, res.Pages)
	assert.Equal(t, "text of page-1\n\ntext of page-2", res.Text)
	assert.Equal(t, []string{"pdftotext", "pdftoppm", "tesseract", "tesseract"}, runner.calls)
	assert.Contains(t, res.Warnings, "pdftotext: no text")
}

func TestExtractOCRSkipsUnreadablePage(t *testing.T) {
	runner := &ocrRunner{pages: 3, failPage: "page-2"}
	e := NewPDFExtractor(Config{Fallback: true, OCR: true}, nil).WithRunner(runner)
	e.native = func([]byte, int) (string, int, error) { return "", 3, nil }

	res, err := e.Extract(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Equal(t, "text of page-1\n\ntext of page-3", res.Text)
	assert.Equal(t, 3, res.Pages)
	assert.Contains(t, res.Warnings, "tesseract page 2: Error in pixReadStream")
}

func TestExtractOCRNotRunWhenDisabled(t *testing.T) {
	runner := &ocrRunner{pages: 1}
	e := NewPDFExtractor(Config{Fallback: true}, nil).WithRunner(runner)
	e.native = func([]byte, int) (string, int, error) { return "", 1, nil }

	res, err := e.Extract(context.Background(), []byte("%PDF"))
	require.NoError(t, err)
	assert.Empty(t, res.Text)
	assert.Equal(t, MethodPdftotext, res.Method)
	assert.Equal(t, []string{"pdftotext"}, runner.calls)
}

func TestCleanText(t *testing.T) {
	assert.Equal(t, "a b\nc\n\nd", CleanText("a\t  b  \r\nc\n\n\n\n\nd  "))
	assert.Equal(t, "", CleanText(""))
}

func TestExecRunnerMissingTool(t *testing.T) {
	_, _, err := ExecRunner{}.Run(context.Background(), "resume-parser-no-such-tool")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not installed")
}
