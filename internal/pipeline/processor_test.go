package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/extract"
	"github.com/joseph-ayodele/resume-parser/internal/llm"
	"github.com/joseph-ayodele/resume-parser/internal/upload"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const initechResume = `Peter Gibbons
peter@initech.example | Austin, TX

EXPERIENCE
Initech, Software Engineer, 1996 - 1999
- Updated bank software for the 2000 switch
- Attended TPS report meetings

SKILLS
COBOL, Fax machines`

type fakeExtractor struct {
	text string
	err  error
}

func (f fakeExtractor) Extract(context.Context, []byte) (extract.TextExtractionResult, error) {
	return extract.TextExtractionResult{Text: f.text, Pages: 1, Method: extract.MethodNative}, f.err
}

type fakeCompleter struct {
	mu    sync.Mutex
	out   string
	err   error
	calls int
	last  llm.CompletionRequest
}

func (f *fakeCompleter) Complete(_ context.Context, req llm.CompletionRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	return f.out, f.err
}

type fakeRecorder struct {
	id       uuid.UUID
	started  []RunStart
	text     []TextOutcome
	success  []ParseOutcome
	failures []string
}

func (r *fakeRecorder) Start(_ context.Context, in RunStart) (uuid.UUID, error) {
	r.started = append(r.started, in)
	r.id = uuid.New()
	return r.id, nil
}

func (r *fakeRecorder) MarkTextExtracted(_ context.Context, _ uuid.UUID, out TextOutcome) error {
	r.text = append(r.text, out)
	return nil
}

func (r *fakeRecorder) FinishSuccess(_ context.Context, _ uuid.UUID, out ParseOutcome) error {
	r.success = append(r.success, out)
	return nil
}

func (r *fakeRecorder) FinishFailure(_ context.Context, _ uuid.UUID, code, _ string) error {
	r.failures = append(r.failures, code)
	return errors.New("audit store down")
}

func newProcessor(text string, completer llm.CompletionClient) *Processor {
	return NewProcessor(nil, Config{}, upload.NewGate(0), fakeExtractor{text: text}, completer, nil)
}

func pdfDoc() Document {
	return Document{Bytes: []byte("%PDF-1.4 fake"), MediaType: "application/pdf", Ref: "resume.pdf"}
}

func TestInitechEndToEnd(t *testing.T) {
	completer := &fakeCompleter{out: "```json\n" + `{
	  "personal_info": {"name": "Peter Gibbons", "email": "peter@initech.example", "phone": "", "location": "Austin, TX",
	    "links": {"linkedin": null, "github": null, "portfolio": null}},
	  "experience": [
	    {"company": "Initech", "role": "Software Engineer", "start_date": "1996", "end_date": "1999",
	     "responsibilities": ["Y2K remediation of banking systems"]},
	    {"company": "Globex", "role": "Consultant"}
	  ],
	  "education": [],
	  "projects": [],
	  "skills": [{"name": "COBOL", "category": "technical"}, {"name": "Kubernetes", "category": "tool"}]
	}` + "\n```"}
	p := newProcessor(initechResume, completer)

	res := p.ParseDocument(context.Background(), pdfDoc(), "user-1")
	require.True(t, res.Success, "error: %v", res.Error)
	require.NotNil(t, res.Data)
	assert.Nil(t, res.Error)

	require.Len(t, res.Data.Experience, 1)
	assert.Equal(t, "Initech", res.Data.Experience[0].Company)
	assert.Equal(t, []string{"Y2K remediation of banking systems"}, res.Data.Experience[0].Responsibilities)
	require.Len(t, res.Data.Skills, 1)
	assert.Equal(t, "COBOL", res.Data.Skills[0].Name)
	assert.Len(t, res.Dropped, 2)

	assert.True(t, completer.last.JSONMode)
	assert.Equal(t, float32(0), completer.last.Temperature)
	assert.Contains(t, completer.last.UserPrompt, initechResume)
	assert.Empty(t, completer.last.SchemaHint)
}

func TestGlobexOnlyStillSucceeds(t *testing.T) {
	completer := &fakeCompleter{out: `{"experience": [{"company": "Globex"}]}`}
	res := newProcessor(initechResume, completer).ParseDocument(context.Background(), pdfDoc(), "user-1")

	require.True(t, res.Success)
	assert.Empty(t, res.Data.Experience)
}

func TestAllDroppedSerializesEmptyArrays(t *testing.T) {
	completer := &fakeCompleter{out: `{"personal_info": {"name": "Bill Lumbergh"}, "experience": [{"company": "Globex"}],
	  "education": [{"institution": "Hogwarts"}], "projects": [{"name": "Skynet"}], "skills": [{"name": "Rust"}]}`}
	res := newProcessor(initechResume, completer).ParseDocument(context.Background(), pdfDoc(), "user-1")
	require.True(t, res.Success)

	b, err := json.Marshal(res)
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Len(t, m, 3)
	assert.Equal(t, true, m["success"])
	assert.Nil(t, m["error"])

	s := string(b)
	for _, section := range []string{"experience", "education", "projects", "skills"} {
		assert.Contains(t, s, `"`+section+`":[]`)
	}
	assert.Contains(t, s, `"name":""`)
}

func TestMalformedCompletionPropagates(t *testing.T) {
	completer := &fakeCompleter{out: "not json at all"}
	res := newProcessor(initechResume, completer).ParseDocument(context.Background(), pdfDoc(), "user-1")

	assert.False(t, res.Success)
	assert.Nil(t, res.Data)
	require.NotNil(t, res.Error)
	assert.True(t, strings.HasPrefix(*res.Error, common.CodeMalformedCompletion+": "))
	assert.Equal(t, common.CodeMalformedCompletion, res.ErrorCode)
}

func TestInsufficientTextSkipsCompletion(t *testing.T) {
	completer := &fakeCompleter{out: "{}"}
	res := newProcessor("Jane Doe.", completer).ParseDocument(context.Background(), pdfDoc(), "user-1")

	assert.False(t, res.Success)
	assert.Equal(t, common.CodeInsufficientText, res.ErrorCode)
	assert.Equal(t, 0, completer.calls)
}

func TestGateFailures(t *testing.T) {
	completer := &fakeCompleter{out: "{}"}
	p := newProcessor(initechResume, completer)

	tests := []struct {
		name     string
		doc      Document
		caller   string
		wantCode string
	}{
		{"missing caller", pdfDoc(), "", common.CodeInvalidRequest},
		{"missing ref", Document{Bytes: []byte("x"), MediaType: "application/pdf"}, "u", common.CodeInvalidRequest},
		{"docx", Document{Bytes: []byte("PK"), MediaType: "application/msword", Ref: "cv.doc"}, "u", common.CodeUnsupportedFormat},
		{"too large", Document{Bytes: make([]byte, 5<<20+1), MediaType: "application/pdf", Ref: "big.pdf"}, "u", common.CodePayloadTooLarge},
		{"empty", Document{MediaType: "application/pdf", Ref: "empty.pdf"}, "u", common.CodeInvalidRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := p.ParseDocument(context.Background(), tt.doc, tt.caller)
			assert.False(t, res.Success)
			assert.Equal(t, tt.wantCode, res.ErrorCode)
		})
	}
	assert.Equal(t, 0, completer.calls)
}

func TestCollaboratorErrorsAreClassified(t *testing.T) {
	t.Run("extractor", func(t *testing.T) {
		p := NewProcessor(nil, Config{}, upload.NewGate(0), fakeExtractor{err: errors.New("exit status 1")}, &fakeCompleter{}, nil)
		res := p.ParseDocument(context.Background(), pdfDoc(), "u")
		assert.Equal(t, common.CodeExtractionFailed, res.ErrorCode)
	})
	t.Run("completer plain error", func(t *testing.T) {
		res := newProcessor(initechResume, &fakeCompleter{err: errors.New("dial tcp")}).ParseDocument(context.Background(), pdfDoc(), "u")
		assert.Equal(t, common.CodeCompletionFailed, res.ErrorCode)
	})
	t.Run("completer rate limited", func(t *testing.T) {
		err := common.NewAppError(common.CodeRateLimited, "slow down", nil)
		res := newProcessor(initechResume, &fakeCompleter{err: err}).ParseDocument(context.Background(), pdfDoc(), "u")
		assert.Equal(t, common.CodeRateLimited, res.ErrorCode)
		assert.Equal(t, "RATE_LIMITED: slow down", *res.Error)
	})
	t.Run("cancelled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		res := newProcessor(initechResume, &fakeCompleter{}).ParseDocument(ctx, pdfDoc(), "u")
		assert.False(t, res.Success)
		assert.Equal(t, common.CodeExtractionFailed, res.ErrorCode)
	})
}

func TestRecorderIsCalled(t *testing.T) {
	rec := &fakeRecorder{}
	p := newProcessor(initechResume, &fakeCompleter{out: `{"experience": [{"company": "Initech"}]}`}).WithRecorder(rec)

	res := p.ParseDocument(context.Background(), pdfDoc(), "user-1")
	require.True(t, res.Success)
	assert.Equal(t, rec.id.String(), res.RunID)
	require.Len(t, rec.started, 1)
	assert.Equal(t, "resume.pdf", rec.started[0].DocumentRef)
	require.Len(t, rec.text, 1)
	assert.Equal(t, extract.MethodNative, rec.text[0].Method)
	require.Len(t, rec.success, 1)
	assert.Equal(t, "Initech", rec.success[0].Profile.Experience[0].Company)
}

func TestRecorderErrorsDoNotChangeResult(t *testing.T) {
	rec := &fakeRecorder{}
	p := newProcessor("short", &fakeCompleter{}).WithRecorder(rec)

	res := p.ParseDocument(context.Background(), pdfDoc(), "user-1")
	assert.Equal(t, common.CodeInsufficientText, res.ErrorCode)
	assert.Equal(t, []string{common.CodeInsufficientText}, rec.failures)
}

func TestParseText(t *testing.T) {
	completer := &fakeCompleter{out: `{"skills": ["COBOL"]}`}
	p := NewProcessor(nil, Config{SendSchema: true, Temperature: 0.2}, upload.Gate{}, nil, completer, nil)

	res := p.ParseText(context.Background(), initechResume, "cli")
	require.True(t, res.Success)
	require.Len(t, res.Data.Skills, 1)
	assert.Equal(t, "technical", res.Data.Skills[0].Category)
	assert.True(t, strings.HasPrefix(completer.last.SchemaHint, "JSON Schema:"))
	assert.Equal(t, float32(0.2), completer.last.Temperature)

	res = p.ParseText(context.Background(), "tiny", "cli")
	assert.Equal(t, common.CodeInsufficientText, res.ErrorCode)
	assert.Equal(t, 1, completer.calls)
}

func TestDeterministicAcrossRuns(t *testing.T) {
	completer := &fakeCompleter{out: `{"experience": [{"company": "Initech"}, {"company": "Globex"}]}`}
	p := newProcessor(initechResume, completer)

	first, _ := json.Marshal(p.ParseDocument(context.Background(), pdfDoc(), "u"))
	for i := 0; i < 3; i++ {
		again, _ := json.Marshal(p.ParseDocument(context.Background(), pdfDoc(), "u"))
		assert.JSONEq(t, string(first), string(again))
	}
}
