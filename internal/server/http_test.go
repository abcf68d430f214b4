package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
	"github.com/joseph-ayodele/resume-parser/internal/export"
	"github.com/joseph-ayodele/resume-parser/internal/health"
	"github.com/joseph-ayodele/resume-parser/internal/pipeline"
)

const (
	testSecret = "test-secret"
	testIssuer = "resume-parser"
)

type recordingParser struct {
	mu     sync.Mutex
	docs   []pipeline.Document
	caller string
	result entity.ParseResult
}

func (p *recordingParser) ParseDocument(ctx context.Context, doc pipeline.Document, callerID string) entity.ParseResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs = append(p.docs, doc)
	p.caller = callerID
	if common.CallerIDFromContext(ctx) != callerID {
		return entity.Failed("TEST", "caller missing from context")
	}
	return p.result
}

type memRuns map[uuid.UUID]*entity.ParseRun

func (m memRuns) GetByID(_ context.Context, id uuid.UUID) (*entity.ParseRun, error) {
	if r, ok := m[id]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("parse run %s: %w", id, common.ErrNotFound)
}

type stubChecker struct{ err error }

func (s stubChecker) Name() string                { return "db" }
func (s stubChecker) Check(context.Context) error { return s.err }

func okResult() entity.ParseResult {
	res := entity.Succeeded(entity.ExtractedProfile{PersonalInfo: entity.PersonalInfo{Name: "Jane Doe"}}, nil)
	res.RunID = "run-1"
	return res
}

func newTestApp(t *testing.T, parser DocumentParser, runs memRuns, ready health.ReadinessUseCase) *fiber.App {
	t.Helper()
	return NewHTTPApp(HTTPConfig{
		Parser:         parser,
		Runs:           runs,
		Exporter:       export.NewService(runs, nil),
		Readiness:      ready,
		JWTSecret:      testSecret,
		JWTIssuer:      testIssuer,
		MaxUploadBytes: 64,
		ParseTimeout:   time.Second,
	})
}

func token(t *testing.T, secret, issuer, caller string) string {
	t.Helper()
	tok, err := NewTokenIssuer(secret, issuer, time.Minute).Issue(caller)
	require.NoError(t, err)
	return tok
}

func uploadRequest(t *testing.T, filename, contentType string, body []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	h := textproto.MIMEHeader{}
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(body)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes/parse", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func do(t *testing.T, app *fiber.App, req *http.Request) (*http.Response, []byte) {
	t.Helper()
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, b
}

func TestHealthAndReady(t *testing.T) {
	app := newTestApp(t, &recordingParser{}, nil, health.NewService(stubChecker{}))
	resp, body := do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"status":"ok"}`, string(body))

	resp, _ = do(t, app, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	down := newTestApp(t, &recordingParser{}, nil, health.NewService(stubChecker{err: errors.New("refused")}))
	resp, body = do(t, down, httptest.NewRequest(http.MethodGet, "/api/v1/ready", nil))
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, string(body), "db: refused")
}

func TestParse_Auth(t *testing.T) {
	app := newTestApp(t, &recordingParser{result: okResult()}, nil, nil)

	resp, _ := do(t, app, uploadRequest(t, "cv.pdf", "application/pdf", []byte("%PDF-1.4")))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	for name, header := range map[string]string{
		"bad signature": "Bearer " + token(t, "other-secret", testIssuer, "user-1"),
		"wrong issuer":  "Bearer " + token(t, testSecret, "someone-else", "user-1"),
		"garbage":       "Bearer not-a-jwt",
	} {
		req := uploadRequest(t, "cv.pdf", "application/pdf", []byte("%PDF-1.4"))
		req.Header.Set("Authorization", header)
		resp, _ := do(t, app, req)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, name)
	}
}

func TestParse_Success(t *testing.T) {
	parser := &recordingParser{result: okResult()}
	app := newTestApp(t, parser, nil, nil)

	for _, header := range []string{
		"Bearer " + token(t, testSecret, testIssuer, "user-1"),
		token(t, testSecret, testIssuer, "user-1"), // bare token
	} {
		req := uploadRequest(t, "jane.pdf", "application/pdf", []byte("%PDF-1.4 jane"))
		req.Header.Set("Authorization", header)
		resp, body := do(t, app, req)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
		assert.Equal(t, "run-1", resp.Header.Get("X-Parse-Run-Id"))

		var got map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Len(t, got, 3)
		assert.JSONEq(t, `true`, string(got["success"]))
		assert.JSONEq(t, `null`, string(got["error"]))
	}

	require.Len(t, parser.docs, 2)
	assert.Equal(t, "user-1", parser.caller)
	assert.Equal(t, "jane.pdf", parser.docs[0].Ref)
	assert.Equal(t, "application/pdf", parser.docs[0].MediaType)
	assert.Equal(t, []byte("%PDF-1.4 jane"), parser.docs[0].Bytes)
}

func TestParse_ReadsOnePastCeiling(t *testing.T) {
	parser := &recordingParser{result: entity.Failed(common.CodePayloadTooLarge, "PAYLOAD_TOO_LARGE: too big")}
	app := newTestApp(t, parser, nil, nil)

	req := uploadRequest(t, "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 100))
	req.Header.Set("Authorization", "Bearer "+token(t, testSecret, testIssuer, "user-1"))
	resp, _ := do(t, app, req)
	assert.Equal(t, http.StatusRequestEntityTooLarge, resp.StatusCode)
	require.Len(t, parser.docs, 1)
	assert.Len(t, parser.docs[0].Bytes, 65)
}

func TestParse_MissingFile(t *testing.T) {
	parser := &recordingParser{result: okResult()}
	app := newTestApp(t, parser, nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/resumes/parse", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, testSecret, testIssuer, "user-1"))
	resp, body := do(t, app, req)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, string(body), "INVALID_REQUEST")
	assert.Empty(t, parser.docs)
}

func TestStatusFor(t *testing.T) {
	cases := map[string]int{
		"":                             http.StatusOK,
		common.CodeInvalidRequest:      http.StatusBadRequest,
		common.CodeUnsupportedFormat:   http.StatusUnsupportedMediaType,
		common.CodePayloadTooLarge:     http.StatusRequestEntityTooLarge,
		common.CodeExtractionFailed:    http.StatusUnprocessableEntity,
		common.CodeInsufficientText:    http.StatusUnprocessableEntity,
		common.CodeMalformedCompletion: http.StatusUnprocessableEntity,
		common.CodeRateLimited:         http.StatusTooManyRequests,
		common.CodeCompletionFailed:    http.StatusBadGateway,
		"SOMETHING_ELSE":               http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, StatusFor(code), code)
	}
}

func storedRun(t *testing.T) (memRuns, uuid.UUID) {
	t.Helper()
	res := okResult()
	profile, err := json.Marshal(res.Data)
	require.NoError(t, err)
	id := uuid.New()
	return memRuns{id: {
		ID: id, CallerID: "user-1", DocumentRef: "jane.pdf", MediaType: "application/pdf",
		Status: "PARSE_OK", ProfileJSON: profile, DroppedJSON: []byte(`[]`), StartedAt: time.Now().UTC(),
	}}, id
}

func TestGetRun(t *testing.T) {
	runs, id := storedRun(t)
	app := newTestApp(t, &recordingParser{}, runs, nil)

	get := func(path, caller string) (*http.Response, []byte) {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		req.Header.Set("Authorization", "Bearer "+token(t, testSecret, testIssuer, caller))
		return do(t, app, req)
	}

	resp, body := get("/api/v1/parse-runs/"+id.String(), "user-1")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var run entity.ParseRun
	require.NoError(t, json.Unmarshal(body, &run))
	assert.Equal(t, id, run.ID)
	assert.Equal(t, "jane.pdf", run.DocumentRef)

	resp, _ = get("/api/v1/parse-runs/"+id.String(), "user-2")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = get("/api/v1/parse-runs/"+uuid.NewString(), "user-1")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, _ = get("/api/v1/parse-runs/not-a-uuid", "user-1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestExportRun(t *testing.T) {
	runs, id := storedRun(t)
	app := newTestApp(t, &recordingParser{}, runs, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/parse-runs/"+id.String()+"/export", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, testSecret, testIssuer, "user-1"))
	resp, body := do(t, app, req)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), id.String())

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	rows, err := f.GetRows("Personal")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "Jane Doe", rows[1][1])

	req = httptest.NewRequest(http.MethodGet, "/api/v1/parse-runs/"+id.String()+"/export", nil)
	req.Header.Set("Authorization", "Bearer "+token(t, testSecret, testIssuer, "user-2"))
	resp, _ = do(t, app, req)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
