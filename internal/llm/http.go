package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// completion bodies larger than this are cut off and fail to decode
const maxResponseBytes = 8 << 20

// HTTPResult is the raw outcome of one JSON POST.
type HTTPResult struct {
	Body   []byte
	Status int
	Header http.Header
}

// SendJSON posts body as JSON to url. It knows nothing about the provider; callers
// choose the URL and headers. A non-2xx status returns the result and an error so the
// caller can classify by Status.
func SendJSON(ctx context.Context, client *http.Client, url string, body any, headers map[string]string, logger *slog.Logger) (HTTPResult, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if client == nil {
		client = &http.Client{Timeout: 45 * time.Second}
	}
	reqID := uuid.NewString()
	log := logger.With("req_id", reqID)

	payload, err := json.Marshal(body)
	if err != nil {
		return HTTPResult{}, fmt.Errorf("encode json: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return HTTPResult{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	log.Debug("llm.http.request", "url", url, "content_length", len(payload))
	resp, err := client.Do(req)
	if err != nil {
		log.Error("llm.http.send_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return HTTPResult{}, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.Warn("llm.http.body_close_error", "error", err)
		}
	}()

	res := HTTPResult{Status: resp.StatusCode, Header: resp.Header}
	res.Body, err = io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		log.Error("llm.http.read_error", "error", err)
		return res, fmt.Errorf("read response: %w", err)
	}
	log.Info("llm.http.response",
		"status", resp.StatusCode,
		"bytes", len(res.Body),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return res, fmt.Errorf("non-2xx status: %d", resp.StatusCode)
	}
	return res, nil
}
