package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/llm"
)

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Temperature    float32        `json:"temperature"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
	Messages       []chatMessage  `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

// Complete implements llm.CompletionClient using chat/completions. The assistant text is
// returned as-is; interpreting it is the caller's job.
func (c *Client) Complete(ctx context.Context, req llm.CompletionRequest) (string, error) {
	rid := uuid.New().String()
	start := time.Now()

	c.logger.Info("llm.complete.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"temp", req.Temperature,
		"system_len", len(req.SystemPrompt),
		"user_len", len(req.UserPrompt),
		"json_mode", req.JSONMode,
		"schema_hint", req.SchemaHint != "",
	)

	body := chatRequest{
		Model:       c.cfg.Model,
		Temperature: req.Temperature,
		Messages: []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserPrompt},
		},
	}
	if req.JSONMode {
		body.ResponseFormat = map[string]any{"type": "json_object"}
	}
	if req.SchemaHint != "" {
		body.Messages = append(body.Messages, chatMessage{Role: "system", Content: req.SchemaHint})
	}

	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	res, err := llm.SendJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		return "", c.classify(rid, start, res, err)
	}

	var cc chatResponse
	if err := json.Unmarshal(res.Body, &cc); err != nil {
		c.logger.Error("llm.complete.decode_error",
			"req_id", rid, "error", err, "raw_bytes", len(res.Body),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.NewAppError(common.CodeCompletionFailed, "decode openai response", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.complete.no_choices",
			"req_id", rid,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", common.NewAppError(common.CodeCompletionFailed, "no choices in openai response", nil)
	}

	content := cc.Choices[0].Message.Content
	c.logger.Info("llm.complete.ok",
		"req_id", rid,
		"finish_reason", cc.Choices[0].FinishReason,
		"prompt_tokens", cc.Usage.PromptTokens,
		"completion_tokens", cc.Usage.CompletionTokens,
		"content_len", len(content),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return content, nil
}

func (c *Client) classify(rid string, start time.Time, res llm.HTTPResult, err error) error {
	elapsed := time.Since(start).Milliseconds()
	switch {
	case res.Status == http.StatusTooManyRequests:
		c.logger.Warn("llm.complete.rate_limited",
			"req_id", rid,
			"retry_after", res.Header.Get("Retry-After"),
			"elapsed_ms", elapsed,
		)
		return common.NewAppError(common.CodeRateLimited, "completion service rate limited the request", err)
	case errors.Is(err, context.DeadlineExceeded):
		c.logger.Error("llm.complete.timeout", "req_id", rid, "elapsed_ms", elapsed)
		return common.NewAppError(common.CodeCompletionFailed, "completion service timed out", err)
	case res.Status != 0:
		c.logger.Error("llm.complete.http_status",
			"req_id", rid,
			"status", res.Status,
			"body", truncate(string(res.Body), 512),
			"elapsed_ms", elapsed,
		)
		return common.NewAppError(common.CodeCompletionFailed, fmt.Sprintf("completion service returned status %d", res.Status), err)
	default:
		c.logger.Error("llm.complete.transport_error", "req_id", rid, "error", err, "elapsed_ms", elapsed)
		return common.NewAppError(common.CodeCompletionFailed, "completion service unreachable", err)
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
