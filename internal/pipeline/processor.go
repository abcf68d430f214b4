// Package pipeline turns an uploaded resume into a verified ParseResult.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
	"github.com/joseph-ayodele/resume-parser/internal/extract"
	"github.com/joseph-ayodele/resume-parser/internal/llm"
	"github.com/joseph-ayodele/resume-parser/internal/provenance"
	"github.com/joseph-ayodele/resume-parser/internal/textnorm"
	"github.com/joseph-ayodele/resume-parser/internal/upload"
)

// Document is one uploaded file.
type Document struct {
	Bytes     []byte
	MediaType string
	Ref       string
}

// Config holds thresholds and behavior flags for the processor.
type Config struct {
	MinTextChars int     // default 50
	Temperature  float32 // default 0
	// SendSchema attaches the profile JSON Schema to each completion request.
	SendSchema bool
}

// Processor runs upload checks, text extraction, completion, coercion and provenance.
// It holds no per-request state and is safe for concurrent use.
type Processor struct {
	logger    *slog.Logger
	cfg       Config
	gate      upload.Gate
	extractor extract.TextExtractor
	completer llm.CompletionClient
	validator *provenance.Validator
	recorder  RunRecorder
}

func NewProcessor(
	logger *slog.Logger,
	cfg Config,
	gate upload.Gate,
	extractor extract.TextExtractor,
	completer llm.CompletionClient,
	validator *provenance.Validator,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MinTextChars <= 0 {
		cfg.MinTextChars = constants.MinTextCharsDefault
	}
	if gate.MaxUploadBytes <= 0 {
		gate = upload.NewGate(0)
	}
	if validator == nil {
		validator = provenance.New(provenance.ModeKeyOnly, textnorm.Default, logger)
	}
	return &Processor{
		logger:    logger,
		cfg:       cfg,
		gate:      gate,
		extractor: extractor,
		completer: completer,
		validator: validator,
	}
}

// WithRecorder attaches an audit recorder.
func (p *Processor) WithRecorder(r RunRecorder) *Processor {
	p.recorder = r
	return p
}

// ParseDocument never returns an error: every failure is folded into the result.
func (p *Processor) ParseDocument(ctx context.Context, doc Document, callerID string) entity.ParseResult {
	run := p.begin(ctx, callerID, doc.Ref)
	run.log.Info("pipeline.parse.start", "media_type", doc.MediaType, "bytes", len(doc.Bytes))

	if err := p.gate.ValidateRequest(doc.Ref, callerID); err != nil {
		return run.fail(ctx, err)
	}
	run.start(ctx, RunStart{CallerID: callerID, DocumentRef: doc.Ref, MediaType: doc.MediaType, ByteSize: int64(len(doc.Bytes))})

	if err := p.gate.ValidateUpload(doc.MediaType, int64(len(doc.Bytes))); err != nil {
		return run.fail(ctx, err)
	}
	if err := ctx.Err(); err != nil {
		return run.fail(ctx, common.NewAppError(common.CodeExtractionFailed, "request cancelled before extraction", err))
	}

	text, err := p.extractText(ctx, run, doc.Bytes)
	if err != nil {
		return run.fail(ctx, err)
	}
	return p.parse(ctx, run, text)
}

// ParseText starts from already extracted text, at the length gate.
func (p *Processor) ParseText(ctx context.Context, text, callerID string) entity.ParseResult {
	const ref = "inline-text"
	run := p.begin(ctx, callerID, ref)
	run.log.Info("pipeline.parse.start", "media_type", "text/plain", "bytes", len(text))

	if err := p.gate.ValidateRequest(ref, callerID); err != nil {
		return run.fail(ctx, err)
	}
	run.start(ctx, RunStart{CallerID: callerID, DocumentRef: ref, MediaType: "text/plain", ByteSize: int64(len(text))})

	if err := p.checkLength(text); err != nil {
		return run.fail(ctx, err)
	}
	run.markText(ctx, TextOutcome{Pages: 0, TextChars: utf8.RuneCountInString(text), Method: "text"})
	return p.parse(ctx, run, text)
}

func (p *Processor) extractText(ctx context.Context, run *runState, data []byte) (string, error) {
	res, err := p.extractor.Extract(ctx, data)
	if err != nil {
		if common.CodeOf(err) == "" {
			err = common.NewAppError(common.CodeExtractionFailed, "text extraction failed", err)
		}
		return "", err
	}
	run.log.Info("pipeline.extract.ok",
		"method", res.Method,
		"pages", res.Pages,
		"chars", len(res.Text),
		"warnings", len(res.Warnings),
		"elapsed_ms", res.Duration.Milliseconds(),
	)
	if err := p.checkLength(res.Text); err != nil {
		return "", err
	}
	run.markText(ctx, TextOutcome{Pages: res.Pages, TextChars: utf8.RuneCountInString(res.Text), Method: res.Method})
	return res.Text, nil
}

func (p *Processor) checkLength(text string) error {
	n := utf8.RuneCountInString(strings.TrimSpace(text))
	if n < p.cfg.MinTextChars {
		return common.NewAppError(common.CodeInsufficientText,
			fmt.Sprintf("extracted text has %d characters, need at least %d", n, p.cfg.MinTextChars), nil)
	}
	return nil
}

func (p *Processor) parse(ctx context.Context, run *runState, text string) entity.ParseResult {
	prompt := llm.BuildPrompt(text)
	req := llm.CompletionRequest{
		SystemPrompt: prompt.System,
		UserPrompt:   prompt.User,
		Temperature:  p.cfg.Temperature,
		JSONMode:     true,
	}
	if p.cfg.SendSchema {
		req.SchemaHint = llm.BuildSchemaMessage()
	}

	raw, err := p.completer.Complete(ctx, req)
	if err != nil {
		if common.CodeOf(err) == "" {
			err = common.NewAppError(common.CodeCompletionFailed, "completion failed", err)
		}
		return run.fail(ctx, err)
	}

	profile, notes, err := llm.Coerce(raw)
	if err != nil {
		run.log.Error("pipeline.completion.malformed", "raw_len", len(raw), "error", err)
		if inv, ok := p.completer.(llm.CacheInvalidator); ok {
			if ferr := inv.Forget(ctx, req); ferr != nil {
				run.log.Warn("pipeline.cache.forget_failed", "error", ferr)
			}
		}
		return run.fail(ctx, err)
	}
	if len(notes) > 0 {
		run.log.Info("pipeline.coerce.repaired", "notes", notes)
	}

	verified, dropped := p.validator.Validate(profile, text)
	result := entity.Succeeded(verified, dropped)
	result.RunID = run.idString()

	run.finishSuccess(ctx, ParseOutcome{ModelName: modelName(p.completer), Profile: *result.Data, Dropped: dropped})
	run.log.Info("pipeline.parse.ok",
		"dropped", len(dropped),
		"experience", len(verified.Experience),
		"education", len(verified.Education),
		"projects", len(verified.Projects),
		"skills", len(verified.Skills),
		"elapsed_ms", time.Since(run.started).Milliseconds(),
	)
	return result
}

func modelName(c llm.CompletionClient) string {
	if mn, ok := c.(llm.ModelNamer); ok {
		return mn.ModelName()
	}
	return ""
}

// runState carries the logger and audit id of one request.
type runState struct {
	p       *Processor
	log     *slog.Logger
	id      uuid.UUID
	started time.Time
}

func (p *Processor) begin(ctx context.Context, callerID, ref string) *runState {
	reqID := common.RequestIDFromContext(ctx)
	if reqID == "" {
		reqID = uuid.New().String()
	}
	return &runState{
		p:       p,
		log:     p.logger.With("req_id", reqID, "caller_id", callerID, "document_ref", ref),
		started: time.Now(),
	}
}

func (r *runState) idString() string {
	if r.id == uuid.Nil {
		return ""
	}
	return r.id.String()
}

func (r *runState) start(ctx context.Context, in RunStart) {
	if r.p.recorder == nil {
		return
	}
	id, err := r.p.recorder.Start(context.WithoutCancel(ctx), in)
	if err != nil {
		r.log.Warn("pipeline.record.start_failed", "error", err)
		return
	}
	r.id = id
	r.log = r.log.With("run_id", id.String())
}

func (r *runState) markText(ctx context.Context, out TextOutcome) {
	if r.p.recorder == nil || r.id == uuid.Nil {
		return
	}
	if err := r.p.recorder.MarkTextExtracted(context.WithoutCancel(ctx), r.id, out); err != nil {
		r.log.Warn("pipeline.record.text_failed", "error", err)
	}
}

func (r *runState) finishSuccess(ctx context.Context, out ParseOutcome) {
	if r.p.recorder == nil || r.id == uuid.Nil {
		return
	}
	if err := r.p.recorder.FinishSuccess(context.WithoutCancel(ctx), r.id, out); err != nil {
		r.log.Warn("pipeline.record.finish_failed", "error", err)
	}
}

// fail folds err into a failed result. Errors without a code were classified by the caller.
func (r *runState) fail(ctx context.Context, err error) entity.ParseResult {
	code := common.CodeOf(err)
	if code == "" {
		code = common.CodeCompletionFailed
	}
	message := err.Error()
	if appErr, ok := common.AsAppError(err); ok {
		message = appErr.Message
	}
	result := entity.Failed(code, code+": "+message)
	result.RunID = r.idString()

	if r.p.recorder != nil && r.id != uuid.Nil {
		if rerr := r.p.recorder.FinishFailure(context.WithoutCancel(ctx), r.id, code, message); rerr != nil {
			r.log.Warn("pipeline.record.finish_failed", "error", rerr)
		}
	}
	r.log.Warn("pipeline.parse.failed",
		"code", code,
		"error", err,
		"elapsed_ms", time.Since(r.started).Milliseconds(),
	)
	return result
}
