package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
	"github.com/joseph-ayodele/resume-parser/internal/health"
	"github.com/joseph-ayodele/resume-parser/internal/pipeline"
	"github.com/joseph-ayodele/resume-parser/internal/upload"
)

// DocumentParser is the pipeline entry point the transports call.
type DocumentParser interface {
	ParseDocument(ctx context.Context, doc pipeline.Document, callerID string) entity.ParseResult
}

// RunReader loads stored parse runs.
type RunReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ParseRun, error)
}

// RunExporter renders a stored run as a workbook.
type RunExporter interface {
	ExportRunXLSX(ctx context.Context, id uuid.UUID, callerID string) ([]byte, error)
}

// HTTPConfig wires the HTTP transport. Runs, Exporter and Readiness may be nil.
type HTTPConfig struct {
	Parser         DocumentParser
	Runs           RunReader
	Exporter       RunExporter
	Readiness      health.ReadinessUseCase
	JWTSecret      string
	JWTIssuer      string
	MaxUploadBytes int64
	ParseTimeout   time.Duration
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	Logger         *slog.Logger
}

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// NewHTTPApp builds the fiber app with every route registered.
func NewHTTPApp(cfg HTTPConfig) *fiber.App {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = constants.MaxUploadBytesDefault
	}
	if cfg.ParseTimeout <= 0 {
		cfg.ParseTimeout = 2 * time.Minute
	}

	app := fiber.New(fiber.Config{
		// room for multipart framing; the handler enforces the real ceiling
		BodyLimit:             int(cfg.MaxUploadBytes)*2 + 1<<20,
		ReadTimeout:           cfg.ReadTimeout,
		WriteTimeout:          cfg.WriteTimeout,
		DisableStartupMessage: true,
		ErrorHandler:          errorHandler(cfg.Logger),
	})

	h := &handlers{cfg: cfg, logger: cfg.Logger}
	register(app, h, NewAuthMiddleware(cfg.JWTSecret, cfg.JWTIssuer))
	return app
}

// register wires all HTTP routes onto the given Fiber app.
func register(app *fiber.App, h *handlers, authMW fiber.Handler) {
	v1 := app.Group("/api").Group("/v1")

	v1.Get("/health", h.Health)
	v1.Get("/ready", h.Ready)

	v1.Post("/resumes/parse", authMW, h.Parse)
	v1.Get("/parse-runs/:id", authMW, h.GetRun)
	v1.Get("/parse-runs/:id/export", authMW, h.ExportRun)
}

type handlers struct {
	cfg    HTTPConfig
	logger *slog.Logger
}

func (h *handlers) Health(c *fiber.Ctx) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
}

func (h *handlers) Ready(c *fiber.Ctx) error {
	if h.cfg.Readiness == nil {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ready"})
	}
	ctx, cancel := context.WithTimeout(c.UserContext(), time.Second)
	defer cancel()
	if err := h.cfg.Readiness.Ready(ctx); err != nil {
		h.logger.Warn("http.ready.failed", "error", err)
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status":  "not_ready",
			"details": err.Error(),
		})
	}
	return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ready"})
}

// Parse accepts a multipart upload in the "file" field and answers with a ParseResult.
func (h *handlers) Parse(c *fiber.Ctx) error {
	callerID := callerFrom(c)
	reqID := uuid.New().String()
	c.Set("X-Request-Id", reqID)

	fh, err := c.FormFile("file")
	if err != nil || fh == nil {
		return writeResult(c, entity.Failed(common.CodeInvalidRequest, common.CodeInvalidRequest+": multipart field file is required"))
	}
	f, err := fh.Open()
	if err != nil {
		return writeResult(c, entity.Failed(common.CodeInvalidRequest, common.CodeInvalidRequest+": cannot open uploaded file"))
	}
	defer func() { _ = f.Close() }()

	// one byte past the ceiling is enough for the gate to reject it
	data, err := io.ReadAll(io.LimitReader(f, h.cfg.MaxUploadBytes+1))
	if err != nil {
		return writeResult(c, entity.Failed(common.CodeInvalidRequest, common.CodeInvalidRequest+": cannot read uploaded file"))
	}
	head := data
	if len(head) > 8 {
		head = head[:8]
	}

	ctx, cancel := common.WithTimeout(c.UserContext(), h.cfg.ParseTimeout)
	defer cancel()
	ctx = common.WithCallerID(common.WithRequestID(ctx, reqID), callerID)

	res := h.cfg.Parser.ParseDocument(ctx, pipeline.Document{
		Bytes:     data,
		MediaType: upload.DetectMediaType(fh.Header.Get(fiber.HeaderContentType), fh.Filename, head),
		Ref:       fh.Filename,
	}, callerID)
	if res.RunID != "" {
		c.Set("X-Parse-Run-Id", res.RunID)
	}
	return writeResult(c, res)
}

func (h *handlers) GetRun(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "id must be a UUID"})
	}
	if h.cfg.Runs == nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"message": "parse run audit is disabled"})
	}
	run, err := h.cfg.Runs.GetByID(c.UserContext(), id)
	if err != nil {
		return h.lookupError(c, id, err)
	}
	if run.CallerID != callerFrom(c) {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"message": "parse run not found"})
	}
	return c.Status(http.StatusOK).JSON(run)
}

func (h *handlers) ExportRun(c *fiber.Ctx) error {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return c.Status(http.StatusBadRequest).JSON(fiber.Map{"message": "id must be a UUID"})
	}
	if h.cfg.Exporter == nil {
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"message": "parse run audit is disabled"})
	}
	b, err := h.cfg.Exporter.ExportRunXLSX(c.UserContext(), id, callerFrom(c))
	if err != nil {
		return h.lookupError(c, id, err)
	}
	c.Set(fiber.HeaderContentType, xlsxContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="parse-run-%s.xlsx"`, id))
	return c.Status(http.StatusOK).Send(b)
}

func (h *handlers) lookupError(c *fiber.Ctx, id uuid.UUID, err error) error {
	switch {
	case errors.Is(err, common.ErrNotFound):
		return c.Status(http.StatusNotFound).JSON(fiber.Map{"message": "parse run not found"})
	case errors.Is(err, common.ErrInvalidInput):
		return c.Status(http.StatusConflict).JSON(fiber.Map{"message": err.Error()})
	default:
		h.logger.Error("http.parse_run.lookup_failed", "run_id", id, "error", err)
		return c.Status(http.StatusInternalServerError).JSON(fiber.Map{"message": "internal error"})
	}
}

// StatusFor maps a ParseResult error code onto an HTTP status.
func StatusFor(code string) int {
	switch code {
	case "":
		return http.StatusOK
	case common.CodeInvalidRequest:
		return http.StatusBadRequest
	case common.CodeUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case common.CodePayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case common.CodeExtractionFailed, common.CodeInsufficientText, common.CodeMalformedCompletion:
		return http.StatusUnprocessableEntity
	case common.CodeRateLimited:
		return http.StatusTooManyRequests
	case common.CodeCompletionFailed:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeResult(c *fiber.Ctx, res entity.ParseResult) error {
	return c.Status(StatusFor(res.ErrorCode)).JSON(res)
}

// errorHandler renders fiber errors as JSON. A body over the limit becomes a
// PAYLOAD_TOO_LARGE result so that upload clients see one response shape.
func errorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code = fe.Code
		}
		if code == fiber.StatusRequestEntityTooLarge {
			return writeResult(c, entity.Failed(common.CodePayloadTooLarge, common.CodePayloadTooLarge+": request body too large"))
		}
		if code >= fiber.StatusInternalServerError {
			logger.Error("http.request.failed", "path", c.Path(), "error", err)
		}
		return c.Status(code).JSON(fiber.Map{"message": err.Error()})
	}
}
