// Package bootstrap builds the parsing stack from Config for the binaries.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/export"
	"github.com/joseph-ayodele/resume-parser/internal/extract"
	"github.com/joseph-ayodele/resume-parser/internal/health"
	"github.com/joseph-ayodele/resume-parser/internal/llm"
	"github.com/joseph-ayodele/resume-parser/internal/llm/openai"
	"github.com/joseph-ayodele/resume-parser/internal/pipeline"
	"github.com/joseph-ayodele/resume-parser/internal/provenance"
	"github.com/joseph-ayodele/resume-parser/internal/repository"
	"github.com/joseph-ayodele/resume-parser/internal/textnorm"
	"github.com/joseph-ayodele/resume-parser/internal/upload"
)

// Stack is the wired pipeline and its supporting stores.
type Stack struct {
	Config    *common.Config
	Logger    *slog.Logger
	Processor *pipeline.Processor
	Runs      repository.ParseRunRepository // nil when DB_DRIVER=none
	Exporter  *export.Service
	Checkers  []health.Checker

	closers []func()
}

// Build validates cfg and wires extractor, completion client, cache, validator,
// audit store and processor.
func Build(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Stack, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	s := &Stack{Config: cfg, Logger: logger}

	mode, err := provenance.ParseMode(cfg.Provenance.Mode)
	if err != nil {
		return nil, common.NewAppError(common.CodeConfig, "provenance mode", err)
	}
	validator := provenance.New(mode, textnorm.Normalizer{CollapseWhitespace: cfg.Provenance.CollapseWhitespace}, logger)

	completer, err := s.completer(cfg)
	if err != nil {
		s.Close()
		return nil, err
	}

	store, err := OpenStore(ctx, cfg.Database, logger)
	if err != nil {
		s.Close()
		return nil, err
	}
	s.closers = append(s.closers, store.Close)
	s.Runs = store.Runs
	if store.Checker != nil {
		s.Checkers = append(s.Checkers, store.Checker)
	}

	s.Processor = pipeline.NewProcessor(logger,
		pipeline.Config{
			MinTextChars: cfg.Limits.MinTextChars,
			Temperature:  cfg.LLM.Temperature,
			SendSchema:   cfg.LLM.SendSchema,
		},
		upload.NewGate(cfg.Limits.MaxUploadBytes),
		NewExtractor(cfg.Extract, logger),
		completer,
		validator,
	)
	if s.Runs != nil {
		s.Processor.WithRecorder(s.Runs)
		s.Exporter = export.NewService(s.Runs, logger)
	} else {
		s.Exporter = export.NewService(nil, logger)
	}

	logger.Info("bootstrap.ready",
		"model", cfg.LLM.Model,
		"db_driver", cfg.Database.Driver,
		"cache", cfg.Cache.RedisURL != "",
		"provenance_mode", string(mode),
	)
	return s, nil
}

func (s *Stack) completer(cfg *common.Config) (llm.CompletionClient, error) {
	client := openai.NewClient(openai.Config{
		APIKey:      cfg.LLM.APIKey,
		BaseURL:     cfg.LLM.BaseURL,
		Model:       cfg.LLM.Model,
		Temperature: cfg.LLM.Temperature,
		Timeout:     cfg.LLM.Timeout,
		SendSchema:  cfg.LLM.SendSchema,
	}, s.Logger)
	if cfg.Cache.RedisURL == "" {
		return client, nil
	}
	store, err := llm.NewRedisCacheStore(cfg.Cache.RedisURL)
	if err != nil {
		return nil, common.NewAppError(common.CodeConfig, "REDIS_URL", err)
	}
	s.closers = append(s.closers, func() {
		if err := store.Close(); err != nil {
			s.Logger.Warn("bootstrap.redis.close_failed", "error", err)
		}
	})
	s.Checkers = append(s.Checkers, store)
	return llm.NewCachedCompletionClient(client, store, cfg.Cache.TTL, s.Logger), nil
}

// Readiness aggregates the stack's checkers.
func (s *Stack) Readiness() health.ReadinessUseCase {
	return health.NewService(s.Checkers...)
}

// Close releases stores in reverse order of opening.
func (s *Stack) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// NewExtractor builds the PDF text extractor.
func NewExtractor(cfg common.ExtractConfig, logger *slog.Logger) *extract.PDFExtractor {
	return extract.NewPDFExtractor(extract.Config{
		Pdftotext: cfg.Pdftotext,
		Fallback:  cfg.Fallback,
		MaxPages:  cfg.MaxPages,
		OCR:       cfg.OCR,
		Pdftoppm:  cfg.Pdftoppm,
		Tesseract: cfg.Tesseract,
		OCRLang:   cfg.OCRLang,
		DPI:       cfg.OCRDPI,
	}, logger)
}

// Store is an opened, migrated audit store.
type Store struct {
	Runs    repository.ParseRunRepository
	Checker health.Checker
	Close   func()
}

// OpenStore opens the audit store named by cfg.Driver and applies migrations.
// Driver "none" yields an empty Store.
func OpenStore(ctx context.Context, cfg common.DatabaseConfig, logger *slog.Logger) (Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Driver {
	case "", "none":
		return Store{Close: func() {}}, nil
	case "postgres":
		pool, err := repository.Open(ctx, repository.Config{
			DSN:              cfg.DSN,
			MaxConns:         cfg.MaxConns,
			MinConns:         cfg.MinConns,
			MaxConnLifetime:  cfg.MaxConnLifetime,
			MaxConnIdleTime:  cfg.MaxConnIdleTime,
			DialTimeout:      cfg.DialTimeout,
			StatementTimeout: cfg.StatementTimeout,
		}, logger)
		if err != nil {
			return Store{}, err
		}
		if err := repository.MigratePool(ctx, pool, logger); err != nil {
			repository.Close(pool, logger)
			return Store{}, err
		}
		return Store{
			Runs:    repository.NewPostgresParseRunRepository(pool, logger),
			Checker: repository.NewPostgresChecker(pool),
			Close:   func() { repository.Close(pool, logger) },
		}, nil
	case "sqlite":
		db, err := repository.OpenSQLite(ctx, cfg.DSN, logger)
		if err != nil {
			return Store{}, err
		}
		if err := repository.Migrate(ctx, db, repository.DialectSQLite, logger); err != nil {
			_ = db.Close()
			return Store{}, err
		}
		return Store{
			Runs:    repository.NewSQLiteParseRunRepository(db, logger),
			Checker: repository.NewSQLChecker("sqlite", db),
			Close: func() {
				if err := db.Close(); err != nil {
					logger.Warn("repo.db.close_failed", "error", err)
				}
			},
		}, nil
	default:
		return Store{}, common.NewAppError(common.CodeConfig, fmt.Sprintf("unknown DB_DRIVER %q", cfg.Driver), common.ErrInvalidInput)
	}
}
