package repository

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
	"github.com/joseph-ayodele/resume-parser/internal/pipeline"
)

type postgresParseRunRepo struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

func NewPostgresParseRunRepository(pool *pgxpool.Pool, log *slog.Logger) ParseRunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &postgresParseRunRepo{pool: pool, log: log}
}

func (r *postgresParseRunRepo) Start(ctx context.Context, in pipeline.RunStart) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.pool.Exec(ctx, `
INSERT INTO parse_runs (id, caller_id, document_ref, media_type, byte_size, status, started_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		id, in.CallerID, in.DocumentRef, in.MediaType, in.ByteSize, string(constants.RunStatusRunning), time.Now().UTC())
	if err != nil {
		r.log.Error("repo.parse_run.start_failed", "caller_id", in.CallerID, "error", err)
		return uuid.Nil, err
	}
	r.log.Debug("repo.parse_run.start", "run_id", id, "caller_id", in.CallerID)
	return id, nil
}

func (r *postgresParseRunRepo) MarkTextExtracted(ctx context.Context, id uuid.UUID, out pipeline.TextOutcome) error {
	_, err := r.pool.Exec(ctx, `
UPDATE parse_runs SET status = $2, page_count = $3, text_chars = $4, extract_method = $5 WHERE id = $1`,
		id, string(constants.RunStatusTextOK), out.Pages, out.TextChars, out.Method)
	if err != nil {
		r.log.Error("repo.parse_run.text_failed", "run_id", id, "error", err)
	}
	return err
}

func (r *postgresParseRunRepo) FinishSuccess(ctx context.Context, id uuid.UUID, out pipeline.ParseOutcome) error {
	profile, dropped, err := encodeOutcome(out)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
UPDATE parse_runs SET status = $2, model_name = $3, profile_json = $4, dropped_json = $5, finished_at = $6 WHERE id = $1`,
		id, string(constants.RunStatusParseOK), out.ModelName, profile, dropped, time.Now().UTC())
	if err != nil {
		r.log.Error("repo.parse_run.finish_failed", "run_id", id, "error", err)
		return err
	}
	r.log.Info("repo.parse_run.finish", "run_id", id, "status", constants.RunStatusParseOK, "dropped", len(out.Dropped))
	return nil
}

func (r *postgresParseRunRepo) FinishFailure(ctx context.Context, id uuid.UUID, code, message string) error {
	_, err := r.pool.Exec(ctx, `
UPDATE parse_runs SET status = $2, error_code = $3, error_message = $4, finished_at = $5 WHERE id = $1`,
		id, string(constants.RunStatusFailed), code, message, time.Now().UTC())
	if err != nil {
		r.log.Error("repo.parse_run.finish_failed", "run_id", id, "error", err)
		return err
	}
	r.log.Warn("repo.parse_run.finish", "run_id", id, "status", constants.RunStatusFailed, "code", code)
	return nil
}

func (r *postgresParseRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ParseRun, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+runColumns+` FROM parse_runs WHERE id = $1`, id)
	run, err := scanPostgresRun(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, err
	}
	return run, nil
}

func (r *postgresParseRunRepo) ListByCaller(ctx context.Context, callerID string, limit int) ([]entity.ParseRun, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+runColumns+` FROM parse_runs WHERE caller_id = $1 ORDER BY started_at DESC LIMIT $2`,
		callerID, listLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []entity.ParseRun
	for rows.Next() {
		run, err := scanPostgresRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

func scanPostgresRun(row pgx.Row) (*entity.ParseRun, error) {
	var run entity.ParseRun
	var profile, dropped []byte
	err := row.Scan(
		&run.ID, &run.CallerID, &run.DocumentRef, &run.MediaType, &run.ByteSize, &run.Status,
		&run.ErrorCode, &run.ErrorMessage, &run.PageCount, &run.TextChars, &run.ExtractMethod, &run.ModelName,
		&profile, &dropped, &run.StartedAt, &run.FinishedAt,
	)
	if err != nil {
		return nil, err
	}
	run.ProfileJSON, run.DroppedJSON = profile, dropped
	run.StartedAt = run.StartedAt.UTC()
	return &run, nil
}
