package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/resume-parser/constants"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
	"github.com/joseph-ayodele/resume-parser/internal/pipeline"
)

// sqliteParseRunRepo stores timestamps as RFC 3339 text and JSON as text.
type sqliteParseRunRepo struct {
	db  *sql.DB
	log *slog.Logger
}

func NewSQLiteParseRunRepository(db *sql.DB, log *slog.Logger) ParseRunRepository {
	if log == nil {
		log = slog.Default()
	}
	return &sqliteParseRunRepo{db: db, log: log}
}

// tsLayout is fixed width so that text order matches time order.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

func now() string { return time.Now().UTC().Format(tsLayout) }

func (r *sqliteParseRunRepo) Start(ctx context.Context, in pipeline.RunStart) (uuid.UUID, error) {
	id := uuid.New()
	_, err := r.db.ExecContext(ctx, `
INSERT INTO parse_runs (id, caller_id, document_ref, media_type, byte_size, status, started_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id.String(), in.CallerID, in.DocumentRef, in.MediaType, in.ByteSize, string(constants.RunStatusRunning), now())
	if err != nil {
		r.log.Error("repo.parse_run.start_failed", "caller_id", in.CallerID, "error", err)
		return uuid.Nil, err
	}
	r.log.Debug("repo.parse_run.start", "run_id", id, "caller_id", in.CallerID)
	return id, nil
}

func (r *sqliteParseRunRepo) MarkTextExtracted(ctx context.Context, id uuid.UUID, out pipeline.TextOutcome) error {
	return r.update(ctx, id, `UPDATE parse_runs SET status = ?, page_count = ?, text_chars = ?, extract_method = ? WHERE id = ?`,
		string(constants.RunStatusTextOK), out.Pages, out.TextChars, out.Method, id.String())
}

func (r *sqliteParseRunRepo) FinishSuccess(ctx context.Context, id uuid.UUID, out pipeline.ParseOutcome) error {
	profile, dropped, err := encodeOutcome(out)
	if err != nil {
		return err
	}
	if err := r.update(ctx, id, `UPDATE parse_runs SET status = ?, model_name = ?, profile_json = ?, dropped_json = ?, finished_at = ? WHERE id = ?`,
		string(constants.RunStatusParseOK), out.ModelName, string(profile), string(dropped), now(), id.String()); err != nil {
		return err
	}
	r.log.Info("repo.parse_run.finish", "run_id", id, "status", constants.RunStatusParseOK, "dropped", len(out.Dropped))
	return nil
}

func (r *sqliteParseRunRepo) FinishFailure(ctx context.Context, id uuid.UUID, code, message string) error {
	if err := r.update(ctx, id, `UPDATE parse_runs SET status = ?, error_code = ?, error_message = ?, finished_at = ? WHERE id = ?`,
		string(constants.RunStatusFailed), code, message, now(), id.String()); err != nil {
		return err
	}
	r.log.Warn("repo.parse_run.finish", "run_id", id, "status", constants.RunStatusFailed, "code", code)
	return nil
}

func (r *sqliteParseRunRepo) update(ctx context.Context, id uuid.UUID, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		r.log.Error("repo.parse_run.update_failed", "run_id", id, "error", err)
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return notFound(id)
	}
	return nil
}

func (r *sqliteParseRunRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.ParseRun, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM parse_runs WHERE id = ?`, id.String())
	run, err := scanSQLiteRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	return run, err
}

func (r *sqliteParseRunRepo) ListByCaller(ctx context.Context, callerID string, limit int) ([]entity.ParseRun, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+runColumns+` FROM parse_runs WHERE caller_id = ? ORDER BY started_at DESC, rowid DESC LIMIT ?`,
		callerID, listLimit(limit))
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []entity.ParseRun
	for rows.Next() {
		run, err := scanSQLiteRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRun(row rowScanner) (*entity.ParseRun, error) {
	var (
		run                            entity.ParseRun
		id, started                    string
		errCode, errMsg, method, model sql.NullString
		profile, dropped, finished     sql.NullString
		pages, chars                   sql.NullInt64
	)
	err := row.Scan(&id, &run.CallerID, &run.DocumentRef, &run.MediaType, &run.ByteSize, &run.Status,
		&errCode, &errMsg, &pages, &chars, &method, &model, &profile, &dropped, &started, &finished)
	if err != nil {
		return nil, err
	}

	if run.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse run id: %w", err)
	}
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if finished.Valid {
		t, err := time.Parse(time.RFC3339Nano, finished.String)
		if err != nil {
			return nil, fmt.Errorf("parse finished_at: %w", err)
		}
		run.FinishedAt = &t
	}
	run.ErrorCode = nullString(errCode)
	run.ErrorMessage = nullString(errMsg)
	run.ExtractMethod = nullString(method)
	run.ModelName = nullString(model)
	run.PageCount = nullInt(pages)
	run.TextChars = nullInt(chars)
	if profile.Valid {
		run.ProfileJSON = []byte(profile.String)
	}
	if dropped.Valid {
		run.DroppedJSON = []byte(dropped.String)
	}
	return &run, nil
}

func nullString(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

func nullInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}
