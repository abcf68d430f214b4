package export

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/resume-parser/internal/common"
	"github.com/joseph-ayodele/resume-parser/internal/entity"
)

// RunSource loads stored parse runs.
type RunSource interface {
	GetByID(ctx context.Context, id uuid.UUID) (*entity.ParseRun, error)
}

// Entry is one document's outcome, rendered as one row set.
type Entry struct {
	Ref    string
	Result entity.ParseResult
}

// Service renders parse results into XLSX workbooks.
type Service struct {
	runs   RunSource
	logger *slog.Logger
}

func NewService(runs RunSource, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{runs: runs, logger: logger}
}

var sheets = []struct {
	name    string
	headers []string
	widths  []float64
}{
	{"Summary", []string{"Document", "Success", "Error", "Dropped"}, []float64{32, 10, 60, 10}},
	{"Personal", []string{"Document", "Name", "Email", "Phone", "Location", "LinkedIn", "GitHub", "Portfolio"}, []float64{32, 24, 28, 18, 22, 32, 32, 32}},
	{"Experience", []string{"Document", "Company", "Role", "Location", "Start", "End", "Description", "Responsibilities", "Achievements", "Technologies"}, []float64{32, 24, 24, 18, 12, 12, 48, 60, 48, 32}},
	{"Education", []string{"Document", "Institution", "Degree", "Field of Study", "Location", "Start", "End", "GPA", "Coursework", "Achievements", "Activities"}, []float64{32, 28, 20, 24, 18, 12, 12, 8, 40, 40, 40}},
	{"Projects", []string{"Document", "Name", "Description", "URL", "Technologies", "Key Features", "Achievements", "Responsibilities"}, []float64{32, 24, 48, 32, 32, 40, 40, 40}},
	{"Skills", []string{"Document", "Name", "Category", "Proficiency"}, []float64{32, 24, 14, 14}},
	{"Dropped", []string{"Document", "Field", "Value", "Reason"}, []float64{32, 32, 48, 16}},
}

// WorkbookXLSX renders entries into one workbook with a sheet per section.
func (s *Service) WorkbookXLSX(entries []Entry) ([]byte, error) {
	start := time.Now()
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	w, err := newWriter(f)
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if err := w.entry(e); err != nil {
			return nil, err
		}
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	s.logger.Info("export.xlsx.ok",
		"documents", len(entries),
		"bytes", buf.Len(),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return buf.Bytes(), nil
}

// ExportRunXLSX renders a stored run. A run owned by another caller is reported as not found.
func (s *Service) ExportRunXLSX(ctx context.Context, id uuid.UUID, callerID string) ([]byte, error) {
	run, err := s.runs.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if callerID != "" && run.CallerID != callerID {
		return nil, fmt.Errorf("parse run %s: %w", id, common.ErrNotFound)
	}
	result, err := ResultFromRun(run)
	if err != nil {
		return nil, err
	}
	return s.WorkbookXLSX([]Entry{{Ref: run.DocumentRef, Result: result}})
}

// ResultFromRun rebuilds the ParseResult a stored run produced.
func ResultFromRun(run *entity.ParseRun) (entity.ParseResult, error) {
	if run.ErrorCode != nil {
		msg := *run.ErrorCode
		if run.ErrorMessage != nil {
			msg += ": " + *run.ErrorMessage
		}
		return entity.Failed(*run.ErrorCode, msg), nil
	}
	profile, err := run.Profile()
	if err != nil {
		return entity.ParseResult{}, fmt.Errorf("decode stored profile: %w", err)
	}
	if profile == nil {
		return entity.ParseResult{}, fmt.Errorf("parse run %s is %s: %w", run.ID, run.Status, common.ErrInvalidInput)
	}
	dropped, err := run.Dropped()
	if err != nil {
		return entity.ParseResult{}, fmt.Errorf("decode stored manifest: %w", err)
	}
	res := entity.Succeeded(*profile, dropped)
	res.RunID = run.ID.String()
	return res, nil
}

type writer struct {
	f    *excelize.File
	rows map[string]int
}

func newWriter(f *excelize.File) (*writer, error) {
	w := &writer{f: f, rows: map[string]int{}}
	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), sh.name); err != nil {
				return nil, err
			}
		} else if _, err := f.NewSheet(sh.name); err != nil {
			return nil, err
		}
		headers := make([]any, len(sh.headers))
		for j, h := range sh.headers {
			headers[j] = h
		}
		if err := f.SetSheetRow(sh.name, "A1", &headers); err != nil {
			return nil, err
		}
		for j, width := range sh.widths {
			col, _ := excelize.ColumnNumberToName(j + 1)
			_ = f.SetColWidth(sh.name, col, col, width)
		}
		w.rows[sh.name] = 2
	}
	f.SetActiveSheet(0)
	return w, nil
}

func (w *writer) add(sheet string, values ...any) error {
	cell, err := excelize.CoordinatesToCellName(1, w.rows[sheet])
	if err != nil {
		return err
	}
	if err := w.f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("sheet %s: %w", sheet, err)
	}
	w.rows[sheet]++
	return nil
}

func (w *writer) entry(e Entry) error {
	r := e.Result
	errText := ""
	if r.Error != nil {
		errText = *r.Error
	}
	if err := w.add("Summary", e.Ref, r.Success, errText, len(r.Dropped)); err != nil {
		return err
	}
	for _, d := range r.Dropped {
		if err := w.add("Dropped", e.Ref, d.Field, d.Value, d.Reason); err != nil {
			return err
		}
	}
	if r.Data == nil {
		return nil
	}
	p := r.Data

	pi := p.PersonalInfo
	if err := w.add("Personal", e.Ref, pi.Name, pi.Email, pi.Phone, pi.Location,
		deref(pi.Links.LinkedIn), deref(pi.Links.GitHub), deref(pi.Links.Portfolio)); err != nil {
		return err
	}
	for _, x := range p.Experience {
		if err := w.add("Experience", e.Ref, x.Company, x.Role, x.Location, x.StartDate, deref(x.EndDate), x.Description,
			join(x.Responsibilities), join(x.Achievements), join(x.Technologies)); err != nil {
			return err
		}
	}
	for _, x := range p.Education {
		if err := w.add("Education", e.Ref, x.Institution, x.Degree, x.FieldOfStudy, x.Location, x.StartDate, deref(x.EndDate),
			deref(x.GPA), join(x.RelevantCoursework), join(x.Achievements), join(x.Activities)); err != nil {
			return err
		}
	}
	for _, x := range p.Projects {
		if err := w.add("Projects", e.Ref, x.Name, x.Description, deref(x.ProjectURL), join(x.Technologies),
			join(x.KeyFeatures), join(x.Achievements), join(x.RoleResponsibilities)); err != nil {
			return err
		}
	}
	for _, x := range p.Skills {
		if err := w.add("Skills", e.Ref, x.Name, x.Category, deref(x.ProficiencyLevel)); err != nil {
			return err
		}
	}
	return nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func join(items []string) string {
	return strings.Join(items, "; ")
}
