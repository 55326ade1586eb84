package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"log/slog"
	"sort"
	"time"

	"github.com/soaringjerry/surveyd/internal/models"
)

const (
	ExportLong = "long"
	ExportWide = "wide"
)

type ExportParams struct {
	SurveyID   string
	Format     string
	Credential Credential
}

type ExportResult struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Exporter renders a survey's raw responses as CSV for its owner.
type Exporter struct {
	surveys   SurveyStore
	responses ResponseStore
	guard     *PasswordGuard
	audit     *AuditLog
	logger    *slog.Logger
}

func NewExporter(store Store, guard *PasswordGuard, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{surveys: store, responses: store, guard: guard, audit: NewAuditLog(logger), logger: logger}
}

func (e *Exporter) ExportCSV(ctx context.Context, p ExportParams) (*ExportResult, error) {
	format := p.Format
	if format == "" {
		format = ExportLong
	}
	if format != ExportLong && format != ExportWide {
		return nil, NewInvalidError("format must be long or wide", "format")
	}
	sv, err := loadSurvey(ctx, e.surveys, e.logger, p.SurveyID)
	if err != nil {
		return nil, err
	}
	grant, err := e.guard.Authorize(ctx, sv.ID, sv.PasswordHash, p.Credential)
	if err != nil {
		return nil, err
	}
	rs, err := e.responses.ListResponses(ctx, sv.ID)
	if err != nil {
		e.logger.ErrorContext(ctx, "list responses", "survey_id", sv.ID, "error", err)
		return nil, NewPersistenceError("load responses", err)
	}
	e.audit.Record(ctx, AuditEntry{Actor: string(grant), Action: "export." + format, Target: sv.ID})

	var data []byte
	if format == ExportWide {
		data, err = ExportWideCSV(sv, rs)
	} else {
		data, err = ExportLongCSV(sv, rs)
	}
	if err != nil {
		return nil, err
	}
	return &ExportResult{
		Filename:    sv.ID + "-" + format + ".csv",
		ContentType: "text/csv; charset=utf-8",
		Data:        data,
	}, nil
}

// ExportLongCSV writes one row per answer.
func ExportLongCSV(sv *models.Survey, rs []*models.Response) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write([]string{"response_id", "submitted_at", "question_id", "question_text", "value"})
	for _, r := range rs {
		for _, a := range r.Answers {
			q, ok := sv.Question(a.QuestionID)
			if !ok {
				continue
			}
			rec := []string{r.ID, r.CreatedAt.UTC().Format(time.RFC3339), q.ID, q.Text, a.Value.String()}
			if err := w.Write(rec); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

// ExportWideCSV writes one row per response with a column per question, in
// survey order, preceded by the respondent info keys seen across responses.
func ExportWideCSV(sv *models.Survey, rs []*models.Response) ([]byte, error) {
	infoSet := map[string]struct{}{}
	for _, r := range rs {
		for k := range r.RespondentInfo {
			infoSet[k] = struct{}{}
		}
	}
	infoKeys := make([]string, 0, len(infoSet))
	for k := range infoSet {
		infoKeys = append(infoKeys, k)
	}
	sort.Strings(infoKeys)

	header := []string{"response_id", "submitted_at"}
	header = append(header, infoKeys...)
	for _, q := range sv.Questions {
		header = append(header, q.ID)
	}

	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	_ = w.Write(header)
	for _, r := range rs {
		values := make(map[string]string, len(r.Answers))
		for _, a := range r.Answers {
			if _, dup := values[a.QuestionID]; !dup {
				values[a.QuestionID] = a.Value.String()
			}
		}
		row := make([]string, 0, len(header))
		row = append(row, r.ID, r.CreatedAt.UTC().Format(time.RFC3339))
		for _, k := range infoKeys {
			row = append(row, r.RespondentInfo[k])
		}
		for _, q := range sv.Questions {
			row = append(row, values[q.ID])
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
