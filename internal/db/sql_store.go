package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/soaringjerry/surveyd/internal/models"
)

// SQLStore keeps surveys and responses as JSON documents in two tables, with
// the columns needed for filtering and ordering kept alongside. The password
// hash lives in its own column and never enters the document.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
	logger  *slog.Logger
}

func NewSQLStore(ctx context.Context, db *sql.DB, dialect Dialect, logger *slog.Logger) (*SQLStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	if !dialect.Valid() {
		return nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
	if logger == nil {
		logger = slog.Default()
	}
	if dialect == DialectSQLite {
		pragmas := []string{
			"PRAGMA journal_mode = WAL",
			"PRAGMA synchronous = NORMAL",
			"PRAGMA busy_timeout = 5000",
		}
		for _, stmt := range pragmas {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return nil, fmt.Errorf("apply sqlite pragma %q: %w", stmt, err)
			}
		}
	}
	return &SQLStore{db: db, dialect: dialect, logger: logger.With("store", string(dialect))}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

// Ping reports whether the database is reachable.
func (s *SQLStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLStore) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.dialect.rebind(query), args...)
}

func (s *SQLStore) logErr(ctx context.Context, op string, err error) {
	if err != nil {
		s.logger.ErrorContext(ctx, "sql store", "op", op, "error", err)
	}
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

func unixNano(t time.Time) int64 { return t.UTC().UnixNano() }

func (s *SQLStore) InsertSurvey(ctx context.Context, sv *models.Survey) error {
	doc, err := json.Marshal(sv)
	if err != nil {
		return fmt.Errorf("encode survey: %w", err)
	}
	_, err = s.exec(ctx,
		`INSERT INTO surveys (id, is_active, password_hash, created_at, updated_at, doc) VALUES (?, ?, ?, ?, ?, ?)`,
		sv.ID, boolToInt(sv.IsActive), sv.PasswordHash, unixNano(sv.CreatedAt), unixNano(sv.UpdatedAt), string(doc))
	if err != nil {
		s.logErr(ctx, "insert survey", err)
		return fmt.Errorf("insert survey: %w", err)
	}
	return nil
}

func (s *SQLStore) GetSurvey(ctx context.Context, id string) (*models.Survey, error) {
	rows, err := s.query(ctx, `SELECT is_active, password_hash, doc FROM surveys WHERE id = ?`, id)
	if err != nil {
		s.logErr(ctx, "get survey", err)
		return nil, fmt.Errorf("get survey: %w", err)
	}
	list, err := scanSurveys(rows)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

func (s *SQLStore) ListSurveys(ctx context.Context, includeInactive bool) ([]*models.Survey, error) {
	q := `SELECT is_active, password_hash, doc FROM surveys`
	var args []any
	if !includeInactive {
		q += ` WHERE is_active = ?`
		args = append(args, 1)
	}
	q += ` ORDER BY created_at DESC, id`
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		s.logErr(ctx, "list surveys", err)
		return nil, fmt.Errorf("list surveys: %w", err)
	}
	return scanSurveys(rows)
}

func scanSurveys(rows *sql.Rows) ([]*models.Survey, error) {
	defer rows.Close()
	var out []*models.Survey
	for rows.Next() {
		var (
			active int
			hash   string
			doc    string
		)
		if err := rows.Scan(&active, &hash, &doc); err != nil {
			return nil, fmt.Errorf("scan survey: %w", err)
		}
		sv := &models.Survey{}
		if err := json.Unmarshal([]byte(doc), sv); err != nil {
			return nil, fmt.Errorf("decode survey: %w", err)
		}
		sv.IsActive = active != 0
		sv.PasswordHash = hash
		out = append(out, sv)
	}
	return out, rows.Err()
}

func (s *SQLStore) ReplaceSurvey(ctx context.Context, sv *models.Survey) (bool, error) {
	doc, err := json.Marshal(sv)
	if err != nil {
		return false, fmt.Errorf("encode survey: %w", err)
	}
	res, err := s.exec(ctx,
		`UPDATE surveys SET is_active = ?, password_hash = ?, updated_at = ?, doc = ? WHERE id = ?`,
		boolToInt(sv.IsActive), sv.PasswordHash, unixNano(sv.UpdatedAt), string(doc), sv.ID)
	if err != nil {
		s.logErr(ctx, "replace survey", err)
		return false, fmt.Errorf("replace survey: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("replace survey: %w", err)
	}
	if n > 0 {
		return true, nil
	}
	// MySQL reports zero affected rows when nothing changed.
	existing, err := s.GetSurvey(ctx, sv.ID)
	if err != nil {
		return false, err
	}
	return existing != nil, nil
}

func (s *SQLStore) DeleteSurvey(ctx context.Context, id string) (bool, error) {
	res, err := s.exec(ctx, `DELETE FROM surveys WHERE id = ?`, id)
	if err != nil {
		s.logErr(ctx, "delete survey", err)
		return false, fmt.Errorf("delete survey: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete survey: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) InsertResponse(ctx context.Context, r *models.Response) error {
	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode response: %w", err)
	}
	_, err = s.exec(ctx,
		`INSERT INTO survey_responses (id, survey_id, created_at, doc) VALUES (?, ?, ?, ?)`,
		r.ID, r.SurveyID, unixNano(r.CreatedAt), string(doc))
	if err != nil {
		s.logErr(ctx, "insert response", err)
		return fmt.Errorf("insert response: %w", err)
	}
	return nil
}

func (s *SQLStore) ListResponses(ctx context.Context, surveyID string) ([]*models.Response, error) {
	rows, err := s.query(ctx, `SELECT doc FROM survey_responses WHERE survey_id = ? ORDER BY created_at, id`, surveyID)
	if err != nil {
		s.logErr(ctx, "list responses", err)
		return nil, fmt.Errorf("list responses: %w", err)
	}
	defer rows.Close()
	out := []*models.Response{}
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("scan response: %w", err)
		}
		r := &models.Response{}
		if err := json.Unmarshal([]byte(doc), r); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func (s *SQLStore) DeleteResponses(ctx context.Context, surveyID string) (int, error) {
	res, err := s.exec(ctx, `DELETE FROM survey_responses WHERE survey_id = ?`, surveyID)
	if err != nil {
		s.logErr(ctx, "delete responses", err)
		return 0, fmt.Errorf("delete responses: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete responses: %w", err)
	}
	return int(n), nil
}

// ResponseSurveyIDs lists the distinct survey ids referenced by stored responses.
func (s *SQLStore) ResponseSurveyIDs(ctx context.Context) ([]string, error) {
	rows, err := s.query(ctx, `SELECT DISTINCT survey_id FROM survey_responses`)
	if err != nil {
		s.logErr(ctx, "response survey ids", err)
		return nil, fmt.Errorf("response survey ids: %w", err)
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan survey id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}
