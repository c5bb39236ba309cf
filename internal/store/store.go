// Package store persists request lifecycles and per-page results for polling
// clients. Documents themselves are never stored; rows for finished requests
// are removed by a retention sweep.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"github.com/doculens/doculens/constants"
	"github.com/doculens/doculens/internal/common"
	"github.com/doculens/doculens/internal/pipeline"
)

// Store is a request/page-result store on database/sql. The backend is picked
// from the DSN: postgres URLs go through pgx, anything else is treated as an
// embedded sqlite path.
type Store struct {
	db     *sql.DB
	driver string
	logger *slog.Logger
}

func Open(dsn string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	driver := "sqlite"
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		driver = "pgx"
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open store (%s): %w", driver, err)
	}
	if driver == "sqlite" {
		// modernc sqlite serializes writers; a single conn avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	s := &Store{db: db, driver: driver, logger: logger}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	logger.Info("store.open", "driver", driver)
	return s, nil
}

func (s *Store) Close() error { return s.db.Close() }

const schemaSQL = `
CREATE TABLE IF NOT EXISTS requests (
	id             TEXT PRIMARY KEY,
	name           TEXT NOT NULL,
	state          TEXT NOT NULL,
	page_count     INTEGER NOT NULL DEFAULT 0,
	overall_status TEXT,
	reject_kind    TEXT,
	reject_detail  TEXT,
	doc_text       TEXT,
	summary_json   TEXT,
	created_at     BIGINT NOT NULL,
	finished_at    BIGINT,
	elapsed_ms     BIGINT
);
CREATE TABLE IF NOT EXISTS page_results (
	request_id      TEXT NOT NULL,
	page_index      INTEGER NOT NULL,
	status          TEXT NOT NULL,
	source          TEXT,
	mean_confidence DOUBLE PRECISION NOT NULL DEFAULT 0,
	reason          TEXT,
	error_kind      TEXT,
	detail          TEXT,
	page_text       TEXT,
	elapsed_ms      BIGINT,
	PRIMARY KEY (request_id, page_index)
);
`

func (s *Store) ensureSchema() error {
	for _, stmt := range strings.Split(schemaSQL, ";") {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}

// rebind converts ?-placeholders to $n for the postgres backend. Queries in
// this package never contain a literal question mark.
func (s *Store) rebind(query string) string {
	if s.driver != "pgx" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) CreateRequest(ctx context.Context, id uuid.UUID, name string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO requests (id, name, state, created_at) VALUES (?, ?, ?, ?)`),
		id.String(), name, string(constants.StateIngesting), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return nil
}

func (s *Store) SetState(ctx context.Context, id uuid.UUID, state constants.RequestState) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE requests SET state = ? WHERE id = ?`),
		string(state), id.String())
	if err != nil {
		return fmt.Errorf("set state: %w", err)
	}
	return nil
}

// Reject marks the request terminally rejected. No page rows exist for a
// rejected request.
func (s *Store) Reject(ctx context.Context, id uuid.UUID, kind, detail string) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE requests SET state = ?, reject_kind = ?, reject_detail = ?, finished_at = ? WHERE id = ?`),
		string(constants.StateRejected), kind, detail, time.Now().Unix(), id.String())
	if err != nil {
		return fmt.Errorf("reject request: %w", err)
	}
	return nil
}

func (s *Store) SavePageResult(ctx context.Context, id uuid.UUID, pr pipeline.PageResult) error {
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO page_results
			(request_id, page_index, status, source, mean_confidence, reason, error_kind, detail, page_text, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`),
		id.String(), pr.PageIndex, string(pr.Status), string(pr.Source), pr.MeanConfidence,
		pr.Reason, pr.ErrorKind, pr.Detail, pr.Text, pr.Elapsed.Milliseconds())
	if err != nil {
		return fmt.Errorf("save page result: %w", err)
	}
	return nil
}

// Finish records the terminal Done state with the assembled outcome. The
// summary is optional raw JSON from the summarization stage.
func (s *Store) Finish(ctx context.Context, result *pipeline.DocumentResult, summaryJSON []byte) error {
	var summary any
	if len(summaryJSON) > 0 {
		summary = string(summaryJSON)
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`UPDATE requests
		 SET state = ?, page_count = ?, overall_status = ?, doc_text = ?, summary_json = ?, finished_at = ?, elapsed_ms = ?
		 WHERE id = ?`),
		string(constants.StateDone), result.PageCount, string(result.OverallStatus),
		result.Text(), summary, time.Now().Unix(), result.Elapsed.Milliseconds(),
		result.RequestID.String())
	if err != nil {
		return fmt.Errorf("finish request: %w", err)
	}
	return nil
}

// RequestRecord is one request row plus its page rows, ready for the API.
type RequestRecord struct {
	ID            uuid.UUID               `json:"id"`
	Name          string                  `json:"name"`
	State         constants.RequestState  `json:"state"`
	PageCount     int                     `json:"page_count"`
	OverallStatus constants.OverallStatus `json:"overall_status,omitempty"`
	RejectKind    string                  `json:"reject_kind,omitempty"`
	RejectDetail  string                  `json:"reject_detail,omitempty"`
	Text          string                  `json:"text,omitempty"`
	SummaryJSON   string                  `json:"summary,omitempty"`
	CreatedAt     time.Time               `json:"created_at"`
	FinishedAt    *time.Time              `json:"finished_at,omitempty"`
	ElapsedMS     int64                   `json:"elapsed_ms,omitempty"`
	Pages         []pipeline.PageResult   `json:"pages,omitempty"`
}

func (s *Store) GetRequest(ctx context.Context, id uuid.UUID) (*RequestRecord, error) {
	var (
		rec           RequestRecord
		idStr         string
		overall       sql.NullString
		rejectKind    sql.NullString
		rejectDetail  sql.NullString
		docText       sql.NullString
		summaryJSON   sql.NullString
		createdAtUnix int64
		finishedAt    sql.NullInt64
		elapsedMS     sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, name, state, page_count, overall_status, reject_kind, reject_detail,
		        doc_text, summary_json, created_at, finished_at, elapsed_ms
		 FROM requests WHERE id = ?`), id.String()).
		Scan(&idStr, &rec.Name, &rec.State, &rec.PageCount, &overall, &rejectKind, &rejectDetail,
			&docText, &summaryJSON, &createdAtUnix, &finishedAt, &elapsedMS)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NewAppError("REQUEST_NOT_FOUND", fmt.Sprintf("request %s", id), common.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get request: %w", err)
	}

	rec.ID = id
	rec.OverallStatus = constants.OverallStatus(overall.String)
	rec.RejectKind = rejectKind.String
	rec.RejectDetail = rejectDetail.String
	rec.Text = docText.String
	rec.SummaryJSON = summaryJSON.String
	rec.CreatedAt = time.Unix(createdAtUnix, 0).UTC()
	if finishedAt.Valid {
		t := time.Unix(finishedAt.Int64, 0).UTC()
		rec.FinishedAt = &t
	}
	rec.ElapsedMS = elapsedMS.Int64

	pages, err := s.pageResults(ctx, id)
	if err != nil {
		return nil, err
	}
	rec.Pages = pages
	return &rec, nil
}

func (s *Store) pageResults(ctx context.Context, id uuid.UUID) ([]pipeline.PageResult, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT page_index, status, source, mean_confidence, reason, error_kind, detail, page_text, elapsed_ms
		 FROM page_results WHERE request_id = ? ORDER BY page_index`), id.String())
	if err != nil {
		return nil, fmt.Errorf("page results: %w", err)
	}
	defer rows.Close()

	var out []pipeline.PageResult
	for rows.Next() {
		var (
			pr        pipeline.PageResult
			source    sql.NullString
			reason    sql.NullString
			errorKind sql.NullString
			detail    sql.NullString
			text      sql.NullString
			elapsedMS sql.NullInt64
		)
		if err := rows.Scan(&pr.PageIndex, &pr.Status, &source, &pr.MeanConfidence,
			&reason, &errorKind, &detail, &text, &elapsedMS); err != nil {
			return nil, fmt.Errorf("scan page result: %w", err)
		}
		pr.Source = pipeline.PageSource(source.String)
		pr.Reason = reason.String
		pr.ErrorKind = errorKind.String
		pr.Detail = detail.String
		pr.Text = text.String
		pr.Elapsed = time.Duration(elapsedMS.Int64) * time.Millisecond
		out = append(out, pr)
	}
	return out, rows.Err()
}

// DeleteExpired removes terminal requests older than the retention window and
// returns how many were dropped.
func (s *Store) DeleteExpired(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention).Unix()
	if _, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM page_results WHERE request_id IN
			(SELECT id FROM requests WHERE finished_at IS NOT NULL AND finished_at < ?)`), cutoff); err != nil {
		return 0, fmt.Errorf("delete expired pages: %w", err)
	}
	res, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM requests WHERE finished_at IS NOT NULL AND finished_at < ?`), cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete expired requests: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		s.logger.Info("store.retention_sweep", "deleted", n)
	}
	return n, nil
}
