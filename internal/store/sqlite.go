package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/beanatlas/coffee-cli/internal/model"
	"github.com/beanatlas/coffee-cli/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS cache_entries (
	key           TEXT PRIMARY KEY,
	url           TEXT NOT NULL,
	kind          TEXT NOT NULL,
	payload       TEXT NOT NULL,
	fingerprint   TEXT NOT NULL,
	fetched_at    DATETIME NOT NULL,
	last_verified TEXT NOT NULL DEFAULT '{}'
);

CREATE TABLE IF NOT EXISTS products (
	id             TEXT PRIMARY KEY,
	roaster_id     TEXT NOT NULL,
	normalized_url TEXT NOT NULL,
	data           TEXT NOT NULL,
	is_available   INTEGER NOT NULL DEFAULT 1,
	first_seen_at  DATETIME NOT NULL,
	last_seen_at   DATETIME NOT NULL,
	UNIQUE (roaster_id, normalized_url)
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	site        TEXT NOT NULL,
	status      TEXT NOT NULL DEFAULT 'queued',
	path        TEXT NOT NULL DEFAULT '',
	result      TEXT,
	error       TEXT,
	accepted    INTEGER NOT NULL DEFAULT 0,
	rejected    INTEGER NOT NULL DEFAULT 0,
	error_count INTEGER NOT NULL DEFAULT 0,
	created_at  DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at  DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS rejections (
	id         TEXT PRIMARY KEY,
	run_id     TEXT NOT NULL REFERENCES runs(id),
	roaster_id TEXT NOT NULL,
	url        TEXT NOT NULL,
	name       TEXT NOT NULL DEFAULT '',
	stage      TEXT NOT NULL,
	reasons    TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS dead_letter_queue (
	id             TEXT PRIMARY KEY,
	url            TEXT NOT NULL,
	roaster_id     TEXT NOT NULL,
	error          TEXT NOT NULL,
	error_type     TEXT NOT NULL DEFAULT 'transient',
	failed_stage   TEXT NOT NULL DEFAULT '',
	retry_count    INTEGER NOT NULL DEFAULT 0,
	max_retries    INTEGER NOT NULL DEFAULT 3,
	next_retry_at  DATETIME NOT NULL,
	created_at     DATETIME NOT NULL,
	last_failed_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_url ON cache_entries(url);
CREATE INDEX IF NOT EXISTS idx_products_roaster ON products(roaster_id);
CREATE INDEX IF NOT EXISTS idx_products_available ON products(roaster_id, is_available);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
CREATE INDEX IF NOT EXISTS idx_rejections_run_id ON rejections(run_id);
CREATE INDEX IF NOT EXISTS idx_rejections_roaster ON rejections(roaster_id);
CREATE INDEX IF NOT EXISTS idx_dlq_error_type ON dead_letter_queue(error_type);
CREATE INDEX IF NOT EXISTS idx_dlq_next_retry ON dead_letter_queue(next_retry_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- Cache entries ---

func (s *SQLiteStore) GetCacheEntry(ctx context.Context, key string) (*model.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, url, kind, payload, fingerprint, fetched_at, last_verified
		 FROM cache_entries WHERE key = ?`,
		key,
	)

	var e model.CacheEntry
	var kind, payload, stamps string
	err := row.Scan(&e.Key, &e.URL, &kind, &payload, &e.Fingerprint, &e.FetchedAt, &stamps)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cache entry")
	}
	e.Kind = model.CacheKind(kind)
	e.Payload = json.RawMessage(payload)
	if err := json.Unmarshal([]byte(stamps), &e.LastVerified); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal verification stamps")
	}
	return &e, nil
}

// PutCacheEntry writes the complete entry in one upsert statement so readers
// never observe a partially written row.
func (s *SQLiteStore) PutCacheEntry(ctx context.Context, entry *model.CacheEntry) error {
	if entry.Key == "" {
		entry.Key = model.CacheKey(entry.URL, entry.Kind)
	}
	stampsJSON := []byte("{}")
	if len(entry.LastVerified) > 0 {
		var err error
		stampsJSON, err = json.Marshal(entry.LastVerified)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal verification stamps")
		}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, url, kind, payload, fingerprint, fetched_at, last_verified)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (key) DO UPDATE SET
			url = excluded.url,
			payload = excluded.payload,
			fingerprint = excluded.fingerprint,
			fetched_at = excluded.fetched_at,
			last_verified = excluded.last_verified`,
		entry.Key, entry.URL, string(entry.Kind), string(entry.Payload),
		entry.Fingerprint, entry.FetchedAt, string(stampsJSON),
	)
	return eris.Wrap(err, "sqlite: put cache entry")
}

func (s *SQLiteStore) TouchCacheVerification(ctx context.Context, key string, categories []model.StabilityCategory, at time.Time) error {
	if len(categories) == 0 {
		return nil
	}

	// json_set takes variadic path/value pairs, so all stamps land in one
	// statement.
	expr := "json_set(last_verified"
	args := make([]any, 0, len(categories)*2+1)
	for _, cat := range categories {
		expr += ", ?, ?"
		args = append(args, "$."+string(cat), at.UTC().Format(time.RFC3339Nano))
	}
	expr += ")"
	args = append(args, key)

	res, err := s.db.ExecContext(ctx,
		`UPDATE cache_entries SET last_verified = `+expr+` WHERE key = ?`,
		args...,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: touch cache verification %s", key)
	}
	return checkRowsAffected(res, "cache_entry", key)
}

// --- Products ---

// UpsertProducts writes products keyed by (roaster_id, normalized_url). The id
// column is assigned on first insert and survives later upserts; ListProducts
// reports the stored id.
func (s *SQLiteStore) UpsertProducts(ctx context.Context, products []*model.Product) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert products")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO products (id, roaster_id, normalized_url, data, is_available, first_seen_at, last_seen_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (roaster_id, normalized_url) DO UPDATE SET
			data = excluded.data,
			is_available = excluded.is_available,
			last_seen_at = excluded.last_seen_at`,
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: prepare upsert products")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	count := 0
	for _, p := range products {
		if p.ID == "" {
			p.ID = uuid.New().String()
		}
		normalized := p.NormalizedURL
		if normalized == "" {
			normalized = p.SourceURL
		}
		data, err := json.Marshal(p)
		if err != nil {
			return count, eris.Wrapf(err, "sqlite: marshal product %s", p.Name)
		}
		if _, err := stmt.ExecContext(ctx,
			p.ID, p.RoasterID, normalized, string(data), p.IsAvailable, now, now,
		); err != nil {
			return count, eris.Wrapf(err, "sqlite: upsert product %s", normalized)
		}
		count++
	}

	if err := tx.Commit(); err != nil {
		return count, eris.Wrap(err, "sqlite: commit upsert products")
	}
	return count, nil
}

func (s *SQLiteStore) ListProducts(ctx context.Context, filter ProductFilter) ([]*model.Product, error) {
	query := `SELECT id, data, is_available FROM products WHERE 1=1`
	var args []any

	if filter.RoasterID != "" {
		query += ` AND roaster_id = ?`
		args = append(args, filter.RoasterID)
	}
	if filter.AvailableOnly {
		query += ` AND is_available = 1`
	}
	query += ` ORDER BY roaster_id, normalized_url`

	limit := filter.Limit
	if limit <= 0 {
		limit = 1000
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list products")
	}
	defer rows.Close()

	var products []*model.Product
	for rows.Next() {
		var id, data string
		var available bool
		if err := rows.Scan(&id, &data, &available); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan product")
		}
		var p model.Product
		if err := json.Unmarshal([]byte(data), &p); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal product")
		}
		p.ID = id
		p.IsAvailable = available
		products = append(products, &p)
	}
	return products, eris.Wrap(rows.Err(), "sqlite: list products iterate")
}

// MarkUnavailable flips availability for a roaster's products whose normalized
// URL is not in seenURLs. Nothing is ever deleted.
func (s *SQLiteStore) MarkUnavailable(ctx context.Context, roasterID string, seenURLs []string) (int, error) {
	query := `UPDATE products
	          SET is_available = 0, data = json_set(data, '$.is_available', json('false'))
	          WHERE roaster_id = ? AND is_available = 1`
	args := []any{roasterID}

	if len(seenURLs) > 0 {
		query += ` AND normalized_url NOT IN (?` + strings.Repeat(", ?", len(seenURLs)-1) + `)`
		for _, u := range seenURLs {
			args = append(args, u)
		}
	}

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: mark unavailable for %s", roasterID)
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

// --- Runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, site model.Site) (*model.ScrapeRun, error) {
	id := uuid.New().String()
	now := time.Now().UTC()

	siteJSON, err := json.Marshal(site)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: marshal site")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, site, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		id, string(siteJSON), string(model.RunStatusQueued), now, now,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: insert run")
	}

	return &model.ScrapeRun{
		ID:        id,
		Site:      site,
		Status:    model.RunStatusQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *model.ScrapeResult) error {
	resultJSON, err := json.Marshal(result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal result")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET result = ?, status = ?, path = ?, accepted = ?, rejected = ?, error_count = ?, updated_at = ?
		 WHERE id = ?`,
		string(resultJSON), string(model.RunStatusComplete), string(result.Path),
		len(result.Accepted), len(result.Rejected), len(result.Errors),
		time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) FailRun(ctx context.Context, runID string, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, error = ?, updated_at = ? WHERE id = ?`,
		string(model.RunStatusFailed), errMsg, time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.ScrapeRun, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, site, status, path, result, error, accepted, rejected, error_count, created_at, updated_at
		 FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.ScrapeRun, error) {
	query := `SELECT id, site, status, path, result, error, accepted, rejected, error_count, created_at, updated_at
	          FROM runs WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.RoasterID != "" {
		query += ` AND json_extract(site, '$.roaster_id') = ?`
		args = append(args, filter.RoasterID)
	}
	if filter.SiteURL != "" {
		query += ` AND json_extract(site, '$.url') = ?`
		args = append(args, filter.SiteURL)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.ScrapeRun
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) SummarizeRuns(ctx context.Context, since time.Time) (*RunSummary, error) {
	summary := &RunSummary{
		ByStatus: make(map[string]int),
		ByPath:   make(map[string]int),
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*),
		        COALESCE(SUM(accepted), 0),
		        COALESCE(SUM(rejected), 0),
		        COALESCE(SUM(error_count), 0),
		        COALESCE(SUM(json_extract(result, '$.stats.enrichment_calls')), 0),
		        COALESCE(SUM(json_extract(result, '$.stats.pages_fetched')), 0)
		 FROM runs WHERE created_at >= ?`,
		since.UTC(),
	).Scan(&summary.Total, &summary.Accepted, &summary.Rejected,
		&summary.Errors, &summary.EnrichmentCalls, &summary.PagesFetched)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize runs")
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(*) FROM runs WHERE created_at >= ? GROUP BY status`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize runs by status")
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan status count")
		}
		summary.ByStatus[status] = n
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize by status iterate")
	}

	pathRows, err := s.db.QueryContext(ctx,
		`SELECT path, COUNT(*) FROM runs WHERE created_at >= ? AND path != '' GROUP BY path`,
		since.UTC(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: summarize runs by path")
	}
	defer pathRows.Close()
	for pathRows.Next() {
		var path string
		var n int
		if err := pathRows.Scan(&path, &n); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan path count")
		}
		summary.ByPath[path] = n
	}
	return summary, eris.Wrap(pathRows.Err(), "sqlite: summarize by path iterate")
}

// --- Skip ledger ---

func (s *SQLiteStore) RecordRejections(ctx context.Context, runID string, roasterID string, rejected []model.RejectedCandidate) error {
	if len(rejected) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin record rejections")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO rejections (id, run_id, roaster_id, url, name, stage, reasons, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: prepare record rejections")
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for _, rc := range rejected {
		reasonsJSON, err := json.Marshal(rc.Reasons)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal reasons")
		}
		if _, err := stmt.ExecContext(ctx,
			uuid.New().String(), runID, roasterID, rc.URL, rc.Name, rc.Stage, string(reasonsJSON), now,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert rejection %s", rc.URL)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit record rejections")
}

func (s *SQLiteStore) ListRejections(ctx context.Context, filter RejectionFilter) ([]Rejection, error) {
	query := `SELECT id, run_id, roaster_id, url, name, stage, reasons, created_at
	          FROM rejections WHERE 1=1`
	var args []any

	if filter.RoasterID != "" {
		query += ` AND roaster_id = ?`
		args = append(args, filter.RoasterID)
	}
	if filter.Stage != "" {
		query += ` AND stage = ?`
		args = append(args, filter.Stage)
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list rejections")
	}
	defer rows.Close()

	var rejections []Rejection
	for rows.Next() {
		var r Rejection
		var reasonsJSON string
		if err := rows.Scan(&r.ID, &r.RunID, &r.RoasterID, &r.URL, &r.Name, &r.Stage, &reasonsJSON, &r.CreatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan rejection")
		}
		if err := json.Unmarshal([]byte(reasonsJSON), &r.Reasons); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal reasons")
		}
		rejections = append(rejections, r)
	}
	return rejections, eris.Wrap(rows.Err(), "sqlite: list rejections iterate")
}

// --- Dead letter queue ---

func (s *SQLiteStore) EnqueueDLQ(ctx context.Context, entry resilience.DLQEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO dead_letter_queue
		 (id, url, roaster_id, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO UPDATE SET
			error = excluded.error, error_type = excluded.error_type, failed_stage = excluded.failed_stage,
			retry_count = excluded.retry_count, next_retry_at = excluded.next_retry_at,
			last_failed_at = excluded.last_failed_at`,
		entry.ID, entry.URL, entry.RoasterID, entry.Error, entry.ErrorType,
		entry.FailedStage, entry.RetryCount, entry.MaxRetries,
		entry.NextRetryAt, entry.CreatedAt, entry.LastFailedAt,
	)
	return eris.Wrap(err, "sqlite: enqueue dlq")
}

func (s *SQLiteStore) DequeueDLQ(ctx context.Context, filter resilience.DLQFilter) ([]resilience.DLQEntry, error) {
	query := `SELECT id, url, roaster_id, error, error_type, failed_stage, retry_count, max_retries, next_retry_at, created_at, last_failed_at
	          FROM dead_letter_queue
	          WHERE next_retry_at <= datetime('now') AND retry_count < max_retries`
	var args []any

	if filter.ErrorType != "" {
		query += ` AND error_type = ?`
		args = append(args, filter.ErrorType)
	}
	query += ` ORDER BY next_retry_at ASC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: dequeue dlq")
	}
	defer rows.Close()

	var entries []resilience.DLQEntry
	for rows.Next() {
		var e resilience.DLQEntry
		if err := rows.Scan(&e.ID, &e.URL, &e.RoasterID, &e.Error, &e.ErrorType,
			&e.FailedStage, &e.RetryCount, &e.MaxRetries,
			&e.NextRetryAt, &e.CreatedAt, &e.LastFailedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan dlq entry")
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: dequeue dlq iterate")
}

func (s *SQLiteStore) IncrementDLQRetry(ctx context.Context, id string, nextRetryAt time.Time, lastErr string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letter_queue
		 SET retry_count = retry_count + 1, next_retry_at = ?, error = ?, last_failed_at = ?
		 WHERE id = ?`,
		nextRetryAt, lastErr, time.Now().UTC(), id,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: increment dlq retry %s", id)
	}
	return checkRowsAffected(res, "dlq_entry", id)
}

func (s *SQLiteStore) RemoveDLQ(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM dead_letter_queue WHERE id = ?`, id)
	return eris.Wrap(err, "sqlite: remove dlq")
}

func (s *SQLiteStore) CountDLQ(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM dead_letter_queue`).Scan(&count)
	return count, eris.Wrap(err, "sqlite: count dlq")
}

// --- helpers ---

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.ScrapeRun, error) {
	var r model.ScrapeRun
	var siteJSON, path string
	var resultJSON, errMsg sql.NullString

	err := row.Scan(&r.ID, &siteJSON, &r.Status, &path, &resultJSON, &errMsg,
		&r.Accepted, &r.Rejected, &r.ErrorCount, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	r.Path = model.ScrapePath(path)
	if err := json.Unmarshal([]byte(siteJSON), &r.Site); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal site")
	}
	if errMsg.Valid {
		r.Error = errMsg.String
	}
	if resultJSON.Valid {
		r.Result = &model.ScrapeResult{}
		if err := json.Unmarshal([]byte(resultJSON.String), r.Result); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal result")
		}
	}
	return &r, nil
}
