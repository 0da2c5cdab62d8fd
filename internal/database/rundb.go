package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/brokerscan/internal/model"
)

// FileName is the name of the history database inside the data directory.
const FileName = "brokerscan.db"

// RunDB stores discovery runs in SQLite so that later commands can
// re-render or compare them without searching the brokers again.
type RunDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string

	// now stamps runs that never recorded a start time.
	now func() time.Time
}

// Options configures RunDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// With CreateIfNotExists false a missing file yields ErrDatabaseNotFound.
func Open(dbDir string, opts Options) (*RunDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else if err := os.MkdirAll(dbDir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	// mode=rw refuses to create a new file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	rdb := &RunDB{
		db:     db,
		dbPath: dbPath,
		now:    time.Now,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := rdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return rdb, nil
}

// Close closes the database connection.
func (rdb *RunDB) Close() error {
	return rdb.db.Close()
}

// Path returns the database file path.
func (rdb *RunDB) Path() string {
	return rdb.dbPath
}

func (rdb *RunDB) createTables() error {
	schema := `
	-- One row per discovery run. subject_key is the hashed identity of the
	-- searched person; the readable profile lives in profile_json.
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		subject_key TEXT NOT NULL,
		subject TEXT NOT NULL,
		profile_json TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		summary_json TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_subject ON runs(subject_key);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	-- One row per broker result, in broker iteration order.
	CREATE TABLE IF NOT EXISTS results (
		run_id INTEGER NOT NULL,
		position INTEGER NOT NULL,
		broker TEXT NOT NULL,
		found INTEGER NOT NULL DEFAULT 0,
		url TEXT,
		urls TEXT,
		title TEXT,
		notes TEXT,
		raw_snippet TEXT,
		status TEXT,
		started_at TEXT,
		finished_at TEXT,
		PRIMARY KEY (run_id, position)
	);

	CREATE INDEX IF NOT EXISTS idx_results_broker ON results(broker);
	`

	_, err := rdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveRun stores run and its results in one transaction and returns the
// new run ID.
func (rdb *RunDB) SaveRun(ctx context.Context, run *model.DiscoveryRun) (id int64, err error) {
	if run == nil || run.Profile == nil {
		return 0, ErrNilRun
	}

	profileJSON, err := json.Marshal(run.Profile)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize profile: %w", err)
	}
	summaryJSON, err := json.Marshal(run.Summary())
	if err != nil {
		return 0, fmt.Errorf("failed to serialize summary: %w", err)
	}

	started := run.StartedAt
	if started.IsZero() {
		started = rdb.now()
	}

	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `
	INSERT INTO runs (subject_key, subject, profile_json, started_at, finished_at, summary_json)
	VALUES (?, ?, ?, ?, ?, ?)
	`,
		run.Profile.SubjectKey(),
		run.Profile.String(),
		string(profileJSON),
		formatTimestamp(started),
		formatTimestamp(run.FinishedAt),
		string(summaryJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	id, err = res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get run id: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
	INSERT INTO results (run_id, position, broker, found, url, urls, title, notes, raw_snippet, status, started_at, finished_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare result insert: %w", err)
	}
	defer stmt.Close()

	for i, r := range run.Results {
		m := r.ToMap()
		if _, err = stmt.ExecContext(ctx,
			id, i,
			m["broker"],
			r.Found,
			m["url"],
			m["urls"],
			m["title"],
			m["notes"],
			m["raw_snippet"],
			m["status"],
			m["started_at"],
			m["finished_at"],
		); err != nil {
			return 0, fmt.Errorf("failed to save result for %s: %w", r.Broker, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit run: %w", err)
	}
	return id, nil
}

// StoredRun is a run loaded from the database.
type StoredRun struct {
	// ID is the database identifier of the run.
	ID int64

	// Run is the rebuilt discovery run.
	Run *model.DiscoveryRun
}

// RunMetadata summarizes a stored run without loading its results.
type RunMetadata struct {
	ID         int64
	SubjectKey string
	Subject    string
	StartedAt  time.Time
	FinishedAt time.Time
	Summary    model.RunSummary
}

// LatestRun returns the most recent run for subjectKey, or ErrRunNotFound.
func (rdb *RunDB) LatestRun(ctx context.Context, subjectKey string) (*StoredRun, error) {
	runs, err := rdb.LatestRuns(ctx, subjectKey, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, fmt.Errorf("%w: no run stored for this subject", ErrRunNotFound)
	}
	return runs[0], nil
}

// LatestRuns returns up to n runs for subjectKey, newest first.
func (rdb *RunDB) LatestRuns(ctx context.Context, subjectKey string, n int) ([]*StoredRun, error) {
	if n <= 0 {
		return nil, nil
	}

	rows, err := rdb.db.QueryContext(ctx, `
	SELECT id FROM runs
	WHERE subject_key = ?
	ORDER BY started_at DESC, id DESC
	LIMIT ?
	`, subjectKey, n)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("failed to scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	// The single connection must be released before loading each run.
	_ = rows.Close()

	runs := make([]*StoredRun, 0, len(ids))
	for _, id := range ids {
		run, err := rdb.RunByID(ctx, id)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

// RunByID loads one run with its results, or returns ErrRunNotFound.
func (rdb *RunDB) RunByID(ctx context.Context, id int64) (*StoredRun, error) {
	var profileJSON, startedAt string
	var finishedAt sql.NullString
	err := rdb.db.QueryRowContext(ctx, `
	SELECT profile_json, started_at, finished_at FROM runs WHERE id = ?
	`, id).Scan(&profileJSON, &startedAt, &finishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %d: %w", id, err)
	}

	var profile model.ClientProfile
	if err := json.Unmarshal([]byte(profileJSON), &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile of run %d: %w", id, err)
	}

	run := model.NewDiscoveryRun(&profile)
	run.StartedAt = parseTimestamp(startedAt)
	run.FinishedAt = parseTimestamp(finishedAt.String)

	results, err := rdb.results(ctx, id)
	if err != nil {
		return nil, err
	}
	run.Results = results

	return &StoredRun{ID: id, Run: run}, nil
}

func (rdb *RunDB) results(ctx context.Context, runID int64) ([]*model.BrokerResult, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT broker, found, url, urls, title, notes, raw_snippet, status, started_at, finished_at
	FROM results
	WHERE run_id = ?
	ORDER BY position
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get results of run %d: %w", runID, err)
	}
	defer rows.Close()

	results := make([]*model.BrokerResult, 0)
	for rows.Next() {
		var broker string
		var found bool
		var url, urls, title, notes, snippet, status, startedAt, finishedAt sql.NullString
		if err := rows.Scan(&broker, &found, &url, &urls, &title, &notes, &snippet, &status, &startedAt, &finishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		r, err := model.BrokerResultFromMap(map[string]string{
			"broker":      broker,
			"found":       fmt.Sprint(found),
			"url":         url.String,
			"urls":        urls.String,
			"title":       title.String,
			"notes":       notes.String,
			"raw_snippet": snippet.String,
			"status":      status.String,
			"started_at":  startedAt.String,
			"finished_at": finishedAt.String,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to rebuild result for %s: %w", broker, err)
		}
		results = append(results, r)
	}

	return results, rows.Err()
}

// History returns metadata for every run of subjectKey, newest first.
func (rdb *RunDB) History(ctx context.Context, subjectKey string) ([]RunMetadata, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT id, subject_key, subject, started_at, finished_at, summary_json
	FROM runs
	WHERE subject_key = ?
	ORDER BY started_at DESC, id DESC
	`, subjectKey)
	if err != nil {
		return nil, fmt.Errorf("failed to get run history: %w", err)
	}
	defer rows.Close()

	var history []RunMetadata
	for rows.Next() {
		var meta RunMetadata
		var startedAt string
		var finishedAt, summaryJSON sql.NullString

		if err := rows.Scan(&meta.ID, &meta.SubjectKey, &meta.Subject, &startedAt, &finishedAt, &summaryJSON); err != nil {
			return nil, fmt.Errorf("failed to scan run metadata: %w", err)
		}
		meta.StartedAt = parseTimestamp(startedAt)
		meta.FinishedAt = parseTimestamp(finishedAt.String)
		if summaryJSON.Valid && summaryJSON.String != "" {
			// A malformed summary leaves zero counts.
			_ = json.Unmarshal([]byte(summaryJSON.String), &meta.Summary) //nolint:errcheck
		}
		history = append(history, meta)
	}

	return history, rows.Err()
}

// Subject is one searched person with the number of stored runs.
type Subject struct {
	Key     string
	Subject string
	Runs    int
	LastRun time.Time
}

// ListSubjects returns every subject with stored runs, most recently
// searched first.
func (rdb *RunDB) ListSubjects(ctx context.Context) ([]Subject, error) {
	rows, err := rdb.db.QueryContext(ctx, `
	SELECT subject_key, MAX(subject), COUNT(*), MAX(started_at)
	FROM runs
	GROUP BY subject_key
	ORDER BY MAX(started_at) DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	defer rows.Close()

	var subjects []Subject
	for rows.Next() {
		var s Subject
		var lastRun string
		if err := rows.Scan(&s.Key, &s.Subject, &s.Runs, &lastRun); err != nil {
			return nil, fmt.Errorf("failed to scan subject: %w", err)
		}
		s.LastRun = parseTimestamp(lastRun)
		subjects = append(subjects, s)
	}

	return subjects, rows.Err()
}

// DeleteSubject removes every run of subjectKey and returns how many runs
// were deleted.
func (rdb *RunDB) DeleteSubject(ctx context.Context, subjectKey string) (n int64, err error) {
	tx, err := rdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
	DELETE FROM results WHERE run_id IN (SELECT id FROM runs WHERE subject_key = ?)
	`, subjectKey); err != nil {
		return 0, fmt.Errorf("failed to delete results: %w", err)
	}

	res, err := tx.ExecContext(ctx, `DELETE FROM runs WHERE subject_key = ?`, subjectKey)
	if err != nil {
		return 0, fmt.Errorf("failed to delete runs: %w", err)
	}
	n, err = res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted runs: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit delete: %w", err)
	}
	return n, nil
}

// formatTimestamp stores times as fixed-width UTC text so that string
// ordering matches time ordering.
func formatTimestamp(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timestampLayout)
}

const timestampLayout = "2006-01-02T15:04:05.000000000Z"

// timestampFormats are tried in order when reading stored times.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05Z",
}

// parseTimestamp returns the zero time for empty or unparseable input.
func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
