package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/marcboeker/go-duckdb" // Driver

	"github.com/brensch/midiset/internal/extractor"
)

// Archive outcomes recorded per run.
const (
	EventExtracted = "extracted" // every MIDI entry was read
	EventPartial   = "partial"   // some entries could not be read
	EventSkipped   = "skipped"   // the archive could not be opened
)

// Run statuses.
const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

const schemaSequenceSQL = `CREATE SEQUENCE IF NOT EXISTS archive_event_id_seq;`
const schemaTableSQL = `
CREATE TABLE IF NOT EXISTS midiset_runs (
    run_id       VARCHAR PRIMARY KEY,
    started_at   TIMESTAMP NOT NULL,
    finished_at  TIMESTAMP,
    input_dir    VARCHAR NOT NULL,
    output_dir   VARCHAR NOT NULL,
    workers      INTEGER NOT NULL,
    archives     INTEGER NOT NULL,
    records      BIGINT,
    status       VARCHAR NOT NULL,
    message      VARCHAR
);
CREATE TABLE IF NOT EXISTS midiset_archive_events (
    log_id          BIGINT PRIMARY KEY DEFAULT nextval('archive_event_id_seq'),
    run_id          VARCHAR NOT NULL,
    archive_path    VARCHAR NOT NULL,
    archive_group   VARCHAR NOT NULL,
    format          VARCHAR NOT NULL,
    event           VARCHAR NOT NULL,
    records         INTEGER NOT NULL,
    entry_errors    INTEGER NOT NULL,
    message         VARCHAR,
    duration_ms     BIGINT,
    event_timestamp TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_archive_events_run ON midiset_archive_events (run_id);
`

// InitializeSchema creates the sequence and tables in the correct order.
func InitializeSchema(db *sql.DB) error {
	_, err := db.Exec(schemaSequenceSQL)
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("failed to execute sequence setup: %w", err)
	}
	_, err = db.Exec(schemaTableSQL)
	if err != nil && !strings.Contains(strings.ToLower(err.Error()), "already exists") {
		return fmt.Errorf("failed to execute table/index setup: %w", err)
	}
	return nil
}

// Ledger is an append-only audit of pipeline runs. It is never consulted to
// skip work.
type Ledger struct {
	db *sql.DB
}

// OpenLedger opens (creating if needed) the DuckDB database at path and
// prepares its schema.
func OpenLedger(ctx context.Context, path string) (*Ledger, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory for %s: %w", path, err)
		}
	}
	dsn := path
	if path == ":memory:" {
		dsn = ""
	}

	conn, err := sql.Open("duckdb", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open duckdb database (%s): %w", path, err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping duckdb database (%s): %w", path, err)
	}
	if err := InitializeSchema(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}
	return &Ledger{db: conn}, nil
}

// DB exposes the underlying connection pool.
func (l *Ledger) DB() *sql.DB { return l.db }

// Close closes the database.
func (l *Ledger) Close() error { return l.db.Close() }

// StartRun records a new run and returns its ID.
func (l *Ledger) StartRun(ctx context.Context, inputDir, outputDir string, workers, archives int) (string, error) {
	runID := uuid.NewString()
	_, err := l.db.ExecContext(ctx, `
        INSERT INTO midiset_runs (run_id, started_at, input_dir, output_dir, workers, archives, status)
        VALUES (?, ?, ?, ?, ?, ?, ?);`,
		runID, time.Now().UTC(), inputDir, outputDir, workers, archives, StatusRunning)
	if err != nil {
		return "", fmt.Errorf("failed to insert run %s: %w", runID, err)
	}
	return runID, nil
}

// RecordArchive logs the outcome of one archive within a run.
func (l *Ledger) RecordArchive(ctx context.Context, runID string, res extractor.Result) error {
	event := EventExtracted
	var messages []string
	switch {
	case res.Failed():
		event = EventSkipped
		messages = append(messages, res.OpenErr.Error())
	case len(res.EntryErrs) > 0:
		event = EventPartial
		for _, e := range res.EntryErrs {
			messages = append(messages, e.Error())
		}
	}
	message := strings.Join(messages, "; ")

	_, err := l.db.ExecContext(ctx, `
        INSERT INTO midiset_archive_events (run_id, archive_path, archive_group, format, event, records, entry_errors, message, duration_ms, event_timestamp)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		runID,
		res.Archive.Path,
		res.Archive.Group,
		res.Archive.Format.String(),
		event,
		len(res.Records),
		len(res.EntryErrs),
		sql.NullString{String: message, Valid: message != ""},
		res.Elapsed.Milliseconds(),
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to log event '%s' for '%s': %w", event, res.Archive.Path, err)
	}
	return nil
}

// FinishRun closes a run. A nil runErr marks it succeeded.
func (l *Ledger) FinishRun(ctx context.Context, runID string, records int64, runErr error) error {
	status := StatusSucceeded
	var message sql.NullString
	if runErr != nil {
		status = StatusFailed
		message = sql.NullString{String: runErr.Error(), Valid: true}
	}
	res, err := l.db.ExecContext(ctx, `
        UPDATE midiset_runs SET finished_at = ?, records = ?, status = ?, message = ?
        WHERE run_id = ?;`,
		time.Now().UTC(), records, status, message, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run %s: %w", runID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("failed to finish run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

// Run is one row of the run ledger.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	InputDir   string
	OutputDir  string
	Workers    int
	Archives   int
	Records    sql.NullInt64
	Status     string
	Message    string
}

// ArchiveEvent is one archive outcome within a run.
type ArchiveEvent struct {
	Path        string
	Group       string
	Format      string
	Event       string
	Records     int
	EntryErrors int
	Message     string
	Duration    time.Duration
}

// ListRuns returns the most recent runs, newest first.
func (l *Ledger) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := l.db.QueryContext(ctx, `
        SELECT run_id, started_at, finished_at, input_dir, output_dir, workers, archives, records, status, message
        FROM midiset_runs
        ORDER BY started_at DESC
        LIMIT ?;`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var message sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.InputDir, &r.OutputDir,
			&r.Workers, &r.Archives, &r.Records, &r.Status, &message); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		r.Message = message.String
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating run rows: %w", err)
	}
	return runs, nil
}

// ArchiveEvents returns the archive outcomes of one run in insertion order.
func (l *Ledger) ArchiveEvents(ctx context.Context, runID string) ([]ArchiveEvent, error) {
	rows, err := l.db.QueryContext(ctx, `
        SELECT archive_path, archive_group, format, event, records, entry_errors, message, duration_ms
        FROM midiset_archive_events
        WHERE run_id = ?
        ORDER BY log_id;`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query archive events for run %s: %w", runID, err)
	}
	defer rows.Close()

	var events []ArchiveEvent
	for rows.Next() {
		var e ArchiveEvent
		var message sql.NullString
		var durationMs sql.NullInt64
		if err := rows.Scan(&e.Path, &e.Group, &e.Format, &e.Event, &e.Records, &e.EntryErrors, &message, &durationMs); err != nil {
			return nil, fmt.Errorf("failed to scan archive event row: %w", err)
		}
		e.Message = message.String
		e.Duration = time.Duration(durationMs.Int64) * time.Millisecond
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating archive event rows: %w", err)
	}
	if len(events) == 0 {
		var exists int
		err := l.db.QueryRowContext(ctx, `SELECT 1 FROM midiset_runs WHERE run_id = ?;`, runID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("run %s: %w", runID, sql.ErrNoRows)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to look up run %s: %w", runID, err)
		}
	}
	return events, nil
}
