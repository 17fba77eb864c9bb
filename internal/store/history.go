package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

const historyTable = "checksum_history"

var historyIndexes = []string{"case_name", "run_id", "artifact"}

// HistoryEntry is one artifact checksum observed by one build.
type HistoryEntry struct {
	RunID      string
	RecordedAt string
	Case       string
	Hook       string
	Repetition int
	Artifact   string
	Path       string
	Size       int64
	Digest     string
}

// History persists artifact checksums across runs.
type History struct {
	dsn     string
	conn    *sql.DB
	dialect Dialect
}

// DialectFor picks the backend from a DSN: postgres:// and postgresql://
// URLs use PostgreSQL, anything else is a SQLite file path.
func DialectFor(dsn string) Dialect {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return &PostgresDialect{}
	}
	return &SQLiteDialect{}
}

// OpenHistory opens or creates the history at dsn.
func OpenHistory(ctx context.Context, dsn string) (*History, error) {
	d := DialectFor(dsn)

	conn, err := sql.Open(d.DriverName(), d.DSN(dsn))
	if err != nil {
		return nil, fmt.Errorf("opening history: %w", err)
	}
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("connecting to history: %w", err)
	}

	h := &History{dsn: dsn, conn: conn, dialect: d}
	if err := h.createSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("creating history schema: %w", err)
	}
	return h, nil
}

func (h *History) createSchema(ctx context.Context) error {
	tx, err := h.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, h.dialect.CreateTableSQL()); err != nil {
		return err
	}
	for _, col := range historyIndexes {
		if _, err := tx.ExecContext(ctx, h.dialect.CreateIndexSQL("idx_history_"+col, col)); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// DSN returns the data source the history was opened with.
func (h *History) DSN() string {
	return h.dsn
}

// Close closes the database connection.
func (h *History) Close() error {
	if h.conn != nil {
		return h.conn.Close()
	}
	return nil
}

func (h *History) insertSQL() string {
	ph := make([]string, 9)
	for i := range ph {
		ph[i] = h.dialect.Placeholder(i + 1)
	}
	return `INSERT INTO ` + historyTable + ` (
		run_id, recorded_at, case_name, hook, repetition, artifact, path, size, digest
	) VALUES (` + strings.Join(ph, ", ") + `)`
}

// Record inserts entries in one transaction.
func (h *History) Record(ctx context.Context, entries []HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := h.conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, h.insertSQL())
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		if _, err := stmt.ExecContext(ctx, e.RunID, e.RecordedAt, e.Case, e.Hook, e.Repetition, e.Artifact, e.Path, e.Size, e.Digest); err != nil {
			return fmt.Errorf("inserting %s: %w", e.Artifact, err)
		}
	}
	return tx.Commit()
}

// Query returns entries in recording order, optionally filtered by case.
// A positive limit keeps only the entries of the most recent runs.
func (h *History) Query(ctx context.Context, caseName string, limit int) ([]HistoryEntry, error) {
	var where []string
	var args []any
	if caseName != "" {
		args = append(args, caseName)
		where = append(where, "case_name = "+h.dialect.Placeholder(len(args)))
	}
	if limit > 0 {
		args = append(args, limit)
		where = append(where, `run_id IN (SELECT run_id FROM (SELECT run_id, MAX(recorded_at) AS last FROM `+
			historyTable+` GROUP BY run_id ORDER BY last DESC LIMIT `+h.dialect.Placeholder(len(args))+`) recent)`)
	}

	q := `SELECT run_id, recorded_at, case_name, hook, repetition, artifact, path, size, digest FROM ` + historyTable
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY recorded_at, run_id, case_name, hook, repetition, artifact"

	rows, err := h.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.RunID, &e.RecordedAt, &e.Case, &e.Hook, &e.Repetition, &e.Artifact, &e.Path, &e.Size, &e.Digest); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
