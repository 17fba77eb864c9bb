package store

import (
	"fmt"
	"strings"
)

// SQLiteDialect is the default, file-backed history backend.
type SQLiteDialect struct{}

func (d *SQLiteDialect) DriverName() string           { return "sqlite" }
func (d *SQLiteDialect) Placeholder(index int) string { return "?" }

// DSN strips a sqlite:// prefix and enables a busy timeout so concurrent
// runs sharing a history file wait instead of failing.
func (d *SQLiteDialect) DSN(pathOrConnStr string) string {
	path := strings.TrimPrefix(pathOrConnStr, "sqlite://")
	if strings.Contains(path, "?") {
		return path
	}
	return path + "?_pragma=busy_timeout(5000)"
}

func (d *SQLiteDialect) CreateTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS ` + historyTable + ` (
		run_id TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		case_name TEXT NOT NULL,
		hook TEXT NOT NULL,
		repetition INTEGER NOT NULL,
		artifact TEXT NOT NULL,
		path TEXT NOT NULL,
		size INTEGER NOT NULL,
		digest TEXT NOT NULL
	)`
}

func (d *SQLiteDialect) CreateIndexSQL(indexName, column string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, historyTable, column)
}
