package store

import "fmt"

// PostgresDialect stores history in a shared PostgreSQL database.
type PostgresDialect struct{}

func (d *PostgresDialect) DriverName() string              { return "pgx" }
func (d *PostgresDialect) DSN(pathOrConnStr string) string { return pathOrConnStr }
func (d *PostgresDialect) Placeholder(index int) string    { return fmt.Sprintf("$%d", index) }

func (d *PostgresDialect) CreateTableSQL() string {
	return `CREATE TABLE IF NOT EXISTS ` + historyTable + ` (
		id SERIAL PRIMARY KEY,
		run_id TEXT NOT NULL,
		recorded_at TEXT NOT NULL,
		case_name TEXT NOT NULL,
		hook TEXT NOT NULL,
		repetition INT NOT NULL,
		artifact TEXT NOT NULL,
		path TEXT NOT NULL,
		size BIGINT NOT NULL,
		digest TEXT NOT NULL
	)`
}

func (d *PostgresDialect) CreateIndexSQL(indexName, column string) string {
	return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (%s)", indexName, historyTable, column)
}
