package store

// Dialect abstracts the database-specific SQL of the checksum history.
type Dialect interface {
	// DriverName returns the database/sql driver name.
	DriverName() string

	// DSN returns the data source name for sql.Open.
	DSN(pathOrConnStr string) string

	// Placeholder returns the parameter placeholder for the given 1-based index.
	Placeholder(index int) string

	// CreateTableSQL returns the DDL for the history table.
	CreateTableSQL() string

	// CreateIndexSQL returns DDL to index a history column.
	CreateIndexSQL(indexName, column string) string
}
