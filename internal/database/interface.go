package database

import "context"

// Querier is the query surface shared by a connection pool and a
// transaction. Schema introspection, the conflict filter and the CRUD
// repository all talk to this interface and never to a driver package.
type Querier interface {
	// Query executes a SQL statement that returns multiple rows.
	Query(ctx context.Context, sql string, args ...any) (Rows, error)

	// QueryRow executes a SQL statement that returns at most one row.
	// Errors are deferred to Row.Scan.
	QueryRow(ctx context.Context, sql string, args ...any) Row

	// Exec executes a statement that returns no rows.
	Exec(ctx context.Context, sql string, args ...any) (Result, error)
}

// DB is a pooled connection to one database.
type DB interface {
	Querier

	// Ping verifies the database is reachable.
	Ping(ctx context.Context) error

	// Close releases all resources held by the connection pool.
	Close()

	// Begin starts a transaction.
	Begin(ctx context.Context) (Tx, error)

	// Dialect reports which SQL dialect statements must be built for.
	Dialect() Dialect
}

// Tx is an open transaction.
type Tx interface {
	Querier
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Result summarises the effect of an Exec.
type Result struct {
	RowsAffected int64
	// LastInsertID is zero for drivers that do not report it (Postgres).
	LastInsertID int64
}

// Rows is an abstraction over a database result set.
// Callers must always call Close() when done, even on error.
type Rows interface {
	// Next advances to the next row.
	// Returns false when no more rows exist or on error.
	Next() bool

	// Scan copies the current row's columns into the provided destinations.
	Scan(dest ...any) error

	// Columns returns the column names of the result set.
	Columns() ([]string, error)

	// Close releases resources held by the result set.
	Close()

	// Err returns any error encountered during iteration.
	Err() error
}

// Row is an abstraction over a single database row.
type Row interface {
	Scan(dest ...any) error
}
