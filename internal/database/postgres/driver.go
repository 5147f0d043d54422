package postgres

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koustreak/dbkit/internal/database"
	"github.com/koustreak/dbkit/internal/errs"
)

// Driver is a PostgreSQL implementation of database.DB backed by pgxpool.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	pool *pgxpool.Pool
}

// New connects to PostgreSQL using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime
	}
	if cfg.ConnectTimeout > 0 {
		poolCfg.ConnConfig.ConnectTimeout = cfg.ConnectTimeout
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create connection pool", err)
	}

	d := &Driver{pool: pool}

	if err := d.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return d, nil
}

// --- database.DB implementation ---

// Ping verifies the database is reachable by acquiring and releasing a connection.
func (d *Driver) Ping(ctx context.Context) error {
	if err := d.pool.Ping(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close drains the connection pool. Call when the application shuts down.
func (d *Driver) Close() {
	d.pool.Close()
}

// Dialect implements database.DB.
func (d *Driver) Dialect() database.Dialect {
	return database.DialectPostgres
}

// Query executes a SQL statement that returns multiple rows.
func (d *Driver) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	rows, err := d.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &pgxRows{rows: rows}, nil
}

// QueryRow executes a SQL statement expected to return at most one row.
func (d *Driver) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	return &pgxRow{row: d.pool.QueryRow(ctx, sql, args...)}
}

// Exec executes a statement and reports the rows it affected.
func (d *Driver) Exec(ctx context.Context, sql string, args ...any) (database.Result, error) {
	tag, err := d.pool.Exec(ctx, sql, args...)
	if err != nil {
		return database.Result{}, mapError(err, "exec failed")
	}
	return result(tag), nil
}

// Begin starts a transaction.
func (d *Driver) Begin(ctx context.Context) (database.Tx, error) {
	tx, err := d.pool.Begin(ctx)
	if err != nil {
		return nil, mapError(err, "begin failed")
	}
	return &pgxTx{tx: tx}, nil
}

// Pool returns the underlying pgxpool (for advanced use)
func (d *Driver) Pool() *pgxpool.Pool {
	return d.pool
}

func result(tag pgconn.CommandTag) database.Result {
	return database.Result{RowsAffected: tag.RowsAffected()}
}

// --- pgx type wrappers ---

// pgxRows wraps pgx.Rows to satisfy database.Rows.
type pgxRows struct {
	rows pgx.Rows
}

func (r *pgxRows) Next() bool { return r.rows.Next() }
func (r *pgxRows) Close()     { r.rows.Close() }

func (r *pgxRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return mapError(err, "scan failed")
	}
	return nil
}

func (r *pgxRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return mapError(err, "row iteration failed")
	}
	return nil
}

func (r *pgxRows) Columns() ([]string, error) {
	descs := r.rows.FieldDescriptions()
	cols := make([]string, len(descs))
	for i, d := range descs {
		cols[i] = d.Name
	}
	return cols, nil
}

// pgxRow wraps pgx.Row to satisfy database.Row.
type pgxRow struct {
	row pgx.Row
}

func (r *pgxRow) Scan(dest ...any) error {
	if err := r.row.Scan(dest...); err != nil {
		return mapError(err, "scan failed")
	}
	return nil
}

// pgxTx wraps pgx.Tx to satisfy database.Tx.
type pgxTx struct {
	tx pgx.Tx
}

func (t *pgxTx) Query(ctx context.Context, sql string, args ...any) (database.Rows, error) {
	rows, err := t.tx.Query(ctx, sql, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &pgxRows{rows: rows}, nil
}

func (t *pgxTx) QueryRow(ctx context.Context, sql string, args ...any) database.Row {
	return &pgxRow{row: t.tx.QueryRow(ctx, sql, args...)}
}

func (t *pgxTx) Exec(ctx context.Context, sql string, args ...any) (database.Result, error) {
	tag, err := t.tx.Exec(ctx, sql, args...)
	if err != nil {
		return database.Result{}, mapError(err, "exec failed")
	}
	return result(tag), nil
}

func (t *pgxTx) Commit(ctx context.Context) error {
	if err := t.tx.Commit(ctx); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

func (t *pgxTx) Rollback(ctx context.Context) error {
	if err := t.tx.Rollback(ctx); err != nil {
		return mapError(err, "rollback failed")
	}
	return nil
}
