package mysql

import (
	"context"
	"database/sql"

	_ "github.com/go-sql-driver/mysql" // register "mysql" driver

	"github.com/koustreak/dbkit/internal/database"
	"github.com/koustreak/dbkit/internal/errs"
)

// Driver is a MySQL implementation of database.DB backed by database/sql.
// It is safe for concurrent use by multiple goroutines.
type Driver struct {
	db *sql.DB
}

// New opens a MySQL connection pool using the provided Config and returns a Driver.
// It calls Ping to validate the connection before returning.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}

	db.SetMaxOpenConns(int(cfg.MaxConns))
	db.SetMaxIdleConns(int(cfg.MinConns))
	db.SetConnMaxLifetime(cfg.MaxConnLifetime)
	db.SetConnMaxIdleTime(cfg.MaxConnIdleTime)

	d := &Driver{db: db}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}

	if err := d.Ping(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return d, nil
}

// --- database.DB implementation ---

func (d *Driver) Ping(ctx context.Context) error {
	if err := d.db.PingContext(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

func (d *Driver) Close() {
	_ = d.db.Close()
}

func (d *Driver) Dialect() database.Dialect {
	return database.DialectMySQL
}

func (d *Driver) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return queryRows(ctx, d.db, query, args)
}

func (d *Driver) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &mysqlRow{row: d.db.QueryRowContext(ctx, query, args...)}
}

func (d *Driver) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	return execResult(d.db.ExecContext(ctx, query, args...))
}

func (d *Driver) Begin(ctx context.Context) (database.Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError(err, "begin failed")
	}
	return &mysqlTx{tx: tx}, nil
}

// DB returns the underlying *sql.DB (for advanced use)
func (d *Driver) DB() *sql.DB {
	return d.db
}

type queryer interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryRows(ctx context.Context, q queryer, query string, args []any) (database.Rows, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &mysqlRows{rows: rows}, nil
}

func execResult(res sql.Result, err error) (database.Result, error) {
	if err != nil {
		return database.Result{}, mapError(err, "exec failed")
	}
	var out database.Result
	if out.RowsAffected, err = res.RowsAffected(); err != nil {
		return database.Result{}, mapError(err, "rows affected")
	}
	// LastInsertId is best effort; tables without AUTO_INCREMENT report 0
	out.LastInsertID, _ = res.LastInsertId()
	return out, nil
}

// --- sql.DB type wrappers ---

type mysqlRows struct {
	rows *sql.Rows
}

func (r *mysqlRows) Next() bool                 { return r.rows.Next() }
func (r *mysqlRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *mysqlRows) Close()                     { _ = r.rows.Close() }

func (r *mysqlRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return mapError(err, "scan failed")
	}
	return nil
}

func (r *mysqlRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return mapError(err, "row iteration failed")
	}
	return nil
}

type mysqlRow struct {
	row *sql.Row
}

func (r *mysqlRow) Scan(dest ...any) error {
	if err := r.row.Scan(dest...); err != nil {
		return mapError(err, "scan failed")
	}
	return nil
}

type mysqlTx struct {
	tx *sql.Tx
}

func (t *mysqlTx) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	return queryRows(ctx, t.tx, query, args)
}

func (t *mysqlTx) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &mysqlRow{row: t.tx.QueryRowContext(ctx, query, args...)}
}

func (t *mysqlTx) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	return execResult(t.tx.ExecContext(ctx, query, args...))
}

func (t *mysqlTx) Commit(context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

func (t *mysqlTx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil {
		return mapError(err, "rollback failed")
	}
	return nil
}
