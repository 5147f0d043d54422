// Package sqlite is the embedded-database driver. It backs local runs and
// the repository tests, which need a real database without a server.
package sqlite

import (
	"context"
	"database/sql"

	_ "github.com/glebarez/go-sqlite" // register pure-Go "sqlite" driver

	"github.com/koustreak/dbkit/internal/database"
	"github.com/koustreak/dbkit/internal/errs"
)

// Driver is a SQLite implementation of database.DB backed by database/sql.
type Driver struct {
	db *sql.DB
}

// New opens the database file (or ":memory:") named by cfg.DSN.
func New(ctx context.Context, cfg *database.Config) (*Driver, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "invalid DSN", err)
	}
	// one connection keeps an in-memory database alive and serialises writers
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	d := &Driver{db: db}
	if err := d.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := d.Exec(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		_ = db.Close()
		return nil, err
	}
	return d, nil
}

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
	return database.DialectSQLite
}

func (d *Driver) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &sqliteRows{rows: rows}, nil
}

func (d *Driver) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &sqliteRow{row: d.db.QueryRowContext(ctx, query, args...)}
}

func (d *Driver) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	return execResult(d.db.ExecContext(ctx, query, args...))
}

func (d *Driver) Begin(ctx context.Context) (database.Tx, error) {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, mapError(err, "begin failed")
	}
	return &sqliteTx{tx: tx}, nil
}

func execResult(res sql.Result, err error) (database.Result, error) {
	if err != nil {
		return database.Result{}, mapError(err, "exec failed")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return database.Result{}, mapError(err, "rows affected")
	}
	id, _ := res.LastInsertId()
	return database.Result{RowsAffected: affected, LastInsertID: id}, nil
}

type sqliteRows struct {
	rows *sql.Rows
}

func (r *sqliteRows) Next() bool                 { return r.rows.Next() }
func (r *sqliteRows) Columns() ([]string, error) { return r.rows.Columns() }
func (r *sqliteRows) Close()                     { _ = r.rows.Close() }

func (r *sqliteRows) Scan(dest ...any) error {
	if err := r.rows.Scan(dest...); err != nil {
		return mapError(err, "scan failed")
	}
	return nil
}

func (r *sqliteRows) Err() error {
	if err := r.rows.Err(); err != nil {
		return mapError(err, "row iteration failed")
	}
	return nil
}

type sqliteRow struct {
	row *sql.Row
}

func (r *sqliteRow) Scan(dest ...any) error {
	if err := r.row.Scan(dest...); err != nil {
		return mapError(err, "scan failed")
	}
	return nil
}

type sqliteTx struct {
	tx *sql.Tx
}

func (t *sqliteTx) Query(ctx context.Context, query string, args ...any) (database.Rows, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, mapError(err, "query failed")
	}
	return &sqliteRows{rows: rows}, nil
}

func (t *sqliteTx) QueryRow(ctx context.Context, query string, args ...any) database.Row {
	return &sqliteRow{row: t.tx.QueryRowContext(ctx, query, args...)}
}

func (t *sqliteTx) Exec(ctx context.Context, query string, args ...any) (database.Result, error) {
	return execResult(t.tx.ExecContext(ctx, query, args...))
}

func (t *sqliteTx) Commit(context.Context) error {
	if err := t.tx.Commit(); err != nil {
		return mapError(err, "commit failed")
	}
	return nil
}

func (t *sqliteTx) Rollback(context.Context) error {
	if err := t.tx.Rollback(); err != nil {
		return mapError(err, "rollback failed")
	}
	return nil
}
