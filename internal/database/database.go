// Package database defines the driver-neutral connection contract and the
// dialect-aware SQL builders used on top of it.
//
// Drivers live in sub-packages (postgres, mysql, sqlite) and are the only
// code that imports a native client library.
package database

import (
	"context"
	"fmt"
	"strings"
)

// Dialect controls placeholder and identifier quoting style, and which
// insert-ignore / replace syntax the statement builders emit.
type Dialect int

const (
	// DialectPostgres uses $1, $2, … placeholders and "double" quotes.
	DialectPostgres Dialect = iota

	// DialectMySQL uses ? placeholders and `backtick` quotes.
	DialectMySQL

	// DialectSQLite uses ? placeholders and "double" quotes.
	DialectSQLite
)

func (d Dialect) String() string {
	switch d {
	case DialectPostgres:
		return "postgres"
	case DialectMySQL:
		return "mysql"
	case DialectSQLite:
		return "sqlite"
	default:
		return fmt.Sprintf("dialect(%d)", int(d))
	}
}

// Placeholder returns the parameter placeholder for the 1-based argument idx.
func (d Dialect) Placeholder(idx int) string {
	if d == DialectPostgres {
		return fmt.Sprintf("$%d", idx)
	}
	return "?"
}

// Quote wraps an identifier in the dialect's quote character, doubling any
// embedded quote. A dotted name (schema.table) is quoted part by part.
func (d Dialect) Quote(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		if d == DialectMySQL {
			parts[i] = "`" + strings.ReplaceAll(p, "`", "``") + "`"
		} else {
			parts[i] = `"` + strings.ReplaceAll(p, `"`, `""`) + `"`
		}
	}
	return strings.Join(parts, ".")
}

// QuoteAll quotes every name and joins them with ", ".
func (d Dialect) QuoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, n := range names {
		quoted[i] = d.Quote(n)
	}
	return strings.Join(quoted, ", ")
}

// WithTx runs fn inside a transaction, committing when fn returns nil and
// rolling back otherwise.
func WithTx(ctx context.Context, db DB, fn func(Tx) error) (err error) {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()
	if err = fn(tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}
