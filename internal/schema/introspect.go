package schema

import (
	"context"
	"fmt"
)

//go:generate mockgen -destination=mocks/mock_introspector.go -package=mocks github.com/koustreak/dbkit/internal/schema Introspector

// Introspector reads live table structure from a database. Each driver
// package ships an implementation.
type Introspector interface {
	// ListTables returns all base tables in schemaName.
	ListTables(ctx context.Context, schemaName string) ([]string, error)

	// TableExists reports whether the table exists.
	TableExists(ctx context.Context, schemaName, table string) (bool, error)

	// ReflectTable returns columns, indexes, foreign keys and the unique
	// constraints the generic reflection path can see.
	ReflectTable(ctx context.Context, schemaName, table string) (*Reflection, error)

	// UniqueConstraints queries the catalog for named unique constraints
	// and their ordinal column lists.
	UniqueConstraints(ctx context.Context, schemaName, table string) ([]Constraint, error)
}

// RowScanner is the part of database.Rows the grouping helpers need.
type RowScanner interface {
	Next() bool
	Scan(dest ...any) error
	Err() error
}

// GroupIndexes folds (index name, column, unique) rows, ordered by index
// and column position, into Index descriptors.
func GroupIndexes(rows RowScanner) ([]Index, error) {
	var out []Index
	pos := map[string]int{}
	for rows.Next() {
		var name, column string
		var unique bool
		if err := rows.Scan(&name, &column, &unique); err != nil {
			return nil, fmt.Errorf("scan index column: %w", err)
		}
		i, ok := pos[name]
		if !ok {
			i = len(out)
			pos[name] = i
			out = append(out, Index{Name: name, Unique: unique})
		}
		out[i].Columns = append(out[i].Columns, column)
	}
	return out, rows.Err()
}

// GroupConstraints folds (constraint name, column) rows, ordered by
// constraint and column position, into unique Constraint descriptors.
func GroupConstraints(rows RowScanner) ([]Constraint, error) {
	var out []Constraint
	pos := map[string]int{}
	for rows.Next() {
		var name, column string
		if err := rows.Scan(&name, &column); err != nil {
			return nil, fmt.Errorf("scan constraint column: %w", err)
		}
		i, ok := pos[name]
		if !ok {
			i = len(out)
			pos[name] = i
			out = append(out, Constraint{Type: ConstraintUnique, Name: name})
		}
		out[i].Columns = append(out[i].Columns, column)
	}
	return out, rows.Err()
}

// UniqueFromIndexes lists the unique indexes as constraints, for dialects
// that enforce unique constraints with unique indexes.
func UniqueFromIndexes(indexes []Index) []Constraint {
	var out []Constraint
	for _, ix := range indexes {
		if ix.Unique {
			out = append(out, Constraint{
				Type:    ConstraintUnique,
				Name:    ix.Name,
				Columns: append([]string(nil), ix.Columns...),
			})
		}
	}
	return out
}
