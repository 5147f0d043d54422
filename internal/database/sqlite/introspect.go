package sqlite

import (
	"context"
	"fmt"
	"strings"

	"github.com/koustreak/dbkit/internal/database"
	"github.com/koustreak/dbkit/internal/schema"
)

// Introspector implements schema.Introspector with SQLite's table-valued
// pragma functions. The schema argument is ignored; only "main" is read.
type Introspector struct {
	db database.Querier
}

// NewIntrospector creates a new SQLite schema introspector
func NewIntrospector(db database.Querier) *Introspector {
	return &Introspector{db: db}
}

func (s *Introspector) ListTables(ctx context.Context, _ string) ([]string, error) {
	const q = `
		SELECT name FROM sqlite_master
		WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		ORDER BY name`

	rows, err := s.db.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan table name: %w", err)
		}
		tables = append(tables, name)
	}
	return tables, rows.Err()
}

func (s *Introspector) TableExists(ctx context.Context, _ string, table string) (bool, error) {
	const q = `SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?`

	var n int
	if err := s.db.QueryRow(ctx, q, table).Scan(&n); err != nil {
		return false, fmt.Errorf("table exists: %w", err)
	}
	return n > 0, nil
}

func (s *Introspector) ReflectTable(ctx context.Context, schemaName, table string) (*schema.Reflection, error) {
	cols, err := s.columns(ctx, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s not found or has no columns", table)
	}
	indexes, err := s.indexes(ctx, table, false)
	if err != nil {
		return nil, err
	}
	fks, err := s.foreignKeys(ctx, table)
	if err != nil {
		return nil, err
	}
	return &schema.Reflection{
		Columns:     cols,
		Indexes:     indexes,
		Constraints: schema.UniqueFromIndexes(indexes),
		ForeignKeys: fks,
	}, nil
}

func (s *Introspector) columns(ctx context.Context, table string) ([]schema.Column, error) {
	const q = `SELECT name, type, "notnull", dflt_value, pk FROM pragma_table_info(?) ORDER BY cid`

	rows, err := s.db.Query(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("inspect table %s: %w", table, err)
	}
	defer rows.Close()

	var cols []schema.Column
	pkCount := 0
	for rows.Next() {
		var c schema.Column
		var notNull, pk int
		var def *string
		if err := rows.Scan(&c.Name, &c.Type, &notNull, &def, &pk); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.Type = strings.ToUpper(c.Type)
		c.PrimaryKey = pk > 0
		c.Nullable = notNull == 0 && !c.PrimaryKey
		if def != nil {
			c.Default = *def
		}
		if c.PrimaryKey {
			pkCount++
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// a lone INTEGER PRIMARY KEY aliases the rowid
	for i := range cols {
		if cols[i].PrimaryKey && pkCount == 1 && cols[i].Type == "INTEGER" {
			cols[i].AutoIncrement = true
		}
	}
	return cols, nil
}

func (s *Introspector) indexes(ctx context.Context, table string, uniqueOnly bool) ([]schema.Index, error) {
	q := `
		SELECT il.name, ii.name, il."unique"
		FROM pragma_index_list(?) il
		JOIN pragma_index_info(il.name) ii
		WHERE il.origin <> 'pk'`
	if uniqueOnly {
		q += ` AND il."unique" = 1`
	}
	q += ` ORDER BY il.name, ii.seqno`

	rows, err := s.db.Query(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("list indexes of %s: %w", table, err)
	}
	defer rows.Close()
	return schema.GroupIndexes(rows)
}

func (s *Introspector) foreignKeys(ctx context.Context, table string) ([]schema.ForeignKey, error) {
	const q = `
		SELECT fk."from", fk."table",
		       COALESCE(fk."to", (SELECT ti.name FROM pragma_table_info(fk."table") ti WHERE ti.pk = 1))
		FROM pragma_foreign_key_list(?) fk
		ORDER BY fk.id, fk.seq`

	rows, err := s.db.Query(ctx, q, table)
	if err != nil {
		return nil, fmt.Errorf("list foreign keys of %s: %w", table, err)
	}
	defer rows.Close()

	var fks []schema.ForeignKey
	for rows.Next() {
		var fk schema.ForeignKey
		if err := rows.Scan(&fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// UniqueConstraints lists unique indexes, which is how SQLite records
// UNIQUE constraints (origin 'u') and CREATE UNIQUE INDEX (origin 'c').
func (s *Introspector) UniqueConstraints(ctx context.Context, _ string, table string) ([]schema.Constraint, error) {
	indexes, err := s.indexes(ctx, table, true)
	if err != nil {
		return nil, err
	}
	return schema.UniqueFromIndexes(indexes), nil
}
