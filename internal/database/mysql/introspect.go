package mysql

import (
	"context"
	"fmt"

	"github.com/koustreak/dbkit/internal/database"
	"github.com/koustreak/dbkit/internal/schema"
)

// currentSchema resolves an empty schema argument to the connected database.
const currentSchema = "COALESCE(NULLIF(?, ''), DATABASE())"

// Introspector implements schema.Introspector for MySQL using information_schema.
type Introspector struct {
	db database.Querier
}

// NewIntrospector creates a new MySQL schema introspector
func NewIntrospector(db database.Querier) *Introspector {
	return &Introspector{db: db}
}

// ListTables returns all base tables in the given database.
func (m *Introspector) ListTables(ctx context.Context, schemaName string) ([]string, error) {
	q := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ` + currentSchema + `
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := m.db.Query(ctx, q, schemaName)
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

// TableExists checks whether a specific table exists
func (m *Introspector) TableExists(ctx context.Context, schemaName, table string) (bool, error) {
	q := `
		SELECT COUNT(*) > 0
		FROM information_schema.tables
		WHERE table_schema = ` + currentSchema + ` AND table_name = ?`

	var exists bool
	if err := m.db.QueryRow(ctx, q, schemaName, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("table exists: %w", err)
	}
	return exists, nil
}

// ReflectTable returns columns, indexes and foreign keys for one table.
func (m *Introspector) ReflectTable(ctx context.Context, schemaName, table string) (*schema.Reflection, error) {
	cols, err := m.columns(ctx, schemaName, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s not found or has no columns", table)
	}
	indexes, err := m.indexes(ctx, schemaName, table)
	if err != nil {
		return nil, err
	}
	fks, err := m.foreignKeys(ctx, schemaName, table)
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

// columnsQuery reads key membership from information_schema.statistics
// rather than column_key: without a PRIMARY KEY, MySQL reports the first
// NOT NULL single-column UNIQUE index as 'PRI' in column_key.
const columnsQuery = `
	SELECT
		c.column_name,
		UPPER(c.column_type),
		c.is_nullable = 'YES',
		c.column_default,
		EXISTS (
			SELECT 1 FROM information_schema.statistics s
			WHERE s.table_schema = c.table_schema
			  AND s.table_name = c.table_name
			  AND s.column_name = c.column_name
			  AND s.index_name = 'PRIMARY'
		),
		EXISTS (
			SELECT 1 FROM information_schema.statistics s
			WHERE s.table_schema = c.table_schema
			  AND s.table_name = c.table_name
			  AND s.column_name = c.column_name
			  AND s.index_name <> 'PRIMARY'
			  AND s.non_unique = 0
			  AND (SELECT COUNT(*) FROM information_schema.statistics s2
			       WHERE s2.table_schema = s.table_schema
			         AND s2.table_name = s.table_name
			         AND s2.index_name = s.index_name) = 1
		),
		c.extra LIKE '%auto_increment%'
	FROM information_schema.columns c
	WHERE c.table_schema = ` + currentSchema + ` AND c.table_name = ?
	ORDER BY c.ordinal_position`

func (m *Introspector) columns(ctx context.Context, schemaName, table string) ([]schema.Column, error) {
	rows, err := m.db.Query(ctx, columnsQuery, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("inspect table %s: %w", table, err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var c schema.Column
		var def *string
		if err := rows.Scan(&c.Name, &c.Type, &c.Nullable, &def, &c.PrimaryKey, &c.Unique, &c.AutoIncrement); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		if def != nil {
			c.Default = *def
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

// indexes skips PRIMARY and the indexes MySQL creates implicitly for
// foreign key constraints.
func (m *Introspector) indexes(ctx context.Context, schemaName, table string) ([]schema.Index, error) {
	q := `
		SELECT s.index_name, s.column_name, s.non_unique = 0
		FROM information_schema.statistics s
		WHERE s.table_schema = ` + currentSchema + `
		  AND s.table_name = ?
		  AND s.index_name <> 'PRIMARY'
		  AND s.index_name NOT IN (
			SELECT tc.constraint_name
			FROM information_schema.table_constraints tc
			WHERE tc.constraint_type = 'FOREIGN KEY'
			  AND tc.table_schema = s.table_schema
			  AND tc.table_name = s.table_name
		  )
		ORDER BY s.index_name, s.seq_in_index`

	rows, err := m.db.Query(ctx, q, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("list indexes of %s: %w", table, err)
	}
	defer rows.Close()
	return schema.GroupIndexes(rows)
}

func (m *Introspector) foreignKeys(ctx context.Context, schemaName, table string) ([]schema.ForeignKey, error) {
	q := `
		SELECT column_name, referenced_table_name, referenced_column_name
		FROM information_schema.key_column_usage
		WHERE table_schema = ` + currentSchema + `
		  AND table_name = ?
		  AND referenced_table_name IS NOT NULL
		ORDER BY constraint_name, ordinal_position`

	rows, err := m.db.Query(ctx, q, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("list foreign keys of %s: %w", table, err)
	}
	defer rows.Close()

	var fks []schema.ForeignKey
	for rows.Next() {
		var fk schema.ForeignKey
		if err := rows.Scan(&fk.Column, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("scan fk: %w", err)
		}
		fks = append(fks, fk)
	}
	return fks, rows.Err()
}

// UniqueConstraints reads named unique constraints from the catalog.
func (m *Introspector) UniqueConstraints(ctx context.Context, schemaName, table string) ([]schema.Constraint, error) {
	q := `
		SELECT kcu.constraint_name, kcu.column_name
		FROM information_schema.key_column_usage kcu
		JOIN information_schema.table_constraints tc
		  ON tc.constraint_name = kcu.constraint_name
		 AND tc.table_schema = kcu.table_schema
		 AND tc.table_name = kcu.table_name
		WHERE kcu.table_schema = ` + currentSchema + `
		  AND kcu.table_name = ?
		  AND tc.constraint_type = 'UNIQUE'
		ORDER BY kcu.constraint_name, kcu.ordinal_position`

	rows, err := m.db.Query(ctx, q, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("list unique constraints of %s: %w", table, err)
	}
	defer rows.Close()
	return schema.GroupConstraints(rows)
}
