package postgres

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/koustreak/dbkit/internal/database"
	"github.com/koustreak/dbkit/internal/schema"
)

// currentSchema resolves an empty schema argument ($1) to the search_path head.
const currentSchema = "COALESCE(NULLIF($1, ''), current_schema())"

// Introspector implements schema.Introspector for PostgreSQL using the
// system catalogs.
type Introspector struct {
	db database.Querier
}

// NewIntrospector creates a new Postgres schema introspector
func NewIntrospector(db database.Querier) *Introspector {
	return &Introspector{db: db}
}

// ListTables returns all user-defined table names in the given schema
func (p *Introspector) ListTables(ctx context.Context, schemaName string) ([]string, error) {
	q := `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = ` + currentSchema + `
		  AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := p.db.Query(ctx, q, schemaName)
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
func (p *Introspector) TableExists(ctx context.Context, schemaName, table string) (bool, error) {
	q := `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = ` + currentSchema + ` AND table_name = $2
		)`

	var exists bool
	if err := p.db.QueryRow(ctx, q, schemaName, table).Scan(&exists); err != nil {
		return false, fmt.Errorf("table exists check: %w", err)
	}
	return exists, nil
}

// ReflectTable returns columns, indexes and foreign keys for one table.
func (p *Introspector) ReflectTable(ctx context.Context, schemaName, table string) (*schema.Reflection, error) {
	cols, err := p.columns(ctx, schemaName, table)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s not found or has no columns", table)
	}
	indexes, err := p.indexes(ctx, schemaName, table)
	if err != nil {
		return nil, err
	}
	fks, err := p.foreignKeys(ctx, schemaName, table)
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

func (p *Introspector) columns(ctx context.Context, schemaName, table string) ([]schema.Column, error) {
	q := `
		SELECT
			a.attname,
			format_type(a.atttypid, a.atttypmod),
			NOT a.attnotnull,
			pg_get_expr(d.adbin, d.adrelid),
			EXISTS (
				SELECT 1 FROM pg_index i
				WHERE i.indrelid = c.oid AND i.indisprimary AND a.attnum = ANY(i.indkey)
			),
			a.attidentity <> '' OR COALESCE(pg_get_expr(d.adbin, d.adrelid), '') LIKE 'nextval(%'
		FROM pg_attribute a
		JOIN pg_class c ON c.oid = a.attrelid
		JOIN pg_namespace n ON n.oid = c.relnamespace
		LEFT JOIN pg_attrdef d ON d.adrelid = a.attrelid AND d.adnum = a.attnum
		WHERE n.nspname = ` + currentSchema + `
		  AND c.relname = $2
		  AND a.attnum > 0
		  AND NOT a.attisdropped
		ORDER BY a.attnum`

	rows, err := p.db.Query(ctx, q, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("inspect table %s: %w", table, err)
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var c schema.Column
		var typ string
		var def *string
		if err := rows.Scan(&c.Name, &typ, &c.Nullable, &def, &c.PrimaryKey, &c.AutoIncrement); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		c.Type = RenderType(typ)
		if def != nil {
			c.Default = *def
		}
		cols = append(cols, c)
	}
	return cols, rows.Err()
}

func (p *Introspector) indexes(ctx context.Context, schemaName, table string) ([]schema.Index, error) {
	q := `
		SELECT i.relname, a.attname, ix.indisunique
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = ` + currentSchema + `
		  AND t.relname = $2
		  AND NOT ix.indisprimary
		ORDER BY i.relname, array_position(ix.indkey::int2[], a.attnum)`

	rows, err := p.db.Query(ctx, q, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("list indexes of %s: %w", table, err)
	}
	defer rows.Close()
	return schema.GroupIndexes(rows)
}

func (p *Introspector) foreignKeys(ctx context.Context, schemaName, table string) ([]schema.ForeignKey, error) {
	q := `
		SELECT a.attname, rt.relname, ra.attname
		FROM pg_constraint con
		JOIN pg_class t ON t.oid = con.conrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_class rt ON rt.oid = con.confrelid
		CROSS JOIN LATERAL unnest(con.conkey, con.confkey) AS k(col, refcol)
		JOIN pg_attribute a ON a.attrelid = con.conrelid AND a.attnum = k.col
		JOIN pg_attribute ra ON ra.attrelid = con.confrelid AND ra.attnum = k.refcol
		WHERE con.contype = 'f'
		  AND n.nspname = ` + currentSchema + `
		  AND t.relname = $2
		ORDER BY con.conname`

	rows, err := p.db.Query(ctx, q, schemaName, table)
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

// UniqueConstraints reads every non-primary unique index, which covers both
// UNIQUE constraints and CREATE UNIQUE INDEX.
func (p *Introspector) UniqueConstraints(ctx context.Context, schemaName, table string) ([]schema.Constraint, error) {
	q := `
		SELECT i.relname, a.attname
		FROM pg_index ix
		JOIN pg_class t ON t.oid = ix.indrelid
		JOIN pg_class i ON i.oid = ix.indexrelid
		JOIN pg_namespace n ON n.oid = t.relnamespace
		JOIN pg_attribute a ON a.attrelid = t.oid AND a.attnum = ANY(ix.indkey)
		WHERE n.nspname = ` + currentSchema + `
		  AND t.relname = $2
		  AND ix.indisunique
		  AND NOT ix.indisprimary
		ORDER BY i.relname, array_position(ix.indkey::int2[], a.attnum)`

	rows, err := p.db.Query(ctx, q, schemaName, table)
	if err != nil {
		return nil, fmt.Errorf("list unique constraints of %s: %w", table, err)
	}
	defer rows.Close()
	return schema.GroupConstraints(rows)
}

var typmod = regexp.MustCompile(`^([a-z ]+?)(\(([0-9, ]+)\))?( with(out)? time zone)?$`)

// pgTypeNames maps format_type output to the names model declarations use.
var pgTypeNames = map[string]string{
	"character varying": "VARCHAR",
	"character":         "CHAR",
	"integer":           "INTEGER",
	"bigint":            "BIGINT",
	"smallint":          "SMALLINT",
	"boolean":           "BOOLEAN",
	"numeric":           "NUMERIC",
	"double precision":  "DOUBLE PRECISION",
	"real":              "REAL",
	"text":              "TEXT",
	"timestamp":         "TIMESTAMP",
	"time":              "TIME",
	"date":              "DATE",
	"bytea":             "BYTEA",
}

// RenderType turns format_type output into the uppercase form model
// declarations use, e.g. "character varying(50)" -> "VARCHAR(50)" and
// "timestamp without time zone" -> "TIMESTAMP".
func RenderType(formatted string) string {
	m := typmod.FindStringSubmatch(strings.ToLower(strings.TrimSpace(formatted)))
	if m == nil {
		return strings.ToUpper(formatted)
	}
	base, ok := pgTypeNames[m[1]]
	if !ok {
		base = strings.ToUpper(m[1])
	}
	if m[3] != "" {
		args := strings.ReplaceAll(m[3], " ", "")
		base += "(" + strings.ReplaceAll(args, ",", ", ") + ")"
	}
	if m[4] == " with time zone" {
		base += " WITH TIME ZONE"
	}
	return base
}
