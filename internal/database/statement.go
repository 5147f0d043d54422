package database

import (
	"fmt"
	"strings"
)

// ConflictMode selects what an insert does when a row collides with an
// existing unique key.
type ConflictMode int

const (
	// ConflictError lets the database raise the violation.
	ConflictError ConflictMode = iota
	// ConflictIgnore skips colliding rows.
	ConflictIgnore
	// ConflictReplace overwrites colliding rows with the new values.
	ConflictReplace
)

// UpdatedAtColumn is refreshed to the current time by MySQL replaces when
// the table has it.
const UpdatedAtColumn = "updated_at"

// InsertBuilder builds a multi-row INSERT for one dialect.
//
//	sql, args, err := Insert("users", DialectMySQL).
//	    Columns("id", "email").
//	    Values(1, "a@x.io").
//	    Values(2, "b@x.io").
//	    OnConflict(ConflictReplace, []string{"id"}, []string{"id", "email"}).
//	    Build()
type InsertBuilder struct {
	table   string
	dialect Dialect
	columns []string
	rows    [][]any
	mode    ConflictMode
	keys    []string // primary key, used by Postgres replace
	unique  []string // primary key and unique columns, never updated by MySQL replace
}

// Insert starts a new InsertBuilder.
func Insert(table string, d Dialect) *InsertBuilder {
	return &InsertBuilder{table: table, dialect: d}
}

// Columns sets the inserted columns.
func (b *InsertBuilder) Columns(cols ...string) *InsertBuilder {
	b.columns = cols
	return b
}

// Values appends one row; len(vals) must match the column count.
func (b *InsertBuilder) Values(vals ...any) *InsertBuilder {
	b.rows = append(b.rows, vals)
	return b
}

// OnConflict sets the conflict behaviour. primaryKey is required for a
// Postgres replace; keyColumns lists the primary key and unique columns a
// MySQL replace must leave untouched.
func (b *InsertBuilder) OnConflict(mode ConflictMode, primaryKey, keyColumns []string) *InsertBuilder {
	b.mode = mode
	b.keys = primaryKey
	b.unique = keyColumns
	return b
}

// Build produces the final SQL string and argument slice.
func (b *InsertBuilder) Build() (string, []any, error) {
	if len(b.columns) == 0 {
		return "", nil, errInvalidInput("insert into " + b.table + ": no columns")
	}
	if len(b.rows) == 0 {
		return "", nil, errInvalidInput("insert into " + b.table + ": no rows")
	}

	var sb strings.Builder
	switch {
	case b.mode == ConflictIgnore && b.dialect == DialectMySQL:
		sb.WriteString("INSERT IGNORE INTO ")
	case b.mode == ConflictIgnore && b.dialect == DialectSQLite:
		sb.WriteString("INSERT OR IGNORE INTO ")
	case b.mode == ConflictReplace && b.dialect == DialectSQLite:
		sb.WriteString("INSERT OR REPLACE INTO ")
	default:
		sb.WriteString("INSERT INTO ")
	}
	sb.WriteString(b.dialect.Quote(b.table))
	sb.WriteString(" (")
	sb.WriteString(b.dialect.QuoteAll(b.columns))
	sb.WriteString(") VALUES ")

	args := &argList{dialect: b.dialect}
	groups := make([]string, len(b.rows))
	for i, row := range b.rows {
		if len(row) != len(b.columns) {
			return "", nil, errInvalidInput(fmt.Sprintf(
				"insert into %s: row %d has %d values for %d columns", b.table, i, len(row), len(b.columns)))
		}
		ph := make([]string, len(row))
		for j, v := range row {
			ph[j] = args.add(v)
		}
		groups[i] = "(" + strings.Join(ph, ", ") + ")"
	}
	sb.WriteString(strings.Join(groups, ", "))

	suffix, err := b.conflictClause()
	if err != nil {
		return "", nil, err
	}
	sb.WriteString(suffix)
	return sb.String(), args.values, nil
}

func (b *InsertBuilder) conflictClause() (string, error) {
	switch {
	case b.mode == ConflictIgnore && b.dialect == DialectPostgres:
		return " ON CONFLICT DO NOTHING", nil

	case b.mode == ConflictReplace && b.dialect == DialectPostgres:
		if len(b.keys) == 0 {
			return "", errConfiguration("replace into " + b.table + " requires a primary key")
		}
		keySet := toSet(b.keys)
		var sets []string
		for _, c := range b.columns {
			if keySet[c] {
				continue
			}
			q := b.dialect.Quote(c)
			sets = append(sets, q+" = EXCLUDED."+q)
		}
		if len(sets) == 0 {
			return " ON CONFLICT (" + b.dialect.QuoteAll(b.keys) + ") DO NOTHING", nil
		}
		return " ON CONFLICT (" + b.dialect.QuoteAll(b.keys) + ") DO UPDATE SET " + strings.Join(sets, ", "), nil

	case b.mode == ConflictReplace && b.dialect == DialectMySQL:
		keySet := toSet(b.unique)
		var sets []string
		hasUpdatedAt := false
		for _, c := range b.columns {
			if c == UpdatedAtColumn {
				hasUpdatedAt = true
				continue
			}
			if keySet[c] {
				continue
			}
			q := b.dialect.Quote(c)
			sets = append(sets, q+" = VALUES("+q+")")
		}
		if hasUpdatedAt {
			sets = append(sets, b.dialect.Quote(UpdatedAtColumn)+" = NOW()")
		}
		if len(sets) == 0 {
			// nothing to update: keep the existing row
			first := b.dialect.Quote(b.columns[0])
			sets = append(sets, first+" = "+first)
		}
		return " ON DUPLICATE KEY UPDATE " + strings.Join(sets, ", "), nil
	}
	return "", nil
}

// UpdateBuilder builds UPDATE ... SET ... WHERE ... with equality conditions.
type UpdateBuilder struct {
	table   string
	dialect Dialect
	set     []string
	setVals map[string]any
	where   []string
	whereV  map[string]any
}

// Update starts a new UpdateBuilder.
func Update(table string, d Dialect) *UpdateBuilder {
	return &UpdateBuilder{table: table, dialect: d, setVals: map[string]any{}, whereV: map[string]any{}}
}

// Set assigns a column.
func (b *UpdateBuilder) Set(column string, value any) *UpdateBuilder {
	if _, ok := b.setVals[column]; !ok {
		b.set = append(b.set, column)
	}
	b.setVals[column] = value
	return b
}

// Where adds an equality condition; nil matches IS NULL.
func (b *UpdateBuilder) Where(column string, value any) *UpdateBuilder {
	if _, ok := b.whereV[column]; !ok {
		b.where = append(b.where, column)
	}
	b.whereV[column] = value
	return b
}

// Build produces the final SQL string and argument slice. An update with
// no conditions is rejected.
func (b *UpdateBuilder) Build() (string, []any, error) {
	if len(b.set) == 0 {
		return "", nil, errInvalidInput("update " + b.table + ": nothing to set")
	}
	if len(b.where) == 0 {
		return "", nil, errInvalidInput("update " + b.table + ": refusing to update without conditions")
	}
	args := &argList{dialect: b.dialect}
	sets := make([]string, len(b.set))
	for i, c := range b.set {
		sets[i] = b.dialect.Quote(c) + " = " + args.add(b.setVals[c])
	}
	where := equalities(b.dialect, b.where, b.whereV, args)
	sql := "UPDATE " + b.dialect.Quote(b.table) + " SET " + strings.Join(sets, ", ") + " WHERE " + where
	return sql, args.values, nil
}

// DeleteBuilder builds DELETE FROM ... WHERE ... with equality conditions.
type DeleteBuilder struct {
	table   string
	dialect Dialect
	where   []string
	whereV  map[string]any
}

// Delete starts a new DeleteBuilder.
func Delete(table string, d Dialect) *DeleteBuilder {
	return &DeleteBuilder{table: table, dialect: d, whereV: map[string]any{}}
}

// Where adds an equality condition; nil matches IS NULL.
func (b *DeleteBuilder) Where(column string, value any) *DeleteBuilder {
	if _, ok := b.whereV[column]; !ok {
		b.where = append(b.where, column)
	}
	b.whereV[column] = value
	return b
}

// Build produces the final SQL string and argument slice. A delete with
// no conditions is rejected.
func (b *DeleteBuilder) Build() (string, []any, error) {
	if len(b.where) == 0 {
		return "", nil, errInvalidInput("delete from " + b.table + ": refusing to delete without conditions")
	}
	args := &argList{dialect: b.dialect}
	where := equalities(b.dialect, b.where, b.whereV, args)
	return "DELETE FROM " + b.dialect.Quote(b.table) + " WHERE " + where, args.values, nil
}

func equalities(d Dialect, cols []string, vals map[string]any, args *argList) string {
	parts := make([]string, len(cols))
	for i, c := range cols {
		if vals[c] == nil {
			parts[i] = d.Quote(c) + " IS NULL"
			continue
		}
		parts[i] = d.Quote(c) + " = " + args.add(vals[c])
	}
	return strings.Join(parts, " AND ")
}

func toSet(ss []string) map[string]bool {
	m := make(map[string]bool, len(ss))
	for _, s := range ss {
		m[s] = true
	}
	return m
}
