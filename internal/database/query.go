package database

import (
	"fmt"
	"strings"
)

// validOps is the allowlist of comparison operators for WHERE clauses.
// Any operator not in this list is rejected to prevent SQL injection
// through the operator position (which cannot be parameterized).
var validOps = map[string]bool{
	"=":     true,
	"!=":    true,
	"<>":    true,
	"<":     true,
	">":     true,
	"<=":    true,
	">=":    true,
	"LIKE":  true,
	"ILIKE": true,
}

// SelectBuilder constructs a parameterized SELECT query using a fluent API.
// Values are never interpolated into the SQL string; they are always passed as args.
//
// Usage (Postgres):
//
//	sql, args, err := Select("users", DialectPostgres).
//	    Columns("id", "name", "email").
//	    Where("active", "=", true).
//	    OrderBy("created_at", Desc).
//	    Limit(20).
//	    Build()
type SelectBuilder struct {
	table   string
	dialect Dialect
	columns []string
	count   bool
	where   []whereClause
	anyOf   []tupleMatch
	orderBy []orderClause
	limit   *int
	offset  *int
}

// SortDirection controls the ORDER BY direction.
type SortDirection bool

const (
	Asc  SortDirection = false
	Desc SortDirection = true
)

type whereClause struct {
	column string
	op     string
	value  any
}

// tupleMatch is (c1 = ? AND c2 = ?) OR (...) over a column tuple.
type tupleMatch struct {
	columns []string
	tuples  [][]any
}

type orderClause struct {
	column string
	dir    SortDirection
}

// Select starts a new SelectBuilder for the given table and dialect.
func Select(table string, d Dialect) *SelectBuilder {
	return &SelectBuilder{table: table, dialect: d}
}

// Columns restricts the SELECT to the specified columns.
// If not called, SELECT * is used.
func (b *SelectBuilder) Columns(cols ...string) *SelectBuilder {
	b.columns = cols
	return b
}

// Count turns the query into SELECT COUNT(*).
func (b *SelectBuilder) Count() *SelectBuilder {
	b.count = true
	return b
}

// Where adds a WHERE condition. op must be one of the allowed comparison
// operators. A nil value with = or != becomes IS NULL / IS NOT NULL.
// Multiple calls are combined with AND.
func (b *SelectBuilder) Where(column, op string, value any) *SelectBuilder {
	b.where = append(b.where, whereClause{column, op, value})
	return b
}

// WhereEq adds one equality condition per map entry, in key order given by cols.
func (b *SelectBuilder) WhereEq(cols []string, values map[string]any) *SelectBuilder {
	for _, c := range cols {
		b.Where(c, "=", values[c])
	}
	return b
}

// WhereAnyOf matches rows whose columns equal any one of tuples. Nil tuple
// members match with IS NULL. The group is ANDed with other conditions.
func (b *SelectBuilder) WhereAnyOf(columns []string, tuples [][]any) *SelectBuilder {
	b.anyOf = append(b.anyOf, tupleMatch{columns: columns, tuples: tuples})
	return b
}

// OrderBy appends an ORDER BY clause for the given column and direction.
func (b *SelectBuilder) OrderBy(column string, dir SortDirection) *SelectBuilder {
	b.orderBy = append(b.orderBy, orderClause{column, dir})
	return b
}

// Limit sets the maximum number of rows to return.
func (b *SelectBuilder) Limit(n int) *SelectBuilder {
	b.limit = &n
	return b
}

// Offset sets the number of rows to skip (for pagination).
func (b *SelectBuilder) Offset(n int) *SelectBuilder {
	b.offset = &n
	return b
}

// Build produces the final SQL string and argument slice.
// Returns an error if any WHERE operator is not in the allowlist.
func (b *SelectBuilder) Build() (string, []any, error) {
	cols := "*"
	switch {
	case b.count:
		cols = "COUNT(*)"
	case len(b.columns) > 0:
		cols = b.dialect.QuoteAll(b.columns)
	}

	var sb strings.Builder
	sb.WriteString("SELECT ")
	sb.WriteString(cols)
	sb.WriteString(" FROM ")
	sb.WriteString(b.dialect.Quote(b.table))

	args := &argList{dialect: b.dialect}

	var parts []string
	for _, w := range b.where {
		op := strings.ToUpper(w.op)
		if !validOps[op] {
			return "", nil, errInvalidInput(fmt.Sprintf("unsupported WHERE operator: %q", w.op))
		}
		parts = append(parts, b.condition(w.column, op, w.value, args))
	}
	for _, m := range b.anyOf {
		if len(m.tuples) == 0 {
			// matching any of nothing matches nothing
			parts = append(parts, "1 = 0")
			continue
		}
		groups := make([]string, len(m.tuples))
		for i, tuple := range m.tuples {
			if len(tuple) != len(m.columns) {
				return "", nil, errInvalidInput(fmt.Sprintf(
					"tuple %d has %d values for %d columns", i, len(tuple), len(m.columns)))
			}
			conds := make([]string, len(m.columns))
			for j, col := range m.columns {
				conds[j] = b.condition(col, "=", tuple[j], args)
			}
			groups[i] = "(" + strings.Join(conds, " AND ") + ")"
		}
		parts = append(parts, "("+strings.Join(groups, " OR ")+")")
	}
	if len(parts) > 0 {
		sb.WriteString(" WHERE ")
		sb.WriteString(strings.Join(parts, " AND "))
	}

	if len(b.orderBy) > 0 {
		order := make([]string, len(b.orderBy))
		for i, o := range b.orderBy {
			dir := "ASC"
			if o.dir == Desc {
				dir = "DESC"
			}
			order[i] = fmt.Sprintf("%s %s", b.dialect.Quote(o.column), dir)
		}
		sb.WriteString(" ORDER BY ")
		sb.WriteString(strings.Join(order, ", "))
	}

	if b.limit != nil {
		sb.WriteString(" LIMIT " + args.add(*b.limit))
	}
	if b.offset != nil {
		if b.limit == nil {
			switch b.dialect {
			case DialectMySQL:
				return "", nil, errInvalidInput("offset without limit is not supported on mysql")
			case DialectSQLite:
				sb.WriteString(" LIMIT -1")
			}
		}
		sb.WriteString(" OFFSET " + args.add(*b.offset))
	}

	return sb.String(), args.values, nil
}

func (b *SelectBuilder) condition(column, op string, value any, args *argList) string {
	if value == nil {
		switch op {
		case "=":
			return b.dialect.Quote(column) + " IS NULL"
		case "!=", "<>":
			return b.dialect.Quote(column) + " IS NOT NULL"
		}
	}
	return fmt.Sprintf("%s %s %s", b.dialect.Quote(column), op, args.add(value))
}

// argList accumulates bound arguments and hands out placeholders.
type argList struct {
	dialect Dialect
	values  []any
}

func (a *argList) add(v any) string {
	a.values = append(a.values, v)
	return a.dialect.Placeholder(len(a.values))
}
