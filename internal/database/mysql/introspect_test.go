package mysql

import (
	"context"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dbkit/internal/database"
)

// cannedQuerier answers every Query with the same rows and records the SQL.
type cannedQuerier struct {
	database.Querier
	rows    [][]any
	queries []string
}

func (c *cannedQuerier) Query(_ context.Context, sql string, _ ...any) (database.Rows, error) {
	c.queries = append(c.queries, sql)
	return &cannedRows{rows: c.rows, i: -1}, nil
}

type cannedRows struct {
	rows [][]any
	i    int
}

func (r *cannedRows) Next() bool                 { r.i++; return r.i < len(r.rows) }
func (r *cannedRows) Columns() ([]string, error) { return nil, nil }
func (r *cannedRows) Close()                     {}
func (r *cannedRows) Err() error                 { return nil }

func (r *cannedRows) Scan(dest ...any) error {
	for i, d := range dest {
		v := r.rows[r.i][i]
		target := reflect.ValueOf(d).Elem()
		if v == nil {
			target.Set(reflect.Zero(target.Type()))
			continue
		}
		rv := reflect.ValueOf(v)
		if target.Kind() == reflect.Pointer {
			p := reflect.New(target.Type().Elem())
			p.Elem().Set(rv)
			target.Set(p)
			continue
		}
		target.Set(rv)
	}
	return nil
}

func TestColumns_PrimaryKeyFromStatistics(t *testing.T) {
	// a table without PRIMARY KEY whose NOT NULL unique column MySQL
	// would report as column_key = 'PRI'
	q := &cannedQuerier{rows: [][]any{
		{"code", "VARCHAR(20)", false, nil, false, true, false},
		{"label", "VARCHAR(50)", true, "none", false, false, false},
	}}

	cols, err := NewIntrospector(q).columns(context.Background(), "", "tags")
	require.NoError(t, err)
	require.Len(t, cols, 2)

	assert.False(t, cols[0].PrimaryKey)
	assert.True(t, cols[0].Unique)
	assert.False(t, cols[0].Nullable)
	assert.Equal(t, "none", cols[1].Default)

	require.Len(t, q.queries, 1)
	assert.Contains(t, q.queries[0], "s.index_name = 'PRIMARY'")
	assert.NotContains(t, q.queries[0], "column_key")
	assert.Contains(t, q.queries[0], "s.non_unique = 0")
}
