package schema

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRows replays fixed rows through the RowScanner contract.
type fakeRows struct {
	rows [][]any
	pos  int
	err  error
}

func (f *fakeRows) Next() bool {
	if f.pos >= len(f.rows) {
		return false
	}
	f.pos++
	return true
}

func (f *fakeRows) Scan(dest ...any) error {
	row := f.rows[f.pos-1]
	if len(row) != len(dest) {
		return fmt.Errorf("want %d values, got %d", len(row), len(dest))
	}
	for i, v := range row {
		switch d := dest[i].(type) {
		case *string:
			*d = v.(string)
		case *bool:
			*d = v.(bool)
		default:
			return fmt.Errorf("unsupported dest %T", d)
		}
	}
	return nil
}

func (f *fakeRows) Err() error { return f.err }

func TestGroupIndexes(t *testing.T) {
	rows := &fakeRows{rows: [][]any{
		{"ix_a", "a", false},
		{"uq_bc", "c", true},
		{"uq_bc", "b", true},
	}}

	got, err := GroupIndexes(rows)
	require.NoError(t, err)
	assert.Equal(t, []Index{
		{Name: "ix_a", Columns: []string{"a"}},
		{Name: "uq_bc", Columns: []string{"c", "b"}, Unique: true},
	}, got)
	assert.Equal(t, []Constraint{
		{Type: ConstraintUnique, Name: "uq_bc", Columns: []string{"c", "b"}},
	}, UniqueFromIndexes(got))
}

func TestGroupConstraints(t *testing.T) {
	rows := &fakeRows{rows: [][]any{
		{"uq_x", "x"},
		{"uq_yz", "y"},
		{"uq_yz", "z"},
	}}

	got, err := GroupConstraints(rows)
	require.NoError(t, err)
	assert.Equal(t, []Constraint{
		{Type: ConstraintUnique, Name: "uq_x", Columns: []string{"x"}},
		{Type: ConstraintUnique, Name: "uq_yz", Columns: []string{"y", "z"}},
	}, got)
}

func TestGroupConstraints_IterationError(t *testing.T) {
	boom := errors.New("broken pipe")
	_, err := GroupConstraints(&fakeRows{err: boom})
	assert.ErrorIs(t, err, boom)
}
