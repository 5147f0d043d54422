package schema

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func usersTable() *Table {
	return &Table{
		Name: "users",
		Columns: map[string]Column{
			"id":          {Name: "id", Type: "INTEGER", PrimaryKey: true, AutoIncrement: true},
			"unique_code": {Name: "unique_code", Type: "VARCHAR(50)", Unique: true},
			"created_at":  {Name: "created_at", Type: "DATETIME", Nullable: true},
		},
		Indexes: []Index{{Name: "uq_code", Columns: []string{"unique_code"}, Unique: true}},
		Constraints: []Constraint{
			{Type: ConstraintUnique, Name: "uq_code", Columns: []string{"unique_code"}},
		},
	}
}

func clone(t *Table) *Table {
	out := *t
	out.Columns = make(map[string]Column, len(t.Columns))
	for k, v := range t.Columns {
		out.Columns[k] = v
	}
	out.Indexes = append([]Index(nil), t.Indexes...)
	out.Constraints = append([]Constraint(nil), t.Constraints...)
	out.ForeignKeys = append([]ForeignKey(nil), t.ForeignKeys...)
	return &out
}

func TestDiff_Identical(t *testing.T) {
	assert.Empty(t, Diff(usersTable(), usersTable()))
}

func TestDiff_NamesIgnored(t *testing.T) {
	live := clone(usersTable())
	live.Indexes[0].Name = "users_unique_code_key"
	live.Constraints[0].Name = "users_unique_code_key"
	assert.Empty(t, Diff(usersTable(), live))
}

func TestDiff_ExtraLiveColumn(t *testing.T) {
	live := clone(usersTable())
	live.Columns["legacy_flag"] = Column{Name: "legacy_flag", Type: "BOOLEAN", Nullable: true}

	got := Diff(usersTable(), live)
	require.Len(t, got, 1)
	assert.Equal(t, "columns missing in model: legacy_flag", got[0])
}

func TestDiff_NullabilityMismatch(t *testing.T) {
	live := clone(usersTable())
	c := live.Columns["unique_code"]
	c.Nullable = true
	live.Columns["unique_code"] = c

	got := Diff(usersTable(), live)
	require.Len(t, got, 1)
	assert.Equal(t, "column 'unique_code' nullability mismatch: model=False, database=True", got[0])
}

func TestDiff_TypeMismatch(t *testing.T) {
	live := clone(usersTable())
	c := live.Columns["created_at"]
	c.Type = "TIMESTAMP"
	live.Columns["created_at"] = c

	got := Diff(usersTable(), live)
	assert.Equal(t, []string{"column 'created_at' type mismatch: model='DATETIME', database='TIMESTAMP'"}, got)
}

func TestDiff_Order(t *testing.T) {
	declared := clone(usersTable())
	declared.Columns["email"] = Column{Name: "email", Type: "VARCHAR(100)"}
	declared.Indexes = append(declared.Indexes, Index{Name: "ix_created", Columns: []string{"created_at"}})
	declared.Constraints = append(declared.Constraints, Constraint{Type: ConstraintUnique, Columns: []string{"email", "id"}})
	declared.ForeignKeys = []ForeignKey{{Column: "id", ReferencedTable: "accounts", ReferencedColumn: "id"}}

	live := clone(usersTable())
	live.Columns["legacy"] = Column{Name: "legacy", Type: "TEXT", Nullable: true}
	c := live.Columns["id"]
	c.PrimaryKey = false
	live.Columns["id"] = c

	got := Diff(declared, live)
	assert.Equal(t, []string{
		"columns missing in database: email",
		"columns missing in model: legacy",
		"column 'id' primary key mismatch: model=True, database=False",
		"indexes missing in database: index ix_created (created_at)",
		"unique constraints missing in database: unique:email,id",
		"foreign keys missing in database: id->accounts.id",
	}, got)
}

func TestDiff_Symmetric(t *testing.T) {
	a := clone(usersTable())
	a.Columns["email"] = Column{Name: "email", Type: "VARCHAR(100)"}
	a.Indexes = append(a.Indexes, Index{Columns: []string{"created_at", "id"}})
	a.Constraints = append(a.Constraints, Constraint{Type: ConstraintUnique, Columns: []string{"created_at", "id"}})
	a.ForeignKeys = []ForeignKey{{Column: "id", ReferencedTable: "accounts", ReferencedColumn: "id"}}
	b := usersTable()

	forward := Diff(a, b)
	backward := Diff(b, a)
	require.Len(t, backward, len(forward))

	swap := strings.NewReplacer("missing in database", "missing in model", "missing in model", "missing in database")
	for i := range forward {
		assert.Equal(t, forward[i], swap.Replace(backward[i]))
	}
}

func TestDiff_Idempotent(t *testing.T) {
	a := clone(usersTable())
	a.Columns["x"] = Column{Name: "x", Type: "INT"}
	a.Columns["y"] = Column{Name: "y", Type: "INT"}
	a.Constraints = append(a.Constraints,
		Constraint{Type: ConstraintUnique, Columns: []string{"x"}},
		Constraint{Type: ConstraintUnique, Columns: []string{"y"}},
	)
	b := usersTable()
	b.Columns["z"] = Column{Name: "z", Type: "INT"}

	first := Diff(a, b)
	for range 5 {
		assert.Equal(t, first, Diff(a, b))
	}
}

func TestDiff_ImplicitUniqueIndexSuppressed(t *testing.T) {
	declared := clone(usersTable())
	live := clone(usersTable())
	live.Indexes = append(live.Indexes,
		Index{Name: "users_created_at_key", Columns: []string{"created_at"}, Unique: true},
		Index{Name: "ix_pair", Columns: []string{"created_at", "id"}, Unique: true},
	)

	got := Diff(declared, live)
	assert.Equal(t, []string{"indexes missing in model: unique index ix_pair (created_at,id)"}, got)
}

func TestDiffWith_Minimal(t *testing.T) {
	live := clone(usersTable())
	c := live.Columns["created_at"]
	c.Unique = true
	live.Columns["created_at"] = c

	assert.Equal(t,
		[]string{"column 'created_at' uniqueness mismatch: model=False, database=True"},
		DiffWith(usersTable(), live, CompareFull))
	assert.Empty(t, DiffWith(usersTable(), live, CompareMinimal))
}

func TestParseCompareMode(t *testing.T) {
	m, err := ParseCompareMode("")
	require.NoError(t, err)
	assert.Equal(t, CompareFull, m)

	m, err = ParseCompareMode(" Minimal ")
	require.NoError(t, err)
	assert.Equal(t, CompareMinimal, m)
	assert.Equal(t, "minimal", m.String())

	_, err = ParseCompareMode("strict")
	assert.Error(t, err)
}
