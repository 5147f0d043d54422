package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dbkit/internal/model"
)

func TestUniqueConstraints_CompositeAndSingle(t *testing.T) {
	tbl := &model.Table{
		Name: "items",
		Columns: []model.Column{
			{Name: "a", Type: "INTEGER"},
			{Name: "b", Type: "INTEGER"},
			{Name: "c", Type: "VARCHAR(20)", Unique: true},
		},
		UniqueConstraints: []model.UniqueConstraint{{Name: "uq_ab", Columns: []string{"a", "b"}}},
	}

	got := UniqueConstraints(tbl)
	require.Len(t, got, 2)
	assert.Equal(t, Constraint{Type: ConstraintUnique, Name: "uq_ab", Columns: []string{"a", "b"}}, got[0])
	assert.Equal(t, Constraint{Type: ConstraintUnique, Name: "uq_items_c", Columns: []string{"c"}}, got[1])
}

func TestUniqueConstraints_Dedup(t *testing.T) {
	tbl := &model.Table{
		Name: "users",
		Columns: []model.Column{
			{Name: "email", Unique: true},
			{Name: "tenant"},
			{Name: "code", Unique: true},
		},
		UniqueConstraints: []model.UniqueConstraint{
			{Columns: []string{"email"}},
			{Columns: []string{"tenant", "code"}},
		},
		Indexes: []model.Index{
			{Columns: []string{"code", "tenant"}, Unique: true},
			{Name: "ix_plain", Columns: []string{"tenant"}},
			{Columns: []string{"code"}, Unique: true},
		},
	}

	got := UniqueConstraints(tbl)
	require.Len(t, got, 3)
	assert.Equal(t, "uq_email", got[0].Name)
	assert.Equal(t, "uq_tenant_code", got[1].Name)
	assert.Equal(t, "ix_code", got[2].Name)
	assert.Equal(t, []string{"code"}, got[2].Columns)
}

func TestUniqueConstraints_None(t *testing.T) {
	tbl := &model.Table{Name: "logs", Columns: []model.Column{{Name: "id", PrimaryKey: true}}}
	assert.Empty(t, UniqueConstraints(tbl))
}

func TestUniqueConstraints_PrimaryKeySkipped(t *testing.T) {
	tbl := &model.Table{Name: "codes", Columns: []model.Column{
		{Name: "code", PrimaryKey: true, Unique: true},
		{Name: "alias", Unique: true},
	}}
	got := UniqueConstraints(tbl)
	require.Len(t, got, 1)
	assert.Equal(t, "uq_codes_alias", got[0].Name)
}

func TestSignatures(t *testing.T) {
	assert.Equal(t, "unique:a,b", constraintSignature(Constraint{Columns: []string{"b", "a"}}))
	assert.Equal(t, "a,b|unique", indexSignature(Index{Columns: []string{"b", "a"}, Unique: true}))
	assert.Equal(t, "a,b", indexSignature(Index{Columns: []string{"b", "a"}}))
	assert.Equal(t, "user_id->users.id", foreignKeySignature(ForeignKey{Column: "user_id", ReferencedTable: "users", ReferencedColumn: "id"}))
}
