package model

import (
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/koustreak/dbkit/internal/errs"
)

type account struct {
	ID        int64     `db:"primaryKey;autoIncrement"`
	OrgID     int64     `db:"column:org_id;uniqueConstraint:uq_org_email;foreignKey:orgs.id"`
	Email     string    `db:"type:VARCHAR(120);uniqueConstraint:uq_org_email"`
	Handle    string    `db:"unique"`
	Nickname  *string   `db:"index"`
	CreatedAt time.Time `db:"defaultFunc:now"`
	Status    string    `db:"default:active;uniqueIndex:ix_status_created"`
	Internal  string    `db:"-"`
	hidden    string
}

func (account) TableName() string  { return "accounts" }
func (account) SchemaName() string { return "public" }

func (account) TableConstraints() []UniqueConstraint {
	return []UniqueConstraint{{Columns: []string{"handle", "status"}}}
}

func TestParse(t *testing.T) {
	tbl, err := Parse(&account{})
	require.NoError(t, err)

	assert.Equal(t, "accounts", tbl.Name)
	assert.Equal(t, "public.accounts", tbl.String())
	assert.Equal(t, []string{"id", "org_id", "email", "handle", "nickname", "created_at", "status"}, tbl.ColumnNames())
	assert.Equal(t, []string{"id"}, tbl.PrimaryKey())

	id, _ := tbl.Column("id")
	assert.True(t, id.AutoIncrement)
	assert.False(t, id.Nullable)
	assert.Equal(t, "BIGINT", id.Type)

	email, _ := tbl.Column("email")
	assert.Equal(t, "VARCHAR(120)", email.Type)

	nick, _ := tbl.Column("nickname")
	assert.True(t, nick.Nullable)

	org, _ := tbl.Column("org_id")
	require.NotNil(t, org.Reference)
	assert.Equal(t, "orgs.id", org.Reference.String())

	created, _ := tbl.Column("created_at")
	assert.Equal(t, "DATETIME", created.Type)
	assert.Equal(t, "now", created.Default.Function)

	assert.Equal(t, []UniqueConstraint{
		{Name: "uq_org_email", Columns: []string{"org_id", "email"}},
		{Columns: []string{"handle", "status"}},
	}, tbl.UniqueConstraints)
	assert.Equal(t, []Index{
		{Name: "ix_accounts_nickname", Columns: []string{"nickname"}},
		{Name: "ix_status_created", Columns: []string{"status"}, Unique: true},
	}, tbl.Indexes)

	again, err := Parse(account{})
	require.NoError(t, err)
	assert.Same(t, tbl, again)
}

func TestParse_Errors(t *testing.T) {
	_, err := Parse(42)
	assert.True(t, errs.IsConfiguration(err))

	type badRef struct {
		X int `db:"foreignKey:nodot"`
	}
	_, err = Parse(badRef{})
	assert.True(t, errs.IsConfiguration(err))

	type untyped struct {
		Tags []string
	}
	_, err = Parse(untyped{})
	assert.True(t, errs.IsConfiguration(err))
}

func TestSnakeCase(t *testing.T) {
	cases := map[string]string{
		"ID":         "id",
		"UserID":     "user_id",
		"CreatedAt":  "created_at",
		"HTTPServer": "http_server",
		"Address2":   "address2",
	}
	for in, want := range cases {
		assert.Equal(t, want, snakeCase(in), in)
	}
}

func TestDecodeDefinitions(t *testing.T) {
	src := `
tables:
  - name: users
    columns:
      - {name: id, type: INTEGER, primary_key: true, autoincrement: true}
      - {name: email, type: VARCHAR(255), nullable: false, unique: true}
      - {name: org_id, type: INTEGER, references: orgs.id}
      - {name: created_at, type: DATETIME, default_function: now}
    unique_constraints:
      - columns: [org_id, email]
    indexes:
      - {name: ix_users_created, columns: [created_at]}
`
	tables, err := DecodeDefinitions(strings.NewReader(src))
	require.NoError(t, err)
	require.Len(t, tables, 1)

	users := tables[0]
	assert.Equal(t, "users", users.Name)
	id, _ := users.Column("id")
	assert.False(t, id.Nullable)
	org, _ := users.Column("org_id")
	assert.True(t, org.Nullable)
	assert.Equal(t, "orgs", org.Reference.Table)
	assert.Equal(t, []UniqueConstraint{{Columns: []string{"org_id", "email"}}}, users.UniqueConstraints)
}

func TestDecodeDefinitions_Invalid(t *testing.T) {
	cases := map[string]string{
		"unknown field":    "tables: [{name: t, colums: []}]",
		"unknown column":   "tables: [{name: t, columns: [{name: a, type: INT}], indexes: [{columns: [b]}]}]",
		"duplicate table":  "tables: [{name: t, columns: [{name: a, type: INT}]}, {name: t, columns: [{name: a, type: INT}]}]",
		"missing type":     "tables: [{name: t, columns: [{name: a}]}]",
		"duplicate column": "tables: [{name: t, columns: [{name: a, type: INT}, {name: a, type: INT}]}]",
		"no columns":       "tables: [{name: t}]",
	}
	for name, src := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeDefinitions(strings.NewReader(src))
			assert.True(t, errs.IsConfiguration(err), "%v", err)
		})
	}
}

type mapped struct{ id int }

func (m mapped) ToMap() map[string]any { return map[string]any{"id": m.id, "extra": 1} }

func TestNewRecord(t *testing.T) {
	tbl := MustParse(account{})
	nick := "nick"

	fromStruct, err := NewRecord(tbl, &account{ID: 7, Email: "a@b.c", Nickname: &nick})
	require.NoError(t, err)
	assert.Equal(t, int64(7), fromStruct.GetField("id"))
	assert.Equal(t, "nick", fromStruct.GetField("nickname"))
	assert.Len(t, fromStruct.Columns(), 7)

	fromMap, err := NewRecord(tbl, map[string]any{"email": "x", "unknown": 1, "nickname": (*string)(nil)})
	require.NoError(t, err)
	assert.Equal(t, []string{"email", "nickname"}, fromMap.Columns())
	v, ok := fromMap.Get("nickname")
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, []any{"x", nil}, fromMap.Values([]string{"email", "handle"}))

	fromMapper, err := NewRecord(tbl, mapped{id: 3})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": 3}, fromMapper.Map())

	_, err = NewRecord(tbl, 5)
	assert.True(t, errs.IsInvalidInput(err))
	_, err = NewRecord(tbl, nil)
	assert.True(t, errs.IsInvalidInput(err))
}

func TestNormalize(t *testing.T) {
	v, err := Normalize(sql.NullString{String: "x", Valid: true})
	require.NoError(t, err)
	assert.Equal(t, "x", v)

	v, err = Normalize(sql.NullInt64{})
	require.NoError(t, err)
	assert.Nil(t, v)

	n := 4
	v, err = Normalize(&n)
	require.NoError(t, err)
	assert.Equal(t, 4, v)
}
