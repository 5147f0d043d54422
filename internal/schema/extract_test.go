package schema_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/koustreak/dbkit/internal/model"
	"github.com/koustreak/dbkit/internal/schema"
	"github.com/koustreak/dbkit/internal/schema/mocks"
)

type captureSink struct {
	warnings []string
}

func (c *captureSink) Debugf(string, ...any) {}
func (c *captureSink) Infof(string, ...any)  {}
func (c *captureSink) Errorf(string, ...any) {}
func (c *captureSink) Warnf(format string, args ...any) {
	c.warnings = append(c.warnings, fmt.Sprintf(format, args...))
}

func itemsModel() *model.Table {
	return &model.Table{
		Name: "items",
		Columns: []model.Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true, AutoIncrement: true},
			{Name: "unique_code", Type: "VARCHAR(50)", Unique: true},
			{Name: "status", Type: "VARCHAR(20)", Nullable: true, Default: &model.Default{Value: "active"}},
			{Name: "created_at", Type: "DATETIME", Default: &model.Default{Function: "now"}},
			{Name: "owner_id", Type: "INTEGER", Nullable: true, Reference: &model.Reference{Table: "owners", Column: "id"}},
		},
		UniqueConstraints: []model.UniqueConstraint{{Name: "uq_owner_code", Columns: []string{"owner_id", "unique_code"}}},
		Indexes:           []model.Index{{Name: "ix_status", Columns: []string{"status"}}},
	}
}

func TestFromModel(t *testing.T) {
	got := schema.FromModel(itemsModel())

	assert.Equal(t, "items", got.Name)
	require.Len(t, got.Columns, 5)
	assert.Equal(t, "active", got.Columns["status"].Default)
	assert.Equal(t, schema.FunctionDefaultPrefix+"now", got.Columns["created_at"].Default)
	assert.Nil(t, got.Columns["id"].Default)
	assert.True(t, got.Columns["unique_code"].Unique)
	assert.False(t, got.Columns["owner_id"].Unique)

	assert.Equal(t, []schema.Index{
		{Name: "ix_status", Columns: []string{"status"}},
		{Name: "uq_owner_code", Columns: []string{"owner_id", "unique_code"}, Unique: true},
	}, got.Indexes)
	assert.Equal(t, []schema.Constraint{
		{Type: schema.ConstraintUnique, Name: "uq_owner_code", Columns: []string{"owner_id", "unique_code"}},
		{Type: schema.ConstraintUnique, Name: "uq_items_unique_code", Columns: []string{"unique_code"}},
	}, got.Constraints)
	assert.Equal(t, []schema.ForeignKey{{Column: "owner_id", ReferencedTable: "owners", ReferencedColumn: "id"}}, got.ForeignKeys)
}

func TestFromModel_UniqueFromSingleColumnIndex(t *testing.T) {
	tbl := &model.Table{
		Name:    "t",
		Columns: []model.Column{{Name: "code", Type: "TEXT"}},
		Indexes: []model.Index{{Name: "ix_code", Columns: []string{"code"}, Unique: true}},
	}
	assert.True(t, schema.FromModel(tbl).Columns["code"].Unique)
}

func itemsReflection() *schema.Reflection {
	return &schema.Reflection{
		Columns: []schema.Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true, AutoIncrement: true},
			{Name: "unique_code", Type: "VARCHAR(50)"},
			{Name: "status", Type: "VARCHAR(20)", Nullable: true, Default: "'active'::character varying"},
			{Name: "created_at", Type: "TIMESTAMP", Default: "now()"},
		},
		Indexes: []schema.Index{
			{Name: "items_unique_code_key", Columns: []string{"unique_code"}, Unique: true},
		},
		Constraints: []schema.Constraint{{Name: "items_unique_code_key", Columns: []string{"unique_code"}}},
	}
}

func TestFromDatabase(t *testing.T) {
	ctrl := gomock.NewController(t)
	in := mocks.NewMockIntrospector(ctrl)
	ctx := context.Background()

	in.EXPECT().ReflectTable(ctx, "public", "items").Return(itemsReflection(), nil)
	in.EXPECT().UniqueConstraints(ctx, "public", "items").Return([]schema.Constraint{
		{Name: "items_unique_code_key", Columns: []string{"unique_code"}},
	}, nil)

	sink := &captureSink{}
	got, err := schema.FromDatabase(ctx, in, "public", "items", sink)
	require.NoError(t, err)

	assert.Empty(t, sink.warnings)
	assert.True(t, got.Columns["unique_code"].Unique)
	assert.Equal(t, "active", got.Columns["status"].Default)
	assert.Equal(t, schema.FunctionDefaultPrefix+"now", got.Columns["created_at"].Default)
	require.Len(t, got.Constraints, 1)
	assert.Equal(t, schema.ConstraintUnique, got.Constraints[0].Type)
}

func TestFromDatabase_CatalogFallback(t *testing.T) {
	ctrl := gomock.NewController(t)
	in := mocks.NewMockIntrospector(ctrl)

	in.EXPECT().ReflectTable(gomock.Any(), "", "items").Return(itemsReflection(), nil)
	in.EXPECT().UniqueConstraints(gomock.Any(), "", "items").Return(nil, errors.New("permission denied for information_schema"))

	sink := &captureSink{}
	got, err := schema.FromDatabase(context.Background(), in, "", "items", sink)
	require.NoError(t, err)

	require.Len(t, sink.warnings, 1)
	assert.Contains(t, sink.warnings[0], "items")
	assert.Equal(t, []schema.Constraint{
		{Type: schema.ConstraintUnique, Name: "items_unique_code_key", Columns: []string{"unique_code"}},
	}, got.Constraints)
}

func TestFromDatabase_ReflectionFailurePropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	in := mocks.NewMockIntrospector(ctrl)
	boom := errors.New("connection reset")

	in.EXPECT().ReflectTable(gomock.Any(), gomock.Any(), "items").Return(nil, boom)

	got, err := schema.FromDatabase(context.Background(), in, "", "items", &captureSink{})
	assert.Nil(t, got)
	assert.ErrorIs(t, err, boom)
}

func TestFromDatabase_NonTextDefault(t *testing.T) {
	ctrl := gomock.NewController(t)
	in := mocks.NewMockIntrospector(ctrl)

	refl := &schema.Reflection{Columns: []schema.Column{
		{Name: "id", Type: "INTEGER", PrimaryKey: true, Default: 7},
	}}
	in.EXPECT().ReflectTable(gomock.Any(), gomock.Any(), gomock.Any()).Return(refl, nil)
	in.EXPECT().UniqueConstraints(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, nil)

	got, err := schema.FromDatabase(context.Background(), in, "", "t", &captureSink{})
	require.NoError(t, err)
	assert.Equal(t, 7, got.Columns["id"].Default)
}

func TestParseDefault(t *testing.T) {
	tests := []struct {
		in   string
		want any
	}{
		{"", nil},
		{"NULL", nil},
		{"'active'::character varying", "active"},
		{"'it''s'", "it's"},
		{"now()", "FUNCTION: now"},
		{"nextval('items_id_seq'::regclass)", "FUNCTION: nextval"},
		{"CURRENT_TIMESTAMP", "FUNCTION: current_timestamp"},
		{"current_timestamp on update current_timestamp", "FUNCTION: current_timestamp"},
		{"0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, schema.ParseDefault(tt.in))
		})
	}
}

func TestEndToEnd_UniqueCodeNullability(t *testing.T) {
	declared := schema.FromModel(&model.Table{
		Name: "codes",
		Columns: []model.Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "unique_code", Type: "VARCHAR(50)", Unique: true},
		},
	})
	live := schema.FromModel(&model.Table{
		Name: "codes",
		Columns: []model.Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true},
			{Name: "unique_code", Type: "VARCHAR(50)", Unique: true, Nullable: true},
		},
	})

	got := schema.Diff(declared, live)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "unique_code")
	assert.Contains(t, got[0], "model=False")
	assert.Contains(t, got[0], "database=True")
}
