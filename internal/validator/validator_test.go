package validator

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/koustreak/dbkit/internal/errs"
	"github.com/koustreak/dbkit/internal/model"
	"github.com/koustreak/dbkit/internal/schema"
	"github.com/koustreak/dbkit/internal/schema/mocks"
)

func codesModel() *model.Table {
	return &model.Table{
		Name: "codes",
		Columns: []model.Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true, AutoIncrement: true},
			{Name: "unique_code", Type: "VARCHAR(50)"},
		},
		UniqueConstraints: []model.UniqueConstraint{{Name: "uq_code", Columns: []string{"unique_code"}}},
	}
}

func codesReflection() *schema.Reflection {
	idx := []schema.Index{{Name: "codes_unique_code_key", Columns: []string{"unique_code"}, Unique: true}}
	return &schema.Reflection{
		Columns: []schema.Column{
			{Name: "id", Type: "INTEGER", PrimaryKey: true, AutoIncrement: true},
			{Name: "unique_code", Type: "VARCHAR(50)"},
		},
		Indexes:     idx,
		Constraints: schema.UniqueFromIndexes(idx),
	}
}

func expectLive(in *mocks.MockIntrospector, table string, refl *schema.Reflection) {
	in.EXPECT().TableExists(gomock.Any(), "", table).Return(true, nil)
	in.EXPECT().ReflectTable(gomock.Any(), "", table).Return(refl, nil)
	in.EXPECT().UniqueConstraints(gomock.Any(), "", table).Return(refl.Constraints, nil)
}

func TestValidate_Identical(t *testing.T) {
	in := mocks.NewMockIntrospector(gomock.NewController(t))
	expectLive(in, "codes", codesReflection())

	res, err := New(in).Validate(context.Background(), codesModel(), true)
	require.NoError(t, err)
	assert.True(t, res.Valid)
	assert.True(t, res.TableExists)
	assert.Empty(t, res.Errors)
	assert.NotNil(t, res.Model)
	assert.NotNil(t, res.Database)
}

func uniqueCodeNullable(t *testing.T, strict bool) (*Result, error) {
	in := mocks.NewMockIntrospector(gomock.NewController(t))
	refl := codesReflection()
	refl.Columns[1].Nullable = true
	expectLive(in, "codes", refl)

	m := codesModel()
	m.UniqueConstraints = nil
	m.Columns[1].Unique = true
	return New(in).Validate(context.Background(), m, strict)
}

func TestValidate_NullabilityMismatch(t *testing.T) {
	res, err := uniqueCodeNullable(t, false)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "unique_code")
	assert.Contains(t, res.Errors[0], "False")
	assert.Contains(t, res.Errors[0], "True")
}

func TestValidate_NullabilityMismatchStrict(t *testing.T) {
	res, err := uniqueCodeNullable(t, true)
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	assert.Contains(t, err.Error(), "1 error(s)")
	assert.Contains(t, err.Error(), "unique_code")
	assert.Contains(t, err.Error(), "model=False, database=True")
	require.NotNil(t, res)
	assert.False(t, res.Valid)
}

func TestValidate_ExtraLiveColumn(t *testing.T) {
	in := mocks.NewMockIntrospector(gomock.NewController(t))
	refl := codesReflection()
	refl.Columns = append([]schema.Column{{Name: "legacy_flag", Type: "BOOLEAN", Nullable: true}}, refl.Columns...)
	expectLive(in, "codes", refl)

	res, err := New(in).Validate(context.Background(), codesModel(), false)
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "columns missing in model: legacy_flag", res.Errors[0])
}

func TestValidate_NotFound(t *testing.T) {
	in := mocks.NewMockIntrospector(gomock.NewController(t))
	in.EXPECT().TableExists(gomock.Any(), "app", "codes").Return(false, nil).Times(2)

	v := New(in, WithSchema("app"))

	res, err := v.Validate(context.Background(), codesModel(), false)
	require.NoError(t, err)
	assert.False(t, res.Valid)
	assert.False(t, res.TableExists)
	assert.Equal(t, []string{`table "codes" not found in database`}, res.Errors)

	_, err = v.Validate(context.Background(), codesModel(), true)
	require.Error(t, err)
	assert.True(t, errs.IsNotFound(err))
	assert.Contains(t, err.Error(), `table "codes" not found`)
}

func TestValidate_ModelSchemaWins(t *testing.T) {
	in := mocks.NewMockIntrospector(gomock.NewController(t))
	in.EXPECT().TableExists(gomock.Any(), "billing", "codes").Return(false, nil)

	m := codesModel()
	m.Schema = "billing"
	_, err := New(in, WithSchema("app")).Validate(context.Background(), m, false)
	require.NoError(t, err)
}

func TestValidate_FatalErrorPropagates(t *testing.T) {
	in := mocks.NewMockIntrospector(gomock.NewController(t))
	boom := errs.New(errs.ErrKindConnectionFailed, "connection refused")
	in.EXPECT().TableExists(gomock.Any(), gomock.Any(), "codes").Return(true, nil)
	in.EXPECT().ReflectTable(gomock.Any(), gomock.Any(), "codes").Return(nil, boom)

	res, err := New(in).Validate(context.Background(), codesModel(), false)
	assert.Nil(t, res)
	assert.True(t, errs.IsConnectionFailed(err))
}

func TestValidateAll(t *testing.T) {
	in := mocks.NewMockIntrospector(gomock.NewController(t))
	expectLive(in, "codes", codesReflection())
	in.EXPECT().TableExists(gomock.Any(), "", "missing").Return(false, nil)
	in.EXPECT().TableExists(gomock.Any(), "", "broken").Return(false, errors.New("connection reset"))

	tables := []*model.Table{
		codesModel(),
		{Name: "missing", Columns: []model.Column{{Name: "id", Type: "INT", PrimaryKey: true}}},
		{Name: "broken", Columns: []model.Column{{Name: "id", Type: "INT", PrimaryKey: true}}},
	}

	batch, err := New(in).ValidateAll(context.Background(), tables, false)
	require.NoError(t, err)
	assert.False(t, batch.AllValid)
	assert.Equal(t, []string{"codes", "missing", "broken"}, batch.Tables)
	assert.True(t, batch.Results["codes"].Valid)
	assert.False(t, batch.Results["missing"].TableExists)
	assert.False(t, batch.Results["broken"].Valid)
	assert.Contains(t, batch.Results["broken"].Error, "connection reset")
	assert.Len(t, batch.Failed(), 2)
}

func TestValidateAll_Strict(t *testing.T) {
	in := mocks.NewMockIntrospector(gomock.NewController(t))
	in.EXPECT().TableExists(gomock.Any(), "", "a").Return(false, nil)
	in.EXPECT().TableExists(gomock.Any(), "", "b").Return(false, errors.New("timeout"))

	tables := []*model.Table{{Name: "a"}, {Name: "b"}}
	batch, err := New(in).ValidateAll(context.Background(), tables, true)
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	require.NotNil(t, batch)

	msg := err.Error()
	assert.Contains(t, msg, "2 of 2 table(s)")
	ia := strings.Index(msg, `a: table "a" not found in database`)
	ib := strings.Index(msg, "b: check table b: timeout")
	assert.GreaterOrEqual(t, ia, 0)
	assert.Greater(t, ib, ia)
}

func TestValidateAll_AllValidStrict(t *testing.T) {
	in := mocks.NewMockIntrospector(gomock.NewController(t))
	expectLive(in, "codes", codesReflection())

	batch, err := New(in).ValidateAll(context.Background(), []*model.Table{codesModel()}, true)
	require.NoError(t, err)
	assert.True(t, batch.AllValid)
}

func TestValidateAll_Empty(t *testing.T) {
	batch, err := New(nil).ValidateAll(context.Background(), nil, true)
	require.NoError(t, err)
	assert.True(t, batch.AllValid)
	assert.Empty(t, batch.Results)
}
