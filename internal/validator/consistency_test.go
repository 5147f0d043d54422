package validator

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"github.com/koustreak/dbkit/internal/errs"
	"github.com/koustreak/dbkit/internal/schema"
	"github.com/koustreak/dbkit/internal/schema/mocks"
)

func driftingIntrospector(t *testing.T) *mocks.MockIntrospector {
	in := mocks.NewMockIntrospector(gomock.NewController(t))
	refl := codesReflection()
	refl.Columns = append(refl.Columns, schema.Column{Name: "legacy_flag", Type: "BOOLEAN", Nullable: true})
	expectLive(in, "codes", refl)
	return in
}

func TestConsistencyCheck_Valid(t *testing.T) {
	in := mocks.NewMockIntrospector(gomock.NewController(t))
	expectLive(in, "codes", codesReflection())

	ok, err := ConsistencyCheck(context.Background(), New(in), codesModel(), PromptOptions{HaltOnError: true})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestConsistencyCheck_NoHalt(t *testing.T) {
	ok, err := ConsistencyCheck(context.Background(), New(driftingIntrospector(t)), codesModel(), PromptOptions{})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConsistencyCheck_OperatorContinues(t *testing.T) {
	var out bytes.Buffer
	opts := PromptOptions{HaltOnError: true, In: strings.NewReader("Yes\n"), Out: &out}

	ok, err := ConsistencyCheck(context.Background(), New(driftingIntrospector(t)), codesModel(), opts)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Contains(t, out.String(), "1. columns missing in model: legacy_flag")
	assert.Contains(t, out.String(), "(y/N)")
}

func TestConsistencyCheck_OperatorStops(t *testing.T) {
	for _, answer := range []string{"\n", "n\n", "maybe\n", ""} {
		opts := PromptOptions{HaltOnError: true, In: strings.NewReader(answer), Out: &bytes.Buffer{}}
		ok, err := ConsistencyCheck(context.Background(), New(driftingIntrospector(t)), codesModel(), opts)
		assert.False(t, ok)
		require.Error(t, err, "answer %q", answer)
		assert.True(t, errs.IsValidation(err))
	}
}

func TestConsistencyCheck_ExtractionFailure(t *testing.T) {
	in := mocks.NewMockIntrospector(gomock.NewController(t))
	in.EXPECT().TableExists(gomock.Any(), gomock.Any(), gomock.Any()).Return(false, errors.New("no route to host")).Times(2)

	ok, err := ConsistencyCheck(context.Background(), New(in), codesModel(), PromptOptions{})
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = ConsistencyCheck(context.Background(), New(in), codesModel(), PromptOptions{HaltOnError: true})
	require.Error(t, err)
	assert.True(t, errs.IsValidation(err))
	assert.Contains(t, err.Error(), "no route to host")
}
