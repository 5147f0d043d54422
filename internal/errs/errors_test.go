package errs

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorString(t *testing.T) {
	assert.Equal(t, "[not_found] table missing", New(ErrKindNotFound, "table missing").Error())
	assert.Equal(t, "[timeout] slow: context deadline exceeded",
		Wrap(ErrKindTimeout, "slow", context.DeadlineExceeded).Error())
	assert.Equal(t, "[validation] 2 issues", Newf(ErrKindValidation, "%d issues", 2).Error())
}

func TestPredicatesTraverseChain(t *testing.T) {
	base := New(ErrKindConfiguration, "no primary key")
	wrapped := fmt.Errorf("replace users: %w", base)

	assert.True(t, IsConfiguration(wrapped))
	assert.False(t, IsValidation(wrapped))
	assert.Equal(t, ErrKindUnknown, KindOf(fmt.Errorf("plain")))
	assert.ErrorIs(t, Wrap(ErrKindTimeout, "x", context.Canceled), context.Canceled)
}

func TestKindNames(t *testing.T) {
	cases := map[ErrKind]string{
		ErrKindNotFound:      "not_found",
		ErrKindConflict:      "conflict",
		ErrKindValidation:    "validation",
		ErrKindConfiguration: "configuration",
		ErrKind(99):          "unknown",
	}
	for kind, want := range cases {
		assert.Equal(t, want, kind.String())
	}
}
