package etlerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	cause := errors.New("connection refused")

	assert.Equal(t, "page 3: request failed: connection refused",
		New(KindTransient, "page 3", "request failed", cause).Error())
	assert.Equal(t, "Configuration is missing or invalid.", New(KindConfig, "", "", nil).Error())
	assert.Nil(t, Wrap(KindConfig, "op", nil))
	assert.ErrorIs(t, Wrap(KindUpstream, "op", cause), cause)
}

func TestClassification(t *testing.T) {
	wrapped := fmt.Errorf("stage: %w", New(KindQuotaExhausted, "batch", "all keys exhausted", nil))

	assert.Equal(t, KindQuotaExhausted, KindOf(wrapped))
	assert.True(t, errors.Is(wrapped, &Error{Kind: KindQuotaExhausted}))
	assert.False(t, errors.Is(wrapped, &Error{Kind: KindConfig}))
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.False(t, IsKind(nil, KindInternal))

	tests := []struct {
		kind      Kind
		fatal     bool
		retryable bool
		exit      int
	}{
		{KindConfig, true, false, 2},
		{KindQuotaExhausted, true, false, 3},
		{KindNotFound, true, false, 4},
		{KindTransient, false, true, 1},
		{KindValidation, false, false, 1},
		{KindConflict, false, false, 1},
		{KindUpstream, false, false, 1},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			err := New(tt.kind, "op", "", nil)
			assert.Equal(t, tt.fatal, IsFatal(err))
			assert.Equal(t, tt.retryable, IsRetryable(err))
			assert.Equal(t, tt.exit, ExitCode(err))
			assert.NotEmpty(t, Describe(tt.kind))
		})
	}

	assert.Equal(t, 0, ExitCode(nil))
	assert.Equal(t, 1, ExitCode(errors.New("plain")))
}
