package lock

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilClientIsNoop(t *testing.T) {
	l := New(nil, 0, zerolog.Nop())
	assert.Equal(t, DefaultTTL, l.ttl)

	release, err := l.Acquire(context.Background(), "etl:lock:harvest", "run-1")
	require.NoError(t, err)
	release()

	var nilLock *RunLock
	release, err = nilLock.Acquire(context.Background(), "k", "t")
	require.NoError(t, err)
	release()
}
