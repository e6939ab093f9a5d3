//go:build integration

package lock

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepath/roi-ingest/internal/etlerr"
	"github.com/tradepath/roi-ingest/internal/testutil/containers"
)

func TestRunLock(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	l := New(rc.Client, time.Minute, zerolog.Nop())

	release, err := l.Acquire(ctx, "etl:lock:harvest", "run-1")
	require.NoError(t, err)

	_, err = l.Acquire(ctx, "etl:lock:harvest", "run-2")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrHeld)
	assert.True(t, etlerr.IsKind(err, etlerr.KindConfig))
	assert.Contains(t, err.Error(), "run-1")

	ttl, err := rc.Client.TTL(ctx, "etl:lock:harvest").Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	release()

	release2, err := l.Acquire(ctx, "etl:lock:harvest", "run-2")
	require.NoError(t, err)

	// A stale release from the first run must not drop the second run's lock.
	release()
	held, err := rc.Client.Get(ctx, "etl:lock:harvest").Result()
	require.NoError(t, err)
	assert.Equal(t, "run-2", held)
	release2()
}
