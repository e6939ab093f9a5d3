//go:build integration

package cmd

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepath/roi-ingest/internal/config"
	"github.com/tradepath/roi-ingest/internal/lock"
	"github.com/tradepath/roi-ingest/internal/testutil/containers"
)

func TestFetchRegionSharesStateLock(t *testing.T) {
	rc := containers.NewRedisContainer(t)
	ctx := context.Background()
	runLock := lock.New(rc.Client, time.Minute, zerolog.Nop())

	// A single-state run for TX is in progress.
	release, err := runLock.Acquire(ctx, config.LockKey.WageStageLockKey("tx"), "wages-run")
	require.NoError(t, err)

	sweep := &app{lock: runLock, runID: uuid.New()}
	tx, err := config.LookupRegion("TX")
	require.NoError(t, err)
	ok, err := config.LookupRegion("OK")
	require.NoError(t, err)

	f := &stubRegionFetcher{}
	_, err = sweep.fetchRegion(ctx, f, tx)
	require.Error(t, err)
	assert.ErrorIs(t, err, lock.ErrHeld)
	assert.Empty(t, f.regions)

	_, err = sweep.fetchRegion(ctx, f, ok)
	require.NoError(t, err)
	assert.Equal(t, []string{"OK"}, f.regions)

	release()

	_, err = sweep.fetchRegion(ctx, f, tx)
	require.NoError(t, err)
	assert.Equal(t, []string{"OK", "TX"}, f.regions)

	// The region lock is released once the fetch returns.
	n, err := rc.Client.Exists(ctx, config.LockKey.WageStageLockKey("TX")).Result()
	require.NoError(t, err)
	assert.Zero(t, n)
}
