package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepath/roi-ingest/internal/config"
	"github.com/tradepath/roi-ingest/internal/etlerr"
)

var sweepRegions = []config.Region{
	{Abbr: "AL", FIPS: "01"},
	{Abbr: "AK", FIPS: "02"},
	{Abbr: "AZ", FIPS: "04"},
}

func TestSweepContinuesPastRegionFailure(t *testing.T) {
	var visited []string
	res, err := Sweep(context.Background(), sweepRegions, 0, func(_ context.Context, r config.Region) error {
		visited = append(visited, r.Abbr)
		if r.Abbr == "AK" {
			return errors.New("database hiccup")
		}
		return nil
	}, nopLog)

	require.NoError(t, err)
	assert.Equal(t, []string{"AL", "AK", "AZ"}, visited)
	assert.Equal(t, []string{"AL", "AZ"}, res.Succeeded)
	assert.Contains(t, res.Failed, "AK")
}

func TestSweepStopsOnFatal(t *testing.T) {
	var visited []string
	res, err := Sweep(context.Background(), sweepRegions, 0, func(_ context.Context, r config.Region) error {
		visited = append(visited, r.Abbr)
		if r.Abbr == "AK" {
			return etlerr.New(etlerr.KindQuotaExhausted, "wage batch", "all 2 API keys exhausted", nil)
		}
		return nil
	}, nopLog)

	require.Error(t, err)
	assert.True(t, etlerr.IsKind(err, etlerr.KindQuotaExhausted))
	assert.Equal(t, []string{"AL", "AK"}, visited)
	assert.Equal(t, []string{"AL"}, res.Succeeded)
}

func TestSweepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	_, err := Sweep(ctx, sweepRegions, 0, func(context.Context, config.Region) error {
		calls++
		cancel()
		return nil
	}, nopLog)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
