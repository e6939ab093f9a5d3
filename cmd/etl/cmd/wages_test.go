package cmd

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tradepath/roi-ingest/internal/config"
	"github.com/tradepath/roi-ingest/internal/lock"
	"github.com/tradepath/roi-ingest/internal/service"
)

type stubRegionFetcher struct {
	regions []string
}

func (s *stubRegionFetcher) Run(_ context.Context, region config.Region) (service.WageStats, error) {
	s.regions = append(s.regions, region.Abbr)
	return service.WageStats{Codes: 2, Inserted: 2}, nil
}

func TestFetchRegionWithoutRedis(t *testing.T) {
	a := &app{lock: lock.New(nil, 0, zerolog.Nop()), runID: uuid.New()}
	region, err := config.LookupRegion("tx")
	require.NoError(t, err)

	f := &stubRegionFetcher{}
	stats, err := a.fetchRegion(context.Background(), f, region)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Inserted)
	assert.Equal(t, []string{"TX"}, f.regions)
}
