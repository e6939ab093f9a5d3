package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/tradepath/roi-ingest/internal/config"
	"github.com/tradepath/roi-ingest/internal/etlerr"
	"github.com/tradepath/roi-ingest/internal/retry"
)

// RegionFunc runs one region of a sweep.
type RegionFunc func(ctx context.Context, region config.Region) error

// SweepResult lists how each region ended.
type SweepResult struct {
	Succeeded []string
	Failed    map[string]error
}

// Sweep runs fn for each region in order with a pause between regions.
// A failed region is recorded and the sweep moves on; a fatal error (such
// as an exhausted credential pool) or cancellation stops it.
func Sweep(ctx context.Context, regions []config.Region, pause time.Duration, fn RegionFunc, log zerolog.Logger) (SweepResult, error) {
	res := SweepResult{Failed: make(map[string]error)}
	log = log.With().Str("component", "sweep").Logger()

	for i, region := range regions {
		if i > 0 {
			if err := retry.Sleep(ctx, pause); err != nil {
				return res, err
			}
		}

		log.Info().Str("region", region.Abbr).Int("n", i+1).Int("of", len(regions)).Msg("Starting region")
		err := fn(ctx, region)
		if err == nil {
			res.Succeeded = append(res.Succeeded, region.Abbr)
			continue
		}
		if ctx.Err() != nil {
			return res, ctx.Err()
		}

		res.Failed[region.Abbr] = err
		if etlerr.IsFatal(err) {
			log.Error().Err(err).Str("region", region.Abbr).Msg("Stopping sweep")
			return res, err
		}
		log.Error().Err(err).Str("region", region.Abbr).Msg("Region failed, continuing")
	}
	return res, nil
}
