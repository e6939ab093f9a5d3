package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tradepath/roi-ingest/internal/config"
	"github.com/tradepath/roi-ingest/internal/credential"
	"github.com/tradepath/roi-ingest/internal/etlerr"
	"github.com/tradepath/roi-ingest/internal/metrics"
	"github.com/tradepath/roi-ingest/internal/model"
	"github.com/tradepath/roi-ingest/internal/retry"
	"github.com/tradepath/roi-ingest/internal/wageapi"
)

// SeriesSource posts wage series queries.
type SeriesSource interface {
	Fetch(ctx context.Context, req wageapi.Request) (*wageapi.Response, error)
}

// WageWriter persists wage records.
type WageWriter interface {
	InsertWages(ctx context.Context, records []model.WageRecord) (int, error)
}

// BatchState is the lifecycle of one wage batch.
type BatchState int

const (
	BatchPending BatchState = iota
	BatchRequesting
	BatchSuccess
	BatchRateLimited
	BatchNetworkError
	BatchFailed
)

func (s BatchState) String() string {
	switch s {
	case BatchPending:
		return "pending"
	case BatchRequesting:
		return "requesting"
	case BatchSuccess:
		return "success"
	case BatchRateLimited:
		return "rate_limited"
	case BatchNetworkError:
		return "network_error"
	default:
		return "failed"
	}
}

// WageOptions configures a WageFetcher.
type WageOptions struct {
	BatchSize  int
	WithMedian bool
	StartYear  int
	EndYear    int
	Cooldown   time.Duration
	Politeness time.Duration
	Retry      retry.Policy
}

// WageStats summarizes one wage fetch.
type WageStats struct {
	Codes            int
	Batches          int
	BatchesSucceeded int
	BatchesFailed    int
	Series           int
	Records          int
	Inserted         int
	Discarded        int
	Rotations        int
}

// WageFetcher fetches annual wages for every crosswalk occupation in a region.
type WageFetcher struct {
	api     SeriesSource
	codes   OccupationSource
	writer  WageWriter
	pool    *credential.Pool
	opts    WageOptions
	runID   uuid.UUID
	metrics *metrics.Metrics
	log     zerolog.Logger
}

// NewWageFetcher creates a WageFetcher. The pool is shared across regions of
// one run so rotations carry over.
func NewWageFetcher(api SeriesSource, codes OccupationSource, writer WageWriter, pool *credential.Pool,
	opts WageOptions, runID uuid.UUID, m *metrics.Metrics, log zerolog.Logger) *WageFetcher {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 40
	}
	if opts.EndYear == 0 {
		opts.EndYear = time.Now().Year() - 1
	}
	if opts.StartYear == 0 {
		opts.StartYear = opts.EndYear - 1
	}
	return &WageFetcher{
		api:     api,
		codes:   codes,
		writer:  writer,
		pool:    pool,
		opts:    opts,
		runID:   runID,
		metrics: m,
		log:     log.With().Str("component", "wage_fetcher").Str("run_id", runID.String()).Logger(),
	}
}

// batchSize is the number of occupation codes per request. Requesting the
// median series halves it so one request stays within the series limit.
func (f *WageFetcher) batchSize() int {
	size := f.opts.BatchSize
	perCode := 1
	if f.opts.WithMedian {
		size /= 2
		perCode = 2
	}
	if maxCodes := wageapi.MaxSeriesPerRequest / perCode; size > maxCodes {
		size = maxCodes
	}
	if size < 1 {
		size = 1
	}
	return size
}

// Run fetches wages for region. Quota exhaustion of the whole credential
// pool ends the run with a QuotaExhausted error; any other batch failure is
// counted and the next batch proceeds.
func (f *WageFetcher) Run(ctx context.Context, region config.Region) (WageStats, error) {
	var stats WageStats
	start := time.Now()
	defer f.metrics.ObserveStage("wages", start)

	log := f.log.With().Str("region", region.Abbr).Str("fips", region.FIPS).Logger()
	rotationsBefore := f.pool.Rotations()

	codes, err := f.codes.DistinctSOCCodes(ctx)
	if err != nil {
		return stats, fmt.Errorf("list occupation codes: %w", err)
	}
	codes = cleanOccupationCodes(codes)
	stats.Codes = len(codes)
	if len(codes) == 0 {
		log.Warn().Msg("No occupation codes in the crosswalk, nothing to fetch")
		return stats, nil
	}

	titles, err := f.codes.TitlesBySOC(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Could not load occupation titles, using placeholder")
		titles = nil
	}

	batches := wageapi.Chunk(codes, f.batchSize())
	log.Info().
		Int("codes", len(codes)).
		Int("batches", len(batches)).
		Int("credentials", f.pool.Size()).
		Bool("with_median", f.opts.WithMedian).
		Msg("Fetching wages")

	for i, batch := range batches {
		if i > 0 {
			if err := retry.Sleep(ctx, f.opts.Politeness); err != nil {
				return stats, err
			}
		}
		stats.Batches++

		ids, refs := wageapi.BuildSeries(region.FIPS, batch, f.opts.WithMedian)
		state, resp, err := f.fetchBatch(ctx, ids, log)
		stats.Rotations = f.pool.Rotations() - rotationsBefore

		if state != BatchSuccess {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			if etlerr.IsFatal(err) {
				log.Error().Err(err).Int("batch", i).Msg("Credential pool exhausted, aborting")
				return stats, err
			}
			stats.BatchesFailed++
			f.metrics.BatchFailed()
			log.Error().Err(err).Int("batch", i).Str("state", state.String()).Msg("Skipping wage batch")
			continue
		}

		stats.Series += len(resp.Results.Series)
		records, discarded := buildWageRecords(resp, refs, region, titles, f.runID)
		stats.Discarded += discarded

		inserted, err := f.writer.InsertWages(ctx, records)
		if err != nil {
			if ctx.Err() != nil {
				return stats, ctx.Err()
			}
			stats.BatchesFailed++
			f.metrics.BatchFailed()
			log.Error().Err(err).Int("batch", i).Msg("Failed to store wage batch")
			continue
		}

		stats.BatchesSucceeded++
		stats.Records += len(records)
		stats.Inserted += inserted
		log.Info().
			Int("batch", i).
			Int("series", len(resp.Results.Series)).
			Int("records", len(records)).
			Int("inserted", inserted).
			Msg("Wage batch stored")
	}

	log.Info().
		Int("batches_ok", stats.BatchesSucceeded).
		Int("batches_failed", stats.BatchesFailed).
		Int("inserted", stats.Inserted).
		Int("rotations", stats.Rotations).
		Msg("Wage fetch finished")

	return stats, nil
}

// fetchBatch drives one batch through its states. A quota reply rotates the
// credential and retries the same batch until the pool has cycled.
func (f *WageFetcher) fetchBatch(ctx context.Context, ids []string, log zerolog.Logger) (BatchState, *wageapi.Response, error) {
	state := BatchPending
	log.Debug().Int("series", len(ids)).Str("state", state.String()).Msg("Batch queued")

	for {
		state = BatchRequesting
		log.Debug().Int("key_index", f.pool.Index()+1).Str("state", state.String()).Msg("Requesting batch")
		req := wageapi.Request{
			SeriesID:        ids,
			RegistrationKey: f.pool.Current(),
			StartYear:       strconv.Itoa(f.opts.StartYear),
			EndYear:         strconv.Itoa(f.opts.EndYear),
		}

		var resp *wageapi.Response
		err := f.opts.Retry.Do(ctx, func(ctx context.Context) error {
			var err error
			resp, err = f.api.Fetch(ctx, req)
			return err
		}, func(attempt int, err error, wait time.Duration) {
			log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", wait).Msg("Wage request failed, retrying")
		})

		switch {
		case err == nil:
			f.pool.MarkSuccess()
			return BatchSuccess, resp, nil

		case ctx.Err() != nil:
			return BatchFailed, nil, ctx.Err()

		case etlerr.IsKind(err, etlerr.KindQuotaExhausted):
			state = BatchRateLimited
			exhausted := f.pool.Index()
			cycled := f.pool.Rotate()
			f.metrics.KeyRotated()
			log.Warn().
				Str("key", credential.Mask(req.RegistrationKey)).
				Int("key_index", exhausted+1).
				Int("keys", f.pool.Size()).
				Str("state", state.String()).
				Msg("API key exhausted, rotating")

			if cycled {
				return BatchFailed, nil, etlerr.New(etlerr.KindQuotaExhausted, "wage batch",
					fmt.Sprintf("all %d API keys exhausted", f.pool.Size()), err)
			}
			if err := retry.Sleep(ctx, f.opts.Cooldown); err != nil {
				return BatchFailed, nil, err
			}

		case etlerr.IsKind(err, etlerr.KindTransient):
			return BatchNetworkError, nil, err

		default:
			return BatchFailed, nil, err
		}
	}
}

var socCodeShape = strings.NewReplacer("-", "")

// cleanOccupationCodes trims, drops blanks and malformed codes, de-duplicates
// and sorts.
func cleanOccupationCodes(codes []string) []string {
	seen := make(map[string]struct{}, len(codes))
	out := make([]string, 0, len(codes))
	for _, c := range codes {
		c = strings.TrimSpace(c)
		if len(socCodeShape.Replace(c)) != 6 {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

// buildWageRecords turns a response into one record per occupation and
// period, merging mean and median series. Non-numeric values are discarded.
func buildWageRecords(resp *wageapi.Response, refs wageapi.SeriesMap, region config.Region,
	titles map[string]string, runID uuid.UUID) ([]model.WageRecord, int) {
	type key struct {
		soc    string
		year   int
		period string
	}

	byKey := make(map[key]*model.WageRecord)
	discarded := 0

	for _, s := range resp.Results.Series {
		ref, ok := refs[s.SeriesID]
		if !ok {
			discarded++
			continue
		}
		point, ok := latestPoint(s.Data)
		if !ok {
			discarded++
			continue
		}
		value, ok := parseWage(point.Value)
		if !ok {
			discarded++
			continue
		}
		year, _ := strconv.Atoi(point.Year)

		k := key{soc: ref.SOC, year: year, period: point.Period}
		rec, exists := byKey[k]
		if !exists {
			rec = &model.WageRecord{
				SOCCode:         ref.SOC,
				OccupationTitle: occupationTitle(ref.SOC, titles, s.Catalog),
				StateAbbr:       region.Abbr,
				StateFIPS:       region.FIPS,
				PeriodYear:      year,
				Period:          point.Period,
				SeriesID:        s.SeriesID,
				RunID:           runID,
			}
			byKey[k] = rec
		}

		v := value
		switch ref.DataType {
		case wageapi.DataTypeAnnualMean:
			rec.AnnualMeanSalary = &v
			rec.SeriesID = s.SeriesID
		case wageapi.DataTypeAnnualMedian:
			rec.AnnualMedianSalary = &v
		}
	}

	records := make([]model.WageRecord, 0, len(byKey))
	for _, rec := range byKey {
		records = append(records, *rec)
	}
	sort.Slice(records, func(i, j int) bool {
		if records[i].SOCCode != records[j].SOCCode {
			return records[i].SOCCode < records[j].SOCCode
		}
		return records[i].PeriodYear < records[j].PeriodYear
	})
	return records, discarded
}

// latestPoint returns the most recent observation: highest year, then highest period.
func latestPoint(data []wageapi.DataPoint) (wageapi.DataPoint, bool) {
	var best wageapi.DataPoint
	bestYear := -1
	for _, d := range data {
		y, err := strconv.Atoi(strings.TrimSpace(d.Year))
		if err != nil {
			continue
		}
		if y > bestYear || (y == bestYear && d.Period > best.Period) {
			best, bestYear = d, y
		}
	}
	return best, bestYear >= 0
}

// parseWage parses a wage cell. Suppressed cells ("-", "*", "#") are rejected.
func parseWage(raw string) (float64, bool) {
	s := strings.ReplaceAll(strings.TrimSpace(raw), ",", "")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0, false
	}
	return v, true
}

func occupationTitle(soc string, titles map[string]string, cat *wageapi.Catalog) string {
	if t := titles[soc]; t != "" {
		return t
	}
	if cat != nil && cat.OccupationName != "" {
		return cat.OccupationName
	}
	return model.PlaceholderOccupationTitle
}
