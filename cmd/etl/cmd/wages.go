package cmd

import (
	"context"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/tradepath/roi-ingest/internal/config"
	"github.com/tradepath/roi-ingest/internal/credential"
	"github.com/tradepath/roi-ingest/internal/repository"
	"github.com/tradepath/roi-ingest/internal/retry"
	"github.com/tradepath/roi-ingest/internal/service"
	"github.com/tradepath/roi-ingest/internal/wageapi"
)

type wageFlags struct {
	state      string
	withMedian bool
	startYear  int
	endYear    int
	batchSize  int
}

var (
	wageOpts      wageFlags
	allStatesOpts wageFlags
	sweepStates   []string
)

func init() {
	rootCmd.AddCommand(wagesCmd)
	wagesCmd.Flags().StringVar(&wageOpts.state, "state", "", "state abbreviation, e.g. TX (required)")
	addWageFlags(wagesCmd, &wageOpts)

	rootCmd.AddCommand(allStatesCmd)
	allStatesCmd.Flags().StringSliceVar(&sweepStates, "states", nil, "restrict the sweep to these states")
	addWageFlags(allStatesCmd, &allStatesOpts)
}

func addWageFlags(c *cobra.Command, f *wageFlags) {
	c.Flags().BoolVar(&f.withMedian, "with-median", false, "also fetch the annual median series (halves the batch size)")
	c.Flags().IntVar(&f.startYear, "start-year", 0, "first year to request (default two years back)")
	c.Flags().IntVar(&f.endYear, "end-year", 0, "last year to request (default last year)")
	c.Flags().IntVar(&f.batchSize, "batch-size", 0, "occupation codes per request (default WAGE_BATCH_SIZE)")
}

var wagesCmd = &cobra.Command{
	Use:   "wages",
	Short: "Fetch occupational wages for one state.",
	RunE: func(cmd *cobra.Command, args []string) error {
		region, err := config.LookupRegion(wageOpts.state)
		if err != nil {
			return err
		}
		cfg, log := loadConfig()
		if err := cfg.RequireWageKeys(); err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, log, "wages")
		if err != nil {
			return err
		}
		defer a.close("wages")

		w := a.writer()
		fetcher, err := newWageFetcher(a, w, wageOpts)
		if err != nil {
			return err
		}

		stats, err := a.fetchRegion(cmd.Context(), fetcher, region)
		renderWageStats(map[string]service.WageStats{region.Abbr: stats}, []string{region.Abbr})
		renderWriteStats("Wage writes", w.Stats())
		return err
	},
}

var allStatesCmd = &cobra.Command{
	Use:   "all-states",
	Short: "Fetch wages for every state in turn.",
	RunE: func(cmd *cobra.Command, args []string) error {
		regions := config.AllRegions()
		if len(sweepStates) > 0 {
			regions = regions[:0]
			for _, s := range sweepStates {
				r, err := config.LookupRegion(s)
				if err != nil {
					return err
				}
				regions = append(regions, r)
			}
		}

		cfg, log := loadConfig()
		if err := cfg.RequireWageKeys(); err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, log, "all-states")
		if err != nil {
			return err
		}
		defer a.close("all_states")

		release, err := a.acquire(cmd.Context(), config.LockKey.StageLockKey("all-states"))
		if err != nil {
			return err
		}
		defer release()

		w := a.writer()
		fetcher, err := newWageFetcher(a, w, allStatesOpts)
		if err != nil {
			return err
		}

		perState := make(map[string]service.WageStats, len(regions))
		order := make([]string, 0, len(regions))
		res, err := service.Sweep(cmd.Context(), regions, a.cfg.StateSweepPause,
			func(ctx context.Context, region config.Region) error {
				stats, err := a.fetchRegion(ctx, fetcher, region)
				perState[region.Abbr] = stats
				order = append(order, region.Abbr)
				return err
			}, a.log)

		renderWageStats(perState, order)
		renderWriteStats("Wage writes", w.Stats())
		a.log.Info().
			Int("succeeded", len(res.Succeeded)).
			Int("failed", len(res.Failed)).
			Msg("Sweep finished")
		return err
	},
}

// regionFetcher runs the wage stage for one region.
type regionFetcher interface {
	Run(ctx context.Context, region config.Region) (service.WageStats, error)
}

// fetchRegion runs the wage stage for region under the per-region lock that
// every wage command shares.
func (a *app) fetchRegion(ctx context.Context, f regionFetcher, region config.Region) (service.WageStats, error) {
	release, err := a.acquire(ctx, config.LockKey.WageStageLockKey(region.Abbr))
	if err != nil {
		return service.WageStats{}, err
	}
	defer release()

	return f.Run(ctx, region)
}

// newWageFetcher builds a fetcher with a fresh credential pool for this run.
func newWageFetcher(a *app, w *service.Writer, f wageFlags) (*service.WageFetcher, error) {
	pool, err := credential.NewPool(a.cfg.WageAPIKeys)
	if err != nil {
		return nil, err
	}

	batch := a.cfg.WageBatchSize
	if f.batchSize > 0 {
		batch = f.batchSize
	}

	api := wageapi.NewClient(wageapi.Options{BaseURL: a.cfg.WageBaseURL, Timeout: a.cfg.HTTPTimeout})
	codes := repository.NewCrosswalkRepository(a.db)

	return service.NewWageFetcher(api, codes, w, pool, service.WageOptions{
		BatchSize:  batch,
		WithMedian: f.withMedian,
		StartYear:  f.startYear,
		EndYear:    f.endYear,
		Cooldown:   a.cfg.WageCooldown,
		Politeness: a.cfg.WagePoliteness,
		Retry:      retry.Policy{Retries: a.cfg.WageRetries, Delay: a.cfg.WageCooldown},
	}, a.runID, a.metrics, a.log), nil
}

func renderWageStats(perState map[string]service.WageStats, order []string) {
	t := newTable("Wages", table.Row{"State", "Codes", "Batches", "OK", "Failed", "Records", "Inserted", "Discarded", "Rotations"})
	for _, abbr := range order {
		s := perState[abbr]
		t.AppendRow(table.Row{abbr, s.Codes, s.Batches, s.BatchesSucceeded, s.BatchesFailed, s.Records, s.Inserted, s.Discarded, s.Rotations})
	}
	t.Render()
}
