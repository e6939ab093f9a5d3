package cmd

import (
	"context"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/tradepath/roi-ingest/internal/catalog"
	"github.com/tradepath/roi-ingest/internal/config"
	"github.com/tradepath/roi-ingest/internal/retry"
	"github.com/tradepath/roi-ingest/internal/service"
)

type harvestFlags struct {
	families    []string
	pageSize    int
	maxPages    int
	pageRetries int
	schoolState string
}

var harvestOpts harvestFlags

func init() {
	rootCmd.AddCommand(harvestCmd)
	addHarvestFlags(harvestCmd, &harvestOpts)
}

func addHarvestFlags(c *cobra.Command, f *harvestFlags) {
	c.Flags().StringSliceVar(&f.families, "families", nil, "target CIP family prefixes (default TARGET_CIP_FAMILIES)")
	c.Flags().IntVar(&f.pageSize, "page-size", 0, "results per catalog page (default CATALOG_PAGE_SIZE)")
	c.Flags().IntVar(&f.maxPages, "max-pages", 0, "hard page ceiling (default CATALOG_MAX_PAGES)")
	c.Flags().IntVar(&f.pageRetries, "page-retries", -1, "retries per failing page (default CATALOG_PAGE_RETRIES)")
	c.Flags().StringVar(&f.schoolState, "school-state", "", "only harvest schools in this state")
}

// apply folds flag overrides into cfg.
func (f harvestFlags) apply(cfg *config.Config) {
	if len(f.families) > 0 {
		cfg.TargetFamilies = f.families
	}
	if f.pageSize > 0 {
		cfg.CatalogPageSize = f.pageSize
	}
	if f.maxPages > 0 {
		cfg.CatalogMaxPages = f.maxPages
	}
	if f.pageRetries >= 0 {
		cfg.CatalogPageRetries = f.pageRetries
	}
}

var harvestCmd = &cobra.Command{
	Use:   "harvest",
	Short: "Harvest institutions and programs from the catalog.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := loadConfig()
		harvestOpts.apply(cfg)
		if err := cfg.RequireCatalogKey(); err != nil {
			return err
		}
		if harvestOpts.schoolState != "" {
			if _, err := config.LookupRegion(harvestOpts.schoolState); err != nil {
				return err
			}
		}

		a, err := newApp(cmd.Context(), cfg, log, "harvest")
		if err != nil {
			return err
		}
		defer a.close("harvest")

		release, err := a.acquire(cmd.Context(), config.LockKey.StageLockKey("harvest"))
		if err != nil {
			return err
		}
		defer release()

		w := a.writer()
		stats, err := runHarvest(cmd.Context(), a, w, harvestOpts.schoolState)
		renderHarvestStats(stats)
		renderWriteStats("Harvest writes", w.Stats())
		return err
	},
}

func runHarvest(ctx context.Context, a *app, w *service.Writer, schoolState string) (service.HarvestStats, error) {
	client := catalog.NewClient(catalog.Options{
		BaseURL: a.cfg.CatalogBaseURL,
		APIKey:  a.cfg.CatalogAPIKey,
		Timeout: a.cfg.HTTPTimeout,
		State:   schoolState,
	})

	h := service.NewHarvester(client, service.HarvestOptions{
		Families: a.cfg.TargetFamilies,
		PageSize: a.cfg.CatalogPageSize,
		MaxPages: a.cfg.CatalogMaxPages,
		Retry:    retry.Policy{Retries: a.cfg.CatalogPageRetries, Delay: a.cfg.CatalogRetryDelay},
	}, a.metrics, a.log)

	return h.Run(ctx, w.WriteHarvested)
}

func renderHarvestStats(s service.HarvestStats) {
	t := newTable("Harvest", table.Row{"Pages", "Skipped pages", "Records", "Emitted", "Ignored", "Invalid", "Failed", "Stop"})
	t.AppendRow(table.Row{s.Pages, s.PagesSkipped, s.Records, s.Emitted, s.Ignored, s.Invalid, s.EmitFailed, s.StopReason})
	t.Render()
}
