package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tradepath/roi-ingest/internal/config"
	"github.com/tradepath/roi-ingest/internal/service"
)

var (
	pipelineHarvest   harvestFlags
	pipelineCrosswalk crosswalkFlags
	pipelineWages     wageFlags
)

func init() {
	rootCmd.AddCommand(pipelineCmd)
	pipelineCmd.Flags().StringVar(&pipelineWages.state, "state", "", "state abbreviation for the wage stage, e.g. TX (required)")
	addHarvestFlags(pipelineCmd, &pipelineHarvest)
	addCrosswalkFlags(pipelineCmd, &pipelineCrosswalk)
	addWageFlags(pipelineCmd, &pipelineWages)
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run crosswalk, harvest and wages for one state.",
	RunE: func(cmd *cobra.Command, args []string) error {
		region, err := config.LookupRegion(pipelineWages.state)
		if err != nil {
			return err
		}
		if err := pipelineCrosswalk.validate(); err != nil {
			return err
		}

		cfg, log := loadConfig()
		pipelineHarvest.apply(cfg)
		if err := cfg.RequireCatalogKey(); err != nil {
			return err
		}
		if err := cfg.RequireWageKeys(); err != nil {
			return err
		}

		a, err := newApp(cmd.Context(), cfg, log, "pipeline")
		if err != nil {
			return err
		}
		defer a.close("pipeline")

		release, err := a.acquire(cmd.Context(), config.LockKey.StageLockKey("pipeline"))
		if err != nil {
			return err
		}
		defer release()

		w := a.writer()
		defer func() { renderWriteStats("Pipeline writes", w.Stats()) }()

		// ─── Crosswalk ─────────────────────────────────────────────────
		results, err := runCrosswalk(cmd.Context(), a, w, pipelineCrosswalk)
		renderCrosswalkStats(results)
		if err != nil {
			return err
		}

		// ─── Harvest ───────────────────────────────────────────────────
		hs, err := runHarvest(cmd.Context(), a, w, pipelineHarvest.schoolState)
		renderHarvestStats(hs)
		if err != nil {
			return err
		}

		// ─── Wages ─────────────────────────────────────────────────────
		fetcher, err := newWageFetcher(a, w, pipelineWages)
		if err != nil {
			return err
		}
		ws, err := a.fetchRegion(cmd.Context(), fetcher, region)
		renderWageStats(map[string]service.WageStats{region.Abbr: ws}, []string{region.Abbr})
		return err
	},
}
