package cmd

import (
	"context"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/tradepath/roi-ingest/internal/config"
	"github.com/tradepath/roi-ingest/internal/etlerr"
	"github.com/tradepath/roi-ingest/internal/service"
)

type crosswalkFlags struct {
	file        string
	curatedFile string
	curatedOnly bool
	skipCurated bool
	flushSize   int
}

var crosswalkOpts crosswalkFlags

func init() {
	rootCmd.AddCommand(crosswalkCmd)
	addCrosswalkFlags(crosswalkCmd, &crosswalkOpts)
}

func addCrosswalkFlags(c *cobra.Command, f *crosswalkFlags) {
	c.Flags().StringVar(&f.file, "file", "", "reference CSV path or URL (default CROSSWALK_FILE)")
	c.Flags().StringVar(&f.curatedFile, "curated-file", "", "JSON5 file with extra curated mappings")
	c.Flags().BoolVar(&f.curatedOnly, "curated-only", false, "load only the curated mappings")
	c.Flags().BoolVar(&f.skipCurated, "skip-curated", false, "load only the reference file")
	c.Flags().IntVar(&f.flushSize, "flush-size", 0, "rows per bulk upsert (default CROSSWALK_FLUSH_SIZE)")
}

var crosswalkCmd = &cobra.Command{
	Use:   "crosswalk",
	Short: "Load curated and reference CIP to SOC mappings.",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := crosswalkOpts.validate(); err != nil {
			return err
		}
		cfg, log := loadConfig()

		a, err := newApp(cmd.Context(), cfg, log, "crosswalk")
		if err != nil {
			return err
		}
		defer a.close("crosswalk")

		release, err := a.acquire(cmd.Context(), config.LockKey.StageLockKey("crosswalk"))
		if err != nil {
			return err
		}
		defer release()

		w := a.writer()
		results, err := runCrosswalk(cmd.Context(), a, w, crosswalkOpts)
		renderCrosswalkStats(results)
		renderWriteStats("Crosswalk writes", w.Stats())
		return err
	},
}

type crosswalkResult struct {
	name  string
	stats service.CrosswalkStats
}

func (f crosswalkFlags) validate() error {
	if f.curatedOnly && f.skipCurated {
		return etlerr.New(etlerr.KindConfig, "crosswalk", "--curated-only and --skip-curated exclude each other", nil)
	}
	return nil
}

func runCrosswalk(ctx context.Context, a *app, w *service.Writer, f crosswalkFlags) ([]crosswalkResult, error) {
	flush := a.cfg.CrosswalkFlushSize
	if f.flushSize > 0 {
		flush = f.flushSize
	}
	loader := service.NewCrosswalkLoader(w, flush, a.cfg.HTTPTimeout, a.metrics, a.log)

	var results []crosswalkResult

	if !f.skipCurated {
		mappings, err := service.LoadCuratedMappings(f.curatedFile)
		if err != nil {
			return results, err
		}
		stats, err := loader.LoadCurated(ctx, mappings)
		results = append(results, crosswalkResult{name: "curated", stats: stats})
		if err != nil {
			return results, err
		}
	}

	if !f.curatedOnly {
		source := a.cfg.CrosswalkFile
		if f.file != "" {
			source = f.file
		}
		stats, err := loader.LoadFile(ctx, source)
		results = append(results, crosswalkResult{name: source, stats: stats})
		if err != nil {
			return results, err
		}
	}
	return results, nil
}

func renderCrosswalkStats(results []crosswalkResult) {
	t := newTable("Crosswalk", table.Row{"Source", "Rows", "Written", "Duplicates", "Skipped", "Flushes", "CIP column", "SOC column"})
	for _, r := range results {
		s := r.stats
		t.AppendRow(table.Row{r.name, s.Rows, s.Written, s.Duplicates, s.Skipped, s.Flushes, s.CIPColumn, s.SOCColumn})
	}
	t.Render()
}
