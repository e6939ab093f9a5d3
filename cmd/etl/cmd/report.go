package cmd

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/tradepath/roi-ingest/internal/repository"
	"github.com/tradepath/roi-ingest/internal/service"
)

var diagnoseSample int

func init() {
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(diagnoseCmd)
	diagnoseCmd.Flags().IntVar(&diagnoseSample, "sample", 10, "number of program codes to trace")
}

func newReportService(a *app) *service.ReportService {
	return service.NewReportService(
		repository.NewReportRepository(a.db),
		repository.NewCrosswalkRepository(a.db),
		repository.NewWageRepository(a.db),
		a.log,
	)
}

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print row counts of the pipeline tables.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := loadConfig()
		a, err := newApp(cmd.Context(), cfg, log, "report")
		if err != nil {
			return err
		}
		defer a.close("report")

		counts, err := newReportService(a).Counts(cmd.Context())
		if err != nil {
			return err
		}

		t := newTable("Row counts", table.Row{"Table", "Rows"})
		for _, c := range counts {
			t.AppendRow(table.Row{c.Table, c.Rows})
		}
		t.Render()
		return nil
	},
}

var diagnoseCmd = &cobra.Command{
	Use:   "diagnose",
	Short: "Trace program codes through the crosswalk to wage rows.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, log := loadConfig()
		a, err := newApp(cmd.Context(), cfg, log, "diagnose")
		if err != nil {
			return err
		}
		defer a.close("diagnose")

		d, err := newReportService(a).Diagnose(cmd.Context(), diagnoseSample)
		if err != nil {
			return err
		}

		traces := newTable("Linkage", table.Row{"CIP", "SOC codes", "Wage rows"})
		for _, tr := range d.Traces {
			if len(tr.SOCCodes) == 0 {
				traces.AppendRow(table.Row{tr.CIPCode, "(no crosswalk entry)", 0})
				continue
			}
			counts := make([]string, len(tr.WageCounts))
			for i, n := range tr.WageCounts {
				counts[i] = fmt.Sprint(n)
			}
			traces.AppendRow(table.Row{tr.CIPCode, strings.Join(tr.SOCCodes, ", "), strings.Join(counts, ", ")})
		}
		traces.Render()

		orphans := newTable("Program codes without a crosswalk entry", table.Row{"CIP", "Programs", "Closest crosswalk code", "Similarity"})
		for _, o := range d.Orphans {
			sim := ""
			if o.Suggestion != "" {
				sim = fmt.Sprintf("%.2f", o.Similarity)
			}
			orphans.AppendRow(table.Row{o.CIPCode, o.Programs, o.Suggestion, sim})
		}
		orphans.Render()
		return nil
	},
}
