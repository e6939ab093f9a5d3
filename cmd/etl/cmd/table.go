package cmd

import (
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/tradepath/roi-ingest/internal/service"
)

func newTable(title string, header table.Row) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetTitle(title)
	t.AppendHeader(header)
	t.SetStyle(table.StyleRounded)
	return t
}

// renderWriteStats prints the inserted/updated/skipped/failed summary of a run.
func renderWriteStats(title string, s service.WriteStats) {
	t := newTable(title, table.Row{"Table", "Inserted", "Updated / Existing", "Failed"})
	t.AppendRow(table.Row{"schools", s.SchoolsInserted, s.SchoolsUpdated, s.SchoolsFailed})
	t.AppendRow(table.Row{"programs", s.ProgramsInserted, s.ProgramsExisting, s.ProgramsFailed})
	t.AppendRow(table.Row{"cip_soc_matrix", s.MappingsWritten, "-", s.MappingsFailed})
	t.AppendRow(table.Row{"bls_salary_data", s.WagesInserted, s.WagesExisting, s.WagesFailed})
	t.AppendFooter(table.Row{"invalid (skipped)", s.Invalid, "", ""})
	t.Render()
}
