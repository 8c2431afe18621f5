package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/IshaanNene/newsgoat/internal/engine"
)

// printReport renders the per-source outcome of a run.
func printReport(w io.Writer, report *engine.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	t.AppendHeader(table.Row{"Source", "Kind", "Candidates", "Inserted", "Dropped", "Waits", "Duration", "Error"})
	for _, s := range report.Sources {
		errText := ""
		if s.Error != "" {
			errText = text.Colors{text.FgRed}.Sprint(s.Error)
		}
		t.AppendRow(table.Row{
			s.Source,
			s.Kind,
			s.Candidates,
			s.Inserted,
			s.Dropped,
			s.Waits,
			s.Duration.Round(time.Millisecond),
			errText,
		})
	}
	for _, name := range report.Skipped {
		t.AppendRow(table.Row{name, "", "", "", "", "", "", "disabled"})
	}
	t.AppendFooter(table.Row{"Total", "", "", report.Inserted(), "", "", report.Duration().Round(time.Millisecond),
		fmt.Sprintf("%d failed", report.Failed())})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 8, WidthMax: 60},
	})

	t.Render()
}
