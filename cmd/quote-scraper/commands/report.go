package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/maltedev/life-quote-scraper/internal/models"
	"github.com/maltedev/life-quote-scraper/internal/scraper"
)

func renderReport(w io.Writer, site string, maxRounds int, r *scraper.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(site)
	t.AppendHeader(table.Row{"Metric", "Value"})
	t.AppendRows([]table.Row{
		{"Combinations", r.Expected},
		{"Resolved", r.Resolved()},
		{"Quotes", len(r.Results)},
		{"No offers", len(r.NoOffers)},
		{"Abandoned", len(r.Abandoned)},
		{"Retry rounds", fmt.Sprintf("%d / %d", r.Rounds, maxRounds)},
		{"Attempts", r.Attempts},
		{"Coverage", fmt.Sprintf("%.1f%%", r.Coverage()*100)},
		{"Duration", r.Duration().Round(time.Second)},
	})
	t.SetStyle(table.StyleRounded)
	t.Render()

	if len(r.Abandoned) == 0 {
		return
	}

	a := table.NewWriter()
	a.SetOutputMirror(w)
	a.SetTitle("Abandoned combinations")
	a.AppendHeader(table.Row{"Combination", "Last round", "Reason"})
	for _, f := range r.Abandoned {
		a.AppendRow(table.Row{f.Combination.String(), f.Round, f.Reason()})
	}
	a.SetStyle(table.StyleRounded)
	a.Render()
}

func renderCombinations(w io.Writer, dims []models.Dimension, combos []models.Combination, total int) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("%d combinations", total))

	header := table.Row{"#"}
	for _, d := range dims {
		header = append(header, d.Name)
	}
	t.AppendHeader(header)

	for i, c := range combos {
		row := table.Row{i + 1}
		for _, d := range dims {
			row = append(row, c.Value(d.Name))
		}
		t.AppendRow(row)
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}
