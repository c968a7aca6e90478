package commands

import (
	"io"

	"mealassist-backend/internal/category"
	"mealassist-backend/internal/submission"

	"github.com/jedib0t/go-pretty/v6/table"
)

func newTable(out io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(out)
	return t
}

func renderResults(out io.Writer, results []submission.Result) {
	t := newTable(out)
	t.AppendHeader(table.Row{"Item", "Category", "Status"})
	for _, r := range results {
		t.AppendRow(table.Row{r.Text, category.Name(category.DefaultTable, r.Category), r.Status})
	}
	t.AppendFooter(table.Row{"", "Added", len(results)})
	t.Render()
}
