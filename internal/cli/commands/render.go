package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/ianyh/castle/pkg/core"
)

func newTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	return t
}

func renderSearchResults(w io.Writer, results []core.SearchResult) {
	if len(results) == 0 {
		_, _ = fmt.Fprintln(w, "(no results)")
		return
	}

	t := newTable(w)
	t.AppendHeader(table.Row{"Row", "Name", "Sheet"})
	for _, r := range results {
		t.AppendRow(table.Row{r.RowID, r.Name, r.SheetTitle})
	}
	t.Render()
}
