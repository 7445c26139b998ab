package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewRowCommand creates the row command.
func NewRowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "row <id>",
		Short: "Show one row's values and related rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			row, err := ctx.Store.GetRow(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "%s (%s)\n", row.NormalizedName(), row.SheetTitle)

			t := newTable(out)
			t.AppendHeader(table.Row{"Column", "Value"})
			for _, v := range row.Values {
				value := v.Value
				if v.ImageURL != "" {
					value = v.ImageURL
				}
				if value == "" {
					continue
				}
				t.AppendRow(table.Row{v.Title, value})
			}
			t.Render()

			groups, err := ctx.Store.Relationships(cmd.Context(), row.ID)
			if err != nil {
				return err
			}
			if len(groups) == 0 {
				return nil
			}

			_, _ = fmt.Fprintln(out, "\nRelated:")
			for _, g := range groups {
				_, _ = fmt.Fprintf(out, "  %s: %s\n", g.SheetTitle, strings.Join(g.RowIDs, ", "))
			}
			return nil
		},
	}
}
