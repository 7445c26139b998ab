package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewSheetsCommand creates the sheets command.
func NewSheetsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sheets [title]",
		Short: "List synced sheets, or show one sheet's rows",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if len(args) == 1 {
				return showSheet(cmd, ctx, args[0])
			}
			return listSheets(cmd, ctx)
		},
	}
}

func listSheets(cmd *cobra.Command, ctx *CommandContext) error {
	sheets, err := ctx.Store.ListSheets()
	if err != nil {
		return err
	}
	if len(sheets) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No sheets synced yet. Run 'castle sync' first.")
		return nil
	}

	t := newTable(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Title", "Columns", "Frozen"})
	for _, sheet := range sheets {
		t.AppendRow(table.Row{sheet.Title, len(sheet.Columns), len(sheet.FrozenColumns())})
	}
	t.Render()
	return nil
}

func showSheet(cmd *cobra.Command, ctx *CommandContext, title string) error {
	sheet, err := ctx.Store.GetSheet(title)
	if err != nil {
		return err
	}

	t := newTable(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Row", "Name"})
	for _, row := range sheet.Rows {
		t.AppendRow(table.Row{row.ID, row.NormalizedName()})
	}
	t.Render()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "(%d rows)\n", len(sheet.Rows))
	return nil
}
