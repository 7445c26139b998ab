package commands

import (
	"strings"

	"github.com/spf13/cobra"
)

// NewSearchCommand creates the search command.
func NewSearchCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search the synced snapshot",
		Long: `Run a free-text search over the synced sheets. Queries of two characters
or fewer return nothing.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			results, err := ctx.Store.Search(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			renderSearchResults(cmd.OutOrStdout(), results)
			return nil
		},
	}
}
