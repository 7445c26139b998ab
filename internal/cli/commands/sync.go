package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

// NewSyncCommand creates the sync command.
func NewSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Fetch the spreadsheet and rebuild the local snapshot",
		Long: `Fetch every eligible sheet of the configured spreadsheet, normalize it,
and replace the local snapshot and search index in one transaction.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			eng, err := ctx.Engine(cmd)
			if err != nil {
				return err
			}

			started := time.Now()
			run, err := eng.Sync(cmd.Context())
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}

			sheets, err := ctx.Store.ListSheets()
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Synced %d sheets in %s (run %s)\n",
				len(sheets), time.Since(started).Round(time.Millisecond), run.ID)
			return nil
		},
	}
}
