package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ianyh/castle/pkg/core"
)

// NewStatusCommand creates the status command.
func NewStatusCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the last sync and its outcome",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			out := cmd.OutOrStdout()

			lastSync, err := ctx.Store.LastSync()
			if err != nil {
				return err
			}
			if lastSync == nil {
				_, _ = fmt.Fprintln(out, "Never synced. Run 'castle sync' first.")
			} else {
				_, _ = fmt.Fprintf(out, "Last sync: %s (%s ago)\n",
					lastSync.Format(time.RFC3339), time.Since(*lastSync).Round(time.Second))
			}

			run, err := ctx.Store.GetLatestSyncRun()
			if errors.Is(err, core.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(out, "Latest run: %s (%s)\n", run.ID, run.Status)
			if run.Error != "" {
				_, _ = fmt.Fprintf(out, "  error: %s\n", run.Error)
			}
			return nil
		},
	}
}
