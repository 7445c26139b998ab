package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewPreloadCommand creates the preload command.
func NewPreloadCommand() *cobra.Command {
	var clear bool

	cmd := &cobra.Command{
		Use:   "preload",
		Short: "Download every row image into the local cache",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			preloader, err := ctx.Preloader()
			if err != nil {
				return err
			}

			if clear {
				if err := preloader.ClearCache(); err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Image cache cleared.")
			}

			urls, err := ctx.Store.ListImageURLs()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			stats, err := preloader.Preload(cmd.Context(), urls, func(done, total int) {
				_, _ = fmt.Fprintf(out, "\r%d/%d", done, total)
			})
			_, _ = fmt.Fprintln(out)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintf(out, "Downloaded %d, cached %d, failed %d of %d images\n",
				stats.Downloaded, stats.Cached, stats.Failed, stats.Total)
			return nil
		},
	}

	cmd.Flags().BoolVar(&clear, "clear", false, "Clear the image cache before preloading")
	return cmd
}
