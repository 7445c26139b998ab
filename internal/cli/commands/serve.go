package commands

import (
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/ianyh/castle/internal/api"
)

// NewServeCommand creates the serve command.
func NewServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the snapshot over HTTP",
		Long: `Start the API server: sheet and row lookups, search, specials,
relationships, sync control, and a sync event stream.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cmdCtx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			eng, err := cmdCtx.Engine(cmd)
			if err != nil {
				return err
			}

			srv, err := api.NewServer(api.Config{
				Store:    cmdCtx.Store,
				Engine:   eng,
				Notifier: cmdCtx.Notifier,
				Specials: cmdCtx.Cfg.Specials,
				Port:     cmdCtx.Cfg.Port,
				Logger:   cmdCtx.Logger,
			})
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return srv.Serve(ctx)
		},
	}
}
