package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// NewSpecialsCommand creates the specials command.
func NewSpecialsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "specials [name]",
		Short: "List curated specials, or search by one",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cleanup, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			defer cleanup()

			if len(args) == 0 {
				for _, sp := range ctx.Cfg.Specials {
					_, _ = fmt.Fprintln(cmd.OutOrStdout(), sp.Name)
				}
				return nil
			}

			name := strings.Join(args, " ")
			for _, sp := range ctx.Cfg.Specials {
				if !strings.EqualFold(sp.Name, name) {
					continue
				}
				results, err := ctx.Store.SearchSpecial(cmd.Context(), sp)
				if err != nil {
					return err
				}
				renderSearchResults(cmd.OutOrStdout(), results)
				return nil
			}
			return fmt.Errorf("unknown special %q", name)
		},
	}
}
