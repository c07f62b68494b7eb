package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newMirrorCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "mirror",
		Short: "Rewrite the holds.md mirror from the store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			path, n, err := a.refreshMirror(cmd.Context(), s)
			if err != nil {
				return sysError(fmt.Errorf("write mirror: %w", err))
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), map[string]any{"path": path, "books": n})
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d book(s) to %s\n", n, path)
			return nil
		},
	}
}
