package cli

import (
	"strings"

	"github.com/spf13/cobra"
)

func newPickupCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "pickup <title>",
		Short: "Record that a ready book was picked up",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.rec.MarkPickedUp(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return reconcileError(err)
			}
			a.autoMirror(cmd.Context(), s, res)
			return a.report(cmd, res)
		},
	}
}
