package cli

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/holdwatch/internal/lifecycle"
)

// reportCmd describes a command that feeds one agent report to the reconciler.
type reportCmd struct {
	use   string
	short string
	long  string
	mode  lifecycle.Mode
}

var (
	modeRecommend = reportCmd{
		use:   "recommend [file|-]",
		short: "Replace recommendations with the books in an agent report",
		long: "Read a recommendation report (lines like `\"Title\" by Author — why`) and\n" +
			"replace the family's recommended books with it. Books already on hold\n" +
			"are not recommended again.",
		mode: lifecycle.ModeRecommend,
	}
	modeHold = reportCmd{
		use:   "hold [file|-]",
		short: "Mark recommended books as on hold from a hold-placement report",
		long: "Read hold-placement results (lines like `\"Title\" — Hold placed successfully\n" +
			"(pickup at Branch)`) and move each successful recommendation to on hold.",
		mode: lifecycle.ModeHold,
	}
	modeSync = reportCmd{
		use:   "sync [file|-]",
		short: "Apply a hold-status report to active holds",
		long: "Read a hold-status report (lines like `- \"Title\" by Author | Status: Ready for\n" +
			"pickup | Branch: Main`) and advance each matching active hold.",
		mode: lifecycle.ModeSync,
	}
)

func newReportCmd(a *app, rc reportCmd) *cobra.Command {
	return &cobra.Command{
		Use:   rc.use,
		Short: rc.short,
		Long:  rc.long + "\n\nThe report is read from the named file, or from stdin when the\nfile is omitted or \"-\". Exits 3 when no books could be parsed.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readReport(cmd, args)
			if err != nil {
				return err
			}
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			res, err := s.rec.Apply(cmd.Context(), rc.mode, text)
			if err != nil {
				return reconcileError(err)
			}
			a.autoMirror(cmd.Context(), s, res)
			return a.report(cmd, res)
		},
	}
}
