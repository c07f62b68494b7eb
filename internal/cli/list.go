package cli

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/holdwatch/pkg/types"
)

func newListCmd(a *app) *cobra.Command {
	var statusNames []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the family's books",
		Long:  "List tracked books grouped by lifecycle status. Use --status (repeatable)\nto show only some statuses.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := make([]types.Status, 0, len(statusNames))
			for _, name := range statusNames {
				st, err := types.ParseStatus(name)
				if err != nil {
					return userError(fmt.Errorf("--status %q: %w", name, err))
				}
				statuses = append(statuses, st)
			}

			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			recs, err := s.rec.Records(cmd.Context(), statuses...)
			if err != nil {
				return sysError(err)
			}
			if a.flags.jsonMode {
				return printJSON(cmd.OutOrStdout(), recs)
			}
			printRecords(cmd.OutOrStdout(), recs)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&statusNames, "status", nil, "recommended, hold_placed, in_transit, ready or picked_up")
	return cmd
}

// printRecords writes one line per record, styled when out is a terminal.
func printRecords(out io.Writer, recs []types.BookRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(out, "No books.")
		return
	}
	r := lipgloss.NewRenderer(out)
	statusStyle := map[types.Status]lipgloss.Style{
		types.StatusRecommended: r.NewStyle().Faint(true),
		types.StatusHoldPlaced:  r.NewStyle().Foreground(lipgloss.Color("4")),
		types.StatusInTransit:   r.NewStyle().Foreground(lipgloss.Color("3")),
		types.StatusReady:       r.NewStyle().Foreground(lipgloss.Color("2")).Bold(true),
		types.StatusPickedUp:    r.NewStyle().Faint(true),
	}
	labelWidth := r.NewStyle().Width(17)

	for _, rec := range recs {
		label := labelWidth.Render(rec.Status.Label())
		if st, ok := statusStyle[rec.Status]; ok {
			label = st.Render(label)
		}
		line := fmt.Sprintf("%s %q by %s", label, rec.Title, rec.Author)
		if rec.Branch != "" {
			line += " @ " + rec.Branch
		}
		fmt.Fprintln(out, line)
	}
}
