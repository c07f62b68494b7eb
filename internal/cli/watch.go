package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/holdwatch/internal/inbox"
	"github.com/mesh-intelligence/holdwatch/internal/lifecycle"
)

func newWatchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "watch [dir]",
		Short: "Reconcile agent reports as they appear in an inbox directory",
		Long: "Watch a directory for report files and apply each one. The file name\n" +
			"prefix picks the report kind: recommend*, hold*, status* or sync*.\n" +
			"Handled files move to processed/, unusable ones to failed/.\n" +
			"The directory defaults to inbox_dir from config.yaml, then <data-dir>/inbox.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open()
			if err != nil {
				return err
			}
			defer s.Close()

			dir := a.v.GetString(cfgKeyInboxDir)
			if len(args) == 1 {
				dir = args[0]
			}
			if dir == "" {
				dir = filepath.Join(s.cfg.DataDir, "inbox")
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return sysError(err)
			}

			handle := func(ctx context.Context, mode lifecycle.Mode, path, text string) error {
				res, err := s.rec.Apply(ctx, mode, text)
				if err != nil {
					return err
				}
				a.autoMirror(ctx, s, res)
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", filepath.Base(path), res)
				if res.Outcome == lifecycle.OutcomeNothingParsed {
					return fmt.Errorf("no books parsed from %s", filepath.Base(path))
				}
				return nil
			}

			w := inbox.New(dir, handle, a.logger, inbox.Options{})
			if err := w.Run(cmd.Context()); err != nil {
				return sysError(err)
			}
			return nil
		},
	}
}
