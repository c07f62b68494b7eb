package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/holdwatch/internal/paths"
)

func newInitCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize holdwatch configuration and storage",
		Long:  "Create the configuration and data directories, write a default config.yaml\nif none exists, then open and close the storage backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// setup already created config.yaml; open the store to create the data dir.
			s, err := a.open()
			if err != nil {
				return err
			}
			if err := s.Close(); err != nil {
				return sysError(fmt.Errorf("finalize storage: %w", err))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "holdwatch initialized successfully")
			fmt.Fprintln(out, "  config: ", filepath.Join(a.configDir, paths.ConfigFile))
			fmt.Fprintln(out, "  data:   ", s.cfg.DataDir)
			fmt.Fprintln(out, "  backend:", s.cfg.Backend)
			fmt.Fprintln(out, "  family: ", s.cfg.FamilyID)
			return nil
		},
	}
}
