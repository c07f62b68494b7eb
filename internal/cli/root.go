// Package cli implements the holdwatch command-line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/mesh-intelligence/holdwatch/internal/logger"
	"github.com/mesh-intelligence/holdwatch/internal/paths"
)

// Exit codes.
const (
	exitSuccess       = 0
	exitUserError     = 1
	exitSysError      = 2
	exitNothingParsed = 3
)

// ExitError carries the process exit code for a failed command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

func userError(err error) error { return &ExitError{Code: exitUserError, Err: err} }
func sysError(err error) error  { return &ExitError{Code: exitSysError, Err: err} }

// rootFlags holds global flag values accessible to all subcommands.
type rootFlags struct {
	configDir string
	dataDir   string
	family    string
	logLevel  string
	jsonMode  bool
}

// app is the state shared by the commands of one root command.
type app struct {
	flags     rootFlags
	configDir string
	v         *viper.Viper
	logger    *slog.Logger
	logOut    io.Writer
}

// NewRootCmd creates the top-level "holdwatch" command with global flags
// and all subcommands registered. Logs go to logOut; nil means stderr.
func NewRootCmd(logOut io.Writer) *cobra.Command {
	a := &app{logOut: logOut}
	if a.logOut == nil {
		a.logOut = os.Stderr
	}

	root := &cobra.Command{
		Use:   "holdwatch",
		Short: "Track library holds from recommendation to pickup",
		Long: "holdwatch reconciles the reports of a library-browsing agent with a\n" +
			"family's book records: recommendations, holds, arrivals and pickups.",
		Version:           Version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	root.PersistentFlags().StringVar(&a.flags.configDir, "config-dir", "", "configuration directory (default: $XDG_CONFIG_HOME/holdwatch)")
	root.PersistentFlags().StringVar(&a.flags.dataDir, "data-dir", "", "data directory (default: $XDG_DATA_HOME/holdwatch)")
	root.PersistentFlags().StringVar(&a.flags.family, "family", "", "family whose books to track (default: family_id from config.yaml)")
	root.PersistentFlags().StringVar(&a.flags.logLevel, "log-level", "", "debug, info, warn or error")
	root.PersistentFlags().BoolVar(&a.flags.jsonMode, "json", false, "output in JSON format")

	root.AddCommand(
		newVersionCmd(),
		newInitCmd(a),
		newReportCmd(a, modeRecommend),
		newReportCmd(a, modeHold),
		newReportCmd(a, modeSync),
		newListCmd(a),
		newReadyCmd(a),
		newPickupCmd(a),
		newMirrorCmd(a),
		newWatchCmd(a),
	)
	return root
}

// setup loads config.yaml and configures logging before any subcommand.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	if cmd.Name() == "version" {
		return nil
	}
	configDir, err := paths.ResolveConfigDir(a.flags.configDir)
	if err != nil {
		return sysError(fmt.Errorf("resolve config dir: %w", err))
	}
	v, err := loadConfig(configDir)
	if err != nil {
		return sysError(err)
	}
	a.configDir = configDir
	a.v = v

	level := a.flags.logLevel
	if level == "" {
		level = v.GetString(cfgKeyLogLevel)
	}
	a.logger = logger.New(logger.Config{
		Writer: a.logOut,
		Format: v.GetString(cfgKeyLogFormat),
		Level:  logger.ParseLevel(level),
	})
	return nil
}

// Execute runs the root command and exits with the appropriate code.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd(os.Stderr).ExecuteContext(ctx)
	stop()
	if err == nil {
		os.Exit(exitSuccess)
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(os.Stderr, "holdwatch:", exitErr.Err)
		}
		os.Exit(exitErr.Code)
	}
	// Flag and argument errors from cobra.
	fmt.Fprintln(os.Stderr, "holdwatch:", err)
	os.Exit(exitUserError)
}
