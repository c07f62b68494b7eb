package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/holdwatch/internal/holdsfile"
	"github.com/mesh-intelligence/holdwatch/internal/lifecycle"
	"github.com/mesh-intelligence/holdwatch/pkg/store"
	"github.com/mesh-intelligence/holdwatch/pkg/types"
)

// session is an open store with a reconciler over it. The caller must
// defer Close.
type session struct {
	cfg   types.Config
	store types.Store
	rec   *lifecycle.Reconciler
}

func (s *session) Close() error { return s.store.Close() }

// open resolves configuration, opens the store and builds a reconciler.
func (a *app) open() (*session, error) {
	cfg, err := a.storeConfig()
	if err != nil {
		return nil, userError(fmt.Errorf("config: %w", err))
	}
	st, err := store.Open(cfg, a.logger)
	if err != nil {
		return nil, sysError(fmt.Errorf("open store: %w", err))
	}
	rec, err := lifecycle.New(lifecycle.ConfigFrom(cfg), st, a.logger)
	if err != nil {
		st.Close()
		return nil, userError(err)
	}
	return &session{cfg: cfg, store: st, rec: rec}, nil
}

// readReport returns the report text from the named file, or from stdin
// when the name is empty or "-".
func readReport(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", sysError(fmt.Errorf("read stdin: %w", err))
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", userError(fmt.Errorf("report %s: %w", args[0], err))
		}
		return "", sysError(err)
	}
	return string(data), nil
}

// printJSON writes v as indented JSON.
func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return sysError(fmt.Errorf("marshal JSON: %w", err))
	}
	return nil
}

// report prints a reconciliation result and maps its outcome to an exit
// code: nothing_parsed is a distinct non-zero status so schedulers can
// tell a useless agent run from a quiet one.
func (a *app) report(cmd *cobra.Command, res lifecycle.Result) error {
	out := cmd.OutOrStdout()
	if a.flags.jsonMode {
		if err := printJSON(out, res); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(out, "parsed %d, matched %d, mutated %d\n", res.Parsed, res.Matched, res.Mutated)
		fmt.Fprintln(out, res.String())
	}
	if res.Outcome == lifecycle.OutcomeNothingParsed {
		return &ExitError{Code: exitNothingParsed}
	}
	return nil
}

// reconcileError classifies an error returned by the reconciler.
func reconcileError(err error) error {
	if errors.Is(err, types.ErrNotFound) && !isStoreError(err) {
		return userError(err)
	}
	return sysError(err)
}

func isStoreError(err error) bool {
	var se *types.StoreError
	return errors.As(err, &se)
}

// mirrorStatuses are the statuses listed in the holds mirror.
var mirrorStatuses = []types.Status{types.StatusHoldPlaced, types.StatusInTransit, types.StatusReady}

// refreshMirror rewrites the holds mirror from the store, keeping reasons
// recorded in the previous mirror for books whose record has none.
func (a *app) refreshMirror(ctx context.Context, s *session) (string, int, error) {
	path, err := a.holdsFile(s.cfg.DataDir)
	if err != nil {
		return "", 0, err
	}
	recs, err := s.rec.Records(ctx, mirrorStatuses...)
	if err != nil {
		return "", 0, err
	}
	previous, err := holdsfile.Read(path)
	if err != nil {
		a.logger.Warn("ignoring unreadable holds mirror", "path", path, "error", err)
	}
	holdsfile.KeepWhy(recs, previous, nil)
	if err := holdsfile.Write(path, recs); err != nil {
		return "", 0, err
	}
	a.logger.Debug("holds mirror written", "path", path, "books", len(recs))
	return path, len(recs), nil
}

// autoMirror refreshes the mirror after a mutating command when enabled.
// A mirror failure is logged, not fatal: the store is the source of truth.
func (a *app) autoMirror(ctx context.Context, s *session, res lifecycle.Result) {
	if !a.v.GetBool(cfgKeyMirror) || res.Mutated == 0 {
		return
	}
	if _, _, err := a.refreshMirror(ctx, s); err != nil {
		a.logger.Warn("holds mirror not updated", "error", err)
	}
}
