package lifecycle

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Mode names the reconciliation operation that produced a Result.
type Mode string

// Reconciliation modes.
const (
	ModeRecommend Mode = "recommend"
	ModeHold      Mode = "hold"
	ModeSync      Mode = "sync"
	ModePickup    Mode = "pickup"
	ModeNotify    Mode = "notify"
)

// ErrUnknownMode is returned for a mode name that takes no report.
var ErrUnknownMode = errors.New("unknown reconciliation mode")

// ParseMode maps a report kind to the mode that consumes it. Aliases
// "holds" and "status" are accepted.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "recommend", "recommendations":
		return ModeRecommend, nil
	case "hold", "holds":
		return ModeHold, nil
	case "sync", "status":
		return ModeSync, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMode, s)
}

// Outcome classifies a completed run so operators can tell an agent that
// produced nothing useful from one whose results changed nothing.
type Outcome string

// Run outcomes.
const (
	OutcomeApplied       Outcome = "applied"        // at least one record mutated
	OutcomeUnchanged     Outcome = "unchanged"      // entries parsed, nothing changed
	OutcomeNothingParsed Outcome = "nothing_parsed" // the report yielded no entries
	OutcomeNothingToDo   Outcome = "nothing_to_do"  // no stored records to reconcile
)

// Result counts what one reconciliation run did.
type Result struct {
	Mode     Mode    `json:"mode"`
	Outcome  Outcome `json:"outcome"`
	Parsed   int     `json:"parsed"`   // entries parsed from the report
	Matched  int     `json:"matched"`  // parsed entries that matched a stored record
	Mutated  int     `json:"mutated"`  // store mutations applied (updates, deletes, inserts)
	Deleted  int     `json:"deleted"`
	Inserted int     `json:"inserted"`
	Unmapped int     `json:"unmapped"` // matched entries whose status text mapped to nothing
	Rejected int     `json:"rejected"` // regressions skipped because RejectRegressions is set
}

// finish sets the outcome from the counts unless one was already decided.
func (r *Result) finish() {
	if r.Outcome != "" {
		return
	}
	if r.Mutated > 0 {
		r.Outcome = OutcomeApplied
		return
	}
	r.Outcome = OutcomeUnchanged
}

// String renders the counts on one line.
func (r Result) String() string {
	return fmt.Sprintf("%s: %s (parsed=%d matched=%d mutated=%d deleted=%d inserted=%d unmapped=%d rejected=%d)",
		r.Mode, r.Outcome, r.Parsed, r.Matched, r.Mutated, r.Deleted, r.Inserted, r.Unmapped, r.Rejected)
}

// LogValue implements slog.LogValuer.
func (r Result) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("mode", string(r.Mode)),
		slog.String("outcome", string(r.Outcome)),
		slog.Int("parsed", r.Parsed),
		slog.Int("matched", r.Matched),
		slog.Int("mutated", r.Mutated),
		slog.Int("deleted", r.Deleted),
		slog.Int("inserted", r.Inserted),
		slog.Int("unmapped", r.Unmapped),
		slog.Int("rejected", r.Rejected),
	)
}
