package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/mesh-intelligence/holdwatch/internal/report"
	"github.com/mesh-intelligence/holdwatch/pkg/types"
)

// Config carries the per-family settings a Reconciler is built with.
type Config struct {
	FamilyID        string
	PreferredBranch string // pickup branch assumed when a hold report names none

	// RejectRegressions skips status changes that move a hold backward
	// along the lifecycle. When false they are applied as reported.
	RejectRegressions bool

	Matcher Matcher          // defaults to FoldTitle
	Now     func() time.Time // defaults to time.Now in UTC
}

// ConfigFrom builds a reconciler Config from the application config.
func ConfigFrom(c types.Config) Config {
	return Config{
		FamilyID:          c.FamilyID,
		PreferredBranch:   c.PreferredBranch,
		RejectRegressions: c.RejectRegressions,
	}
}

// Reconciler applies parsed reports to one family's records.
type Reconciler struct {
	cfg    Config
	store  types.Store
	logger *slog.Logger
}

// New creates a Reconciler. A nil logger discards output.
// Returns ErrFamilyEmpty if cfg names no family.
func New(cfg Config, store types.Store, logger *slog.Logger) (*Reconciler, error) {
	if cfg.FamilyID == "" {
		return nil, types.ErrFamilyEmpty
	}
	if cfg.Matcher == nil {
		cfg.Matcher = FoldTitle
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Reconciler{
		cfg:    cfg,
		store:  store,
		logger: logger.With("family", cfg.FamilyID),
	}, nil
}

// IngestRecommendations replaces the family's recommended records with the
// books parsed from a recommendation report.
//
// Every existing recommended record is deleted before the new batch is
// inserted; recommendations are a point-in-time snapshot. Titles already on
// hold, in transit or ready are not inserted again. When the store
// implements types.Replacer both phases run in one transaction; otherwise a
// failure after the deletes leaves the family with no recommendations until
// the next run.
func (r *Reconciler) IngestRecommendations(ctx context.Context, text string) (Result, error) {
	res := Result{Mode: ModeRecommend}
	entries := slices.Collect(report.ParseRecommendations(text))
	res.Parsed = len(entries)
	if res.Parsed == 0 {
		return r.nothingParsed(res), nil
	}

	inProgress, err := r.titlesIn(ctx, types.StatusHoldPlaced, types.StatusInTransit, types.StatusReady)
	if err != nil {
		return res, err
	}

	now := r.cfg.Now()
	seen := make(map[string]bool, len(entries))
	var batch []types.BookRecord
	for _, e := range entries {
		key := r.cfg.Matcher(e.Title)
		if seen[key] {
			continue
		}
		seen[key] = true
		if inProgress[key] {
			res.Matched++
			r.logger.Debug("skipping recommendation already in progress", "title", e.Title)
			continue
		}
		batch = append(batch, types.BookRecord{
			FamilyID:      r.cfg.FamilyID,
			Title:         e.Title,
			Author:        e.Author,
			Justification: e.Justification,
			Status:        types.StatusRecommended,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}

	if rep, ok := r.store.(types.Replacer); ok {
		deleted, ids, err := rep.ReplaceRecommended(ctx, r.cfg.FamilyID, batch)
		if err != nil {
			return res, &types.StoreError{Op: "replace", Err: err}
		}
		res.Deleted = deleted
		res.Inserted = len(ids)
	} else if err := r.replaceTwoPhase(ctx, batch, &res); err != nil {
		return res, err
	}

	res.Mutated = res.Deleted + res.Inserted
	return r.done(res), nil
}

// replaceTwoPhase deletes stale recommendations, then inserts the batch.
func (r *Reconciler) replaceTwoPhase(ctx context.Context, batch []types.BookRecord, res *Result) error {
	stale, err := r.list(ctx, types.StatusRecommended)
	if err != nil {
		return err
	}
	for _, rec := range stale {
		if err := r.store.Delete(ctx, r.cfg.FamilyID, rec.DocID); err != nil {
			return &types.StoreError{Op: "delete", DocID: rec.DocID, Err: err}
		}
		res.Deleted++
	}
	for _, rec := range batch {
		id, err := r.store.Insert(ctx, r.cfg.FamilyID, rec)
		if err != nil {
			return &types.StoreError{Op: "insert", Err: fmt.Errorf("%q: %w", rec.Title, err)}
		}
		res.Inserted++
		r.logger.Debug("recommended", "title", rec.Title, "doc_id", id)
	}
	return nil
}

// PlaceHolds moves recommended records to hold_placed for every title the
// hold-placement report says succeeded. The pickup branch comes from the
// report, falling back to the configured preferred branch.
func (r *Reconciler) PlaceHolds(ctx context.Context, text string) (Result, error) {
	res := Result{Mode: ModeHold}
	outcomes := make(map[string]report.HoldOutcome)
	for o := range report.ParseHoldResults(text) {
		res.Parsed++
		key := r.cfg.Matcher(o.Title)
		if _, dup := outcomes[key]; !dup {
			outcomes[key] = o
		}
	}
	if res.Parsed == 0 {
		return r.nothingParsed(res), nil
	}

	recs, err := r.list(ctx, types.StatusRecommended)
	if err != nil {
		return res, err
	}
	if len(recs) == 0 {
		return r.nothingToDo(res), nil
	}

	for _, rec := range recs {
		o, ok := outcomes[r.cfg.Matcher(rec.Title)]
		if !ok {
			continue
		}
		res.Matched++
		if !o.Placed {
			r.logger.Info("hold not placed", "title", rec.Title, "detail", o.Detail)
			continue
		}
		branch := o.Branch
		if branch == "" {
			branch = r.cfg.PreferredBranch
		}
		if err := r.transition(ctx, rec, types.StatusHoldPlaced, branch); err != nil {
			return res, err
		}
		res.Mutated++
	}
	return r.done(res), nil
}

// SyncHolds applies a hold-status report to the family's active holds.
//
// Only records in hold_placed or in_transit are considered. A record whose
// title the report omits is left alone, as is one whose reported status
// maps to nothing or to the status it already has. Each change is one
// Update keyed by DocID, so a second run over the same report mutates
// nothing.
func (r *Reconciler) SyncHolds(ctx context.Context, text string) (Result, error) {
	res := Result{Mode: ModeSync}
	lookup := make(map[string]report.Entry)
	for e := range report.ParseStatusReport(text) {
		res.Parsed++
		key := r.cfg.Matcher(e.Title)
		if _, dup := lookup[key]; !dup {
			lookup[key] = e
		}
	}
	if res.Parsed == 0 {
		return r.nothingParsed(res), nil
	}

	active, err := r.list(ctx, types.StatusHoldPlaced, types.StatusInTransit)
	if err != nil {
		return res, err
	}
	if len(active) == 0 {
		return r.nothingToDo(res), nil
	}

	for _, rec := range active {
		e, ok := lookup[r.cfg.Matcher(rec.Title)]
		if !ok {
			continue
		}
		res.Matched++

		next, ok := Normalize(e.RawStatus)
		if !ok {
			res.Unmapped++
			r.logger.Debug("unmapped hold status", "title", rec.Title, "status", e.RawStatus)
			continue
		}
		if next == rec.Status {
			continue
		}
		if next.Before(rec.Status) {
			if r.cfg.RejectRegressions {
				res.Rejected++
				r.logger.Warn("rejected status regression",
					"title", rec.Title, "from", rec.Status, "to", next)
				continue
			}
			r.logger.Warn("applying status regression reported by agent",
				"title", rec.Title, "from", rec.Status, "to", next)
		}

		if err := r.transition(ctx, rec, next, e.Branch); err != nil {
			return res, err
		}
		res.Mutated++
	}
	return r.done(res), nil
}

// MarkPickedUp records that the family collected a ready book. Returns
// ErrNotFound if no ready record has the title.
func (r *Reconciler) MarkPickedUp(ctx context.Context, title string) (Result, error) {
	res := Result{Mode: ModePickup, Parsed: 1}
	ready, err := r.list(ctx, types.StatusReady)
	if err != nil {
		return res, err
	}
	key := r.cfg.Matcher(title)
	for _, rec := range ready {
		if r.cfg.Matcher(rec.Title) != key {
			continue
		}
		res.Matched++
		if err := r.transition(ctx, rec, types.StatusPickedUp, ""); err != nil {
			return res, err
		}
		res.Mutated++
		return r.done(res), nil
	}
	return r.nothingToDo(res), fmt.Errorf("ready book %q: %w", title, types.ErrNotFound)
}

// Apply runs the report-driven operation for mode over text. It returns
// ErrUnknownMode for modes that take no report.
func (r *Reconciler) Apply(ctx context.Context, mode Mode, text string) (Result, error) {
	switch mode {
	case ModeRecommend:
		return r.IngestRecommendations(ctx, text)
	case ModeHold:
		return r.PlaceHolds(ctx, text)
	case ModeSync:
		return r.SyncHolds(ctx, text)
	}
	return Result{Mode: mode}, fmt.Errorf("%w: %q", ErrUnknownMode, mode)
}

// Records returns the family's records in the given statuses, or in every
// status when none are given. Records are grouped by status in lifecycle
// order, oldest first within a status.
func (r *Reconciler) Records(ctx context.Context, statuses ...types.Status) ([]types.BookRecord, error) {
	if len(statuses) == 0 {
		statuses = types.AllStatuses
	}
	return r.list(ctx, statuses...)
}

// Ready returns the family's books that are waiting at the library.
func (r *Reconciler) Ready(ctx context.Context) ([]types.BookRecord, error) {
	return r.list(ctx, types.StatusReady)
}

// PendingNotifications returns ready books the family has not been told
// about yet.
func (r *Reconciler) PendingNotifications(ctx context.Context) ([]types.BookRecord, error) {
	ready, err := r.Ready(ctx)
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(ready, func(rec types.BookRecord) bool {
		return rec.NotifiedAt != nil
	}), nil
}

// MarkNotified stamps NotifiedAt on each record so later runs do not call
// about the same books again.
func (r *Reconciler) MarkNotified(ctx context.Context, recs []types.BookRecord) (Result, error) {
	res := Result{Mode: ModeNotify, Parsed: len(recs), Matched: len(recs)}
	if len(recs) == 0 {
		return r.nothingToDo(res), nil
	}
	now := r.cfg.Now()
	for _, rec := range recs {
		u := types.BookUpdate{NotifiedAt: &now, UpdatedAt: now}
		if err := r.store.Update(ctx, r.cfg.FamilyID, rec.DocID, u); err != nil {
			return res, &types.StoreError{Op: "update", DocID: rec.DocID, Err: err}
		}
		res.Mutated++
	}
	return r.done(res), nil
}

// transition writes a status change, and the branch when it is known and
// differs from the stored one.
func (r *Reconciler) transition(ctx context.Context, rec types.BookRecord, next types.Status, branch string) error {
	u := types.BookUpdate{Status: &next, UpdatedAt: r.cfg.Now()}
	if branch != "" && branch != rec.Branch {
		u.Branch = &branch
	}
	if err := r.store.Update(ctx, r.cfg.FamilyID, rec.DocID, u); err != nil {
		return &types.StoreError{Op: "update", DocID: rec.DocID, Err: err}
	}
	r.logger.Debug("status changed",
		"title", rec.Title, "doc_id", rec.DocID, "from", rec.Status, "to", next)
	return nil
}

// list returns the family's records in any of the given statuses.
func (r *Reconciler) list(ctx context.Context, statuses ...types.Status) ([]types.BookRecord, error) {
	var out []types.BookRecord
	for _, s := range statuses {
		recs, err := r.store.ListByStatus(ctx, r.cfg.FamilyID, s)
		if err != nil {
			return nil, &types.StoreError{Op: "list", Err: fmt.Errorf("%s: %w", s, err)}
		}
		out = append(out, recs...)
	}
	return out, nil
}

// titlesIn returns the match keys of every record in the given statuses.
func (r *Reconciler) titlesIn(ctx context.Context, statuses ...types.Status) (map[string]bool, error) {
	recs, err := r.list(ctx, statuses...)
	if err != nil {
		return nil, err
	}
	keys := make(map[string]bool, len(recs))
	for _, rec := range recs {
		keys[r.cfg.Matcher(rec.Title)] = true
	}
	return keys, nil
}

func (r *Reconciler) nothingParsed(res Result) Result {
	res.Outcome = OutcomeNothingParsed
	r.logger.Warn("could not parse any books from agent report", "mode", res.Mode)
	return res
}

func (r *Reconciler) nothingToDo(res Result) Result {
	res.Outcome = OutcomeNothingToDo
	r.logger.Info("nothing to reconcile", "result", res)
	return res
}

func (r *Reconciler) done(res Result) Result {
	res.finish()
	r.logger.Info("reconciliation complete", "result", res)
	return res
}
