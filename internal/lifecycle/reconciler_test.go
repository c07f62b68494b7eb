package lifecycle

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/holdwatch/pkg/types"
)

const family = "leo"

var fixedNow = time.Date(2026, 10, 17, 8, 30, 0, 0, time.UTC)

func newTestReconciler(t *testing.T, store types.Store, mutate ...func(*Config)) *Reconciler {
	t.Helper()
	cfg := Config{
		FamilyID:        family,
		PreferredBranch: "Noe Valley",
		Now:             func() time.Time { return fixedNow },
	}
	for _, m := range mutate {
		m(&cfg)
	}
	r, err := New(cfg, store, nil)
	require.NoError(t, err)
	return r
}

func TestNewRequiresFamily(t *testing.T) {
	_, err := New(Config{}, newMemStore(), nil)
	assert.ErrorIs(t, err, types.ErrFamilyEmpty)
}

func TestConfigFrom(t *testing.T) {
	cfg := ConfigFrom(types.Config{
		Backend:           types.BackendSQLite,
		FamilyID:          "leo",
		PreferredBranch:   "Noe Valley",
		RejectRegressions: true,
	})
	assert.Equal(t, "leo", cfg.FamilyID)
	assert.Equal(t, "Noe Valley", cfg.PreferredBranch)
	assert.True(t, cfg.RejectRegressions)
}

func TestSyncHolds_EndToEnd(t *testing.T) {
	store := newMemStore()
	id := store.seed(family, "Dragons Love Tacos", types.StatusHoldPlaced, "")
	r := newTestReconciler(t, store)

	res, err := r.SyncHolds(context.Background(),
		`- "Dragons Love Tacos" by Adam Rubin | Status: Ready for pickup | Branch: Noe Valley`)
	require.NoError(t, err)

	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, 1, res.Parsed)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, res.Mutated)

	rec, ok := store.get(family, id)
	require.True(t, ok)
	assert.Equal(t, types.StatusReady, rec.Status)
	assert.Equal(t, "Noe Valley", rec.Branch)
	assert.Equal(t, fixedNow, rec.UpdatedAt)
}

func TestSyncHolds_Idempotent(t *testing.T) {
	store := newMemStore()
	store.seed(family, "Dragons Love Tacos", types.StatusHoldPlaced, "Noe Valley")
	store.seed(family, "Volcanoes", types.StatusHoldPlaced, "Noe Valley")
	r := newTestReconciler(t, store)

	text := `HOLD STATUSES:
- "Dragons Love Tacos" by Adam Rubin | Status: In transit | Branch: Noe Valley
- "Volcanoes" by Franklyn M. Branley | Status: On hold | Branch: Noe Valley
`
	first, err := r.SyncHolds(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, 1, first.Mutated)

	second, err := r.SyncHolds(context.Background(), text)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Mutated)
	assert.Equal(t, 2, second.Matched)
	assert.Equal(t, OutcomeUnchanged, second.Outcome)
}

func TestSyncHolds_NoNewsIsNotNews(t *testing.T) {
	store := newMemStore()
	tacos := store.seed(family, "Dragons Love Tacos", types.StatusHoldPlaced, "Noe Valley")
	store.seed(family, "Volcanoes", types.StatusHoldPlaced, "Noe Valley")
	r := newTestReconciler(t, store)

	res, err := r.SyncHolds(context.Background(),
		`- "Volcanoes" by Franklyn M. Branley | Status: Ready for pickup | Branch: Noe Valley`)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Mutated)

	rec, _ := store.get(family, tacos)
	assert.Equal(t, types.StatusHoldPlaced, rec.Status)
	assert.NotContains(t, store.mutations(), "update:"+tacos)
}

func TestSyncHolds_UnmappedStatusLeavesRecord(t *testing.T) {
	store := newMemStore()
	id := store.seed(family, "Dragons Love Tacos", types.StatusHoldPlaced, "Noe Valley")
	r := newTestReconciler(t, store)

	res, err := r.SyncHolds(context.Background(),
		`- "Dragons Love Tacos" by Adam Rubin | Status: Suspended | Branch: Main`)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, res.Unmapped)
	assert.Equal(t, 0, res.Mutated)

	rec, _ := store.get(family, id)
	assert.Equal(t, types.StatusHoldPlaced, rec.Status)
	assert.Equal(t, "Noe Valley", rec.Branch)
}

func TestSyncHolds_NegatedReadyIsNotReady(t *testing.T) {
	store := newMemStore()
	id := store.seed(family, "Dragons Love Tacos", types.StatusHoldPlaced, "Noe Valley")
	r := newTestReconciler(t, store)

	res, err := r.SyncHolds(context.Background(),
		`- "Dragons Love Tacos" by Adam Rubin | Status: In transit, not ready for pickup | Branch: Noe Valley`)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Mutated)

	rec, _ := store.get(family, id)
	assert.Equal(t, types.StatusInTransit, rec.Status)

	ready, err := r.PendingNotifications(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ready)
}

func TestSyncHolds_CaseInsensitiveTitle(t *testing.T) {
	store := newMemStore()
	id := store.seed(family, "Dragons Love Tacos", types.StatusHoldPlaced, "")
	r := newTestReconciler(t, store)

	res, err := r.SyncHolds(context.Background(),
		`- "DRAGONS LOVE TACOS" by Adam Rubin | Status: In transit | Branch: unknown`)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Mutated)

	rec, _ := store.get(family, id)
	assert.Equal(t, types.StatusInTransit, rec.Status)
	assert.Empty(t, rec.Branch, "unknown branch does not overwrite")
}

func TestSyncHolds_KeepsBranchWhenReportOmitsIt(t *testing.T) {
	store := newMemStore()
	id := store.seed(family, "Volcanoes", types.StatusInTransit, "Noe Valley")
	r := newTestReconciler(t, store)

	_, err := r.SyncHolds(context.Background(),
		`- "Volcanoes" by Franklyn M. Branley | Status: Ready for pickup | Branch: `)
	require.NoError(t, err)

	rec, _ := store.get(family, id)
	assert.Equal(t, types.StatusReady, rec.Status)
	assert.Equal(t, "Noe Valley", rec.Branch)
}

func TestSyncHolds_Regression(t *testing.T) {
	text := `- "Volcanoes" by Franklyn M. Branley | Status: On hold | Branch: Noe Valley`

	t.Run("passed through by default", func(t *testing.T) {
		store := newMemStore()
		id := store.seed(family, "Volcanoes", types.StatusInTransit, "Noe Valley")
		r := newTestReconciler(t, store)

		res, err := r.SyncHolds(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, 1, res.Mutated)
		rec, _ := store.get(family, id)
		assert.Equal(t, types.StatusHoldPlaced, rec.Status)
	})

	t.Run("rejected when configured", func(t *testing.T) {
		store := newMemStore()
		id := store.seed(family, "Volcanoes", types.StatusInTransit, "Noe Valley")
		r := newTestReconciler(t, store, func(c *Config) { c.RejectRegressions = true })

		res, err := r.SyncHolds(context.Background(), text)
		require.NoError(t, err)
		assert.Equal(t, 0, res.Mutated)
		assert.Equal(t, 1, res.Rejected)
		rec, _ := store.get(family, id)
		assert.Equal(t, types.StatusInTransit, rec.Status)
	})
}

func TestSyncHolds_IgnoresNonActiveRecords(t *testing.T) {
	store := newMemStore()
	rec := store.seed(family, "Dragons Love Tacos", types.StatusRecommended, "")
	store.seed(family, "Volcanoes", types.StatusHoldPlaced, "")
	r := newTestReconciler(t, store)

	res, err := r.SyncHolds(context.Background(),
		`- "Dragons Love Tacos" by Adam Rubin | Status: Ready for pickup | Branch: Noe Valley`)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Matched)
	assert.Equal(t, OutcomeUnchanged, res.Outcome)

	got, _ := store.get(family, rec)
	assert.Equal(t, types.StatusRecommended, got.Status)
}

func TestSyncHolds_NothingParsed(t *testing.T) {
	store := newMemStore()
	store.failOn = "list"
	r := newTestReconciler(t, store)

	res, err := r.SyncHolds(context.Background(), "I could not log in to the library website.")
	require.NoError(t, err, "no store call is made when nothing parsed")
	assert.Equal(t, OutcomeNothingParsed, res.Outcome)
	assert.Equal(t, 0, res.Parsed)
	assert.Empty(t, store.calls)
}

func TestSyncHolds_NothingToDo(t *testing.T) {
	store := newMemStore()
	store.seed(family, "Dragons Love Tacos", types.StatusReady, "Noe Valley")
	r := newTestReconciler(t, store)

	res, err := r.SyncHolds(context.Background(),
		`- "Dragons Love Tacos" by Adam Rubin | Status: Ready for pickup | Branch: Noe Valley`)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingToDo, res.Outcome)
	assert.Equal(t, 1, res.Parsed)
}

func TestSyncHolds_StoreFailurePropagates(t *testing.T) {
	store := newMemStore()
	store.seed(family, "Dragons Love Tacos", types.StatusHoldPlaced, "")
	store.failOn = "update"
	r := newTestReconciler(t, store)

	res, err := r.SyncHolds(context.Background(),
		`- "Dragons Love Tacos" by Adam Rubin | Status: Ready for pickup | Branch: Noe Valley`)
	require.Error(t, err)
	assert.ErrorIs(t, err, errInjected)

	var se *types.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "update", se.Op)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 0, res.Mutated)
}

func TestSyncHolds_IsolatedByFamily(t *testing.T) {
	store := newMemStore()
	other := store.seed("other", "Dragons Love Tacos", types.StatusHoldPlaced, "")
	r := newTestReconciler(t, store)

	res, err := r.SyncHolds(context.Background(),
		`- "Dragons Love Tacos" by Adam Rubin | Status: Ready for pickup | Branch: Noe Valley`)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingToDo, res.Outcome)

	rec, _ := store.get("other", other)
	assert.Equal(t, types.StatusHoldPlaced, rec.Status)
}

const freshPicks = `FINAL PICKS:
1. "Ada Twist, Scientist" by Andrea Beaty — A kid who asks why about everything. Available at Noe Valley.
2. "The Darkest Dark" by Chris Hadfield — Space and bravery
`

func TestIngestRecommendations_ReplacesNotMerges(t *testing.T) {
	store := newMemStore()
	store.seed(family, "Old Pick One", types.StatusRecommended, "")
	store.seed(family, "Old Pick Two", types.StatusRecommended, "")
	store.seed(family, "Old Pick Three", types.StatusRecommended, "")
	r := newTestReconciler(t, store)

	res, err := r.IngestRecommendations(context.Background(), freshPicks)
	require.NoError(t, err)

	assert.Equal(t, OutcomeApplied, res.Outcome)
	assert.Equal(t, 2, res.Parsed)
	assert.Equal(t, 3, res.Deleted)
	assert.Equal(t, 2, res.Inserted)
	assert.Equal(t, 5, res.Mutated)

	recs := store.byStatus(family, types.StatusRecommended)
	require.Len(t, recs, 2)
	assert.Equal(t, "Ada Twist, Scientist", recs[0].Title)
	assert.Equal(t, "Andrea Beaty", recs[0].Author)
	assert.Equal(t, "A kid who asks why about everything", recs[0].Justification)
	assert.Empty(t, recs[0].Branch)
	assert.Equal(t, fixedNow, recs[0].CreatedAt)
	assert.Equal(t, "The Darkest Dark", recs[1].Title)
}

func TestIngestRecommendations_DeletesBeforeInserting(t *testing.T) {
	store := newMemStore()
	stale := store.seed(family, "Old Pick", types.StatusRecommended, "")
	r := newTestReconciler(t, store)

	_, err := r.IngestRecommendations(context.Background(), freshPicks)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"delete:" + stale,
		"insert:Ada Twist, Scientist",
		"insert:The Darkest Dark",
	}, store.mutations())
}

func TestIngestRecommendations_SkipsBooksInProgress(t *testing.T) {
	store := newMemStore()
	hold := store.seed(family, "The Darkest Dark", types.StatusHoldPlaced, "Noe Valley")
	r := newTestReconciler(t, store)

	res, err := r.IngestRecommendations(context.Background(), freshPicks+
		`3. "ada twist, scientist" by Andrea Beaty — listed twice`+"\n")
	require.NoError(t, err)

	assert.Equal(t, 3, res.Parsed)
	assert.Equal(t, 1, res.Matched)
	assert.Equal(t, 1, res.Inserted)

	recs := store.byStatus(family, types.StatusRecommended)
	require.Len(t, recs, 1)
	assert.Equal(t, "Ada Twist, Scientist", recs[0].Title)

	rec, _ := store.get(family, hold)
	assert.Equal(t, types.StatusHoldPlaced, rec.Status)
}

func TestIngestRecommendations_NothingParsedKeepsStale(t *testing.T) {
	store := newMemStore()
	store.seed(family, "Old Pick", types.StatusRecommended, "")
	r := newTestReconciler(t, store)

	res, err := r.IngestRecommendations(context.Background(), "The browser crashed before any search.")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingParsed, res.Outcome)
	assert.Len(t, store.byStatus(family, types.StatusRecommended), 1)
}

func TestIngestRecommendations_UsesReplacer(t *testing.T) {
	store := &replacingStore{memStore: newMemStore()}
	store.seed(family, "Old Pick", types.StatusRecommended, "")
	r := newTestReconciler(t, store)

	res, err := r.IngestRecommendations(context.Background(), freshPicks)
	require.NoError(t, err)
	assert.Equal(t, 1, store.replaced)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, 2, res.Inserted)
	assert.Len(t, store.byStatus(family, types.StatusRecommended), 2)
}

func TestIngestRecommendations_InsertFailureLeavesPartialWindow(t *testing.T) {
	store := newMemStore()
	store.seed(family, "Old Pick", types.StatusRecommended, "")
	store.failOn = "insert"
	r := newTestReconciler(t, store)

	res, err := r.IngestRecommendations(context.Background(), freshPicks)
	require.Error(t, err)

	var se *types.StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "insert", se.Op)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, 0, res.Inserted)
	store.failOn = ""
	assert.Empty(t, store.byStatus(family, types.StatusRecommended))
}

const holdResults = `HOLD RESULTS:
1. "Ada Twist, Scientist" — Hold placed successfully (pickup at Excelsior)
2. "The Darkest Dark" — Hold placed successfully
3. "Volcanoes" — Failed: no copies available
`

func TestPlaceHolds(t *testing.T) {
	store := newMemStore()
	ada := store.seed(family, "Ada Twist, Scientist", types.StatusRecommended, "")
	dark := store.seed(family, "The Darkest Dark", types.StatusRecommended, "")
	volc := store.seed(family, "Volcanoes", types.StatusRecommended, "")
	r := newTestReconciler(t, store)

	res, err := r.PlaceHolds(context.Background(), holdResults)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Parsed)
	assert.Equal(t, 3, res.Matched)
	assert.Equal(t, 2, res.Mutated)

	rec, _ := store.get(family, ada)
	assert.Equal(t, types.StatusHoldPlaced, rec.Status)
	assert.Equal(t, "Excelsior", rec.Branch)

	rec, _ = store.get(family, dark)
	assert.Equal(t, types.StatusHoldPlaced, rec.Status)
	assert.Equal(t, "Noe Valley", rec.Branch, "falls back to preferred branch")

	rec, _ = store.get(family, volc)
	assert.Equal(t, types.StatusRecommended, rec.Status)

	again, err := r.PlaceHolds(context.Background(), holdResults)
	require.NoError(t, err)
	assert.Equal(t, 0, again.Mutated)
}

func TestPlaceHolds_NothingToDo(t *testing.T) {
	r := newTestReconciler(t, newMemStore())
	res, err := r.PlaceHolds(context.Background(), holdResults)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingToDo, res.Outcome)
}

func TestMarkPickedUp(t *testing.T) {
	store := newMemStore()
	id := store.seed(family, "Dragons Love Tacos", types.StatusReady, "Noe Valley")
	r := newTestReconciler(t, store)

	res, err := r.MarkPickedUp(context.Background(), "dragons love tacos")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Mutated)

	rec, _ := store.get(family, id)
	assert.Equal(t, types.StatusPickedUp, rec.Status)
	assert.Equal(t, "Noe Valley", rec.Branch)

	_, err = r.MarkPickedUp(context.Background(), "Dragons Love Tacos")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestNotificationsAreSentOnce(t *testing.T) {
	store := newMemStore()
	store.seed(family, "Dragons Love Tacos", types.StatusReady, "Noe Valley")
	store.seed(family, "Volcanoes", types.StatusReady, "Noe Valley")
	r := newTestReconciler(t, store)
	ctx := context.Background()

	pending, err := r.PendingNotifications(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	res, err := r.MarkNotified(ctx, pending)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Mutated)

	pending, err = r.PendingNotifications(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)

	ready, err := r.Ready(ctx)
	require.NoError(t, err)
	assert.Len(t, ready, 2)

	res, err = r.MarkNotified(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, OutcomeNothingToDo, res.Outcome)
}

func TestResultString(t *testing.T) {
	res := Result{Mode: ModeSync, Outcome: OutcomeApplied, Parsed: 3, Matched: 2, Mutated: 1}
	assert.Equal(t,
		"sync: applied (parsed=3 matched=2 mutated=1 deleted=0 inserted=0 unmapped=0 rejected=0)",
		res.String())
}

func TestApply_Dispatch(t *testing.T) {
	ctx := context.Background()
	store := newMemStore()
	store.seed(family, "Holes", types.StatusHoldPlaced, "")
	r := newTestReconciler(t, store)

	res, err := r.Apply(ctx, ModeRecommend, `"Hatchet" by Gary Paulsen — Survival`)
	require.NoError(t, err)
	assert.Equal(t, ModeRecommend, res.Mode)
	assert.Equal(t, 1, res.Inserted)

	res, err = r.Apply(ctx, ModeHold, `1. "Hatchet" — Hold placed successfully`)
	require.NoError(t, err)
	assert.Equal(t, ModeHold, res.Mode)
	assert.Equal(t, 1, res.Mutated)

	res, err = r.Apply(ctx, ModeSync, `- "Holes" by Louis Sachar | Status: In transit | Branch: Mission`)
	require.NoError(t, err)
	assert.Equal(t, ModeSync, res.Mode)
	assert.Equal(t, 1, res.Mutated)

	_, err = r.Apply(ctx, ModePickup, "")
	assert.ErrorIs(t, err, ErrUnknownMode)
}

func TestParseMode(t *testing.T) {
	tests := []struct {
		in      string
		want    Mode
		wantErr bool
	}{
		{"recommend", ModeRecommend, false},
		{"Recommendations", ModeRecommend, false},
		{"holds", ModeHold, false},
		{"status", ModeSync, false},
		{" sync ", ModeSync, false},
		{"pickup", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMode(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownMode)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRecords_AllStatusesInLifecycleOrder(t *testing.T) {
	store := newMemStore()
	store.seed(family, "Ready One", types.StatusReady, "Mission")
	store.seed(family, "Rec One", types.StatusRecommended, "")
	store.seed(family, "Held One", types.StatusHoldPlaced, "")
	store.seed("other", "Elsewhere", types.StatusReady, "")
	r := newTestReconciler(t, store)

	all, err := r.Records(context.Background())
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Rec One", all[0].Title)
	assert.Equal(t, "Held One", all[1].Title)
	assert.Equal(t, "Ready One", all[2].Title)

	ready, err := r.Records(context.Background(), types.StatusReady)
	require.NoError(t, err)
	require.Len(t, ready, 1)
}
