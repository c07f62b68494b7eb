package sqlite

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/holdwatch/pkg/types"
)

const family = "leo"

func testConfig(dir string) types.Config {
	return types.Config{Backend: types.BackendSQLite, DataDir: dir, FamilyID: family}
}

func openTest(t *testing.T, dir string) *Backend {
	t.Helper()
	b, err := Open(testConfig(dir))
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })
	return b
}

func book(title string, status types.Status) types.BookRecord {
	return types.BookRecord{Title: title, Author: "Author of " + title, Status: status}
}

func TestBackend_Attach(t *testing.T) {
	dir := t.TempDir()
	b := NewBackend()
	require.NoError(t, b.Attach(testConfig(dir)))
	defer b.Detach()

	_, err := os.Stat(filepath.Join(dir, dbFile))
	assert.NoError(t, err, "database file should exist")

	assert.ErrorIs(t, b.Attach(testConfig(dir)), ErrAlreadyAttached)
}

func TestBackend_AttachValidatesConfig(t *testing.T) {
	b := NewBackend()
	err := b.Attach(types.Config{Backend: types.BackendSQLite, DataDir: t.TempDir()})
	assert.ErrorIs(t, err, types.ErrFamilyEmpty)
}

func TestBackend_DetachIsIdempotent(t *testing.T) {
	b := openTest(t, t.TempDir())
	require.NoError(t, b.Detach())
	require.NoError(t, b.Detach())

	ctx := context.Background()
	_, err := b.ListByStatus(ctx, family, types.StatusRecommended)
	assert.ErrorIs(t, err, types.ErrStoreClosed)
	_, err = b.Insert(ctx, family, book("Hatchet", types.StatusRecommended))
	assert.ErrorIs(t, err, types.ErrStoreClosed)
	assert.ErrorIs(t, b.Delete(ctx, family, "x"), types.ErrStoreClosed)
	assert.ErrorIs(t, b.Update(ctx, family, "x", types.BookUpdate{}), types.ErrStoreClosed)
}

func TestBackend_InsertAndList(t *testing.T) {
	ctx := context.Background()
	b := openTest(t, t.TempDir())

	base := time.Date(2026, 10, 1, 9, 0, 0, 0, time.UTC)
	titles := []string{"Hatchet", "Holes", "Wonder"}
	for i, title := range titles {
		rec := book(title, types.StatusRecommended)
		rec.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		id, err := b.Insert(ctx, family, rec)
		require.NoError(t, err)
		assert.Len(t, id, 36)
	}
	_, err := b.Insert(ctx, "other", book("Matilda", types.StatusRecommended))
	require.NoError(t, err)

	got, err := b.ListByStatus(ctx, family, types.StatusRecommended)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, rec := range got {
		assert.Equal(t, titles[i], rec.Title)
		assert.Equal(t, family, rec.FamilyID)
		assert.True(t, rec.CreatedAt.Equal(base.Add(time.Duration(i)*time.Minute)))
		assert.Nil(t, rec.NotifiedAt)
	}

	got, err = b.ListByStatus(ctx, family, types.StatusReady)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBackend_InsertValidates(t *testing.T) {
	b := openTest(t, t.TempDir())
	_, err := b.Insert(context.Background(), family, types.BookRecord{Author: "x", Status: types.StatusRecommended})
	assert.ErrorIs(t, err, types.ErrInvalidTitle)
}

func TestBackend_Update(t *testing.T) {
	ctx := context.Background()
	b := openTest(t, t.TempDir())

	id, err := b.Insert(ctx, family, book("Hatchet", types.StatusHoldPlaced))
	require.NoError(t, err)

	ready := types.StatusReady
	branch := "Noe Valley"
	now := time.Date(2026, 10, 17, 8, 30, 0, 0, time.UTC)
	require.NoError(t, b.Update(ctx, family, id, types.BookUpdate{
		Status: &ready, Branch: &branch, NotifiedAt: &now, UpdatedAt: now,
	}))

	got, err := b.ListByStatus(ctx, family, types.StatusReady)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Noe Valley", got[0].Branch)
	assert.True(t, got[0].UpdatedAt.Equal(now))
	require.NotNil(t, got[0].NotifiedAt)
	assert.True(t, got[0].NotifiedAt.Equal(now))

	tests := []struct {
		name     string
		familyID string
		docID    string
		update   types.BookUpdate
		want     error
	}{
		{"missing doc", family, "no-such-id", types.BookUpdate{}, types.ErrNotFound},
		{"other family", "other", id, types.BookUpdate{}, types.ErrNotFound},
		{"empty id", family, "", types.BookUpdate{}, types.ErrInvalidID},
		{"bad status", family, id, types.BookUpdate{Status: ptr(types.Status("lost"))}, types.ErrInvalidStatus},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, b.Update(ctx, tt.familyID, tt.docID, tt.update), tt.want)
		})
	}
}

func TestBackend_Delete(t *testing.T) {
	ctx := context.Background()
	b := openTest(t, t.TempDir())

	id, err := b.Insert(ctx, family, book("Hatchet", types.StatusRecommended))
	require.NoError(t, err)

	assert.ErrorIs(t, b.Delete(ctx, "other", id), types.ErrNotFound)
	require.NoError(t, b.Delete(ctx, family, id))
	assert.ErrorIs(t, b.Delete(ctx, family, id), types.ErrNotFound)

	got, err := b.ListByStatus(ctx, family, types.StatusRecommended)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestBackend_ReplaceRecommended(t *testing.T) {
	ctx := context.Background()
	b := openTest(t, t.TempDir())

	for _, title := range []string{"Old One", "Old Two", "Old Three"} {
		_, err := b.Insert(ctx, family, book(title, types.StatusRecommended))
		require.NoError(t, err)
	}
	_, err := b.Insert(ctx, family, book("On Hold", types.StatusHoldPlaced))
	require.NoError(t, err)
	_, err = b.Insert(ctx, "other", book("Elsewhere", types.StatusRecommended))
	require.NoError(t, err)

	deleted, ids, err := b.ReplaceRecommended(ctx, family, []types.BookRecord{
		book("New One", types.StatusRecommended),
		book("New Two", types.StatusRecommended),
	})
	require.NoError(t, err)
	assert.Equal(t, 3, deleted)
	assert.Len(t, ids, 2)

	got, err := b.ListByStatus(ctx, family, types.StatusRecommended)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "New One", got[0].Title)
	assert.Equal(t, "New Two", got[1].Title)

	held, err := b.ListByStatus(ctx, family, types.StatusHoldPlaced)
	require.NoError(t, err)
	assert.Len(t, held, 1)

	other, err := b.ListByStatus(ctx, "other", types.StatusRecommended)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

func TestBackend_ReplaceRecommendedRejectsInvalidBatch(t *testing.T) {
	ctx := context.Background()
	b := openTest(t, t.TempDir())

	_, err := b.Insert(ctx, family, book("Keep Me", types.StatusRecommended))
	require.NoError(t, err)

	_, _, err = b.ReplaceRecommended(ctx, family, []types.BookRecord{
		book("Fine", types.StatusRecommended),
		{Title: "No Author", Status: types.StatusRecommended},
	})
	assert.ErrorIs(t, err, types.ErrInvalidAuthor)

	got, err := b.ListByStatus(ctx, family, types.StatusRecommended)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Keep Me", got[0].Title)
}

func TestBackend_ReattachRestoresFromJSONL(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := Open(testConfig(dir))
	require.NoError(t, err)
	id, err := b.Insert(ctx, family, book("Hatchet", types.StatusHoldPlaced))
	require.NoError(t, err)
	branch := "Mission"
	require.NoError(t, b.Update(ctx, family, id, types.BookUpdate{Branch: &branch}))
	require.NoError(t, b.Close())

	_, err = os.Stat(filepath.Join(dir, recordsFile))
	require.NoError(t, err)

	b2 := openTest(t, dir)
	got, err := b2.ListByStatus(ctx, family, types.StatusHoldPlaced)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, id, got[0].DocID)
	assert.Equal(t, "Mission", got[0].Branch)
	assert.Equal(t, "Hatchet", got[0].Title)
}

func ptr[T any](v T) *T { return &v }
