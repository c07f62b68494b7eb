package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/mesh-intelligence/holdwatch/pkg/types"
)

// timeFormat is fixed-width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeFormat)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ListByStatus implements types.Store.
func (b *Backend) ListByStatus(ctx context.Context, familyID string, status types.Status) ([]types.BookRecord, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if !b.attached {
		return nil, types.ErrStoreClosed
	}

	rows, err := b.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM recommendations WHERE family_id = ? AND status = ? ORDER BY created_at ASC, rowid ASC",
		familyID, string(status))
	if err != nil {
		return nil, fmt.Errorf("querying recommendations: %w", err)
	}
	defer rows.Close()

	records := []types.BookRecord{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating recommendations: %w", err)
	}
	return records, nil
}

func scanRecord(rows *sql.Rows) (types.BookRecord, error) {
	var (
		rec              types.BookRecord
		status           string
		created, updated string
		notified         sql.NullString
	)
	if err := rows.Scan(&rec.DocID, &rec.FamilyID, &rec.Title, &rec.Author, &rec.Justification,
		&rec.Branch, &status, &created, &updated, &notified); err != nil {
		return types.BookRecord{}, fmt.Errorf("scanning recommendation: %w", err)
	}
	rec.Status = types.Status(status)
	rec.CreatedAt = parseTime(created)
	rec.UpdatedAt = parseTime(updated)
	if notified.Valid {
		t := parseTime(notified.String)
		rec.NotifiedAt = &t
	}
	return rec, nil
}

// Insert implements types.Store. The store assigns a UUID v7 DocID and
// fills zero timestamps with the current time.
func (b *Backend) Insert(ctx context.Context, familyID string, rec types.BookRecord) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return "", types.ErrStoreClosed
	}
	if err := rec.Validate(); err != nil {
		return "", err
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	id, err := insertRecord(ctx, tx, familyID, rec)
	if err != nil {
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing insert: %w", err)
	}
	if err := b.persist(ctx); err != nil {
		return "", err
	}
	return id, nil
}

func insertRecord(ctx context.Context, tx *sql.Tx, familyID string, rec types.BookRecord) (string, error) {
	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}
	var notified any
	if rec.NotifiedAt != nil {
		notified = formatTime(*rec.NotifiedAt)
	}

	id := newDocID()
	_, err := tx.ExecContext(ctx,
		"INSERT INTO recommendations ("+recordColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		id, familyID, rec.Title, rec.Author, rec.Justification, rec.Branch, string(rec.Status),
		formatTime(rec.CreatedAt), formatTime(rec.UpdatedAt), notified)
	if err != nil {
		return "", fmt.Errorf("inserting recommendation: %w", err)
	}
	return id, nil
}

// Delete implements types.Store.
func (b *Backend) Delete(ctx context.Context, familyID, docID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreClosed
	}
	if docID == "" {
		return types.ErrInvalidID
	}

	res, err := b.db.ExecContext(ctx,
		"DELETE FROM recommendations WHERE family_id = ? AND doc_id = ?", familyID, docID)
	if err != nil {
		return fmt.Errorf("deleting recommendation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.ErrNotFound
	}
	return b.persist(ctx)
}

// Update implements types.Store.
func (b *Backend) Update(ctx context.Context, familyID, docID string, u types.BookUpdate) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return types.ErrStoreClosed
	}
	if docID == "" {
		return types.ErrInvalidID
	}
	if u.Status != nil && !u.Status.Valid() {
		return types.ErrInvalidStatus
	}

	updated := u.UpdatedAt
	if updated.IsZero() {
		updated = time.Now().UTC()
	}
	set := "updated_at = ?"
	args := []any{formatTime(updated)}
	if u.Status != nil {
		set += ", status = ?"
		args = append(args, string(*u.Status))
	}
	if u.Branch != nil {
		set += ", branch = ?"
		args = append(args, *u.Branch)
	}
	if u.NotifiedAt != nil {
		set += ", notified_at = ?"
		args = append(args, formatTime(*u.NotifiedAt))
	}
	args = append(args, familyID, docID)

	res, err := b.db.ExecContext(ctx,
		"UPDATE recommendations SET "+set+" WHERE family_id = ? AND doc_id = ?", args...)
	if err != nil {
		return fmt.Errorf("updating recommendation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return types.ErrNotFound
	}
	return b.persist(ctx)
}

// ReplaceRecommended implements types.Replacer. The delete and the inserts
// commit together, so a failure leaves the old batch in place.
func (b *Backend) ReplaceRecommended(ctx context.Context, familyID string, recs []types.BookRecord) (int, []string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return 0, nil, types.ErrStoreClosed
	}
	for i := range recs {
		if err := recs[i].Validate(); err != nil {
			return 0, nil, err
		}
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"DELETE FROM recommendations WHERE family_id = ? AND status = ?",
		familyID, string(types.StatusRecommended))
	if err != nil {
		return 0, nil, fmt.Errorf("deleting recommended: %w", err)
	}
	deleted, _ := res.RowsAffected()

	ids := make([]string, 0, len(recs))
	for _, rec := range recs {
		id, err := insertRecord(ctx, tx, familyID, rec)
		if err != nil {
			return 0, nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(); err != nil {
		return 0, nil, fmt.Errorf("committing replace: %w", err)
	}
	if err := b.persist(ctx); err != nil {
		return 0, nil, err
	}
	return int(deleted), ids, nil
}
