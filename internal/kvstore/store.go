// Package kvstore implements types.Store on a Badger key-value database.
// Records are JSON values under family:<family>:rec:<docID>.
package kvstore

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"path/filepath"
	"slices"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"

	"github.com/mesh-intelligence/holdwatch/pkg/types"
)

// dbDir is the Badger directory inside the data directory.
const dbDir = "holdwatch.badger"

// Store wraps a Badger database instance.
type Store struct {
	db     *badger.DB
	logger *slog.Logger
}

var (
	_ types.Store    = (*Store)(nil)
	_ types.Replacer = (*Store)(nil)
)

// Open opens (or creates) the Badger database under config.DataDir.
func Open(config types.Config, logger *slog.Logger) (*Store, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	path := filepath.Join(config.DataDir, dbDir)
	opts := badger.DefaultOptions(path)
	opts.Logger = nil      // Badger's internal logging is noisy
	opts.SyncWrites = true // a crash must not lose a status transition

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db: %w", err)
	}

	logger.Debug("badger database opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close gracefully closes the database.
func (s *Store) Close() error {
	if s.db.IsClosed() {
		return nil
	}
	return s.db.Close()
}

func familyPrefix(familyID string) []byte {
	return []byte("family:" + familyID + ":rec:")
}

func recordKey(familyID, docID string) []byte {
	return append(familyPrefix(familyID), docID...)
}

// records iterates every record of a family in key order. A family whose
// ID extends another's key prefix shares its key range, so each record's
// FamilyID is checked as well.
func records(txn *badger.Txn, familyID string) iter.Seq2[types.BookRecord, error] {
	return func(yield func(types.BookRecord, error) bool) {
		prefix := familyPrefix(familyID)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			var rec types.BookRecord
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &rec)
			})
			if err != nil {
				yield(types.BookRecord{}, fmt.Errorf("decoding %s: %w", it.Item().Key(), err))
				return
			}
			if rec.FamilyID != familyID {
				continue
			}
			if !yield(rec, nil) {
				return
			}
		}
	}
}

func (s *Store) checkOpen(ctx context.Context) error {
	if s.db.IsClosed() {
		return types.ErrStoreClosed
	}
	return ctx.Err()
}

// ListByStatus implements types.Store.
func (s *Store) ListByStatus(ctx context.Context, familyID string, status types.Status) ([]types.BookRecord, error) {
	if err := s.checkOpen(ctx); err != nil {
		return nil, err
	}

	out := []types.BookRecord{}
	err := s.db.View(func(txn *badger.Txn) error {
		for rec, err := range records(txn, familyID) {
			if err != nil {
				return err
			}
			if rec.Status == status {
				out = append(out, rec)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// DocIDs are UUID v7, so they break CreatedAt ties in insertion order.
	slices.SortFunc(out, func(a, b types.BookRecord) int {
		return cmp.Or(a.CreatedAt.Compare(b.CreatedAt), cmp.Compare(a.DocID, b.DocID))
	})
	return out, nil
}

// get reads the record at key. Returns ErrNotFound when the key is absent
// or the record belongs to another family.
func get(txn *badger.Txn, familyID string, key []byte) (types.BookRecord, error) {
	item, err := txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return types.BookRecord{}, types.ErrNotFound
	}
	if err != nil {
		return types.BookRecord{}, err
	}

	var rec types.BookRecord
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, &rec)
	}); err != nil {
		return types.BookRecord{}, fmt.Errorf("decoding %s: %w", key, err)
	}
	if rec.FamilyID != familyID {
		return types.BookRecord{}, types.ErrNotFound
	}
	return rec, nil
}

// put assigns a DocID and timestamps to rec and writes it within txn.
func put(txn *badger.Txn, familyID string, rec types.BookRecord) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("generating doc id: %w", err)
	}
	rec.DocID = id.String()
	rec.FamilyID = familyID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = rec.CreatedAt
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("failed to marshal record: %w", err)
	}
	if err := txn.Set(recordKey(familyID, rec.DocID), data); err != nil {
		return "", fmt.Errorf("failed to set key: %w", err)
	}
	return rec.DocID, nil
}

// Insert implements types.Store.
func (s *Store) Insert(ctx context.Context, familyID string, rec types.BookRecord) (string, error) {
	if err := s.checkOpen(ctx); err != nil {
		return "", err
	}
	if err := rec.Validate(); err != nil {
		return "", err
	}

	var id string
	err := s.db.Update(func(txn *badger.Txn) error {
		var err error
		id, err = put(txn, familyID, rec)
		return err
	})
	if err != nil {
		return "", err
	}
	s.logger.Debug("record inserted", "family", familyID, "doc_id", id, "title", rec.Title)
	return id, nil
}

// Delete implements types.Store.
func (s *Store) Delete(ctx context.Context, familyID, docID string) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	if docID == "" {
		return types.ErrInvalidID
	}

	key := recordKey(familyID, docID)
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := get(txn, familyID, key); err != nil {
			return err
		}
		return txn.Delete(key)
	})
}

// Update implements types.Store.
func (s *Store) Update(ctx context.Context, familyID, docID string, u types.BookUpdate) error {
	if err := s.checkOpen(ctx); err != nil {
		return err
	}
	if docID == "" {
		return types.ErrInvalidID
	}
	if u.Status != nil && !u.Status.Valid() {
		return types.ErrInvalidStatus
	}
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = time.Now().UTC()
	}

	key := recordKey(familyID, docID)
	return s.db.Update(func(txn *badger.Txn) error {
		rec, err := get(txn, familyID, key)
		if err != nil {
			return err
		}
		rec.Apply(u)

		data, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}
		return txn.Set(key, data)
	})
}

// ReplaceRecommended implements types.Replacer in a single transaction.
func (s *Store) ReplaceRecommended(ctx context.Context, familyID string, recs []types.BookRecord) (int, []string, error) {
	if err := s.checkOpen(ctx); err != nil {
		return 0, nil, err
	}
	for i := range recs {
		if err := recs[i].Validate(); err != nil {
			return 0, nil, err
		}
	}

	var (
		deleted int
		ids     []string
	)
	err := s.db.Update(func(txn *badger.Txn) error {
		var stale [][]byte
		for rec, err := range records(txn, familyID) {
			if err != nil {
				return err
			}
			if rec.Status == types.StatusRecommended {
				stale = append(stale, recordKey(familyID, rec.DocID))
			}
		}
		for _, key := range stale {
			if err := txn.Delete(key); err != nil {
				return fmt.Errorf("failed to delete key: %w", err)
			}
		}

		ids = make([]string, 0, len(recs))
		for _, rec := range recs {
			id, err := put(txn, familyID, rec)
			if err != nil {
				return err
			}
			ids = append(ids, id)
		}
		deleted = len(stale)
		return nil
	})
	if err != nil {
		return 0, nil, err
	}
	return deleted, ids, nil
}
