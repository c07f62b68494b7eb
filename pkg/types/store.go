package types

import "context"

// Store is the per-family document collection the reconciler reads and
// mutates. Every mutation is keyed by the record's DocID, never by title.
type Store interface {
	// ListByStatus returns the family's records in the given status,
	// oldest first. An unknown family yields an empty slice.
	ListByStatus(ctx context.Context, familyID string, status Status) ([]BookRecord, error)

	// Insert persists rec for the family and returns the DocID the store
	// assigned. Any DocID already set on rec is ignored.
	Insert(ctx context.Context, familyID string, rec BookRecord) (string, error)

	// Delete removes the record. Returns ErrNotFound if it does not exist.
	Delete(ctx context.Context, familyID, docID string) error

	// Update applies a partial update. Returns ErrNotFound if the record
	// does not exist.
	Update(ctx context.Context, familyID, docID string, u BookUpdate) error

	// Close releases backend resources.
	Close() error
}

// Replacer is implemented by stores that can swap a family's recommended
// records for a new batch in one transaction. It returns the number of
// records deleted and the DocIDs inserted, in batch order.
type Replacer interface {
	ReplaceRecommended(ctx context.Context, familyID string, recs []BookRecord) (deleted int, ids []string, err error)
}
