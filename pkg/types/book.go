package types

import "time"

// BookRecord is a recommendation or hold tracked for one family.
type BookRecord struct {
	DocID         string     `json:"doc_id"`                // Assigned by the store on insert.
	FamilyID      string     `json:"family_id"`             // Owning household.
	Title         string     `json:"title"`                 // Required; identity key (case-insensitive).
	Author        string     `json:"author"`                // Required.
	Justification string     `json:"why"`                   // Why the book was recommended; may be empty.
	Branch        string     `json:"branch"`                // Pickup location; empty while recommended.
	Status        Status     `json:"status"`                // Lifecycle position.
	CreatedAt     time.Time  `json:"created_at"`            // Set on insert.
	UpdatedAt     time.Time  `json:"updated_at"`            // Set on every change.
	NotifiedAt    *time.Time `json:"notified_at,omitempty"` // Set once the family was called about it.
}

// Validate checks the fields a store requires before persisting a record.
// Returns ErrInvalidTitle, ErrInvalidAuthor, or ErrInvalidStatus.
func (r *BookRecord) Validate() error {
	if r.Title == "" {
		return ErrInvalidTitle
	}
	if r.Author == "" {
		return ErrInvalidAuthor
	}
	if !r.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Apply copies the non-nil fields of u onto the record.
func (r *BookRecord) Apply(u BookUpdate) {
	if u.Status != nil {
		r.Status = *u.Status
	}
	if u.Branch != nil {
		r.Branch = *u.Branch
	}
	if u.NotifiedAt != nil {
		t := *u.NotifiedAt
		r.NotifiedAt = &t
	}
	if !u.UpdatedAt.IsZero() {
		r.UpdatedAt = u.UpdatedAt
	}
}

// Advance moves the record to next. Moving backward along the lifecycle
// returns ErrInvalidTransition; setting the current status is a no-op.
func (r *BookRecord) Advance(next Status, now time.Time) error {
	if !next.Valid() {
		return ErrInvalidStatus
	}
	if next == r.Status {
		return nil
	}
	if next.Before(r.Status) {
		return ErrInvalidTransition
	}
	r.Status = next
	r.UpdatedAt = now
	return nil
}

// BookUpdate is a partial update applied by Store.Update. Nil fields are
// left unchanged. UpdatedAt is always written when non-zero.
type BookUpdate struct {
	Status     *Status
	Branch     *string
	NotifiedAt *time.Time
	UpdatedAt  time.Time
}

// IsEmpty reports whether the update would change nothing but the timestamp.
func (u BookUpdate) IsEmpty() bool {
	return u.Status == nil && u.Branch == nil && u.NotifiedAt == nil
}
