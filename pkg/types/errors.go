package types

import (
	"errors"
	"fmt"
)

// Record errors.
var (
	ErrNotFound          = errors.New("record not found")
	ErrInvalidID         = errors.New("invalid record ID")
	ErrInvalidTitle      = errors.New("title must not be empty")
	ErrInvalidAuthor     = errors.New("author must not be empty")
	ErrInvalidStatus     = errors.New("invalid status value")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store lifecycle errors.
var (
	ErrStoreClosed    = errors.New("store is closed")
	ErrFamilyEmpty    = errors.New("family ID must not be empty")
	ErrBackendEmpty   = errors.New("backend must not be empty")
	ErrBackendUnknown = errors.New("unknown backend")
)

// StoreError reports a failed call into a Store. The reconciler never
// recovers from these; it returns them with whatever it applied so far.
type StoreError struct {
	Op    string // list, insert, delete, update, replace
	DocID string // empty for list and replace
	Err   error
}

func (e *StoreError) Error() string {
	if e.DocID != "" {
		return fmt.Sprintf("store %s %s: %v", e.Op, e.DocID, e.Err)
	}
	return fmt.Sprintf("store %s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error { return e.Err }
