package types

import "strings"

// Status is the lifecycle position of a tracked book. A book progresses
// recommended -> hold_placed -> in_transit -> ready -> picked_up.
type Status string

// Lifecycle statuses.
const (
	StatusRecommended Status = "recommended"
	StatusHoldPlaced  Status = "hold_placed"
	StatusInTransit   Status = "in_transit"
	StatusReady       Status = "ready"
	StatusPickedUp    Status = "picked_up"
)

// AllStatuses lists the statuses in lifecycle order.
var AllStatuses = []Status{
	StatusRecommended,
	StatusHoldPlaced,
	StatusInTransit,
	StatusReady,
	StatusPickedUp,
}

// statusRank orders statuses along the lifecycle.
var statusRank = map[Status]int{
	StatusRecommended: 0,
	StatusHoldPlaced:  1,
	StatusInTransit:   2,
	StatusReady:       3,
	StatusPickedUp:    4,
}

// statusLabels are the human-readable forms written to the holds mirror.
var statusLabels = map[Status]string{
	StatusRecommended: "Recommended",
	StatusHoldPlaced:  "On hold",
	StatusInTransit:   "In transit",
	StatusReady:       "Ready for pickup",
	StatusPickedUp:    "Picked up",
}

// Valid reports whether s is a recognized status.
func (s Status) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Rank returns the position of s in the lifecycle, or -1 if s is unknown.
func (s Status) Rank() int {
	r, ok := statusRank[s]
	if !ok {
		return -1
	}
	return r
}

// Before reports whether s comes strictly earlier in the lifecycle than other.
func (s Status) Before(other Status) bool {
	return s.Valid() && other.Valid() && s.Rank() < other.Rank()
}

// Label returns the human-readable label for s.
func (s Status) Label() string {
	if l, ok := statusLabels[s]; ok {
		return l
	}
	return string(s)
}

// IsActive reports whether a hold in this status is still being tracked
// at the library, i.e. placed but not yet ready.
func (s Status) IsActive() bool {
	return s == StatusHoldPlaced || s == StatusInTransit
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusPickedUp
}

// ParseStatus converts a canonical status name to a Status.
// Matching ignores case and surrounding whitespace.
// Returns ErrInvalidStatus for anything else.
func ParseStatus(name string) (Status, error) {
	s := Status(strings.ToLower(strings.TrimSpace(name)))
	if !s.Valid() {
		return "", ErrInvalidStatus
	}
	return s, nil
}
