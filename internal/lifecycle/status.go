package lifecycle

import (
	"strings"

	"github.com/mesh-intelligence/holdwatch/pkg/types"
)

// statusRule maps any of its phrases to a status. Rules are evaluated in
// order and the first match wins.
type statusRule struct {
	phrases []string
	status  types.Status
}

var statusRules = []statusRule{
	{phrases: []string{"ready for pickup"}, status: types.StatusReady},
	{phrases: []string{"in transit"}, status: types.StatusInTransit},
	{phrases: []string{"on hold", "processing", "not ready"}, status: types.StatusHoldPlaced},
}

// Normalize maps a library's human-readable hold status to a lifecycle
// status. A phrase preceded by "not " does not count, so "in transit, not
// ready for pickup" is in_transit and "not ready for pickup" is hold_placed.
// The second result is false when no rule matches; callers must not mutate
// a record on an unmapped status.
func Normalize(raw string) (types.Status, bool) {
	s := strings.ToLower(raw)
	for _, rule := range statusRules {
		for _, p := range rule.phrases {
			if containsAffirmed(s, p) {
				return rule.status, true
			}
		}
	}
	return "", false
}

// containsAffirmed reports whether s contains phrase at least once without
// "not " directly before it.
func containsAffirmed(s, phrase string) bool {
	for off := 0; ; {
		i := strings.Index(s[off:], phrase)
		if i < 0 {
			return false
		}
		i += off
		if !strings.HasSuffix(s[:i], "not ") {
			return true
		}
		off = i + len(phrase)
	}
}
