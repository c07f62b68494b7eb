package lifecycle

import (
	"strings"

	"golang.org/x/text/cases"
)

// Matcher reduces a title to the key used to match report entries against
// stored records. Two titles refer to the same book exactly when their keys
// are equal.
type Matcher func(title string) string

// FoldTitle is the default Matcher: surrounding whitespace is dropped and
// the rest is case folded. There is no fuzzy matching; a paraphrased title
// from the agent will not match.
func FoldTitle(title string) string {
	// Casers carry state and must not be shared between goroutines.
	return cases.Fold().String(strings.TrimSpace(title))
}
