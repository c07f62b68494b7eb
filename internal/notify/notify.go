// Package notify tells a family that books are waiting at the library. The
// reconciler's final ready set is formatted into a short context string
// that a voice agent reads out on an outbound phone call.
package notify

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/mesh-intelligence/holdwatch/pkg/types"
)

// Call is one notification: who to ring and what to tell them.
type Call struct {
	PhoneNumber  string
	Books        []types.BookRecord
	BooksContext string
}

// NewCall builds a Call for the given ready books.
func NewCall(phone string, books []types.BookRecord) Call {
	return Call{PhoneNumber: phone, Books: books, BooksContext: FormatBooksContext(books)}
}

// Notifier delivers a Call.
type Notifier interface {
	Notify(ctx context.Context, call Call) error
}

// FormatBooksContext renders ready books grouped by pickup branch, in the
// order branches first appear:
//
//	Books ready for pickup at Noe Valley:
//	1. "Hatchet" by Gary Paulsen — Loves survival stories
func FormatBooksContext(books []types.BookRecord) string {
	var (
		order  []string
		groups = map[string][]types.BookRecord{}
	)
	for _, b := range books {
		if _, ok := groups[b.Branch]; !ok {
			order = append(order, b.Branch)
		}
		groups[b.Branch] = append(groups[b.Branch], b)
	}

	var sb strings.Builder
	for gi, branch := range order {
		if gi > 0 {
			sb.WriteString("\n\n")
		}
		if branch == "" {
			sb.WriteString("Books ready for pickup:")
		} else {
			fmt.Fprintf(&sb, "Books ready for pickup at %s:", branch)
		}
		for i, b := range groups[branch] {
			fmt.Fprintf(&sb, "\n%d. \"%s\" by %s", i+1, b.Title, b.Author)
			if b.Justification != "" {
				sb.WriteString(" — " + b.Justification)
			}
		}
	}
	return sb.String()
}

// WriterNotifier prints the call instead of placing it. It backs dry runs.
type WriterNotifier struct {
	W io.Writer
}

// Notify implements Notifier.
func (n WriterNotifier) Notify(_ context.Context, call Call) error {
	_, err := fmt.Fprintf(n.W, "Would call %s with:\n%s\n", call.PhoneNumber, call.BooksContext)
	return err
}
