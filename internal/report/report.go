// Package report extracts structured book entries from the free-form text
// an upstream browsing agent produces. Parsing is line oriented and
// tolerant: lines that do not match a grammar are skipped, never fatal.
//
// Every parser returns a lazy iter.Seq. Parsing keeps no state, so a
// sequence can be ranged over any number of times with identical results.
package report

import (
	"iter"
	"regexp"
	"strings"
)

// Entry is one book parsed from a report line. Which fields are set depends
// on the grammar: recommendations fill Justification, status reports fill
// RawStatus and Branch.
type Entry struct {
	Title         string
	Author        string
	Justification string
	RawStatus     string
	Branch        string
}

// HoldOutcome is one line of a hold-placement report.
type HoldOutcome struct {
	Title  string
	Placed bool
	Branch string // pickup branch named by the report, if any
	Detail string // the text after the title, e.g. the failure reason
}

// AvailabilityMarker starts the trailing availability clause the agent
// appends to a justification. Everything from it on is dropped.
const AvailabilityMarker = ". Available at"

// Title delimiters accept straight and curly double quotes.
var (
	recommendationPattern = regexp.MustCompile(
		`["“]([^"“”]+)["”][*_]*\s+by\s+([^—–\n]+?)(?:\s*[—–]\s*(.+?))?\s*$`)
	statusPattern = regexp.MustCompile(
		`(?i)["“]([^"“”]+)["”][*_]*\s+by\s+([^|]+)\|\s*status:\s*([^|]+)\|\s*branch:\s*([^|]*)`)
	holdPattern = regexp.MustCompile(
		`["“]([^"“”]+)["”][*_]*(?:\s+by\s+[^—–]+?)?(?:\s*[—–]\s*|\s+-\s+)(.+?)\s*$`)
	pickupBranchPattern = regexp.MustCompile(`(?i)pick\s*up at\s+([^)\n]+)`)
)

// decoration is stripped from both ends of titles and authors.
const decoration = " \t*_`"

// ParseRecommendations parses lines of the form
//
//	"<title>" by <author>[ — <justification>]
func ParseRecommendations(text string) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for line := range strings.Lines(text) {
			m := recommendationPattern.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
			if m == nil {
				continue
			}
			e, ok := newEntry(m[1], m[2])
			if !ok {
				continue
			}
			e.Justification = cleanJustification(m[3])
			if !yield(e) {
				return
			}
		}
	}
}

// ParseStatusReport parses lines of the form
//
//	- "<title>" by <author> | Status: <status> | Branch: <branch>
//
// Whitespace around the pipes is free-form and the leading dash is optional.
// Anything after a further pipe (such as the mirror's Why column) is ignored.
func ParseStatusReport(text string) iter.Seq[Entry] {
	return func(yield func(Entry) bool) {
		for line := range strings.Lines(text) {
			m := statusPattern.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
			if m == nil {
				continue
			}
			e, ok := newEntry(m[1], m[2])
			if !ok {
				continue
			}
			e.RawStatus = strings.TrimSpace(m[3])
			e.Branch = CleanBranch(m[4])
			if !yield(e) {
				return
			}
		}
	}
}

// ParseHoldResults parses the numbered lines of a hold-placement report:
//
//	1. "<title>" — Hold placed successfully (pickup at <branch>)
//	2. "<title>" — Failed: <reason>
func ParseHoldResults(text string) iter.Seq[HoldOutcome] {
	return func(yield func(HoldOutcome) bool) {
		for line := range strings.Lines(text) {
			m := holdPattern.FindStringSubmatch(strings.TrimRight(line, "\r\n"))
			if m == nil {
				continue
			}
			title := strings.Trim(m[1], decoration)
			if title == "" {
				continue
			}
			detail := strings.TrimSpace(m[2])
			out := HoldOutcome{
				Title:  title,
				Placed: holdPlaced(detail),
				Detail: detail,
			}
			if bm := pickupBranchPattern.FindStringSubmatch(detail); bm != nil {
				out.Branch = CleanBranch(bm[1])
			}
			if !yield(out) {
				return
			}
		}
	}
}

// CleanBranch trims a branch name and maps placeholders such as "unknown"
// or "N/A" to the empty string.
func CleanBranch(s string) string {
	s = strings.Trim(s, decoration+".")
	switch strings.ToLower(s) {
	case "", "-", "unknown", "n/a", "na", "none", "tbd":
		return ""
	}
	return s
}

func newEntry(title, author string) (Entry, bool) {
	e := Entry{
		Title:  strings.Trim(title, decoration),
		Author: strings.Trim(author, decoration),
	}
	if e.Title == "" || e.Author == "" {
		return Entry{}, false
	}
	return e, true
}

func cleanJustification(s string) string {
	s = strings.TrimRight(strings.TrimSpace(s), ". ")
	if i := strings.Index(s, AvailabilityMarker); i >= 0 {
		s = s[:i]
	}
	return s
}

func holdPlaced(detail string) bool {
	d := strings.ToLower(detail)
	return strings.Contains(d, "hold placed") && !strings.Contains(d, "fail")
}
