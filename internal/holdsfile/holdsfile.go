// Package holdsfile reads and writes the human-readable holds mirror, a
// markdown list with one line per tracked book:
//
//	# Books on Hold
//	- "<title>" by <author> | Status: <label> | Branch: <branch> | Why: <why>
package holdsfile

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"github.com/mesh-intelligence/holdwatch/internal/lifecycle"
	"github.com/mesh-intelligence/holdwatch/internal/report"
	"github.com/mesh-intelligence/holdwatch/pkg/types"
)

// Heading is the first line of every mirror.
const Heading = "# Books on Hold"

// Line is one book read back from a mirror.
type Line struct {
	Title  string
	Author string
	Label  string       // status as written, e.g. "Ready for pickup"
	Status types.Status // empty when Label is not recognized
	Branch string
	Why    string
}

var whyPattern = regexp.MustCompile(`(?i)\|\s*why:\s*(.*)$`)

// Render formats records as a mirror document in the given order.
func Render(records []types.BookRecord) []byte {
	var b bytes.Buffer
	b.WriteString(Heading + "\n")
	for _, r := range records {
		branch := r.Branch
		if branch == "" {
			branch = "-"
		}
		fmt.Fprintf(&b, "- \"%s\" by %s | Status: %s | Branch: %s | Why: %s\n",
			r.Title, r.Author, r.Status.Label(), branch, r.Justification)
	}
	return b.Bytes()
}

// Write atomically replaces the mirror at path.
func Write(path string, records []types.BookRecord) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".holds-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	if _, err := tmp.Write(Render(records)); err != nil {
		return fmt.Errorf("writing mirror: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}
	return nil
}

// Read parses the mirror at path. A missing file yields no lines.
func Read(path string) ([]Line, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return Parse(data), nil
}

// Parse extracts mirror lines from a markdown document. Only list items
// are considered; items that do not follow the mirror grammar are skipped.
func Parse(source []byte) []Line {
	doc := goldmark.New().Parser().Parse(text.NewReader(source))

	var lines []Line
	_ = ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering || n.Kind() != ast.KindListItem {
			return ast.WalkContinue, nil
		}
		if l, ok := parseItem(itemText(n, source)); ok {
			lines = append(lines, l)
		}
		return ast.WalkSkipChildren, nil
	})
	return lines
}

// itemText joins the raw source lines of a list item's blocks.
func itemText(item ast.Node, source []byte) string {
	var parts []string
	for c := item.FirstChild(); c != nil; c = c.NextSibling() {
		segs := c.Lines()
		for i := 0; i < segs.Len(); i++ {
			seg := segs.At(i)
			parts = append(parts, strings.TrimSpace(string(seg.Value(source))))
		}
	}
	return strings.Join(parts, " ")
}

func parseItem(s string) (Line, bool) {
	for e := range report.ParseStatusReport(s) {
		l := Line{
			Title:  e.Title,
			Author: e.Author,
			Label:  e.RawStatus,
			Status: statusFromLabel(e.RawStatus),
			Branch: e.Branch,
		}
		if m := whyPattern.FindStringSubmatch(s); m != nil {
			l.Why = strings.TrimSpace(m[1])
		}
		return l, true
	}
	return Line{}, false
}

// statusFromLabel accepts the labels Render writes, canonical status names,
// and anything the status normalizer recognizes.
func statusFromLabel(label string) types.Status {
	for _, s := range types.AllStatuses {
		if strings.EqualFold(label, s.Label()) {
			return s
		}
	}
	if s, err := types.ParseStatus(label); err == nil {
		return s
	}
	if s, ok := lifecycle.Normalize(label); ok {
		return s
	}
	return ""
}

// Ready returns the lines whose status is ready, in file order.
func Ready(lines []Line) []Line {
	var out []Line
	for _, l := range lines {
		if l.Status == types.StatusReady {
			out = append(out, l)
		}
	}
	return out
}

// Record converts a mirror line to a record for the given family.
func (l Line) Record(familyID string) types.BookRecord {
	return types.BookRecord{
		FamilyID:      familyID,
		Title:         l.Title,
		Author:        l.Author,
		Justification: l.Why,
		Branch:        l.Branch,
		Status:        l.Status,
	}
}

// KeepWhy fills empty justifications in records from a previous mirror,
// matching titles with match. Records are modified in place.
func KeepWhy(records []types.BookRecord, previous []Line, match lifecycle.Matcher) {
	if match == nil {
		match = lifecycle.FoldTitle
	}
	why := make(map[string]string, len(previous))
	for _, l := range previous {
		if l.Why != "" {
			why[match(l.Title)] = l.Why
		}
	}
	for i := range records {
		if records[i].Justification == "" {
			records[i].Justification = why[match(records[i].Title)]
		}
	}
}
