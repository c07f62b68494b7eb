package sqlite

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// recordsFile is the JSONL source of truth inside the data directory.
const recordsFile = "recommendations.jsonl"

// recordJSONL is one line of recommendations.jsonl. Timestamps are kept as
// RFC 3339 strings exactly as stored in SQLite.
type recordJSONL struct {
	DocID      string  `json:"doc_id"`
	FamilyID   string  `json:"family_id"`
	Title      string  `json:"title"`
	Author     string  `json:"author"`
	Why        string  `json:"why"`
	Branch     string  `json:"branch"`
	Status     string  `json:"status"`
	CreatedAt  string  `json:"created_at"`
	UpdatedAt  string  `json:"updated_at"`
	NotifiedAt *string `json:"notified_at,omitempty"`
}

// readJSONL returns every well-formed record in path. Blank and malformed
// lines are skipped. A missing file yields no records.
func readJSONL(path string) ([]recordJSONL, error) {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	var records []recordJSONL
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec recordJSONL
		if err := json.Unmarshal(line, &rec); err != nil || rec.DocID == "" {
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning %s: %w", path, err)
	}
	return records, nil
}

// writeJSONL replaces path with records using the temp-file, fsync, rename
// pattern so readers never observe a partial file.
func writeJSONL(path string, records []recordJSONL) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".jsonl-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	defer func() {
		if err != nil {
			tmp.Close()
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("writing record %s: %w", rec.DocID, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing buffer: %w", err)
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
