package sqlite

import (
	"database/sql"
	"fmt"
)

// loadJSONL inserts every record from path into the database in one
// transaction: either all load or the database stays empty. Records that
// repeat a doc_id keep the last occurrence.
func loadJSONL(db *sql.DB, path string) error {
	records, err := readJSONL(path)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("beginning load transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare("INSERT OR REPLACE INTO recommendations (" + recordColumns +
		") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		var notified any
		if rec.NotifiedAt != nil {
			notified = *rec.NotifiedAt
		}
		if _, err := stmt.Exec(rec.DocID, rec.FamilyID, rec.Title, rec.Author, rec.Why,
			rec.Branch, rec.Status, rec.CreatedAt, rec.UpdatedAt, notified); err != nil {
			return fmt.Errorf("loading record %s: %w", rec.DocID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing load transaction: %w", err)
	}
	return nil
}
