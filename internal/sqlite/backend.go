package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/mesh-intelligence/holdwatch/pkg/types"
)

// dbFile is the SQLite database inside the data directory. It is a cache:
// Attach deletes it and reloads everything from recordsFile.
const dbFile = "holdwatch.db"

// Backend implements types.Store and types.Replacer on SQLite.
type Backend struct {
	mu       sync.RWMutex
	attached bool
	dataDir  string
	db       *sql.DB
}

var (
	_ types.Store    = (*Backend)(nil)
	_ types.Replacer = (*Backend)(nil)
)

// NewBackend creates a new SQLite backend instance.
// The backend is not attached; call Attach with a Config to initialize.
func NewBackend() *Backend {
	return &Backend{}
}

// Open creates a backend and attaches it in one step.
func Open(config types.Config) (*Backend, error) {
	b := NewBackend()
	if err := b.Attach(config); err != nil {
		return nil, err
	}
	return b, nil
}

// Attach creates DataDir if needed, builds a fresh database and loads the
// JSONL records into it. Returns ErrAlreadyAttached if already attached.
func (b *Backend) Attach(config types.Config) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.attached {
		return ErrAlreadyAttached
	}
	if err := config.Validate(); err != nil {
		return err
	}

	dataDir := config.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return err
	}

	dbPath := filepath.Join(dataDir, dbFile)
	_ = os.Remove(dbPath)

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return err
	}
	// SQLite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	for _, stmt := range schemaDDL {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return fmt.Errorf("creating schema: %w", err)
		}
	}

	if err := loadJSONL(db, filepath.Join(dataDir, recordsFile)); err != nil {
		db.Close()
		return fmt.Errorf("load JSONL: %w", err)
	}

	b.db = db
	b.dataDir = dataDir
	b.attached = true
	return nil
}

// Detach closes the database. Detach is idempotent. After Detach all
// operations return types.ErrStoreClosed.
func (b *Backend) Detach() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.attached {
		return nil
	}
	b.attached = false
	if b.db != nil {
		err := b.db.Close()
		b.db = nil
		return err
	}
	return nil
}

// Close implements types.Store.
func (b *Backend) Close() error {
	return b.Detach()
}

// newDocID generates a UUID v7, falling back to v4.
func newDocID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.New().String()
	}
	return id.String()
}

// persist rewrites the JSONL file from the database.
// The caller must hold b.mu.
func (b *Backend) persist(ctx context.Context) error {
	rows, err := b.db.QueryContext(ctx,
		"SELECT "+recordColumns+" FROM recommendations ORDER BY created_at ASC, rowid ASC")
	if err != nil {
		return fmt.Errorf("querying records for JSONL: %w", err)
	}
	defer rows.Close()

	var records []recordJSONL
	for rows.Next() {
		var rec recordJSONL
		var notified sql.NullString
		if err := rows.Scan(&rec.DocID, &rec.FamilyID, &rec.Title, &rec.Author, &rec.Why,
			&rec.Branch, &rec.Status, &rec.CreatedAt, &rec.UpdatedAt, &notified); err != nil {
			return fmt.Errorf("scanning record for JSONL: %w", err)
		}
		if notified.Valid {
			rec.NotifiedAt = &notified.String
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating records for JSONL: %w", err)
	}

	if err := writeJSONL(filepath.Join(b.dataDir, recordsFile), records); err != nil {
		return fmt.Errorf("persisting %s: %w", recordsFile, err)
	}
	return nil
}
