// Package sqlite implements types.Store with SQLite as the query engine and
// a JSONL file in the data directory as the source of truth.
package sqlite

// Schema DDL. The database is rebuilt from recommendations.jsonl on every
// Attach, so there are no migrations.
const (
	createRecommendations = `CREATE TABLE recommendations (
    doc_id TEXT PRIMARY KEY,
    family_id TEXT NOT NULL,
    title TEXT NOT NULL,
    author TEXT NOT NULL,
    why TEXT NOT NULL DEFAULT '',
    branch TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    notified_at TEXT
);`

	idxRecommendationsFamilyStatus = `CREATE INDEX idx_recommendations_family_status ON recommendations(family_id, status);`
)

// schemaDDL lists all statements run against a fresh database.
var schemaDDL = []string{
	createRecommendations,
	idxRecommendationsFamilyStatus,
}

// recordColumns is the column list shared by SELECT, INSERT and the JSONL loader.
const recordColumns = "doc_id, family_id, title, author, why, branch, status, created_at, updated_at, notified_at"
