package hunt

import (
	"context"
	"time"
)

// HistoryEntry records one query attempt, successful or not. RowCount and
// ElapsedMs are nil when the attempt never produced a result (translation
// failure, backend error). Entries are owned by the principal and never
// listed across tenants.
type HistoryEntry struct {
	ID          string    `json:"id"`
	PrincipalID string    `json:"principal_id"`
	RawText     string    `json:"raw_text"`
	Language    string    `json:"language"`
	RowCount    *int64    `json:"row_count"`
	ElapsedMs   *float64  `json:"elapsed_ms"`
	IsSaved     bool      `json:"is_saved"`
	SavedName   string    `json:"saved_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// HistoryStore persists query attempts. Defined here, in the consumer
// package; the storage package provides the SQLite implementation.
type HistoryStore interface {
	// RecordAttempt appends an entry. Inserts are append-only and therefore
	// commutative across concurrent writers; no locking is needed above the
	// store.
	RecordAttempt(ctx context.Context, entry *HistoryEntry) error

	// ListHistory returns the principal's most recent attempts, newest
	// first.
	ListHistory(ctx context.Context, principalID string, limit int) ([]HistoryEntry, error)

	// SaveQuery persists a named query verbatim for later reuse and returns
	// its ID. The isolation predicate is re-derived at the next execution,
	// never frozen at save time.
	SaveQuery(ctx context.Context, principalID, name, rawText, language string) (string, error)

	// ListSaved returns the principal's saved queries.
	ListSaved(ctx context.Context, principalID string) ([]HistoryEntry, error)

	// GetSaved returns one saved query, scoped to the principal.
	GetSaved(ctx context.Context, principalID, id string) (*HistoryEntry, error)

	// DeleteSaved removes a saved query, scoped to the principal.
	DeleteSaved(ctx context.Context, principalID, id string) error
}
