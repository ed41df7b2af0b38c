package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"argus/hunt"
	"argus/metrics"
)

// SQLiteHuntQueryStorage persists hunt query history and saved queries in a
// single table: a saved query is a history entry with is_saved set. Every
// read is scoped to the owning principal; no cross-tenant listing exists.
// It implements hunt.HistoryStore.
type SQLiteHuntQueryStorage struct {
	db     *SQLite
	logger *zap.SugaredLogger
}

// NewSQLiteHuntQueryStorage creates the storage handler and ensures the
// backing table exists.
func NewSQLiteHuntQueryStorage(db *SQLite, logger *zap.SugaredLogger) (*SQLiteHuntQueryStorage, error) {
	s := &SQLiteHuntQueryStorage{db: db, logger: logger}
	if err := s.ensureTable(); err != nil {
		return nil, fmt.Errorf("failed to ensure hunt_queries table: %w", err)
	}
	return s, nil
}

func (s *SQLiteHuntQueryStorage) ensureTable() error {
	query := `
	CREATE TABLE IF NOT EXISTS hunt_queries (
		id TEXT PRIMARY KEY,
		principal_id TEXT NOT NULL,
		raw_text TEXT NOT NULL,
		language TEXT,
		row_count INTEGER,
		elapsed_ms REAL,
		is_saved BOOLEAN NOT NULL DEFAULT 0,
		saved_name TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_hunt_queries_principal ON hunt_queries(principal_id, created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_hunt_queries_saved ON hunt_queries(principal_id, is_saved);
	`

	if _, err := s.db.WriteDB.Exec(query); err != nil {
		return fmt.Errorf("failed to create hunt_queries table: %w", err)
	}
	s.logger.Info("Hunt queries table ensured in SQLite")
	return nil
}

// RecordAttempt appends one query attempt. Inserts are append-only, so
// concurrent writers never conflict.
func (s *SQLiteHuntQueryStorage) RecordAttempt(ctx context.Context, entry *hunt.HistoryEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.WriteDB.ExecContext(ctx, `
		INSERT INTO hunt_queries (id, principal_id, raw_text, language, row_count, elapsed_ms, is_saved, saved_name, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.PrincipalID, entry.RawText, entry.Language,
		entry.RowCount, entry.ElapsedMs, entry.IsSaved, nullableString(entry.SavedName), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert hunt query attempt: %w", err)
	}
	return nil
}

// ListHistory returns the principal's most recent attempts, newest first.
func (s *SQLiteHuntQueryStorage) ListHistory(ctx context.Context, principalID string, limit int) ([]hunt.HistoryEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}

	rows, err := s.db.ReadDB.QueryContext(ctx, `
		SELECT id, principal_id, raw_text, language, row_count, elapsed_ms, is_saved, saved_name, created_at
		FROM hunt_queries
		WHERE principal_id = ?
		ORDER BY created_at DESC
		LIMIT ?`, principalID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query hunt history: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// SaveQuery persists a named query verbatim and returns its ID. Nothing is
// executed; row_count and elapsed_ms stay NULL.
func (s *SQLiteHuntQueryStorage) SaveQuery(ctx context.Context, principalID, name, rawText, language string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.WriteDB.ExecContext(ctx, `
		INSERT INTO hunt_queries (id, principal_id, raw_text, language, is_saved, saved_name, created_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)`,
		id, principalID, rawText, language, name, time.Now().UTC())
	if err != nil {
		return "", fmt.Errorf("failed to save hunt query: %w", err)
	}

	metrics.SavedQueriesTotal.Inc()
	s.logger.Infow("Hunt query saved", "principal_id", principalID, "name", name)
	return id, nil
}

// ListSaved returns the principal's saved queries, newest first.
func (s *SQLiteHuntQueryStorage) ListSaved(ctx context.Context, principalID string) ([]hunt.HistoryEntry, error) {
	rows, err := s.db.ReadDB.QueryContext(ctx, `
		SELECT id, principal_id, raw_text, language, row_count, elapsed_ms, is_saved, saved_name, created_at
		FROM hunt_queries
		WHERE principal_id = ? AND is_saved = 1
		ORDER BY created_at DESC`, principalID)
	if err != nil {
		return nil, fmt.Errorf("failed to query saved hunt queries: %w", err)
	}
	defer rows.Close()

	return scanEntries(rows)
}

// GetSaved returns one saved query. A query owned by another principal is
// reported as not found.
func (s *SQLiteHuntQueryStorage) GetSaved(ctx context.Context, principalID, id string) (*hunt.HistoryEntry, error) {
	row := s.db.ReadDB.QueryRowContext(ctx, `
		SELECT id, principal_id, raw_text, language, row_count, elapsed_ms, is_saved, saved_name, created_at
		FROM hunt_queries
		WHERE id = ? AND principal_id = ? AND is_saved = 1`, id, principalID)

	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSavedQueryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get saved hunt query: %w", err)
	}
	return entry, nil
}

// DeleteSaved removes one saved query, scoped to the principal.
func (s *SQLiteHuntQueryStorage) DeleteSaved(ctx context.Context, principalID, id string) error {
	res, err := s.db.WriteDB.ExecContext(ctx, `
		DELETE FROM hunt_queries
		WHERE id = ? AND principal_id = ? AND is_saved = 1`, id, principalID)
	if err != nil {
		return fmt.Errorf("failed to delete saved hunt query: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read delete result: %w", err)
	}
	if affected == 0 {
		return ErrSavedQueryNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEntry(row rowScanner) (*hunt.HistoryEntry, error) {
	var entry hunt.HistoryEntry
	var language, savedName sql.NullString
	var rowCount sql.NullInt64
	var elapsedMs sql.NullFloat64

	err := row.Scan(&entry.ID, &entry.PrincipalID, &entry.RawText, &language,
		&rowCount, &elapsedMs, &entry.IsSaved, &savedName, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}

	entry.Language = language.String
	entry.SavedName = savedName.String
	if rowCount.Valid {
		entry.RowCount = &rowCount.Int64
	}
	if elapsedMs.Valid {
		entry.ElapsedMs = &elapsedMs.Float64
	}
	return &entry, nil
}

func scanEntries(rows *sql.Rows) ([]hunt.HistoryEntry, error) {
	// make() ensures a non-nil slice: nil serializes to JSON null, breaking
	// the frontend contract expecting [].
	entries := make([]hunt.HistoryEntry, 0)
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan hunt query row: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate hunt query rows: %w", err)
	}
	return entries, nil
}

func nullableString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
