package storage

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite holds the metadata database connections.
// Separate read and write pools leverage WAL mode's concurrent read
// capability: a single writer, many readers.
type SQLite struct {
	WriteDB *sql.DB // single-writer pool (MaxOpenConns=1)
	ReadDB  *sql.DB // read pool
	Path    string
	Logger  *zap.SugaredLogger
}

// NewSQLite opens (creating if needed) the metadata database at path.
func NewSQLite(path string, logger *zap.SugaredLogger) (*SQLite, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create data directory: %w", err)
		}
	}

	writeDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite write pool: %w", err)
	}
	writeDB.SetMaxOpenConns(1)
	if err := configureConnection(writeDB, path); err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("write pool: %w", err)
	}

	readDB, err := sql.Open("sqlite", path)
	if err != nil {
		writeDB.Close()
		return nil, fmt.Errorf("failed to open SQLite read pool: %w", err)
	}
	readDB.SetMaxOpenConns(10)
	if err := configureConnection(readDB, path); err != nil {
		writeDB.Close()
		readDB.Close()
		return nil, fmt.Errorf("read pool: %w", err)
	}

	logger.Infow("SQLite opened", "path", path)
	return &SQLite{
		WriteDB: writeDB,
		ReadDB:  readDB,
		Path:    path,
		Logger:  logger,
	}, nil
}

// configureConnection enables WAL mode, foreign keys and a busy timeout.
// SQLite disables foreign keys by default and connection-string pragmas are
// unreliable, so everything is set explicitly and verified.
func configureConnection(db *sql.DB, path string) error {
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		return fmt.Errorf("failed to set busy timeout: %w", err)
	}

	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to query journal mode: %w", err)
	}
	// In-memory databases report "memory", not "wal"
	if path != ":memory:" && journalMode != "wal" {
		return fmt.Errorf("WAL mode not enabled (got: %s)", journalMode)
	}

	return db.Ping()
}

// Close closes both pools.
func (s *SQLite) Close() error {
	var firstErr error
	if err := s.WriteDB.Close(); err != nil {
		firstErr = err
	}
	if err := s.ReadDB.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}
