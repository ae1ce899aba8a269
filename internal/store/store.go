// Package store implements the Repository Store (spec.md §4.1, C1): durable
// persistence of Task, PRAnalysis, FileAnalysis, and Issue records with
// ordering-safe updates. It follows the parent-owned-tree design mandated by
// spec.md §9: children carry their parents' ids as foreign keys, there are
// no back-pointers, and deletes cascade from Task down to Issue.
//
// Persistence itself is plain database/sql against SQLite, the way
// codeNERD's LocalStore manages its own schema (WAL journal mode, a single
// writer connection, additive column migrations) — there is no ORM here by
// design, just hand-written SQL scoped to the four tables in spec.md §3.
package store

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// Store owns the database connection used by the Task Worker and the
// Submission API. One Store is shared per process (spec.md §5's "database
// session pool is shared; each stage boundary uses one session acquired and
// released").
type Store struct {
	db         *sql.DB
	mu         sync.RWMutex
	vectorExt  bool
	logger     *zap.Logger
}

// Open creates or migrates the SQLite database at dsn (a file path, or
// ":memory:" for tests) and returns a ready-to-use Store.
func Open(dsn string, logger *zap.Logger) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("store: empty DATABASE_URL")
	}
	if dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("store: creating database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: opening database: %w", err)
	}
	// SQLite only tolerates one writer; keep the pool to a single connection
	// the way codeNERD's LocalStore does, relying on WAL mode for readers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA foreign_keys = ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			logger.Warn("store: pragma failed", zap.String("pragma", pragma), zap.Error(err))
		}
	}

	s := &Store{db: db, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	s.detectVecExtension()

	return s, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying *sql.DB for callers (e.g. the migrate CLI
// subcommand) that need raw access.
func (s *Store) DB() *sql.DB { return s.db }

// detectVecExtension probes for the sqlite-vec extension the way
// codeNERD's LocalStore.detectVecExtension does and records the result. It
// does not load the extension, and the embedding cache does not consult the
// result: cache lookups are by content hash.
func (s *Store) detectVecExtension() {
	if _, err := s.db.Exec("CREATE VIRTUAL TABLE IF NOT EXISTS vec_probe USING vec0(embedding float[4])"); err == nil {
		s.vectorExt = true
		_, _ = s.db.Exec("DROP TABLE IF EXISTS vec_probe")
		return
	}
	s.vectorExt = false
}

// HasVectorExtension reports whether the sqlite-vec probe succeeded in this
// process. No caller in this module uses it.
func (s *Store) HasVectorExtension() bool { return s.vectorExt }
