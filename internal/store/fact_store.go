// Package store implements the durable, append-only fact log on SQLite.
//
// Facts live in one collection, the facts table, keyed by
// <20-digit zero-padded timestamp>_<20-digit store-assigned id>. Keys therefore sort
// lexicographically in timestamp order, and same-timestamp facts sort in write order
// because the id comes from an AUTOINCREMENT sequence that never reuses values.
//
// The store adds no locks of its own: database/sql and SQLite serialize access, and
// other processes opening the same file are coordinated by SQLite's file locking.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"pagi/internal/config"
	"pagi/internal/logging"
	"pagi/internal/types"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// FactsCollection is the name of the fact table.
const FactsCollection = "facts"

// keySeparator splits the timestamp prefix from the store-assigned id.
const keySeparator = "_"

// FactKey builds the sortable storage key for a fact.
func FactKey(ts, id uint64) string {
	return fmt.Sprintf("%020d%s%020d", ts, keySeparator, id)
}

// parseKeyTimestamp extracts the timestamp prefix of a storage key.
func parseKeyTimestamp(key string) (uint64, bool) {
	tsPart, _, ok := strings.Cut(key, keySeparator)
	if !ok {
		return 0, false
	}
	ts, err := strconv.ParseUint(tsPart, 10, 64)
	if err != nil {
		return 0, false
	}
	return ts, true
}

// FactStore is the append-only, timestamp-ordered durable log of AgentFacts.
// It is safe for concurrent use.
type FactStore struct {
	db   *sql.DB
	path string
}

// Open opens or creates the fact store described by cfg.
func Open(cfg config.StoreConfig) (*FactStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Open")
	defer timer.Stop()

	dsn := ":memory:"
	if !cfg.InMemory {
		dir := filepath.Dir(cfg.Path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("%w: failed to create directory: %v", types.ErrStorage, err)
		}
		dsn = cfg.Path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %v", types.ErrStorage, err)
	}
	// One connection: an in-memory database lives only as long as its connection,
	// and SQLite allows a single writer anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	pragmas := []string{
		fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout().Milliseconds()),
		"PRAGMA journal_mode = WAL",
		// FULL: a committed write is on disk before Record returns.
		"PRAGMA synchronous = FULL",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			logging.StoreDebug("pragma failed", zap.String("pragma", p), zap.Error(err))
		}
	}

	s := &FactStore{db: db, path: cfg.Path}
	if cfg.InMemory {
		s.path = ":memory:"
	}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	logging.Store("fact store opened", zap.String("path", s.path))
	return s, nil
}

// initialize creates the required tables.
func (s *FactStore) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS facts (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL
	) WITHOUT ROWID;

	CREATE TABLE IF NOT EXISTS fact_ids (
		id INTEGER PRIMARY KEY AUTOINCREMENT
	);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("%w: failed to initialize schema: %v", types.ErrStorage, err)
	}
	return nil
}

// Path returns the database location.
func (s *FactStore) Path() string {
	return s.path
}

// Record serializes fact and writes it under a fresh sortable key. The write and the
// id allocation commit in one transaction, so a failed Record leaves nothing behind,
// and a nil return means the fact is durable.
func (s *FactStore) Record(ctx context.Context, fact types.AgentFact) error {
	value, err := json.Marshal(fact)
	if err != nil {
		return fmt.Errorf("%w: serialize fact: %v", types.ErrStorage, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %v", types.ErrStorage, err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "INSERT INTO fact_ids DEFAULT VALUES")
	if err != nil {
		return fmt.Errorf("%w: allocate id: %v", types.ErrStorage, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("%w: allocate id: %v", types.ErrStorage, err)
	}
	// AUTOINCREMENT keeps the high-water mark in sqlite_sequence, so the rows can go.
	if _, err := tx.ExecContext(ctx, "DELETE FROM fact_ids"); err != nil {
		return fmt.Errorf("%w: allocate id: %v", types.ErrStorage, err)
	}

	key := FactKey(fact.Timestamp, uint64(id))
	if _, err := tx.ExecContext(ctx, "INSERT INTO facts (key, value) VALUES (?, ?)", key, value); err != nil {
		return fmt.Errorf("%w: insert %s: %v", types.ErrStorage, key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %v", types.ErrStorage, err)
	}

	logging.StoreDebug("fact recorded",
		zap.String("key", key),
		zap.String("agent_id", fact.AgentID),
		zap.String("fact_type", fact.FactType))
	return nil
}

// Query returns every fact with timestamp >= startTS, in key order.
// Entries whose key or value cannot be decoded are skipped, not reported: the scan is
// best-effort so one corrupt or foreign record cannot hide the rest of the log.
// An error is returned only when the scan itself fails.
func (s *FactStore) Query(ctx context.Context, startTS uint64) ([]types.AgentFact, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Query")
	defer timer.Stop()

	lower := fmt.Sprintf("%020d", startTS)
	rows, err := s.db.QueryContext(ctx,
		"SELECT key, value FROM facts WHERE key >= ? ORDER BY key", lower)
	if err != nil {
		return nil, fmt.Errorf("%w: query facts: %v", types.ErrStorage, err)
	}
	defer rows.Close()

	var facts []types.AgentFact
	skipped := 0
	for rows.Next() {
		var key string
		var value []byte
		if err := rows.Scan(&key, &value); err != nil {
			skipped++
			continue
		}
		ts, ok := parseKeyTimestamp(key)
		if !ok || ts < startTS {
			skipped++
			continue
		}
		var fact types.AgentFact
		if err := json.Unmarshal(value, &fact); err != nil {
			skipped++
			continue
		}
		facts = append(facts, fact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: scan facts: %v", types.ErrStorage, err)
	}

	if skipped > 0 {
		logging.StoreDebug("skipped undecodable facts", zap.Int("skipped", skipped))
	}
	return facts, nil
}

// Flush forces the write-ahead log into the main database file.
func (s *FactStore) Flush(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(FULL)"); err != nil {
		return fmt.Errorf("%w: flush: %v", types.ErrStorage, err)
	}
	return nil
}

// Close closes the database connection.
func (s *FactStore) Close() error {
	return s.db.Close()
}
