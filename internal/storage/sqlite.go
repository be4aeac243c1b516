// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package storage provides a local SQLite store for normalized payloads.
//
// The store backs the "store" route destination: payloads written here stay
// on the developer's machine for offline inspection, independent of whether
// delivery to the platform succeeds.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/tombee/spyglass/pkg/telemetry"
)

// Store is a SQLite-backed payload store.
type Store struct {
	db *sql.DB
}

// Config contains store configuration.
type Config struct {
	// Path is the filesystem path to the SQLite database file.
	// Special value ":memory:" creates an in-memory database.
	Path string

	// MaxOpenConns caps open connections. With WAL mode SQLite handles
	// multiple concurrent readers; defaults to 5.
	MaxOpenConns int
}

// Open creates or opens a payload store at cfg.Path.
func Open(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("storage: path is required")
	}

	connStr := cfg.Path
	if cfg.Path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("storage: create directory: %w", err)
		}
		connStr += "?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("storage: open database: %w", err)
	}

	maxConns := cfg.MaxOpenConns
	if maxConns == 0 {
		maxConns = 5
	}
	db.SetMaxOpenConns(maxConns)
	db.SetMaxIdleConns(2)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: connect: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return store, nil
}

func (s *Store) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS payloads (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	span_unique_id TEXT NOT NULL UNIQUE,
	trace_unique_id TEXT NOT NULL,
	log_type TEXT NOT NULL,
	model TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL,
	body TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_payloads_trace ON payloads(trace_unique_id);
CREATE INDEX IF NOT EXISTS idx_payloads_created ON payloads(created_at);
`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// Save persists a batch of payloads in one transaction. A payload already
// stored for the same span id is replaced, so re-exported batches stay
// idempotent.
func (s *Store) Save(ctx context.Context, payloads []*telemetry.Payload) error {
	if len(payloads) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR REPLACE INTO payloads
			(span_unique_id, trace_unique_id, log_type, model, created_at, body)
		VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, p := range payloads {
		body, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("encode payload %s: %w", p.SpanID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			p.SpanID, p.TraceID, string(p.LogType), p.Model,
			p.StartTime.UTC(), string(body)); err != nil {
			return fmt.Errorf("insert payload %s: %w", p.SpanID, err)
		}
	}
	return tx.Commit()
}

// Get retrieves a stored payload by span id.
func (s *Store) Get(ctx context.Context, spanID string) (*telemetry.Payload, error) {
	var body string
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM payloads WHERE span_unique_id = ?`, spanID).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("payload %s: not found", spanID)
	}
	if err != nil {
		return nil, fmt.Errorf("query payload %s: %w", spanID, err)
	}

	var p telemetry.Payload
	if err := json.Unmarshal([]byte(body), &p); err != nil {
		return nil, fmt.Errorf("decode payload %s: %w", spanID, err)
	}
	return &p, nil
}

// List returns the most recent payloads, newest first.
func (s *Store) List(ctx context.Context, limit int) ([]*telemetry.Payload, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM payloads ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list payloads: %w", err)
	}
	defer rows.Close()

	var payloads []*telemetry.Payload
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan payload: %w", err)
		}
		var p telemetry.Payload
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		payloads = append(payloads, &p)
	}
	return payloads, rows.Err()
}

// ListByTrace returns every stored payload for a trace, oldest first.
func (s *Store) ListByTrace(ctx context.Context, traceID string) ([]*telemetry.Payload, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM payloads WHERE trace_unique_id = ? ORDER BY created_at ASC, id ASC`,
		traceID)
	if err != nil {
		return nil, fmt.Errorf("list trace %s: %w", traceID, err)
	}
	defer rows.Close()

	var payloads []*telemetry.Payload
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("scan payload: %w", err)
		}
		var p telemetry.Payload
		if err := json.Unmarshal([]byte(body), &p); err != nil {
			return nil, fmt.Errorf("decode payload: %w", err)
		}
		payloads = append(payloads, &p)
	}
	return payloads, rows.Err()
}

// DeleteOlderThan removes payloads created before the cutoff and returns how
// many were deleted.
func (s *Store) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM payloads WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, fmt.Errorf("delete old payloads: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of stored payloads.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM payloads`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count payloads: %w", err)
	}
	return n, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
