// Package offline persists events that couldn't be delivered so they
// survive a process restart. It plays the role the visibility-timeout
// queue plays elsewhere in this codebase, calibrated down for a single
// consumer: no claim/ack handshake, just insert-on-failure and
// sweep-expired-on-load.
package offline

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/hazyhaar/utrack/trace" // registers the sqlite-trace driver
	"github.com/hazyhaar/utrack/event"
)

// Buffer is a SQLite-backed store for events that couldn't be shipped.
type Buffer struct {
	db         *sql.DB
	maxEvents  int
	expireTime time.Duration
	logger     *slog.Logger
}

// Config configures a Buffer.
type Config struct {
	Path       string
	MaxEvents  int
	ExpireTime time.Duration
	Logger     *slog.Logger
}

func (c *Config) defaults() {
	if c.MaxEvents <= 0 {
		c.MaxEvents = 500
	}
	if c.ExpireTime <= 0 {
		c.ExpireTime = 24 * time.Hour
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Open opens (creating if necessary) the offline buffer database, tracing
// every query through the kept sqlite-trace driver.
func Open(cfg Config) (*Buffer, error) {
	cfg.defaults()
	db, err := sql.Open("sqlite-trace", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("offline: open: %w", err)
	}
	return &Buffer{db: db, maxEvents: cfg.MaxEvents, expireTime: cfg.ExpireTime, logger: cfg.Logger}, nil
}

// EnsureTable creates the offline_events table and index if absent.
func (b *Buffer) EnsureTable(ctx context.Context) error {
	_, err := b.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS offline_events (
			id         TEXT PRIMARY KEY,
			payload    BLOB NOT NULL,
			created_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_offline_created ON offline_events (created_at);
	`)
	return err
}

// Save appends events, try/catch-guarded in spirit: callers log and
// swallow the error rather than letting a storage failure propagate into
// the tracker's hot path.
func (b *Buffer) Save(ctx context.Context, events []event.TrackEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("offline: begin tx: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UnixMilli()
	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO offline_events (id, payload, created_at) VALUES (?,?,?)`)
	if err != nil {
		return fmt.Errorf("offline: prepare: %w", err)
	}
	defer stmt.Close()

	for _, e := range events {
		payload, err := json.Marshal(e)
		if err != nil {
			b.logger.Warn("offline: marshal event failed, skipping", "id", e.ID, "error", err)
			continue
		}
		if _, err := stmt.ExecContext(ctx, e.ID, payload, now); err != nil {
			return fmt.Errorf("offline: insert: %w", err)
		}
	}

	if err := b.trimLocked(ctx, tx); err != nil {
		return err
	}

	return tx.Commit()
}

func (b *Buffer) trimLocked(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `
		DELETE FROM offline_events WHERE id NOT IN (
			SELECT id FROM offline_events ORDER BY created_at DESC LIMIT ?
		)`, b.maxEvents)
	return err
}

// LoadAndClear reads every buffered event, drops ones older than
// expireTime, and clears the table — the buffer is meant to be rehydrated
// exactly once, at tracker install.
func (b *Buffer) LoadAndClear(ctx context.Context) ([]event.TrackEvent, error) {
	rows, err := b.db.QueryContext(ctx, `SELECT payload, created_at FROM offline_events ORDER BY created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("offline: query: %w", err)
	}

	cutoff := time.Now().Add(-b.expireTime).UnixMilli()
	var out []event.TrackEvent
	for rows.Next() {
		var payload []byte
		var createdAt int64
		if err := rows.Scan(&payload, &createdAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("offline: scan: %w", err)
		}
		if createdAt < cutoff {
			continue
		}
		var e event.TrackEvent
		if err := json.Unmarshal(payload, &e); err != nil {
			b.logger.Warn("offline: unmarshal stored event failed, dropping", "error", err)
			continue
		}
		out = append(out, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if _, err := b.db.ExecContext(ctx, `DELETE FROM offline_events`); err != nil {
		b.logger.Warn("offline: clear after load failed", "error", err)
	}

	return out, nil
}

// Close closes the underlying database handle.
func (b *Buffer) Close() error {
	return b.db.Close()
}

// DB exposes the underlying connection so callers can share the same
// SQLite file for a second table (the delivery-attempt log) without a
// second file handle.
func (b *Buffer) DB() *sql.DB {
	return b.db
}
