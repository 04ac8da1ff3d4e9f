// Package diag records delivery attempts — success, failure, offline
// fallback — for operational visibility into the transport pipeline. It
// follows the async channel+ticker flush shape of the business-event
// audit log this codebase already uses elsewhere, calibrated to transport
// outcomes instead of generic operation records.
package diag

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/hazyhaar/utrack/idgen"
)

// Entry is a single delivery-attempt record.
type Entry struct {
	ID         string
	Timestamp  time.Time
	Mechanism  string
	Outcome    string // success | failure | offline
	EventCount int
	Error      string
	DurationMs int64
}

// Logger persists delivery-attempt entries asynchronously, falling back to
// a synchronous insert when the buffer is full.
type Logger struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
	ch     chan *Entry
	stop   chan struct{}
	done   chan struct{}
}

// New creates a delivery-attempt logger. db may be nil — persistence is
// skipped and every entry is still emitted via slog.
func New(db *sql.DB, bufferSize int, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	l := &Logger{
		db:     db,
		newID:  idgen.Prefixed("delivery_", idgen.Default),
		logger: logger,
		ch:     make(chan *Entry, bufferSize),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	go l.flushLoop()
	return l
}

// Record logs a delivery attempt. The slog line is always emitted
// synchronously; SQLite persistence (if a db was provided) is queued.
func (l *Logger) Record(mechanism, outcome string, eventCount int, err error, duration time.Duration) {
	e := &Entry{
		ID:         l.newID(),
		Timestamp:  time.Now(),
		Mechanism:  mechanism,
		Outcome:    outcome,
		EventCount: eventCount,
		DurationMs: duration.Milliseconds(),
	}
	if err != nil {
		e.Error = err.Error()
	}

	level := slog.LevelInfo
	if outcome == "failure" {
		level = slog.LevelWarn
	}
	attrs := []slog.Attr{
		slog.String("component", "transport"),
		slog.String("op", "flush"),
		slog.String("mechanism", mechanism),
		slog.String("outcome", outcome),
		slog.Int("events", eventCount),
		slog.Duration("duration", duration),
	}
	if e.Error != "" {
		attrs = append(attrs, slog.String("error", e.Error))
	}
	slog.LogAttrs(context.Background(), level, "delivery attempt", attrs...)

	if l.db == nil {
		return
	}
	select {
	case l.ch <- e:
	default:
		l.logger.Warn("diag: buffer full, sync fallback")
		if err := l.insert(context.Background(), e); err != nil {
			l.logger.Error("diag: sync fallback failed", "error", err)
		}
	}
}

// EnsureTable creates the delivery_log table if a db was provided.
func (l *Logger) EnsureTable(ctx context.Context) error {
	if l.db == nil {
		return nil
	}
	_, err := l.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS delivery_log (
			id          TEXT PRIMARY KEY,
			timestamp   INTEGER NOT NULL,
			mechanism   TEXT NOT NULL,
			outcome     TEXT NOT NULL,
			event_count INTEGER NOT NULL,
			error       TEXT,
			duration_ms INTEGER NOT NULL
		);
	`)
	return err
}

// Close drains the buffer and stops the flush goroutine.
func (l *Logger) Close() error {
	close(l.stop)
	<-l.done
	return nil
}

func (l *Logger) insert(ctx context.Context, e *Entry) error {
	_, err := l.db.ExecContext(ctx, `INSERT INTO delivery_log
		(id, timestamp, mechanism, outcome, event_count, error, duration_ms)
		VALUES (?,?,?,?,?,?,?)`,
		e.ID, e.Timestamp.UnixMilli(), e.Mechanism, e.Outcome, e.EventCount, e.Error, e.DurationMs)
	return err
}

func (l *Logger) flushLoop() {
	defer close(l.done)
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	batch := make([]*Entry, 0, 100)

	flush := func() {
		if len(batch) == 0 || l.db == nil {
			batch = batch[:0]
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		tx, err := l.db.BeginTx(ctx, nil)
		if err != nil {
			l.logger.Error("diag: begin tx", "error", err)
			return
		}
		stmt, err := tx.PrepareContext(ctx, `INSERT INTO delivery_log
			(id, timestamp, mechanism, outcome, event_count, error, duration_ms)
			VALUES (?,?,?,?,?,?,?)`)
		if err != nil {
			tx.Rollback()
			l.logger.Error("diag: prepare", "error", err)
			return
		}
		defer stmt.Close()

		for _, e := range batch {
			if _, err := stmt.ExecContext(ctx, e.ID, e.Timestamp.UnixMilli(), e.Mechanism, e.Outcome, e.EventCount, e.Error, e.DurationMs); err != nil {
				l.logger.Error("diag: insert", "error", err, "id", e.ID)
			}
		}
		if err := tx.Commit(); err != nil {
			l.logger.Error("diag: commit", "error", err)
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-l.stop:
			for {
				select {
				case e := <-l.ch:
					batch = append(batch, e)
				default:
					flush()
					return
				}
			}
		case e := <-l.ch:
			batch = append(batch, e)
			if len(batch) >= 100 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
