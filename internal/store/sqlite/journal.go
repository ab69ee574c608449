// Package sqlite journals order events durably. A single writer goroutine
// batches inserts into transactions; WAL mode keeps readers unblocked.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"order-systemv1/internal/model"
)

const (
	defaultBatchSize  = 100
	defaultFlushDelay = 200 * time.Millisecond
)

// Config configures the journal.
type Config struct {
	DBPath string // e.g. "data/orders.db"
}

// Journal implements model.JournalWriter. AppendEvent enqueues; the Run loop
// owns the database connection.
type Journal struct {
	db     *sql.DB
	events chan model.OrderEvent

	// OnCommit is an optional metrics hook, called after each batch commit.
	OnCommit func(n int, d time.Duration)
}

// DB returns the underlying sql.DB for health checks.
func (j *Journal) DB() *sql.DB { return j.db }

// New opens the database in WAL mode and creates the schema.
func New(cfg Config) (*Journal, error) {
	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open: %w", err)
	}

	// Single-writer discipline.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := createSchema(db); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}

	log.Printf("[sqlite] opened database at %s", cfg.DBPath)
	return &Journal{
		db:     db,
		events: make(chan model.OrderEvent, 1024),
	}, nil
}

func createSchema(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS order_events (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			order_id  TEXT    NOT NULL,
			leg       TEXT,
			type      TEXT    NOT NULL,
			status    TEXT    NOT NULL,
			detail    TEXT,
			snapshot  TEXT    NOT NULL,
			ts        INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_order_events_order
			ON order_events (order_id, id);
	`)
	return err
}

// AppendEvent enqueues one event for the batch writer.
func (j *Journal) AppendEvent(ctx context.Context, ev model.OrderEvent) error {
	select {
	case j.events <- ev:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run drains the queue into batched transactions. Flushes every batchSize
// events OR every flushDelay, whichever comes first. Blocks until ctx is
// cancelled; queued events are flushed before returning.
func (j *Journal) Run(ctx context.Context) {
	batch := make([]model.OrderEvent, 0, defaultBatchSize)
	timer := time.NewTimer(defaultFlushDelay)
	defer timer.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		start := time.Now()
		if err := j.insertBatch(batch); err != nil {
			log.Printf("[sqlite] batch insert error: %v", err)
		} else {
			log.Printf("[sqlite] committed %d events in %v", len(batch), time.Since(start))
			if j.OnCommit != nil {
				j.OnCommit(len(batch), time.Since(start))
			}
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
			// Drain whatever was queued before shutdown.
			for {
				select {
				case ev := <-j.events:
					batch = append(batch, ev)
				default:
					flush()
					return
				}
			}

		case ev := <-j.events:
			batch = append(batch, ev)
			if len(batch) >= defaultBatchSize {
				flush()
				timer.Reset(defaultFlushDelay)
			}

		case <-timer.C:
			flush()
			timer.Reset(defaultFlushDelay)
		}
	}
}

func (j *Journal) insertBatch(events []model.OrderEvent) error {
	tx, err := j.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`
		INSERT INTO order_events (order_id, leg, type, status, detail, snapshot, ts)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, ev := range events {
		_, err := stmt.Exec(
			ev.OrderID, string(ev.Leg), string(ev.Type), string(ev.Status),
			ev.Detail, string(ev.JSON()), ev.TS.UnixMilli(),
		)
		if err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// EventsForOrder returns the journaled events for one order, oldest first.
func (j *Journal) EventsForOrder(ctx context.Context, orderID string, limit int) ([]model.OrderEvent, error) {
	if limit <= 0 {
		limit = 500
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT type, leg, status, detail, ts
		FROM order_events WHERE order_id = ?
		ORDER BY id ASC LIMIT ?
	`, orderID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.OrderEvent
	for rows.Next() {
		var (
			ev     model.OrderEvent
			leg    sql.NullString
			detail sql.NullString
			ms     int64
		)
		var typ, status string
		if err := rows.Scan(&typ, &leg, &status, &detail, &ms); err != nil {
			return nil, err
		}
		ev.Type = model.EventType(typ)
		ev.Status = model.OrderStatus(status)
		ev.OrderID = orderID
		ev.Leg = model.LegRole(leg.String)
		ev.Detail = detail.String
		ev.TS = time.UnixMilli(ms).UTC()
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Close closes the database.
func (j *Journal) Close() error {
	return j.db.Close()
}
