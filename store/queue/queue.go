// Package queue implements the hand-off queue (HQ) described in spec.md
// §4.4: a durable FIFO between the SMTP ingestor and the indexer worker,
// backed by a SQLite table rather than a networked broker, in the same
// embedded-engine spirit as the mailstore.
package queue

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	sqlite3migrate "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/vaultbox/emts/internal/logging"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrQueue wraps a QueueError: a transient failure to enqueue (spec.md §7).
var ErrQueue = errors.New("queue: transient failure")

// pollInterval bounds how long BlockingDequeue waits between polls of an
// empty queue.
const pollInterval = 250 * time.Millisecond

// Queue is the durable FIFO. Multiple queues can share one database file,
// distinguished by name.
type Queue struct {
	db   *sql.DB
	name string
}

// Open opens (and migrates) the SQLite-backed queue at path, scoped to the
// given logical queue name.
func Open(path, name string) (*Queue, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("queue: open %s: %w", path, errors.Join(ErrQueue, err))
	}
	if err := applyMigrations(db); err != nil {
		db.Close()
		return nil, err
	}
	return &Queue{db: db, name: name}, nil
}

func applyMigrations(db *sql.DB) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("queue: migration source: %w", err)
	}
	driver, err := sqlite3migrate.WithInstance(db, &sqlite3migrate.Config{})
	if err != nil {
		return fmt.Errorf("queue: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("queue: migration init: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("queue: migration up: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (q *Queue) Close() error {
	return q.db.Close()
}

// Enqueue durably appends blob to the tail of the queue.
func (q *Queue) Enqueue(blob []byte) error {
	_, err := q.db.Exec(`INSERT INTO queue_items (queue_name, payload) VALUES (?, ?)`, q.name, blob)
	if err != nil {
		return errors.Join(ErrQueue, err)
	}
	return nil
}

// BlockingDequeue removes and returns the head of the queue, blocking
// (polling at pollInterval) until one is available or ctx is canceled —
// the shutdown path for the continuous indexer-worker loop (spec.md §4.5).
func (q *Queue) BlockingDequeue(ctx context.Context) ([]byte, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		blob, ok, err := q.tryDequeue()
		if err != nil {
			logging.ErrorLog("queue dequeue: %v", err)
		} else if ok {
			return blob, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (q *Queue) tryDequeue() (blob []byte, ok bool, err error) {
	tx, err := q.db.Begin()
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var seq int64
	err = tx.QueryRow(`
		SELECT seq, payload FROM queue_items
		WHERE queue_name = ? ORDER BY seq ASC LIMIT 1`, q.name).Scan(&seq, &blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if _, err := tx.Exec(`DELETE FROM queue_items WHERE seq = ?`, seq); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return blob, true, nil
}
