package pipeline

import (
	"context"
	"encoding/json"

	"github.com/vaultbox/emts/internal/logging"
	"github.com/vaultbox/emts/internal/models"
)

// Dequeuer is the blocking-read side of the hand-off queue.
type Dequeuer interface {
	BlockingDequeue(ctx context.Context) ([]byte, error)
}

// Inserter is the mailstore surface the indexer worker needs.
type Inserter interface {
	InsertWithId(id string, env models.QueueEnvelope) error
}

// Submitter hands a unit of work to a bounded worker pool, matching
// manager.WorkManager.SubmitIndexer's signature. A nil Submitter makes Run
// process each dequeued envelope inline on the polling goroutine instead.
type Submitter func(fn func(ctx context.Context)) error

// Worker is the continuous half of the arrival pipeline (spec.md §4.5): it
// drains the hand-off queue and persists each envelope via the mailstore.
// One goroutine always owns the dequeue loop; InsertWithId itself fans out
// across the indexer worker pool when a Submitter is configured, so a burst
// of queued mail doesn't serialize entirely behind a single insert.
type Worker struct {
	queue  Dequeuer
	store  Inserter
	submit Submitter
}

// NewWorker builds an indexer Worker over queue and store, processing every
// dequeued envelope inline.
func NewWorker(queue Dequeuer, store Inserter) *Worker {
	return &Worker{queue: queue, store: store}
}

// NewPooledWorker builds an indexer Worker that fans InsertWithId calls out
// across submit (typically manager.WorkManager.SubmitIndexer), so multiple
// envelopes can be persisted concurrently instead of strictly one at a time.
func NewPooledWorker(queue Dequeuer, store Inserter, submit Submitter) *Worker {
	return &Worker{queue: queue, store: store, submit: submit}
}

// Run loops until ctx is canceled. Insert failures and decode failures are
// logged and the loop continues; delivery is at-least-once, so the
// mailstore's duplicate-id rejection is the idempotency boundary.
func (w *Worker) Run(ctx context.Context) {
	for {
		blob, err := w.queue.BlockingDequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logging.InfoLog("indexer worker: shutting down")
				return
			}
			logging.ErrorLog("indexer worker: dequeue failed: %v", err)
			continue
		}

		if w.submit == nil {
			w.process(blob)
			continue
		}
		if err := w.submit(func(context.Context) { w.process(blob) }); err != nil {
			logging.WarnLog("indexer worker: pool submit failed, processing inline: %v", err)
			w.process(blob)
		}
	}
}

func (w *Worker) process(blob []byte) {
	var env models.QueueEnvelope
	if err := json.Unmarshal(blob, &env); err != nil {
		logging.ErrorLog("indexer worker: dropping malformed blob: %v", err)
		return
	}

	if err := w.store.InsertWithId(env.ID, env); err != nil {
		logging.WarnLog("indexer worker: insert id=%s failed (treated as non-fatal): %v", env.ID, err)
		return
	}
	logging.DebugLog("indexer worker: inserted id=%s", env.ID)
}
