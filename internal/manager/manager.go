package manager

import (
	"context"
	"time"

	"github.com/vaultbox/emts/internal/config"
	"github.com/vaultbox/emts/internal/workerpool"
)

// WorkManager provides separate pools for indexing and SMTP ingest work,
// isolating a burst on one from starving the other.
type WorkManager struct {
	indexer    *workerpool.Pool
	smtpIngest *workerpool.Pool
}

// Option configures the WorkManager.
type Option func(*options)

type options struct {
	indexerWorkers int
	smtpWorkers    int
	queueSize      int
}

// WithIndexerWorkers sets the indexer worker count.
func WithIndexerWorkers(n int) Option { return func(o *options) { o.indexerWorkers = n } }

// WithSMTPIngestWorkers sets the SMTP ingest worker count.
func WithSMTPIngestWorkers(n int) Option { return func(o *options) { o.smtpWorkers = n } }

// WithQueueSize sets the shared queue size (per pool).
func WithQueueSize(n int) Option { return func(o *options) { o.queueSize = n } }

// NewWorkManager constructs the manager with the given options (or defaults from config).
func NewWorkManager(opts ...Option) *WorkManager {
	o := &options{
		indexerWorkers: config.IndexerWorkerCount(),
		smtpWorkers:    config.SMTPIngestWorkerCount(),
		queueSize:      config.WorkerQueueSize(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return &WorkManager{
		indexer:    workerpool.New("indexer", o.indexerWorkers, o.queueSize),
		smtpIngest: workerpool.New("smtp-ingest", o.smtpWorkers, o.queueSize),
	}
}

// Close shuts down all pools.
func (m *WorkManager) Close() {
	if m == nil {
		return
	}
	m.indexer.Close()
	m.smtpIngest.Close()
}

// SubmitIndexer schedules a hand-off-queue draining task.
func (m *WorkManager) SubmitIndexer(fn func(ctx context.Context)) error {
	return m.indexer.Submit(func(ctx context.Context) { fn(ctx) })
}

// SubmitSMTPIngest schedules an SMTP ingest task.
func (m *WorkManager) SubmitSMTPIngest(fn func(ctx context.Context)) error {
	return m.smtpIngest.Submit(func(ctx context.Context) { fn(ctx) })
}

// RunWithTimeout runs a function respecting a deadline and returns whether it completed.
func RunWithTimeout(parent context.Context, d time.Duration, fn func(ctx context.Context)) bool {
	ctx, cancel := context.WithTimeout(parent, d)
	defer cancel()
	done := make(chan struct{})
	go func() { fn(ctx); close(done) }()
	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
