package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/vaultbox/emts/internal/models"
)

type fakeDequeuer struct {
	mu    sync.Mutex
	blobs [][]byte
	done  chan struct{}
}

func newFakeDequeuer(blobs ...[]byte) *fakeDequeuer {
	return &fakeDequeuer{blobs: blobs, done: make(chan struct{})}
}

func (f *fakeDequeuer) BlockingDequeue(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	if len(f.blobs) > 0 {
		b := f.blobs[0]
		f.blobs = f.blobs[1:]
		if len(f.blobs) == 0 {
			close(f.done)
		}
		f.mu.Unlock()
		return b, nil
	}
	f.mu.Unlock()

	<-ctx.Done()
	return nil, ctx.Err()
}

type fakeInserter struct {
	mu      sync.Mutex
	inserts []models.QueueEnvelope
	err     error
}

func (f *fakeInserter) InsertWithId(id string, env models.QueueEnvelope) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.inserts = append(f.inserts, env)
	return nil
}

func TestWorkerProcessesQueuedEnvelope(t *testing.T) {
	env := models.QueueEnvelope{ID: "msg1", Sender: "a@example.com", Recipient: "b@example.com"}
	blob, err := json.Marshal(env)
	require.NoError(t, err)

	dq := newFakeDequeuer(blob)
	ins := &fakeInserter{}
	w := NewWorker(dq, ins)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(runDone)
	}()

	select {
	case <-dq.done:
	case <-time.After(time.Second):
		t.Fatal("worker never drained the queue")
	}
	cancel()
	<-runDone

	ins.mu.Lock()
	defer ins.mu.Unlock()
	require.Len(t, ins.inserts, 1)
	require.Equal(t, "msg1", ins.inserts[0].ID)
}

func TestWorkerDropsMalformedBlob(t *testing.T) {
	dq := newFakeDequeuer([]byte("not json"))
	ins := &fakeInserter{}
	w := NewWorker(dq, ins)

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(runDone)
	}()

	select {
	case <-dq.done:
	case <-time.After(time.Second):
		t.Fatal("worker never drained the queue")
	}
	cancel()
	<-runDone

	ins.mu.Lock()
	defer ins.mu.Unlock()
	require.Empty(t, ins.inserts, "malformed blob must be dropped, not inserted")
}

func TestWorkerContinuesPastInsertFailure(t *testing.T) {
	env := models.QueueEnvelope{ID: "msg1"}
	blob, _ := json.Marshal(env)

	// Two blobs: the second is only dequeued once the loop has continued
	// past the failed insert of the first.
	dq := newFakeDequeuer(blob, blob)
	ins := &fakeInserter{err: errors.New("duplicate")}
	w := NewWorker(dq, ins)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	select {
	case <-dq.done:
	case <-time.After(time.Second):
		t.Fatal("worker did not continue past the failed insert")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker must exit cleanly on context cancellation even after an insert failure")
	}
}
