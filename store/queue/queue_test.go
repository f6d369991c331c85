package queue

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func openTestQueue(t *testing.T, path, name string) *Queue {
	t.Helper()
	q, err := Open(path, name)
	require.NoError(t, err)
	return q
}

func TestEnqueueDequeueFIFOOrder(t *testing.T) {
	dir := t.TempDir()
	q := openTestQueue(t, filepath.Join(dir, "queue.db"), "smtp_emails")
	defer q.Close()

	require.NoError(t, q.Enqueue([]byte("first")))
	require.NoError(t, q.Enqueue([]byte("second")))
	require.NoError(t, q.Enqueue([]byte("third")))

	ctx := context.Background()
	for _, want := range []string{"first", "second", "third"} {
		got, err := q.BlockingDequeue(ctx)
		require.NoError(t, err)
		require.Equal(t, want, string(got))
	}
}

func TestQueueScopedByName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.db")
	a := openTestQueue(t, path, "queue_a")
	defer a.Close()
	b := openTestQueue(t, path, "queue_b")
	defer b.Close()

	require.NoError(t, a.Enqueue([]byte("for-a")))

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_, err := b.BlockingDequeue(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded, "queue b must not see queue a's items")
}

func TestQueueDurableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "queue.db")

	q1 := openTestQueue(t, path, "smtp_emails")
	require.NoError(t, q1.Enqueue([]byte("durable-payload")))
	require.NoError(t, q1.Close())

	q2 := openTestQueue(t, path, "smtp_emails")
	defer q2.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := q2.BlockingDequeue(ctx)
	require.NoError(t, err)
	require.Equal(t, "durable-payload", string(got))
}

func TestBlockingDequeueCancellation(t *testing.T) {
	dir := t.TempDir()
	q := openTestQueue(t, filepath.Join(dir, "queue.db"), "smtp_emails")
	defer q.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := q.BlockingDequeue(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
