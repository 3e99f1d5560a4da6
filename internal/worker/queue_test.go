package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	task := Task{ID: uuid.New(), Kind: TaskExecute, JobID: uuid.New()}

	require.True(t, q.TryEnqueue(task))

	got, err := q.Dequeue(context.Background())
	require.NoError(t, err)
	require.Equal(t, task.ID, got.ID)
	require.Equal(t, task.JobID, got.JobID)
}

func TestQueueDequeueRespectsContext(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := q.Dequeue(ctx)
	require.Error(t, err)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueTryEnqueue(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	require.True(t, q.TryEnqueue(Task{ID: uuid.New()}))
	require.False(t, q.TryEnqueue(Task{ID: uuid.New()}))
	require.Equal(t, 1, q.Depth())
}

func TestQueueCloseIsIdempotent(t *testing.T) {
	t.Parallel()

	q := NewQueue(1)
	q.Close()
	q.Close()

	_, err := q.Dequeue(context.Background())
	require.ErrorIs(t, err, ErrQueueClosed)
}
