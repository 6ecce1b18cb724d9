package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueDispatches(t *testing.T) {
	done := make(chan Job, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		done <- job
		return nil
	}, QueueConfig{})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "sweep"}))

	select {
	case job := <-done:
		assert.Equal(t, "sweep", job.Type)
		assert.False(t, job.Enqueued.IsZero())
	case <-time.After(time.Second):
		t.Fatal("job was not dispatched")
	}
}

func TestQueueRetriesFailedJob(t *testing.T) {
	var attempts atomic.Int32
	done := make(chan struct{}, 1)
	q := NewQueue("test", func(ctx context.Context, job Job) error {
		if attempts.Add(1) == 1 {
			return errors.New("transient")
		}
		done <- struct{}{}
		return nil
	}, QueueConfig{RetryDelay: 5 * time.Millisecond})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{Type: "sweep"}))

	select {
	case <-done:
		assert.Equal(t, int32(2), attempts.Load())
	case <-time.After(time.Second):
		t.Fatal("job was not retried")
	}
}

func TestQueueEnqueueBeforeStart(t *testing.T) {
	q := NewQueue("test", func(ctx context.Context, job Job) error { return nil }, QueueConfig{})

	assert.Error(t, q.Enqueue(Job{Type: "sweep"}))
}
