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

func TestQueueDispatchesByType(t *testing.T) {
	q := NewQueue("mail", QueueConfig{Workers: 2})
	done := make(chan string, 2)
	q.Handle("verification", func(ctx context.Context, job Job) error {
		done <- "verification:" + job.Payload.(string)
		return nil
	})
	q.Handle("admin", func(ctx context.Context, job Job) error {
		done <- "admin:" + job.Payload.(string)
		return nil
	})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "verification", Payload: "a"}))
	require.NoError(t, q.Enqueue(Job{ID: "2", Type: "admin", Payload: "b"}))

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		select {
		case v := <-done:
			got[v] = true
		case <-time.After(time.Second):
			t.Fatal("job not processed")
		}
	}
	assert.True(t, got["verification:a"])
	assert.True(t, got["admin:b"])
}

func TestQueueRetriesThenGivesUp(t *testing.T) {
	var attempts int32
	gaveUp := make(chan Job, 1)
	q := NewQueue("mail", QueueConfig{
		MaxRetries: 2,
		RetryDelay: time.Millisecond,
		OnGiveUp:   func(j Job, err error) { gaveUp <- j },
	})
	q.Handle("flaky", func(ctx context.Context, job Job) error {
		atomic.AddInt32(&attempts, 1)
		return errors.New("smtp unavailable")
	})
	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job{ID: "1", Type: "flaky"}))

	select {
	case j := <-gaveUp:
		assert.Equal(t, 3, j.Attempt)
	case <-time.After(2 * time.Second):
		t.Fatal("queue never gave up")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&attempts))
}

func TestQueueEnqueueRequiresStart(t *testing.T) {
	q := NewQueue("mail", QueueConfig{})
	assert.ErrorIs(t, q.Enqueue(Job{Type: "x"}), ErrNotStarted)

	q.Start(context.Background())
	q.Stop()
	assert.ErrorIs(t, q.Enqueue(Job{Type: "x"}), ErrNotStarted)
}

func TestQueueFull(t *testing.T) {
	block := make(chan struct{})
	q := NewQueue("mail", QueueConfig{Workers: 1, BufferSize: 1})
	q.Handle("slow", func(ctx context.Context, job Job) error {
		<-block
		return nil
	})
	q.Start(context.Background())
	defer func() {
		close(block)
		q.Stop()
	}()

	var full bool
	for i := 0; i < 5; i++ {
		if err := q.Enqueue(Job{Type: "slow"}); errors.Is(err, ErrQueueFull) {
			full = true
			break
		}
	}
	assert.True(t, full)
}
