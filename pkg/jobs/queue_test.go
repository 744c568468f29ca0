package jobs

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type testPayload struct {
	Target string
}

func TestQueueProcessesJobs(t *testing.T) {
	var mu sync.Mutex
	var seen []string
	done := make(chan struct{}, 2)

	q := NewQueue("test", func(ctx context.Context, job Job[testPayload]) error {
		mu.Lock()
		seen = append(seen, job.Payload.Target)
		mu.Unlock()
		done <- struct{}{}
		return nil
	}, QueueConfig{Workers: 2})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[testPayload]{ID: "a", Type: "noop", Payload: testPayload{Target: "class-a"}}))
	require.NoError(t, q.Enqueue(Job[testPayload]{ID: "b", Type: "noop", Payload: testPayload{Target: "class-b"}}))

	for i := 0; i < 2; i++ {
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for jobs")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.ElementsMatch(t, []string{"class-a", "class-b"}, seen)
}

func TestQueueRetriesFailedJobs(t *testing.T) {
	attempts := make(chan int, 4)

	q := NewQueue("retry", func(ctx context.Context, job Job[testPayload]) error {
		attempts <- job.Attempt
		if job.Attempt == 0 {
			return errors.New("transient")
		}
		return nil
	}, QueueConfig{Workers: 1, MaxRetries: 2, RetryDelay: 10 * time.Millisecond})

	q.Start(context.Background())
	defer q.Stop()

	require.NoError(t, q.Enqueue(Job[testPayload]{ID: "j", Type: "flaky"}))

	var observed []int
	for i := 0; i < 2; i++ {
		select {
		case a := <-attempts:
			observed = append(observed, a)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for retry")
		}
	}
	require.Equal(t, []int{0, 1}, observed)
}

func TestEnqueueBeforeStartFails(t *testing.T) {
	q := NewQueue("idle", func(ctx context.Context, job Job[testPayload]) error { return nil }, QueueConfig{})
	require.Error(t, q.Enqueue(Job[testPayload]{ID: "x"}))
}
