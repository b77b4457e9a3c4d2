package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/maltrieve/internal/crawler"
)

func TestQueueEnqueueDequeue(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	result := make(chan crawler.QueueItem, 1)
	errCh := make(chan error, 1)

	go func() {
		item, err := q.Dequeue(context.Background())
		if err != nil {
			errCh <- err
			return
		}
		result <- item
	}()

	time.Sleep(10 * time.Millisecond) // allow goroutine to block
	if err := q.Enqueue(context.Background(), crawler.QueueItem{URL: "http://x/a"}); err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	select {
	case err := <-errCh:
		t.Fatalf("Dequeue() error = %v", err)
	case got := <-result:
		if got.URL != "http://x/a" {
			t.Fatalf("expected http://x/a, got %+v", got)
		}
	case <-time.After(time.Second):
		t.Fatal("dequeue did not return item")
	}
}

func TestQueueIsUnboundedAndFIFO(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	for i := range 1000 {
		require.NoError(t, q.Enqueue(context.Background(), crawler.QueueItem{URL: fmt.Sprintf("u%d", i)}))
	}
	require.Equal(t, 1000, q.Len())
	for i := range 1000 {
		item, err := q.Dequeue(context.Background())
		require.NoError(t, err)
		require.Equal(t, fmt.Sprintf("u%d", i), item.URL)
	}
	require.Equal(t, 1000, q.Pending())
}

func TestQueueJoinWaitsForDone(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	require.NoError(t, q.Join(context.Background()), "empty queue joins immediately")

	const k = 25
	for i := range k {
		require.NoError(t, q.Enqueue(context.Background(), crawler.QueueItem{URL: fmt.Sprintf("u%d", i)}))
	}

	joined := make(chan error, 1)
	go func() { joined <- q.Join(context.Background()) }()

	var mu sync.Mutex
	seen := map[string]int{}
	var wg sync.WaitGroup
	for range 3 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				item, err := q.Dequeue(context.Background())
				if err != nil {
					return
				}
				mu.Lock()
				seen[item.URL]++
				mu.Unlock()
				if err := q.Done(); err != nil {
					t.Errorf("Done() error = %v", err)
				}
			}
		}()
	}

	select {
	case err := <-joined:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("join did not return")
	}
	q.Close()
	wg.Wait()

	require.Len(t, seen, k)
	for url, n := range seen {
		require.Equalf(t, 1, n, "item %s dequeued %d times", url, n)
	}
	require.Zero(t, q.Pending())
}

func TestQueueJoinRespectsContext(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	require.NoError(t, q.Enqueue(context.Background(), crawler.QueueItem{URL: "u"}))
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := q.Join(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueDoneUnderflow(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	require.ErrorIs(t, q.Done(), ErrDoneUnderflow)
}

func TestQueueCancelationErrors(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := q.Dequeue(ctx); err == nil ||
		err.Error() != "dequeue canceled: context canceled" {
		t.Fatalf("expected dequeue cancel error, got %v", err)
	}
	if err := q.Enqueue(ctx, crawler.QueueItem{}); err == nil ||
		err.Error() != "enqueue canceled: context canceled" {
		t.Fatalf("expected enqueue cancel error, got %v", err)
	}
}

func TestQueueClose(t *testing.T) {
	t.Parallel()

	q := NewQueue()
	blocked := make(chan error, 1)
	go func() {
		_, err := q.Dequeue(context.Background())
		blocked <- err
	}()
	time.Sleep(10 * time.Millisecond)
	q.Close()
	select {
	case err := <-blocked:
		require.True(t, errors.Is(err, ErrClosed))
	case <-time.After(time.Second):
		t.Fatal("close did not wake dequeuer")
	}
	require.ErrorIs(t, q.Enqueue(context.Background(), crawler.QueueItem{URL: "late"}), ErrClosed)
	// Closing twice should be safe.
	q.Close()
}
