// Package memory provides the in-process work queue used by the harvest pool.
package memory

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/JakeFAU/maltrieve/internal/crawler"
)

var (
	// ErrClosed is returned by Enqueue and Dequeue after Close.
	ErrClosed = crawler.ErrQueueClosed
	// ErrDoneUnderflow is returned when Done is called more often than items were enqueued.
	ErrDoneUnderflow = errors.New("done called more times than items enqueued")
)

// Queue is an unbounded FIFO with completion tracking. Every enqueued item
// counts as pending until a consumer calls Done for it; Join waits for the
// pending count to reach zero.
type Queue struct {
	mu      sync.Mutex
	items   []crawler.QueueItem
	pending int
	closed  bool

	ready   chan struct{}
	closeCh chan struct{}
	drained chan struct{}
}

// NewQueue constructs an empty queue.
func NewQueue() *Queue {
	drained := make(chan struct{})
	close(drained)
	return &Queue{
		ready:   make(chan struct{}, 1),
		closeCh: make(chan struct{}),
		drained: drained,
	}
}

// Enqueue appends an item. It never blocks on capacity.
func (q *Queue) Enqueue(ctx context.Context, item crawler.QueueItem) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("enqueue canceled: %w", err)
	}
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return ErrClosed
	}
	q.items = append(q.items, item)
	if q.pending == 0 {
		q.drained = make(chan struct{})
	}
	q.pending++
	q.mu.Unlock()
	q.signal()
	return nil
}

// Dequeue pops the next item, blocking until one is available, the queue is
// closed, or the context ends.
func (q *Queue) Dequeue(ctx context.Context) (crawler.QueueItem, error) {
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			item := q.items[0]
			q.items[0] = crawler.QueueItem{}
			q.items = q.items[1:]
			more := len(q.items) > 0
			q.mu.Unlock()
			if more {
				// pass the wakeup on to the next idle consumer
				q.signal()
			}
			return item, nil
		}
		if q.closed {
			q.mu.Unlock()
			return crawler.QueueItem{}, ErrClosed
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return crawler.QueueItem{}, fmt.Errorf("dequeue canceled: %w", ctx.Err())
		case <-q.closeCh:
		case <-q.ready:
		}
	}
}

// Done marks one dequeued item as finished.
func (q *Queue) Done() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.pending == 0 {
		return ErrDoneUnderflow
	}
	q.pending--
	if q.pending == 0 {
		close(q.drained)
	}
	return nil
}

// Join blocks until all enqueued items are done or the context ends.
func (q *Queue) Join(ctx context.Context) error {
	q.mu.Lock()
	drained := q.drained
	q.mu.Unlock()
	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("join canceled: %w", ctx.Err())
	}
}

// Len returns the number of items waiting to be dequeued.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Pending returns the number of items enqueued but not yet marked done.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending
}

// Close stops the queue and wakes blocked consumers. Items still buffered can
// be drained by Dequeue. Closing twice is safe.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	close(q.closeCh)
}

func (q *Queue) signal() {
	select {
	case q.ready <- struct{}{}:
	default:
	}
}
