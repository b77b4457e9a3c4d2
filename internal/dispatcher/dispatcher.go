// Package dispatcher manages the fixed-size fetch worker pool.
package dispatcher

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/maltrieve/internal/crawler"
	"github.com/JakeFAU/maltrieve/internal/metrics"
)

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 5

const pendingInterval = time.Second

// Queue is the work queue the pool drains.
type Queue interface {
	crawler.Queue
	Pending() int
	Close()
}

// Runner is one worker loop. Run returns when ctx ends or the queue closes.
type Runner interface {
	Run(ctx context.Context)
}

// Pool fans queue work out to a fixed set of workers.
type Pool struct {
	queue   Queue
	workers []Runner

	mu      sync.Mutex
	wg      sync.WaitGroup
	cancel  context.CancelFunc
	started bool
	stopped bool
}

// New creates a Pool over the given workers.
func New(queue Queue, workers []Runner) *Pool {
	return &Pool{queue: queue, workers: workers}
}

// Start launches every worker. Calling Start more than once is an error.
func (p *Pool) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return fmt.Errorf("pool already started")
	}
	if len(p.workers) == 0 {
		return fmt.Errorf("pool has no workers")
	}
	p.started = true

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	for _, w := range p.workers {
		p.wg.Add(1)
		go func(r Runner) {
			defer p.wg.Done()
			r.Run(runCtx)
		}(w)
	}
	return nil
}

// Join blocks until every admitted item has been processed, publishing the
// pending count while it waits.
func (p *Pool) Join(ctx context.Context) error {
	joinCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- p.queue.Join(joinCtx)
	}()

	ticker := time.NewTicker(pendingInterval)
	defer ticker.Stop()
	for {
		metrics.SetQueuePending(p.queue.Pending())
		select {
		case err := <-done:
			metrics.SetQueuePending(p.queue.Pending())
			if err != nil {
				return fmt.Errorf("queue join: %w", err)
			}
			return nil
		case <-ticker.C:
		}
	}
}

// Stop closes the queue and waits for the workers to exit. Items still
// buffered are drained first unless the start context was canceled.
func (p *Pool) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	cancel := p.cancel
	p.mu.Unlock()

	p.queue.Close()
	p.wg.Wait()
	if cancel != nil {
		cancel()
	}
}
