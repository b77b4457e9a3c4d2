// Package app runs one harvest: load state, admit feed URLs, drain the work
// queue through the worker pool, then persist state once.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/JakeFAU/maltrieve/internal/admission"
	"github.com/JakeFAU/maltrieve/internal/crawler"
	"github.com/JakeFAU/maltrieve/internal/dispatcher"
	"github.com/JakeFAU/maltrieve/internal/feeds"
	queuememory "github.com/JakeFAU/maltrieve/internal/queue/memory"
	"github.com/JakeFAU/maltrieve/internal/seen"
	"github.com/JakeFAU/maltrieve/internal/state"
)

// WorkerFactory builds one worker reading from queue and deduplicating
// against hashes.
type WorkerFactory func(index int, queue crawler.Queue, hashes *seen.Set) (dispatcher.Runner, error)

// Config controls a harvest.
type Config struct {
	Workers int
	// ProxyCheckURL, when set, is fetched before harvesting and its body logged
	// as the address remote sites will see.
	ProxyCheckURL string
}

// Deps bundles the harvester's collaborators. Fetcher is only used for the
// proxy check.
type Deps struct {
	State     state.Store
	Sources   []feeds.Source
	NewWorker WorkerFactory
	Fetcher   crawler.Fetcher
	Clock     crawler.Clock
}

// Stats is a point-in-time view of a harvest.
type Stats struct {
	SeenURLs     int `json:"seen_urls"`
	SeenHashes   int `json:"seen_hashes"`
	QueuePending int `json:"queue_pending"`
}

// Harvester owns the seen-sets and the work queue for a single run.
type Harvester struct {
	cfg    Config
	deps   Deps
	urls   *seen.Set
	hashes *seen.Set
	queue  *queuememory.Queue
	gate   *admission.Gate
	logger *zap.Logger

	ready   atomic.Bool
	started atomic.Bool
}

// New constructs a Harvester.
func New(cfg Config, deps Deps, logger *zap.Logger) (*Harvester, error) {
	if deps.State == nil {
		return nil, fmt.Errorf("state store is required")
	}
	if deps.NewWorker == nil {
		return nil, fmt.Errorf("worker factory is required")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = dispatcher.DefaultWorkers
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	urls := seen.New()
	queue := queuememory.NewQueue()
	return &Harvester{
		cfg:    cfg,
		deps:   deps,
		urls:   urls,
		hashes: seen.New(),
		queue:  queue,
		gate:   admission.New(urls, queue, deps.Clock, logger.Named("admission")),
		logger: logger,
	}, nil
}

// Stats reports the current set sizes and outstanding work.
func (h *Harvester) Stats() Stats {
	return Stats{
		SeenURLs:     h.urls.Len(),
		SeenHashes:   h.hashes.Len(),
		QueuePending: h.queue.Pending(),
	}
}

// Ready reports whether state has been loaded and workers are running.
func (h *Harvester) Ready() bool {
	return h.ready.Load()
}

// Run performs the harvest. State is saved only after every admitted URL has
// been processed; a canceled ctx returns early and saves nothing.
func (h *Harvester) Run(ctx context.Context) error {
	if !h.started.CompareAndSwap(false, true) {
		return fmt.Errorf("harvester already ran")
	}

	snap, err := h.deps.State.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	for _, u := range snap.URLs {
		h.urls.Add(u)
	}
	for _, hash := range snap.Hashes {
		h.hashes.Add(hash)
	}
	h.logger.Info("state loaded", zap.Int("urls", h.urls.Len()), zap.Int("hashes", h.hashes.Len()))

	h.checkProxy(ctx)

	runners := make([]dispatcher.Runner, 0, h.cfg.Workers)
	for i := range h.cfg.Workers {
		r, err := h.deps.NewWorker(i, h.queue, h.hashes)
		if err != nil {
			return fmt.Errorf("build worker %d: %w", i, err)
		}
		runners = append(runners, r)
	}
	pool := dispatcher.New(h.queue, runners)
	if err := pool.Start(ctx); err != nil {
		return fmt.Errorf("start pool: %w", err)
	}
	defer pool.Stop()
	h.ready.Store(true)
	defer h.ready.Store(false)

	for _, src := range h.deps.Sources {
		if err := h.collect(ctx, src); err != nil {
			if ctx.Err() != nil {
				return fmt.Errorf("harvest interrupted: %w", ctx.Err())
			}
			h.logger.Warn("feed failed", zap.String("source", src.Name()), zap.Error(err))
		}
	}

	h.logger.Info("waiting for workers", zap.Int("pending", h.queue.Pending()))
	if err := pool.Join(ctx); err != nil {
		return fmt.Errorf("harvest interrupted: %w", err)
	}
	pool.Stop()

	final := state.Snapshot{URLs: h.urls.Sorted(), Hashes: h.hashes.Sorted()}
	if err := h.deps.State.Save(ctx, final); err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	h.logger.Info("harvest complete", zap.Int("urls", len(final.URLs)), zap.Int("hashes", len(final.Hashes)))
	return nil
}

func (h *Harvester) collect(ctx context.Context, src feeds.Source) error {
	log := h.logger.With(zap.String("source", src.Name()))
	log.Info("collecting feed")
	var admitted, offered int
	var admitErr error
	err := src.Collect(ctx, func(raw string) {
		offered++
		ok, err := h.gate.Admit(ctx, raw, src.Name())
		if err != nil {
			admitErr = errors.Join(admitErr, err)
			return
		}
		if ok {
			admitted++
		}
	})
	log.Info("feed collected", zap.Int("offered", offered), zap.Int("admitted", admitted))
	if err != nil {
		return fmt.Errorf("collect %s: %w", src.Name(), err)
	}
	if admitErr != nil {
		return fmt.Errorf("admit from %s: %w", src.Name(), admitErr)
	}
	return nil
}

func (h *Harvester) checkProxy(ctx context.Context) {
	if h.cfg.ProxyCheckURL == "" || h.deps.Fetcher == nil {
		return
	}
	resp, err := h.deps.Fetcher.Fetch(ctx, crawler.FetchRequest{URL: h.cfg.ProxyCheckURL})
	if err != nil {
		h.logger.Warn("proxy check failed", zap.Error(err))
		return
	}
	h.logger.Info("external sites see", zap.String("ip", strings.TrimSpace(string(resp.Body))))
}
