// Package worker implements the fetch, dedupe and store loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/maltrieve/internal/crawler"
	"github.com/JakeFAU/maltrieve/internal/metrics"
	"github.com/JakeFAU/maltrieve/internal/seen"
)

// Config controls Worker behavior.
type Config struct {
	// RunID tags catalog rows and sample events produced by this run.
	RunID string
	// Topic receives sample events; empty disables publishing.
	Topic string
	// LogHeaders logs the response headers of every fetched URL.
	LogHeaders bool
}

// Deps bundles a worker's collaborators. Queue, Fetcher, Hasher, Hashes and
// Store are required; the rest are optional.
type Deps struct {
	Queue     crawler.Queue
	Fetcher   crawler.Fetcher
	Hasher    crawler.Hasher
	Hashes    *seen.Set
	Store     crawler.ContentStore
	Catalog   crawler.Catalog
	Publisher crawler.Publisher
	Forwarder crawler.Forwarder
	Clock     crawler.Clock
	IDs       crawler.IDGenerator
}

// Worker consumes queue items and executes the fetch pipeline.
type Worker struct {
	deps   Deps
	cfg    Config
	logger *zap.Logger
}

// New constructs a Worker.
func New(deps Deps, cfg Config, logger *zap.Logger) (*Worker, error) {
	switch {
	case deps.Queue == nil:
		return nil, fmt.Errorf("worker queue is required")
	case deps.Fetcher == nil:
		return nil, fmt.Errorf("worker fetcher is required")
	case deps.Hasher == nil:
		return nil, fmt.Errorf("worker hasher is required")
	case deps.Hashes == nil:
		return nil, fmt.Errorf("worker hash set is required")
	case deps.Store == nil:
		return nil, fmt.Errorf("worker content store is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{deps: deps, cfg: cfg, logger: logger}, nil
}

// Run blocks, consuming queue items until the context finishes or the queue
// is closed.
func (w *Worker) Run(ctx context.Context) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	for {
		item, err := w.deps.Queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, crawler.ErrQueueClosed) {
				return
			}
			w.logger.Error("queue dequeue failed", zap.Error(err))
			continue
		}
		w.process(ctx, item)
	}
}

// process handles one item. Done is always called, whatever happens to it.
func (w *Worker) process(ctx context.Context, item crawler.QueueItem) {
	defer func() {
		if err := w.deps.Queue.Done(); err != nil {
			w.logger.Error("queue done failed", zap.String("url", item.URL), zap.Error(err))
		}
	}()

	log := w.logger.With(zap.String("url", item.URL), zap.String("source", item.Source))

	resp, err := w.deps.Fetcher.Fetch(ctx, crawler.FetchRequest{URL: item.URL})
	if err != nil {
		metrics.ObserveFetch(item.Source, metrics.FetchError, 0, 0)
		log.Warn("fetch failed", zap.Error(err))
		return
	}
	if w.cfg.LogHeaders {
		log.Info("response headers", zap.Int("status", resp.StatusCode), zap.Any("headers", resp.Headers))
	}
	if len(resp.Body) == 0 {
		metrics.ObserveFetch(item.Source, metrics.FetchEmpty, 0, resp.Duration)
		log.Debug("empty response body")
		return
	}
	metrics.ObserveFetch(item.Source, metrics.FetchOK, len(resp.Body), resp.Duration)

	hash, err := w.deps.Hasher.Hash(resp.Body)
	if err != nil {
		metrics.ObserveSample(metrics.SampleFailed)
		log.Error("hash body failed", zap.Error(err))
		return
	}
	log = log.With(zap.String("hash", hash))

	// Claim before storing so two workers holding identical bytes store once.
	if !w.deps.Hashes.Add(hash) {
		metrics.ObserveSample(metrics.SampleDuplicate)
		log.Info("already have sample")
		return
	}

	location, err := w.deps.Store.Store(ctx, hash, resp.Body)
	if err != nil {
		w.deps.Hashes.Remove(hash)
		metrics.ObserveSample(metrics.SampleFailed)
		log.Error("store sample failed", zap.Error(err))
		return
	}
	metrics.ObserveSample(metrics.SampleStored)
	log.Info("saved sample", zap.String("location", location), zap.Int("bytes", len(resp.Body)))

	sample := crawler.Sample{
		URL:         item.URL,
		Source:      item.Source,
		Hash:        hash,
		Body:        resp.Body,
		Location:    location,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Headers.Get("Content-Type"),
		Headers:     resp.Headers,
		FetchedAt:   w.now(),
	}
	w.record(ctx, sample, log)
	w.publish(ctx, sample, log)
	if w.deps.Forwarder != nil {
		w.deps.Forwarder.Forward(ctx, sample)
	}
}

func (w *Worker) record(ctx context.Context, sample crawler.Sample, log *zap.Logger) {
	if w.deps.Catalog == nil {
		return
	}
	id, err := w.newID()
	if err != nil {
		log.Error("catalog id generation failed", zap.Error(err))
		return
	}
	record := crawler.SampleRecord{
		ID:          id,
		RunID:       w.cfg.RunID,
		URL:         sample.URL,
		Source:      sample.Source,
		Hash:        sample.Hash,
		Size:        len(sample.Body),
		Location:    sample.Location,
		StatusCode:  sample.StatusCode,
		ContentType: sample.ContentType,
		Headers:     sample.Headers,
		RetrievedAt: sample.FetchedAt,
	}
	if err := w.deps.Catalog.RecordSample(ctx, record); err != nil {
		log.Error("catalog record failed", zap.Error(err))
	}
}

func (w *Worker) publish(ctx context.Context, sample crawler.Sample, log *zap.Logger) {
	if w.cfg.Topic == "" || w.deps.Publisher == nil {
		return
	}
	event := crawler.NewSampleEvent(w.cfg.RunID, sample)
	id, err := w.deps.Publisher.Publish(ctx, w.cfg.Topic, event)
	if err != nil {
		log.Error("publish sample event failed", zap.Error(err))
		return
	}
	log.Debug("sample event published", zap.String("message_id", id))
}

func (w *Worker) now() time.Time {
	if w.deps.Clock == nil {
		return time.Now().UTC()
	}
	return w.deps.Clock.Now()
}

func (w *Worker) newID() (string, error) {
	if w.deps.IDs == nil {
		return "", fmt.Errorf("id generator is not configured")
	}
	id, err := w.deps.IDs.NewID()
	if err != nil {
		return "", fmt.Errorf("new id: %w", err)
	}
	return id, nil
}
