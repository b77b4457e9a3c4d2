package sandbox

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/maltrieve/internal/crawler"
	"github.com/JakeFAU/maltrieve/internal/metrics"
)

// Target is one analysis service. Submit returns the service's reply (a
// message or task id).
type Target interface {
	Name() string
	Submit(ctx context.Context, sample crawler.Sample) (string, error)
}

// Forwarder submits each new sample to every configured target in order.
// Failures are logged and counted, never returned.
type Forwarder struct {
	targets []Target
	logger  *zap.Logger
}

// NewForwarder creates a Forwarder.
func NewForwarder(logger *zap.Logger, targets ...Target) *Forwarder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Forwarder{targets: targets, logger: logger}
}

// Len returns the number of targets.
func (f *Forwarder) Len() int {
	return len(f.targets)
}

// Forward implements crawler.Forwarder.
func (f *Forwarder) Forward(ctx context.Context, sample crawler.Sample) {
	for _, t := range f.targets {
		log := f.logger.With(zap.String("target", t.Name()), zap.String("hash", sample.Hash))
		reply, err := t.Submit(ctx, sample)
		if errors.Is(err, ErrLocalCopyKept) {
			metrics.ObserveSandbox(t.Name(), metrics.SandboxSubmitted)
			log.Warn("submitted sample but could not delete local copy", zap.String("reply", reply), zap.Error(err))
			continue
		}
		if err != nil {
			metrics.ObserveSandbox(t.Name(), metrics.SandboxFailed)
			log.Warn("sandbox submission failed", zap.Error(err))
			continue
		}
		metrics.ObserveSandbox(t.Name(), metrics.SandboxSubmitted)
		log.Info("submitted sample", zap.String("reply", reply))
	}
}
