// Package admission decides which candidate URLs enter the work queue.
package admission

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/maltrieve/internal/crawler"
	"github.com/JakeFAU/maltrieve/internal/metrics"
	"github.com/JakeFAU/maltrieve/internal/seen"
)

// Normalize trims the raw URL, repairs HTML-escaped ampersands left behind by
// feed markup, and prefixes http:// when no http(s) scheme is present.
func Normalize(raw string) string {
	u := strings.TrimSpace(raw)
	if u == "" {
		return ""
	}
	u = strings.ReplaceAll(u, "&amp;", "&")
	lower := strings.ToLower(u)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		u = "http://" + u
	}
	return u
}

// Gate admits each normalized URL at most once. The seen-URL set is shared by
// pointer with whoever persists it.
type Gate struct {
	urls   *seen.Set
	queue  crawler.Queue
	clock  crawler.Clock
	logger *zap.Logger
}

// New constructs a Gate.
func New(urls *seen.Set, queue crawler.Queue, clock crawler.Clock, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		urls:   urls,
		queue:  queue,
		clock:  clock,
		logger: logger,
	}
}

// Admit normalizes raw and enqueues it if it has never been admitted before.
// It returns true only for newly accepted URLs. When the enqueue fails the URL
// is forgotten again so a later admission can retry it.
func (g *Gate) Admit(ctx context.Context, raw, source string) (bool, error) {
	u := Normalize(raw)
	if u == "" {
		metrics.ObserveAdmission(source, metrics.AdmissionRejected)
		return false, nil
	}
	if !g.urls.Add(u) {
		g.logger.Info("skipping previously processed URL", zap.String("url", u), zap.String("source", source))
		metrics.ObserveAdmission(source, metrics.AdmissionDuplicate)
		return false, nil
	}

	item := crawler.QueueItem{URL: u, Source: source}
	if g.clock != nil {
		item.Enqueued = g.clock.Now()
	}
	if err := g.queue.Enqueue(ctx, item); err != nil {
		g.urls.Remove(u)
		return false, fmt.Errorf("enqueue %s: %w", u, err)
	}
	g.logger.Info("adding new URL to queue", zap.String("url", u), zap.String("source", source))
	metrics.ObserveAdmission(source, metrics.AdmissionAccepted)
	return true, nil
}
