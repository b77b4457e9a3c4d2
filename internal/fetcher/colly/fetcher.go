// Package collyfetcher implements Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/JakeFAU/maltrieve/internal/crawler"
)

const defaultTimeout = 10 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// Proxy routes every fetch through the given HTTP proxy. Nil falls back to
	// the environment.
	Proxy *url.URL
	// MaxBodyBytes fails fetches whose body is larger than this; zero means
	// unlimited.
	MaxBodyBytes int
}

// Fetcher implements crawler.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config) *Fetcher {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(colly.Async(false))
	c.WithTransport(newRawTransport(NewTransport(cfg.Proxy), cfg.MaxBodyBytes))
	c.IgnoreRobotsTxt = true
	c.AllowURLRevisit = true
	// rawTransport enforces the limit and owns the body
	c.MaxBodySize = 0
	c.SetRequestTimeout(cfg.Timeout)
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
	}
}

// Fetch executes a single HTTP GET using Colly. The body is returned byte for
// byte as served. Transport failures, oversized bodies and non-2xx responses
// are returned as errors.
func (f *Fetcher) Fetch(ctx context.Context, request crawler.FetchRequest) (crawler.FetchResponse, error) {
	var (
		result   crawler.FetchResponse
		fetchErr error
		capture  rawCapture
	)
	collector := f.baseCollector.Clone()
	collector.Context = withCapture(context.Background(), &capture)
	f.configureCollectorHooks(collector, time.Now(), &result, &fetchErr)

	if err := VisitContext(ctx, collector, request.URL); err != nil {
		// the abandoned visit may still be writing its hooks' results
		if ctx.Err() != nil {
			return crawler.FetchResponse{}, err
		}
		if fetchErr != nil {
			return crawler.FetchResponse{}, fmt.Errorf("colly response failed: %w", fetchErr)
		}
		return crawler.FetchResponse{}, err
	}
	if fetchErr != nil {
		return crawler.FetchResponse{}, fmt.Errorf("colly response failed: %w", fetchErr)
	}
	body, ok := capture.load()
	if !ok {
		return crawler.FetchResponse{}, fmt.Errorf("no response body captured for %s", request.URL)
	}
	result.Body = body
	return result, nil
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) {
	hooks.OnResponse(func(r *colly.Response) {
		resp := crawler.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Duration:   time.Since(start),
		}
		if r.Headers != nil {
			resp.Headers = r.Headers.Clone()
		}
		*result = resp
	})

	hooks.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode != 0 {
			*fetchErr = fmt.Errorf("status %d: %w", r.StatusCode, err)
			return
		}
		*fetchErr = err
	})
}

// VisitContext runs a synchronous collector visit, returning early when ctx is
// done. The abandoned visit still ends at the collector's request timeout.
func VisitContext(ctx context.Context, collector *colly.Collector, url string) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		return nil
	}
}

// NewTransport returns the pooled transport used for harvesting. A nil proxy
// defers to the HTTP_PROXY family of environment variables.
func NewTransport(proxy *url.URL) *http.Transport {
	proxyFunc := http.ProxyFromEnvironment
	if proxy != nil {
		proxyFunc = http.ProxyURL(proxy)
	}
	return &http.Transport{
		Proxy: proxyFunc,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
