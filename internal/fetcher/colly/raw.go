package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// ErrBodyTooLarge is returned when a response exceeds Config.MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body too large")

type captureKey struct{}

// rawCapture holds the body of the last response seen for one fetch, exactly
// as the server sent it.
type rawCapture struct {
	mu   sync.Mutex
	body []byte
	set  bool
}

func (c *rawCapture) store(body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.body = body
	c.set = true
}

func (c *rawCapture) load() ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.body, c.set
}

func withCapture(ctx context.Context, c *rawCapture) context.Context {
	return context.WithValue(ctx, captureKey{}, c)
}

// rawTransport reads response bodies itself and hands colly an empty,
// already-decoded body, so colly's gunzip and charset conversion never touch
// sample bytes. Requests without a capture pass through untouched.
type rawTransport struct {
	next     http.RoundTripper
	maxBytes int
}

func newRawTransport(next http.RoundTripper, maxBytes int) *rawTransport {
	return &rawTransport{next: next, maxBytes: maxBytes}
}

// RoundTrip implements http.RoundTripper.
func (t *rawTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	capture, ok := req.Context().Value(captureKey{}).(*rawCapture)
	if !ok {
		return t.next.RoundTrip(req)
	}
	resp, err := t.next.RoundTrip(req)
	if err != nil {
		return nil, err
	}

	body, readErr := readLimited(resp.Body, t.maxBytes)
	closeErr := resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if closeErr != nil {
		return nil, fmt.Errorf("close response body: %w", closeErr)
	}
	capture.store(body)

	resp.Body = http.NoBody
	resp.ContentLength = 0
	resp.Uncompressed = true
	return resp, nil
}

// readLimited reads r fully. With a positive limit it reads one byte past it
// so an oversized body is reported instead of silently cut.
func readLimited(r io.Reader, limit int) ([]byte, error) {
	if limit <= 0 {
		body, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read response body: %w", err)
		}
		return body, nil
	}
	body, err := io.ReadAll(io.LimitReader(r, int64(limit)+1))
	if err != nil {
		return nil, fmt.Errorf("read response body: %w", err)
	}
	if len(body) > limit {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, limit)
	}
	return body, nil
}
