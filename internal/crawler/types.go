// Package crawler defines core types shared across subsystems.
package crawler

import (
	"net/http"
	"time"
)

// QueueItem is a normalized candidate URL waiting to be fetched.
type QueueItem struct {
	URL      string
	Source   string
	Enqueued time.Time
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL string
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// Sample is a fetched payload on its way through the pipeline. Only Hash and
// Body outlive the worker that produced it.
type Sample struct {
	URL         string
	Source      string
	Hash        string
	Body        []byte
	Location    string
	StatusCode  int
	ContentType string
	Headers     http.Header
	FetchedAt   time.Time
}

// SampleRecord is persisted to the sample catalog for each stored sample.
type SampleRecord struct {
	ID          string      `json:"id"`
	RunID       string      `json:"run_id"`
	URL         string      `json:"url"`
	Source      string      `json:"source"`
	Hash        string      `json:"hash"`
	Size        int         `json:"size"`
	Location    string      `json:"location"`
	StatusCode  int         `json:"status_code"`
	ContentType string      `json:"content_type"`
	Headers     http.Header `json:"headers"`
	RetrievedAt time.Time   `json:"retrieved_at"`
}

// SampleEvent is the payload published when a new sample lands in storage.
type SampleEvent struct {
	RunID     string `json:"run_id"`
	URL       string `json:"url"`
	Source    string `json:"source"`
	Hash      string `json:"hash"`
	Location  string `json:"location"`
	Size      int    `json:"size"`
	Timestamp string `json:"timestamp"`
}

// NewSampleEvent builds the event announcing sample for the given run.
func NewSampleEvent(runID string, sample Sample) SampleEvent {
	return SampleEvent{
		RunID:     runID,
		URL:       sample.URL,
		Source:    sample.Source,
		Hash:      sample.Hash,
		Location:  sample.Location,
		Size:      len(sample.Body),
		Timestamp: sample.FetchedAt.UTC().Format(time.RFC3339),
	}
}
