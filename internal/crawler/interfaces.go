package crawler

import (
	"context"
	"time"
)

// Queue buffers admitted URLs and tracks their completion.
type Queue interface {
	Enqueue(ctx context.Context, item QueueItem) error
	Dequeue(ctx context.Context) (QueueItem, error)
	// Done marks one previously dequeued item as finished.
	Done() error
	// Join blocks until every enqueued item has been dequeued and marked done.
	Join(ctx context.Context) error
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// Hasher computes digests for deduplication and storage naming.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// ContentStore persists sample bytes keyed by their content hash.
type ContentStore interface {
	Store(ctx context.Context, hash string, data []byte) (string, error)
	Remove(ctx context.Context, hash string) error
}

// Forwarder hands stored samples to external analysis services. Implementations
// swallow their own failures.
type Forwarder interface {
	Forward(ctx context.Context, sample Sample)
}

// Catalog records metadata about stored samples.
type Catalog interface {
	RecordSample(ctx context.Context, record SampleRecord) error
}

// Publisher pushes sample events to Kafka, Pub/Sub, or similar.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run and record IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
