package crawler

import "errors"

// ErrQueueClosed is returned by a Queue once it has been closed and drained.
// Workers treat it as the signal to exit.
var ErrQueueClosed = errors.New("queue closed")
