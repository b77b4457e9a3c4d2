// Package state persists the seen-URL and seen-hash sets between runs.
package state

import (
	"context"
	"sort"
)

// Snapshot is the durable form of the two seen-sets: plain sorted string lists.
type Snapshot struct {
	URLs   []string
	Hashes []string
}

// Store loads and saves snapshots.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
}

func sortedCopy(items []string) []string {
	out := append([]string(nil), items...)
	sort.Strings(out)
	return out
}
