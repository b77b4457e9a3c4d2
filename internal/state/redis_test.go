package state

import (
	"context"
	"errors"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSetClient struct {
	sets    map[string]map[string]struct{}
	loadErr error
	addErr  error
	closed  bool
}

func newFakeSetClient() *fakeSetClient {
	return &fakeSetClient{sets: map[string]map[string]struct{}{}}
}

func (f *fakeSetClient) SMembers(_ context.Context, key string) *redis.StringSliceCmd {
	if f.loadErr != nil {
		return redis.NewStringSliceResult(nil, f.loadErr)
	}
	out := make([]string, 0, len(f.sets[key]))
	for member := range f.sets[key] {
		out = append(out, member)
	}
	return redis.NewStringSliceResult(out, nil)
}

func (f *fakeSetClient) SAdd(_ context.Context, key string, members ...interface{}) *redis.IntCmd {
	if f.addErr != nil {
		return redis.NewIntResult(0, f.addErr)
	}
	if f.sets[key] == nil {
		f.sets[key] = map[string]struct{}{}
	}
	var added int64
	for _, m := range members {
		s, _ := m.(string)
		if _, ok := f.sets[key][s]; !ok {
			f.sets[key][s] = struct{}{}
			added++
		}
	}
	return redis.NewIntResult(added, nil)
}

func (f *fakeSetClient) Close() error {
	f.closed = true
	return nil
}

func TestRedisStoreRoundTrip(t *testing.T) {
	t.Parallel()

	client := newFakeSetClient()
	store := NewRedisStoreWithClient(client, "maltrieve:", nil)

	in := Snapshot{URLs: []string{"http://b", "http://a"}, Hashes: []string{"02", "01"}}
	require.NoError(t, store.Save(context.Background(), in))
	require.Len(t, client.sets["maltrieve:urls"], 2)

	out, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"http://a", "http://b"}, out.URLs)
	assert.Equal(t, []string{"01", "02"}, out.Hashes)

	require.NoError(t, store.Close())
	assert.True(t, client.closed)
}

func TestRedisStoreSaveSkipsEmpty(t *testing.T) {
	t.Parallel()

	client := newFakeSetClient()
	client.addErr = errors.New("should not be called")
	store := NewRedisStoreWithClient(client, "p:", nil)
	require.NoError(t, store.Save(context.Background(), Snapshot{}))
}

func TestRedisStoreErrors(t *testing.T) {
	t.Parallel()

	client := newFakeSetClient()
	client.loadErr = errors.New("connection refused")
	store := NewRedisStoreWithClient(client, "p:", nil)

	_, err := store.Load(context.Background())
	require.ErrorContains(t, err, "load urls")

	client.addErr = errors.New("readonly")
	err = store.Save(context.Background(), Snapshot{Hashes: []string{"aa"}})
	require.ErrorContains(t, err, "save hashes")
}
