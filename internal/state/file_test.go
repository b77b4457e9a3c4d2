package state

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestFileStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	dir := t.TempDir()
	return NewFileStore(filepath.Join(dir, "urls.json"), filepath.Join(dir, "hashes.json"), zap.NewNop()), dir
}

func TestFileStoreLoadMissingFiles(t *testing.T) {
	t.Parallel()

	store, _ := newTestFileStore(t)
	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.URLs)
	assert.Empty(t, snap.Hashes)
}

func TestFileStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store, dir := newTestFileStore(t)
	in := Snapshot{
		URLs:   []string{"http://b/2", "http://a/1", "http://c/3"},
		Hashes: []string{"ffff", "0000", "aaaa"},
	}
	require.NoError(t, store.Save(context.Background(), in))

	out, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, in.URLs, out.URLs)
	assert.ElementsMatch(t, in.Hashes, out.Hashes)

	// #nosec G304 -- test reads from the controlled temp directory.
	raw, err := os.ReadFile(filepath.Join(dir, "urls.json"))
	require.NoError(t, err)
	var onDisk []string
	require.NoError(t, json.Unmarshal(raw, &onDisk))
	assert.Equal(t, []string{"http://a/1", "http://b/2", "http://c/3"}, onDisk, "files are written sorted")
}

func TestFileStoreSaveSkipsEmptySets(t *testing.T) {
	t.Parallel()

	store, dir := newTestFileStore(t)
	require.NoError(t, store.Save(context.Background(), Snapshot{URLs: []string{"http://x/a"}}))

	_, err := os.Stat(filepath.Join(dir, "hashes.json"))
	assert.True(t, os.IsNotExist(err), "empty hash set must not be written")
	_, err = os.Stat(filepath.Join(dir, "urls.json"))
	assert.NoError(t, err)
}

func TestFileStoreSaveKeepsExistingFileWhenSetEmpty(t *testing.T) {
	t.Parallel()

	store, dir := newTestFileStore(t)
	require.NoError(t, store.Save(context.Background(), Snapshot{Hashes: []string{"abcd"}}))
	require.NoError(t, store.Save(context.Background(), Snapshot{}))

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"abcd"}, snap.Hashes)
	_, err = os.Stat(filepath.Join(dir, "hashes.json"))
	assert.NoError(t, err)
}

func TestFileStoreMalformedFallsBackToEmpty(t *testing.T) {
	t.Parallel()

	store, dir := newTestFileStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "urls.json"), []byte("{not json"), 0o600))
	// a JSON object rather than a list is also treated as malformed
	require.NoError(t, os.WriteFile(filepath.Join(dir, "hashes.json"), []byte(`{"a":1}`), 0o600))

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.URLs)
	assert.Empty(t, snap.Hashes)
}

func TestFileStoreLegacyPickleIgnored(t *testing.T) {
	t.Parallel()

	store, dir := newTestFileStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "urls.obj"), []byte("\x80\x02c__builtin__\nset\n"), 0o600))

	snap, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.URLs)
}

func TestLegacyPath(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "/var/urls.obj", legacyPath("/var/urls.json"))
	assert.Equal(t, "", legacyPath("/var/urls.txt"))
}
