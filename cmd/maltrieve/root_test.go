package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/maltrieve/internal/config"
	"github.com/JakeFAU/maltrieve/internal/feeds"
	"github.com/JakeFAU/maltrieve/internal/sandbox"
	"github.com/JakeFAU/maltrieve/internal/state"
	localstore "github.com/JakeFAU/maltrieve/internal/storage/local"
	memorystore "github.com/JakeFAU/maltrieve/internal/storage/memory"
)

func TestRootCmdFlags(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	for name, short := range map[string]string{
		"proxy":   "p",
		"dumpdir": "d",
		"logfile": "l",
		"vxcage":  "x",
		"cuckoo":  "c",
	} {
		flag := cmd.Flags().Lookup(name)
		require.NotNil(t, flag, name)
		assert.Equal(t, short, flag.Shorthand, name)
	}
	require.NotNil(t, cmd.Flags().Lookup("workers"))
	require.NotNil(t, cmd.Flags().Lookup("config"))
}

func TestRootCmdRejectsInvalidConfig(t *testing.T) {
	t.Parallel()

	cmd := newRootCmd()
	cmd.SetArgs([]string{"--workers", "0"})
	err := cmd.ExecuteContext(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "harvester.workers")
}

func TestBuildContentStoreUsesDumpDir(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	var hooks cleanup
	store, err := buildContentStore(context.Background(), config.StorageConfig{Backend: "local", DumpDir: dir},
		t.TempDir(), &hooks, zap.NewNop())

	require.NoError(t, err)
	local, ok := store.(*localstore.Store)
	require.True(t, ok)
	assert.Equal(t, dir, local.Dir())
}

func TestBuildContentStoreMemoryDryRun(t *testing.T) {
	t.Parallel()

	var hooks cleanup
	store, err := buildContentStore(context.Background(), config.StorageConfig{Backend: "memory"},
		t.TempDir(), &hooks, zap.NewNop())

	require.NoError(t, err)
	assert.IsType(t, &memorystore.Store{}, store)
	assert.Empty(t, hooks.fns)
}

func TestBuildContentStoreFallsBack(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	fallback := t.TempDir()

	var hooks cleanup
	store, err := buildContentStore(context.Background(),
		config.StorageConfig{Backend: "local", DumpDir: filepath.Join(blocker, "samples")},
		fallback, &hooks, zap.NewNop())

	require.NoError(t, err)
	assert.Equal(t, fallback, store.(*localstore.Store).Dir())
}

func TestBuildContentStoreFailsWithoutUsableDir(t *testing.T) {
	t.Parallel()

	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	dir := filepath.Join(blocker, "samples")

	var hooks cleanup
	_, err := buildContentStore(context.Background(), config.StorageConfig{Backend: "local", DumpDir: dir},
		dir, &hooks, zap.NewNop())

	require.Error(t, err)
}

func TestBuildStateStore(t *testing.T) {
	t.Parallel()

	var hooks cleanup
	store, err := buildStateStore(config.StateConfig{
		Backend:    "file",
		URLsFile:   filepath.Join(t.TempDir(), "urls.json"),
		HashesFile: filepath.Join(t.TempDir(), "hashes.json"),
	}, &hooks, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &state.FileStore{}, store)
	assert.Empty(t, hooks.fns)

	store, err = buildStateStore(config.StateConfig{Backend: "redis", RedisAddr: "127.0.0.1:0", RedisPrefix: "t:"},
		&hooks, zap.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &state.RedisStore{}, store)
	assert.Len(t, hooks.fns, 1)
	require.NoError(t, hooks.close())

	_, err = buildStateStore(config.StateConfig{Backend: "sqlite"}, &hooks, zap.NewNop())
	require.Error(t, err)
}

func TestBuildCatalogDisabledWithoutDSN(t *testing.T) {
	t.Parallel()

	var hooks cleanup
	assert.Nil(t, buildCatalog(context.Background(), config.CatalogConfig{}, &hooks, zap.NewNop()))
	assert.Empty(t, hooks.fns)
}

func TestBuildPublisher(t *testing.T) {
	t.Parallel()

	var hooks cleanup
	assert.Nil(t, buildPublisher(context.Background(), config.NotifyConfig{Backend: "none"}, &hooks, zap.NewNop()))

	pub := buildPublisher(context.Background(), config.NotifyConfig{
		Backend:     "kafka",
		KafkaBroker: "127.0.0.1:9092",
		Topic:       "samples",
	}, &hooks, zap.NewNop())
	assert.NotNil(t, pub)
	assert.Len(t, hooks.fns, 1)
	require.NoError(t, hooks.close())
}

func TestBuildForwarder(t *testing.T) {
	t.Parallel()

	assert.Nil(t, buildForwarder(config.Config{}, nil, zap.NewNop()))

	fwd := buildForwarder(config.Config{Sandbox: config.SandboxConfig{
		VxCageEnabled:  true,
		VxCageURL:      "http://127.0.0.1:1/malware/add",
		CuckooEnabled:  true,
		CuckooURL:      "http://127.0.0.1:1/tasks/create/file",
		TimeoutSeconds: 1,
	}}, nil, zap.NewNop())
	require.NotNil(t, fwd)
	sandboxes, ok := fwd.(*sandbox.Forwarder)
	require.True(t, ok)
	assert.Equal(t, 2, sandboxes.Len())
}

func TestBuildSourcesPutsCommandLineFirst(t *testing.T) {
	t.Parallel()

	cfg := config.Config{
		Harvester: config.HarvesterConfig{UserAgent: "Maltrieve", TimeoutSeconds: 1},
		Feeds:     config.FeedsConfig{Enabled: []string{feeds.NameMalwareDomainList, feeds.NameVXVault}},
	}
	sources, err := buildSources(cfg, nil, []string{"http://a.example/x.exe"})
	require.NoError(t, err)
	require.Len(t, sources, 3)
	assert.Equal(t, "cli", sources[0].Name())
	assert.Equal(t, feeds.NameMalwareDomainList, sources[1].Name())
	assert.Equal(t, feeds.NameVXVault, sources[2].Name())

	sources, err = buildSources(cfg, nil, nil)
	require.NoError(t, err)
	assert.Len(t, sources, 2)

	cfg.Feeds.Enabled = []string{"nope"}
	_, err = buildSources(cfg, nil, nil)
	require.Error(t, err)
}

func TestCleanupRunsInReverseAndJoinsErrors(t *testing.T) {
	t.Parallel()

	var order []int
	errBoom := errors.New("boom")
	var hooks cleanup
	hooks.add(func() error { order = append(order, 1); return nil })
	hooks.add(func() error { order = append(order, 2); return errBoom })

	err := hooks.close()
	require.ErrorIs(t, err, errBoom)
	assert.Equal(t, []int{2, 1}, order)
}
