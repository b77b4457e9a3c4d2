package main

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	gstorage "cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/maltrieve/internal/api"
	"github.com/JakeFAU/maltrieve/internal/app"
	"github.com/JakeFAU/maltrieve/internal/clock/system"
	"github.com/JakeFAU/maltrieve/internal/config"
	"github.com/JakeFAU/maltrieve/internal/crawler"
	"github.com/JakeFAU/maltrieve/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/maltrieve/internal/fetcher/colly"
	"github.com/JakeFAU/maltrieve/internal/feeds"
	"github.com/JakeFAU/maltrieve/internal/hash/md5"
	"github.com/JakeFAU/maltrieve/internal/id/uuid"
	kafkapublisher "github.com/JakeFAU/maltrieve/internal/publisher/kafka"
	pubsubpublisher "github.com/JakeFAU/maltrieve/internal/publisher/pubsub"
	"github.com/JakeFAU/maltrieve/internal/sandbox"
	"github.com/JakeFAU/maltrieve/internal/seen"
	"github.com/JakeFAU/maltrieve/internal/state"
	gcsstore "github.com/JakeFAU/maltrieve/internal/storage/gcs"
	localstore "github.com/JakeFAU/maltrieve/internal/storage/local"
	memorystore "github.com/JakeFAU/maltrieve/internal/storage/memory"
	"github.com/JakeFAU/maltrieve/internal/storage/postgres"
	"github.com/JakeFAU/maltrieve/internal/worker"
)

// cleanup collects shutdown hooks for the services a run opened.
type cleanup struct {
	fns []func() error
}

func (c *cleanup) add(fn func() error) {
	c.fns = append(c.fns, fn)
}

// close runs the hooks in reverse order.
func (c *cleanup) close() error {
	var errs []error
	for i := len(c.fns) - 1; i >= 0; i-- {
		errs = append(errs, c.fns[i]())
	}
	return errors.Join(errs...)
}

// run wires every component from cfg and performs one harvest.
func run(ctx context.Context, cfg config.Config, urls []string, logger *zap.Logger) (err error) {
	var hooks cleanup
	defer func() {
		if cerr := hooks.close(); cerr != nil {
			logger.Warn("shutdown cleanup failed", zap.Error(cerr))
		}
	}()

	var proxy *url.URL
	if cfg.Harvester.Proxy != "" {
		proxy, err = config.ProxyURL(cfg.Harvester.Proxy)
		if err != nil {
			return fmt.Errorf("proxy: %w", err)
		}
	}

	store, err := buildContentStore(ctx, cfg.Storage, config.DefaultDumpDir, &hooks, logger)
	if err != nil {
		return err
	}
	stateStore, err := buildStateStore(cfg.State, &hooks, logger)
	if err != nil {
		return err
	}
	catalog := buildCatalog(ctx, cfg.Catalog, &hooks, logger)
	publisher := buildPublisher(ctx, cfg.Notify, &hooks, logger)
	forwarder := buildForwarder(cfg, store, logger)

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:    cfg.Harvester.UserAgent,
		Timeout:      cfg.FetchTimeout(),
		Proxy:        proxy,
		MaxBodyBytes: cfg.Harvester.MaxBodyBytes,
	})
	clock := system.New()

	sources, err := buildSources(cfg, proxy, urls)
	if err != nil {
		return err
	}

	ids := uuid.New()
	runID, err := ids.NewID()
	if err != nil {
		return fmt.Errorf("run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", runID))

	newWorker := func(index int, queue crawler.Queue, hashes *seen.Set) (dispatcher.Runner, error) {
		return worker.New(worker.Deps{
			Queue:     queue,
			Fetcher:   fetcher,
			Hasher:    md5.New(),
			Hashes:    hashes,
			Store:     store,
			Catalog:   catalog,
			Publisher: publisher,
			Forwarder: forwarder,
			Clock:     clock,
			IDs:       ids,
		}, worker.Config{
			RunID:      runID,
			Topic:      cfg.Notify.Topic,
			LogHeaders: cfg.Harvester.LogHeaders,
		}, logger.Named("worker").With(zap.Int("worker", index)))
	}

	appCfg := app.Config{Workers: cfg.Harvester.Workers}
	if proxy != nil {
		appCfg.ProxyCheckURL = cfg.Harvester.ProxyCheckURL
	}
	harvester, err := app.New(appCfg, app.Deps{
		State:     stateStore,
		Sources:   sources,
		NewWorker: newWorker,
		Fetcher:   fetcher,
		Clock:     clock,
	}, logger.Named("harvester"))
	if err != nil {
		return fmt.Errorf("build harvester: %w", err)
	}

	if cfg.Server.Addr == "" {
		return harvester.Run(ctx)
	}

	serverCtx, stopServer := context.WithCancel(ctx)
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- api.NewServer(harvester, logger.Named("api")).ListenAndServe(serverCtx, cfg.Server.Addr)
	}()
	runErr := harvester.Run(ctx)
	stopServer()
	if serr := <-serverDone; serr != nil {
		logger.Warn("status server failed", zap.Error(serr))
	}
	return runErr
}

// buildContentStore opens the configured sample store. A local dump directory
// that cannot be created or written falls back to fallbackDir.
func buildContentStore(
	ctx context.Context,
	cfg config.StorageConfig,
	fallbackDir string,
	hooks *cleanup,
	logger *zap.Logger,
) (crawler.ContentStore, error) {
	switch cfg.Backend {
	case "memory":
		logger.Warn("dry run: samples are kept in memory and discarded on exit")
		return memorystore.NewStore(), nil
	case "gcs":
		client, err := gstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("gcs client: %w", err)
		}
		hooks.add(client.Close)
		store, err := gcsstore.New(client, gcsstore.Config{Bucket: cfg.GCSBucket, Prefix: cfg.Prefix})
		if err != nil {
			return nil, fmt.Errorf("gcs store: %w", err)
		}
		logger.Info("storing samples in gcs", zap.String("bucket", cfg.GCSBucket))
		return store, nil
	}

	store, err := localstore.New(localstore.Config{Dir: cfg.DumpDir})
	if err == nil {
		logger.Info("storing samples locally", zap.String("dir", store.Dir()))
		return store, nil
	}
	if cfg.DumpDir == fallbackDir {
		return nil, fmt.Errorf("dump directory %s: %w", cfg.DumpDir, err)
	}
	logger.Warn("dump directory unusable, falling back",
		zap.String("dir", cfg.DumpDir),
		zap.String("fallback", fallbackDir),
		zap.Error(err),
	)
	store, err = localstore.New(localstore.Config{Dir: fallbackDir})
	if err != nil {
		return nil, fmt.Errorf("fallback dump directory %s: %w", fallbackDir, err)
	}
	return store, nil
}

func buildStateStore(cfg config.StateConfig, hooks *cleanup, logger *zap.Logger) (state.Store, error) {
	switch cfg.Backend {
	case "file":
		return state.NewFileStore(cfg.URLsFile, cfg.HashesFile, logger.Named("state")), nil
	case "redis":
		store := state.NewRedisStore(cfg.RedisAddr, cfg.RedisPrefix, logger.Named("state"))
		hooks.add(store.Close)
		return store, nil
	default:
		return nil, fmt.Errorf("unknown state backend %q", cfg.Backend)
	}
}

// buildCatalog returns nil when no DSN is configured or the database is
// unreachable; the catalog never blocks a harvest.
func buildCatalog(ctx context.Context, cfg config.CatalogConfig, hooks *cleanup, logger *zap.Logger) crawler.Catalog {
	if cfg.DSN == "" {
		return nil
	}
	catalog, err := postgres.NewCatalog(ctx, postgres.CatalogConfig{DSN: cfg.DSN, Table: cfg.Table})
	if err != nil {
		logger.Warn("sample catalog disabled", zap.Error(err))
		return nil
	}
	hooks.add(func() error {
		catalog.Close()
		return nil
	})
	return catalog
}

func buildPublisher(ctx context.Context, cfg config.NotifyConfig, hooks *cleanup, logger *zap.Logger) crawler.Publisher {
	switch cfg.Backend {
	case "kafka":
		pub := kafkapublisher.New(cfg.KafkaBroker)
		hooks.add(pub.Close)
		return pub
	case "pubsub":
		pub, err := pubsubpublisher.NewForProject(ctx, cfg.ProjectID)
		if err != nil {
			logger.Warn("sample notifications disabled", zap.Error(err))
			return nil
		}
		hooks.add(pub.Close)
		return pub
	default:
		return nil
	}
}

func buildForwarder(cfg config.Config, store crawler.ContentStore, logger *zap.Logger) crawler.Forwarder {
	sc := cfg.Sandbox
	if !sc.VxCageEnabled && !sc.CuckooEnabled {
		return nil
	}
	client := sandbox.NewClient(cfg.SandboxTimeout(), sc.UserAgent)
	var targets []sandbox.Target
	if sc.VxCageEnabled {
		targets = append(targets, sandbox.NewVxCage(sc.VxCageURL, client, store))
	}
	if sc.CuckooEnabled {
		targets = append(targets, sandbox.NewCuckoo(sc.CuckooURL, client))
	}
	return sandbox.NewForwarder(logger.Named("sandbox"), targets...)
}

// buildSources puts the command-line URLs ahead of the enabled feeds.
func buildSources(cfg config.Config, proxy *url.URL, urls []string) ([]feeds.Source, error) {
	selected, err := feeds.Select(feeds.Options{
		UserAgent: cfg.Harvester.UserAgent,
		Timeout:   cfg.FetchTimeout(),
		Proxy:     proxy,
	}, cfg.Feeds.Enabled)
	if err != nil {
		return nil, fmt.Errorf("feeds: %w", err)
	}
	sources := make([]feeds.Source, 0, len(selected)+1)
	if len(urls) > 0 {
		sources = append(sources, feeds.NewStatic("cli", urls))
	}
	return append(sources, selected...), nil
}
