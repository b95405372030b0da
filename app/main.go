package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/lysyi3m/news-comb/app/api"
	"github.com/lysyi3m/news-comb/app/cache"
	"github.com/lysyi3m/news-comb/app/cfg"
	"github.com/lysyi3m/news-comb/app/database"
	"github.com/lysyi3m/news-comb/app/database/memory"
	"github.com/lysyi3m/news-comb/app/indexsync"
	"github.com/lysyi3m/news-comb/app/ingest"
	"github.com/lysyi3m/news-comb/app/news"
	"github.com/lysyi3m/news-comb/app/search"
	"github.com/lysyi3m/news-comb/app/sources"
	"github.com/lysyi3m/news-comb/app/tasks"
)

const drainTimeout = 10 * time.Minute

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown
		return
	}

	setupLogging(appCfg.Debug)

	if err := run(appCfg); err != nil {
		slog.Error("News Comb failed", "command", appCfg.Command, "error", err)
		os.Exit(1)
	}
}

func setupLogging(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})))
}

type app struct {
	cfg         *cfg.Cfg
	store       *database.Store
	registry    *sources.Registry
	coordinator *ingest.Coordinator
	engine      search.Engine
	syncer      *indexsync.Syncer
	cache       *cache.Cache
	scheduler   *tasks.Scheduler
	closers     []func() error
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			slog.Warn("Failed to release resource", "error", err)
		}
	}
}

func run(appCfg *cfg.Cfg) error {
	slog.Info("Starting News Comb", "version", appCfg.Version, "command", appCfg.Command)

	a, err := build(appCfg)
	if err != nil {
		return err
	}
	defer a.close()

	switch appCfg.Command {
	case cfg.CommandFetch:
		return a.fetch()
	case cfg.CommandReindex:
		return a.reindex()
	case cfg.CommandCleanIndex:
		return a.cleanIndex()
	default:
		return a.serve()
	}
}

// build wires the store, sources, search engine, cache and task scheduler.
func build(appCfg *cfg.Cfg) (*app, error) {
	ctx := context.Background()
	a := &app{cfg: appCfg}

	store, err := a.openStore()
	if err != nil {
		a.close()
		return nil, err
	}
	observed := database.NewObservedArticleRepository(store.Articles)
	store.Articles = observed
	a.store = store

	slog.Info("Loading source configurations", "dir", appCfg.SourcesDir)
	configCache := sources.NewConfigCache(appCfg.SourcesDir)
	if err := configCache.Run(); err != nil {
		a.close()
		return nil, fmt.Errorf("failed to load source configurations: %w", err)
	}
	configs := configCache.GetConfigs()

	a.registry, err = sources.BuildRegistry(configs, sources.Keys{
		sources.KindNewsAPI:  appCfg.NewsAPIKey,
		sources.KindGuardian: appCfg.GuardianKey,
		sources.KindNYTimes:  appCfg.NYTimesKey,
		sources.KindFinnhub:  appCfg.FinnhubKey,
	})
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to build source adapters: %w", err)
	}

	if err := ingest.Seed(ctx, store, configs); err != nil {
		a.close()
		return nil, err
	}
	slog.Info("Sources registered", "count", len(configs), "slugs", a.registry.Slugs())

	if len(appCfg.ElasticURLs) > 0 {
		engine, err := search.NewElasticEngine(search.ElasticConfig{
			Addresses: appCfg.ElasticURLs,
			Username:  appCfg.ElasticUsername,
			Password:  appCfg.ElasticPassword,
			Index:     appCfg.ElasticIndex,
		})
		if err != nil {
			a.close()
			return nil, err
		}
		a.engine = engine
		a.syncer = indexsync.NewSyncer(engine, store.Articles)
		slog.Info("Search engine configured", "addresses", appCfg.ElasticURLs, "index", appCfg.ElasticIndex)
	} else {
		slog.Warn("Search engine not configured, reads use the database only")
	}

	if appCfg.RedisAddr != "" {
		c, err := cache.NewCache(appCfg.RedisAddr, appCfg.RedisPassword, appCfg.RedisDB)
		if err != nil {
			slog.Warn("Search cache unavailable, continuing without it", "addr", appCfg.RedisAddr, "error", err)
		} else {
			a.cache = c.WithTTL(appCfg.CacheTTL)
			a.closers = append(a.closers, c.Close)
		}
	}

	a.coordinator = ingest.NewCoordinator(a.registry, store).WithParallelism(appCfg.FetchParallelism)

	var syncer tasks.ArticleSyncer
	if a.syncer != nil {
		syncer = a.syncer
	}
	a.scheduler = tasks.NewScheduler(tasks.Config{
		WorkerCount:   appCfg.WorkerCount,
		FetchSchedule: appCfg.FetchSchedule,
	}, a.coordinator, syncer, a.registry)

	// Every committed article write fans out to the index queue and the search cache.
	if a.syncer != nil {
		observed.Observe(indexsync.NewDispatcher(a.scheduler))
	}
	if a.cache != nil {
		observed.Observe(a.cache)
		// Pages answered by the index before propagation finished must not outlive it.
		if a.syncer != nil {
			a.syncer.Observe(a.cache)
		}
	}

	return a, nil
}

func (a *app) openStore() (*database.Store, error) {
	if a.cfg.DBDriver == cfg.DriverMemory {
		slog.Warn("Using in-memory article store, data is lost on exit")
		return memory.NewStore(), nil
	}

	slog.Info("Connecting to database", "host", a.cfg.DBHost, "name", a.cfg.DBName)
	db, err := database.NewConnection(a.cfg.DBHost, a.cfg.DBPort, a.cfg.DBUser, a.cfg.DBPassword, a.cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.closers = append(a.closers, db.Close)

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		return nil, err
	}
	slog.Info("Database migrations applied", "version", version, "dirty", dirty)

	return database.NewPostgresStore(db), nil
}

func (a *app) searcher() cache.Searcher {
	var selector *search.Selector
	if a.engine != nil {
		selector = search.NewEngineSelector(a.engine, a.store.Articles)
	} else {
		selector = search.NewSelector(nil, nil, search.NewFallbackBackend(a.store.Articles))
	}

	if a.cache == nil {
		return selector
	}
	return cache.NewCachedSearcher(selector, a.cache)
}

func (a *app) serve() error {
	if !a.cfg.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	a.scheduler.Start()
	defer a.scheduler.Stop()

	var probe func(ctx context.Context) bool
	var indexer api.Indexer
	if a.engine != nil {
		probe = a.engine.Ping
		indexer = a.syncer
	}

	handler := api.NewHandler(a.store, a.searcher(), a.coordinator,
		indexer, a.scheduler, a.registry, probe)
	if a.cache != nil {
		handler.WithCacheHealth(a.cache)
	}
	server := api.NewServer(handler, a.cfg.APIAccessKey)

	httpServer := &http.Server{
		Addr:         ":" + a.cfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 5 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("Starting HTTP server", "port", a.cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	slog.Info("News Comb server started successfully")

	var serveErr error
	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case serveErr = <-serverErrChan:
		slog.Error("Server error", "error", serveErr)
	}

	slog.Info("Shutting down server gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	} else {
		slog.Info("HTTP server stopped")
	}

	return serveErr
}

// fetch runs ingestion in the foreground with --sync, otherwise through the task queue.
// Either way index propagation goes through the queue, which is drained before exit.
func (a *app) fetch() error {
	opts := a.cfg.Fetch

	a.scheduler.Start()
	defer a.scheduler.Stop()

	var runErr error
	switch {
	case opts.Sync && opts.All:
		var logs []*news.FetchLog
		logs, runErr = a.coordinator.RunAll(context.Background(), opts.Query, opts.Category)
		for _, l := range logs {
			logFetch(l)
		}
	case opts.Sync:
		var l *news.FetchLog
		l, runErr = a.coordinator.Run(context.Background(), opts.Source, opts.Query, opts.Category)
		logFetch(l)
	default:
		slugs := []string{opts.Source}
		if opts.All {
			slugs = a.registry.Slugs()
		}
		for _, slug := range slugs {
			if err := a.scheduler.EnqueueFetch(slug, opts.Query, opts.Category); err != nil {
				return fmt.Errorf("failed to enqueue fetch for %s: %w", slug, err)
			}
		}
		slog.Info("Fetch tasks queued", "sources", slugs)
	}

	ctx, cancel := context.WithTimeout(context.Background(), drainTimeout)
	defer cancel()
	if err := a.scheduler.Drain(ctx); err != nil {
		slog.Warn("Task queue not drained before timeout", "error", err)
	}

	return runErr
}

func logFetch(l *news.FetchLog) {
	if l == nil {
		return
	}
	slog.Info("Fetch completed", "source", l.Source, "status", string(l.Status),
		"fetched", l.ArticlesFetched, "created", l.ArticlesCreated, "updated", l.ArticlesUpdated,
		"error", l.ErrorMessage)
}

func (a *app) reindex() error {
	if a.syncer == nil {
		return errors.New("search engine not configured")
	}

	opts := a.cfg.Reindex
	ctx := context.Background()

	if opts.Sync {
		indexed := 0
		total, err := a.syncer.Reindex(ctx, opts.Chunk, func(ctx context.Context, ids []int64) error {
			n, err := a.syncer.BulkSync(ctx, ids)
			indexed += n
			return err
		})
		slog.Info("Reindex finished", "dispatched", total, "indexed", indexed)
		return err
	}

	a.scheduler.Start()
	defer a.scheduler.Stop()

	total, err := a.syncer.Reindex(ctx, opts.Chunk, func(_ context.Context, ids []int64) error {
		return a.scheduler.EnqueueBulkSync(ids)
	})
	slog.Info("Reindex chunks queued", "articles", total)

	drainCtx, cancel := context.WithTimeout(ctx, drainTimeout)
	defer cancel()
	if drainErr := a.scheduler.Drain(drainCtx); drainErr != nil {
		slog.Warn("Task queue not drained before timeout", "error", drainErr)
	}

	return err
}

func (a *app) cleanIndex() error {
	if a.syncer == nil {
		return errors.New("search engine not configured")
	}

	ids, err := a.syncer.CleanIndex(context.Background(), a.cfg.CleanIndex.DryRun)
	if err != nil {
		return err
	}

	if a.cfg.CleanIndex.DryRun {
		slog.Info("Trashed articles found in index scope", "count", len(ids), "ids", ids)
	} else {
		slog.Info("Trashed articles removed from index", "count", len(ids))
	}
	return nil
}
