package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"dubtrack/internal/config"
	"dubtrack/internal/dub"
	"dubtrack/internal/dubcache"
	"dubtrack/internal/fetch"
	"dubtrack/internal/logging"
	"dubtrack/internal/sources/anilist"
	"dubtrack/internal/sources/animeschedule"
	"dubtrack/internal/sources/jikan"
	"dubtrack/internal/store"
	"dubtrack/internal/syncer"
)

// commandContext lazily constructs the component graph shared by commands.
type commandContext struct {
	configFlag *string

	cfg      *config.Config
	logger   *slog.Logger
	st       *store.Store
	snapshot *dubcache.Snapshot
	cache    *dubcache.Tiered
	fetcher  *fetch.Fetcher
	anilist  *anilist.Client
	resolver *dub.Resolver
	orch     *syncer.Orchestrator
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	if c.cfg != nil {
		return c.cfg, nil
	}
	path := strings.TrimSpace(*c.configFlag)
	if path == "" {
		path = config.DefaultPath()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	c.cfg = cfg
	return cfg, nil
}

func (c *commandContext) ensureLogger() (*slog.Logger, error) {
	if c.logger != nil {
		return c.logger, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	format := cfg.Logging.Format
	if format == "" {
		format = "json"
		if isatty.IsTerminal(os.Stderr.Fd()) {
			format = "console"
		}
	}
	logger, err := logging.New(logging.Options{
		Level:  cfg.Logging.Level,
		Format: format,
	})
	if err != nil {
		return nil, err
	}
	c.logger = logger
	return logger, nil
}

func (c *commandContext) ensureStore() (*store.Store, error) {
	if c.st != nil {
		return c.st, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	s, err := store.Open(cfg)
	if err != nil {
		return nil, err
	}
	c.st = s
	return s, nil
}

func (c *commandContext) ensureCache() (*dubcache.Tiered, error) {
	if c.cache != nil {
		return c.cache, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	snapshot, err := dubcache.OpenSnapshot(cfg.Paths.SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("open snapshot cache: %w", err)
	}
	c.snapshot = snapshot
	memoTTL := time.Duration(cfg.Resolver.MemoTTLHours) * time.Hour
	c.cache = dubcache.NewTiered(dubcache.NewMemo(), snapshot, memoTTL)
	return c.cache, nil
}

func (c *commandContext) ensureFetcher() (*fetch.Fetcher, error) {
	if c.fetcher != nil {
		return c.fetcher, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	limiter := fetch.NewLimiter(map[fetch.Source]time.Duration{
		fetch.SourceAniList: time.Duration(cfg.AniList.MinIntervalMS) * time.Millisecond,
		fetch.SourceJikan:   time.Duration(cfg.Jikan.MinIntervalMS) * time.Millisecond,
		fetch.SourceScrape:  time.Duration(cfg.Scrape.MinIntervalMS) * time.Millisecond,
	})
	c.fetcher = fetch.NewFetcher(limiter, logger, fetch.WithTimeouts(map[fetch.Source]time.Duration{
		fetch.SourceAniList: time.Duration(cfg.AniList.TimeoutSec) * time.Second,
		fetch.SourceJikan:   time.Duration(cfg.Jikan.TimeoutSec) * time.Second,
		fetch.SourceScrape:  time.Duration(cfg.Scrape.TimeoutSec) * time.Second,
	}))
	return c.fetcher, nil
}

func (c *commandContext) ensureCatalog() (*anilist.Client, error) {
	if c.anilist != nil {
		return c.anilist, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	fetcher, err := c.ensureFetcher()
	if err != nil {
		return nil, err
	}
	client, err := anilist.New(cfg.AniList.BaseURL, fetcher)
	if err != nil {
		return nil, err
	}
	c.anilist = client
	return client, nil
}

func (c *commandContext) ensureResolver() (*dub.Resolver, error) {
	if c.resolver != nil {
		return c.resolver, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	st, err := c.ensureStore()
	if err != nil {
		return nil, err
	}
	cache, err := c.ensureCache()
	if err != nil {
		return nil, err
	}
	fetcher, err := c.ensureFetcher()
	if err != nil {
		return nil, err
	}
	community, err := jikan.New(cfg.Jikan.BaseURL, fetcher)
	if err != nil {
		return nil, err
	}
	resolverCfg := dub.ResolverConfig{
		Overrides:           dub.NewOverrides(cfg.Paths.OverridesPath, logger),
		Store:               st,
		Community:           community,
		Cache:               cache,
		PopularityThreshold: cfg.Resolver.PopularityThreshold,
		Workers:             cfg.Resolver.Workers,
		Logger:              logger,
	}
	if cfg.Scrape.Enabled {
		scrape, err := animeschedule.New(cfg.Scrape.BaseURL, fetcher)
		if err != nil {
			return nil, err
		}
		resolverCfg.Scrape = scrape
	}
	c.resolver = dub.NewResolver(resolverCfg)
	return c.resolver, nil
}

func (c *commandContext) ensureOrchestrator() (*syncer.Orchestrator, error) {
	if c.orch != nil {
		return c.orch, nil
	}
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := c.ensureLogger()
	if err != nil {
		return nil, err
	}
	st, err := c.ensureStore()
	if err != nil {
		return nil, err
	}
	lister, err := c.ensureCatalog()
	if err != nil {
		return nil, err
	}
	cache, err := c.ensureCache()
	if err != nil {
		return nil, err
	}
	c.orch = syncer.New(st, lister, syncer.Options{
		Cache:    cache,
		PageSize: cfg.AniList.PageSize,
		LockDir:  cfg.Paths.DataDir,
		Logger:   logger,
	})
	return c.orch, nil
}

func (c *commandContext) shutdown() {
	if c.st != nil {
		_ = c.st.Close()
	}
	if c.snapshot != nil {
		_ = c.snapshot.Close()
	}
}
