// Package app wires the store, the read cache, the query layer and the
// media presigner into one process, and opens per-viewer sessions on top.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/fitsync/internal/cache"
	"github.com/roach88/fitsync/internal/config"
	"github.com/roach88/fitsync/internal/media"
	"github.com/roach88/fitsync/internal/metrics"
	"github.com/roach88/fitsync/internal/queries"
	"github.com/roach88/fitsync/internal/realtime"
	"github.com/roach88/fitsync/internal/store"
)

// App holds the process-wide components. Sessions share them.
type App struct {
	Config      config.Config
	Store       *store.Store
	Cache       *cache.Cache
	Reader      *queries.Reader
	Writer      *queries.Writer
	Invalidator *queries.Invalidator

	logger      *slog.Logger
	storeOpts   []store.Option
	cacheOpts   []cache.Option
	presigner   media.Presigner
	mediaOpts   []media.Option
	mediaOnce   sync.Once
	media       *media.Service
	mediaErr    error
	sessionOpts []SessionOption
}

// Option configures an App.
type Option func(*App)

// WithLogger sets the logger handed to every component.
func WithLogger(logger *slog.Logger) Option {
	return func(a *App) {
		a.logger = logger
	}
}

// WithStoreOptions passes options through to store.Open.
func WithStoreOptions(opts ...store.Option) Option {
	return func(a *App) {
		a.storeOpts = append(a.storeOpts, opts...)
	}
}

// WithCacheOptions passes options through to cache.New.
func WithCacheOptions(opts ...cache.Option) Option {
	return func(a *App) {
		a.cacheOpts = append(a.cacheOpts, opts...)
	}
}

// WithPresigner replaces the S3 presign client built from the media config.
func WithPresigner(p media.Presigner, opts ...media.Option) Option {
	return func(a *App) {
		a.presigner = p
		a.mediaOpts = opts
	}
}

// WithSessionDefaults applies opts to every session opened by the App.
func WithSessionDefaults(opts ...SessionOption) Option {
	return func(a *App) {
		a.sessionOpts = append(a.sessionOpts, opts...)
	}
}

// New opens the database and builds the shared components.
func New(cfg config.Config, opts ...Option) (*App, error) {
	a := &App{
		Config: cfg,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}

	storeOpts := append([]store.Option{
		store.WithPollInterval(cfg.Database.PollInterval),
		store.WithLogger(a.logger),
	}, a.storeOpts...)
	st, err := store.Open(cfg.Database.Path, storeOpts...)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	a.Store = st
	a.Cache = cache.New(append([]cache.Option{cache.WithLogger(a.logger)}, a.cacheOpts...)...)
	a.Invalidator = queries.NewInvalidator(a.Cache, a.logger)
	a.Reader = queries.NewReader(st, a.Cache,
		queries.WithTTLs(ttlsFromConfig(cfg.Cache.TTL)),
		queries.WithPageSize(cfg.Cache.FeedPageSize),
	)
	a.Writer = queries.NewWriter(st, a.Invalidator)

	a.logger.Debug("app ready", "database", cfg.Database.Path)
	return a, nil
}

func ttlsFromConfig(c config.TTLConfig) queries.TTLs {
	return queries.TTLs{
		Profile:   c.Profile,
		Sessions:  c.Sessions,
		Session:   c.Session,
		Feed:      c.Feed,
		Palmares:  c.Palmares,
		PRs:       c.PRs,
		Follows:   c.Follows,
		MyProfile: c.MyProfile,
	}
}

// Media returns the upload presigner, building it on first use.
func (a *App) Media(ctx context.Context) (*media.Service, error) {
	a.mediaOnce.Do(func() {
		opts := append([]media.Option{media.WithLogger(a.logger)}, a.mediaOpts...)
		if a.presigner != nil {
			a.media = media.NewService(a.presigner, a.Config.Media, opts...)
			return
		}
		a.media, a.mediaErr = media.New(ctx, a.Config.Media, opts...)
	})
	return a.media, a.mediaErr
}

// Run sweeps the cache and serves metrics until ctx is done or the
// metrics listener fails.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if interval := a.Config.Cache.SweepInterval; interval > 0 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			a.Cache.Run(ctx, interval)
		}()
	}

	err := metrics.Serve(ctx, a.Config.Metrics.Addr)
	if err != nil {
		a.logger.Error("metrics listener failed", "addr", a.Config.Metrics.Addr, "error", err)
		cancel()
	}
	<-ctx.Done()
	wg.Wait()
	return err
}

// Close closes the store. Sessions must be closed first.
func (a *App) Close() error {
	return a.Store.Close()
}

// storeSource exposes the store's change feed to realtime counters.
type storeSource struct {
	*store.Store
}

func (s storeSource) SubscribeInserts(ctx context.Context, userID string) (realtime.Feed, error) {
	sub, err := s.Store.SubscribeInserts(ctx, userID)
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// displayName resolves actor IDs for toasts.
func (a *App) displayName(ctx context.Context, userID string) (string, error) {
	p, err := a.Store.GetProfileByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", nil
		}
		return "", err
	}
	if p.DisplayName != "" {
		return p.DisplayName, nil
	}
	return p.Username, nil
}
