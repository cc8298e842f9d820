package app

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/time/rate"

	"github.com/roach88/fitsync/internal/model"
	"github.com/roach88/fitsync/internal/queries"
	"github.com/roach88/fitsync/internal/realtime"
	"github.com/roach88/fitsync/internal/social"
)

// Session is one signed-in viewer: an optimistic social store and live
// unread counters over the shared App.
type Session struct {
	app      *App
	viewer   model.Profile
	Social   *social.Store
	Counters *realtime.Counters

	unsubscribe func()

	mu sync.Mutex
	// sessions whose like set has been loaded into Social
	loaded map[string]struct{}
}

type sessionConfig struct {
	toaster   realtime.Toaster
	onFailure func(social.Failure)
}

// SessionOption configures a Session.
type SessionOption func(*sessionConfig)

// WithToaster receives every toast raised for the viewer.
func WithToaster(t realtime.Toaster) SessionOption {
	return func(c *sessionConfig) {
		c.toaster = t
	}
}

// WithFailureHook is called for every rolled-back social write.
func WithFailureHook(fn func(social.Failure)) SessionOption {
	return func(c *sessionConfig) {
		c.onFailure = fn
	}
}

// OpenSession hydrates the viewer's state and starts the realtime
// subscription. The order is: profile, followed set, likes of the first
// feed page and the viewer's own sessions, follower counts of the viewer
// and everyone they follow, then the unread counters.
func (a *App) OpenSession(ctx context.Context, viewerID string, opts ...SessionOption) (*Session, error) {
	if viewerID == "" {
		return nil, social.ErrUnauthenticated
	}

	var sc sessionConfig
	for _, opt := range append(append([]SessionOption{}, a.sessionOpts...), opts...) {
		opt(&sc)
	}

	viewer, err := a.Reader.MyProfile(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("load viewer %s: %w", viewerID, err)
	}
	logger := a.logger.With("viewer", viewerID)

	socialOpts := []social.Option{
		social.WithWriteTimeout(a.Config.Social.WriteTimeout),
		social.WithRetries(a.Config.Social.Retries),
		social.WithLimiter(a.newLimiter()),
		social.WithInvalidator(a.Invalidator),
		social.WithLogger(logger),
	}
	if sc.onFailure != nil {
		socialOpts = append(socialOpts, social.WithFailureHook(sc.onFailure))
	}
	ss := social.New(a.Store, socialOpts...)

	loaded, err := a.hydrate(ctx, ss, viewerID)
	if err != nil {
		ss.Close()
		return nil, err
	}

	counterOpts := []realtime.Option{
		realtime.WithActorResolver(a.displayName),
		realtime.WithLogger(logger),
	}
	if sc.toaster != nil {
		counterOpts = append(counterOpts, realtime.WithToaster(sc.toaster))
	}
	counters := realtime.New(storeSource{a.Store}, counterOpts...)
	unsubscribe, err := counters.Subscribe(ctx, viewerID)
	if err != nil {
		ss.Close()
		return nil, fmt.Errorf("subscribe %s: %w", viewerID, err)
	}

	logger.Info("session opened",
		"following", len(ss.FollowingIDs()),
		"unread_notifications", counters.UnreadNotifications(),
		"unread_messages", counters.UnreadMessages(),
	)
	return &Session{
		app:         a,
		viewer:      viewer,
		Social:      ss,
		Counters:    counters,
		unsubscribe: unsubscribe,
		loaded:      loaded,
	}, nil
}

func (a *App) newLimiter() *rate.Limiter {
	cfg := a.Config.Social
	if cfg.WritesPerSecond <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	burst := cfg.WriteBurst
	if burst < 1 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(cfg.WritesPerSecond), burst)
}

// hydrate loads the viewer's social state and returns the sessions whose
// like sets it loaded.
func (a *App) hydrate(ctx context.Context, ss *social.Store, viewerID string) (map[string]struct{}, error) {
	following, err := a.Store.ListFollowingIDs(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("load following: %w", err)
	}
	ss.InitFollowing(following)

	sessionIDs, err := a.visibleSessionIDs(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	likes, err := a.Store.ListLikes(ctx, sessionIDs)
	if err != nil {
		return nil, fmt.Errorf("load likes: %w", err)
	}
	ss.InitLikes(likes)

	for _, id := range append([]string{viewerID}, following...) {
		counts, err := a.Reader.FollowCounts(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("load follower count %s: %w", id, err)
		}
		ss.SeedFollowerCount(id, counts.Followers)
	}

	loaded := make(map[string]struct{}, len(sessionIDs))
	for _, id := range sessionIDs {
		loaded[id] = struct{}{}
	}
	return loaded, nil
}

// visibleSessionIDs returns the sessions on the first feed page plus the
// viewer's own, deduplicated and sorted.
func (a *App) visibleSessionIDs(ctx context.Context, viewerID string) ([]string, error) {
	seen := make(map[string]struct{})

	feed, err := a.Reader.Feed(ctx, 1)
	if err != nil {
		return nil, fmt.Errorf("load feed: %w", err)
	}
	for _, item := range feed {
		seen[item.Session.ID] = struct{}{}
	}

	own, err := a.Reader.Sessions(ctx, viewerID)
	if err != nil {
		return nil, fmt.Errorf("load sessions: %w", err)
	}
	for _, s := range own {
		seen[s.ID] = struct{}{}
	}

	ids := make([]string, 0, len(seen))
	for id := range seen {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Viewer returns the signed-in profile as loaded when the session opened.
func (s *Session) Viewer() model.Profile {
	return s.viewer
}

// Follow toggles following the profile with the given username.
func (s *Session) Follow(ctx context.Context, username string) (*social.Op, error) {
	target, err := s.app.Reader.Profile(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", queries.NormalizeUsername(username), err)
	}
	if !s.knowsFollowerCount(target.ID) {
		counts, err := s.app.Reader.FollowCounts(ctx, target.ID)
		if err == nil {
			s.Social.SeedFollowerCount(target.ID, counts.Followers)
		}
	}
	return s.Social.ToggleFollow(ctx, target.ID, s.viewer.ID)
}

func (s *Session) knowsFollowerCount(profileID string) bool {
	_, ok := s.Social.FollowerCount(profileID)
	return ok
}

// Like toggles the viewer's like on a session.
func (s *Session) Like(ctx context.Context, sessionID string) (*social.Op, error) {
	sess, err := s.app.Reader.Session(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("resolve session %s: %w", sessionID, err)
	}
	if err := s.loadLikes(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("load likes of %s: %w", sessionID, err)
	}
	return s.Social.ToggleLike(ctx, sessionID, sess.UserID, s.viewer.ID)
}

// loadLikes fetches the like set of a session the viewer had not seen
// when the session opened, so a toggle starts from the real state.
func (s *Session) loadLikes(ctx context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.loaded[sessionID]; ok {
		return nil
	}
	if err := s.Social.ReconcileLikes(ctx, sessionID); err != nil {
		return err
	}
	s.loaded[sessionID] = struct{}{}
	return nil
}

// Close stops the realtime subscription and waits for pending social
// writes to settle or be cancelled.
func (s *Session) Close() {
	s.unsubscribe()
	s.Social.Close()
	s.app.logger.Debug("session closed", slog.String("viewer", s.viewer.ID))
}
