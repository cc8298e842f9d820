// Package social holds the viewer-scoped follow and like state of one
// signed-in session.
//
// Toggles apply locally first and are persisted behind the caller's back.
// Each (actor, target) pair has at most one flusher goroutine, which
// drives the backend towards the latest desired membership, so toggles on
// one pair serialize and a follow/unfollow pair issued before the first
// write lands converges on the starting state.
//
// Follower counts are tracked as a server base plus the sum of
// unconfirmed optimistic deltas. A profile whose base was never seeded
// does not report a count as real; see FollowerCount.
//
// A Store serves one viewer session. It is created explicitly and passed
// to whatever needs it; there is no global instance.
package social

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/roach88/fitsync/internal/model"
)

// Backend is the part of the backend the social store reads and writes.
// Inserts report whether a row was created; deletes of absent rows
// succeed.
type Backend interface {
	InsertFollow(ctx context.Context, followerID, followingID string) (bool, error)
	DeleteFollow(ctx context.Context, followerID, followingID string) error
	InsertLike(ctx context.Context, sessionID, userID string) (bool, error)
	DeleteLike(ctx context.Context, sessionID, userID string) error
	InsertNotification(ctx context.Context, n model.Notification) (model.Notification, error)

	IsFollowing(ctx context.Context, followerID, followingID string) (bool, error)
	CountFollowers(ctx context.Context, userID string) (int, error)
	ListSessionLikes(ctx context.Context, sessionID string) ([]model.LikePair, error)
}

// Invalidator drops cached follow counts after a confirmed follow change.
type Invalidator interface {
	InvalidateFollows(profileID string)
}

// Failure describes a rolled back write, passed to the failure hook.
type Failure struct {
	Kind    string // "follow" or "like"
	ActorID string
	Target  string // followed profile or liked session
	Err     error
}

const (
	kindFollow = "follow"
	kindLike   = "like"
)

// writeKey identifies one (actor, target) pair.
// Follows: a = viewer, b = target. Likes: a = session, b = viewer.
type writeKey struct {
	kind string
	a, b string
}

// pendingWrite is the write-behind state of one key with unconfirmed
// changes. pending counts for a follow target equal desired - confirmed.
type pendingWrite struct {
	confirmed bool
	desired   bool
	waiters   []*Op
	ownerID   string // session owner, likes only
	start     time.Time
}

type followerCount struct {
	seeded  bool
	base    int
	pending int
}

func (c *followerCount) displayed(base int) int {
	return max(0, base+c.pending)
}

// Store is safe for concurrent use.
type Store struct {
	backend Backend

	mu        sync.RWMutex
	following map[string]struct{}
	likes     map[string]map[string]struct{}
	counts    map[string]*followerCount
	writes    map[writeKey]*pendingWrite
	closed    bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	writeTimeout time.Duration
	retries      int
	limiter      *rate.Limiter
	invalidator  Invalidator
	onFailure    func(Failure)
	logger       *slog.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithWriteTimeout bounds each backend write attempt.
func WithWriteTimeout(d time.Duration) Option {
	return func(s *Store) {
		s.writeTimeout = d
	}
}

// WithRetries sets how many times a failed write is retried before the
// optimistic change is rolled back.
func WithRetries(n int) Option {
	return func(s *Store) {
		s.retries = n
	}
}

// WithLimiter throttles backend writes.
func WithLimiter(l *rate.Limiter) Option {
	return func(s *Store) {
		s.limiter = l
	}
}

// WithInvalidator sets the cache hook called after confirmed follow writes.
func WithInvalidator(inv Invalidator) Option {
	return func(s *Store) {
		s.invalidator = inv
	}
}

// WithFailureHook sets a callback run after every rollback.
func WithFailureHook(fn func(Failure)) Option {
	return func(s *Store) {
		s.onFailure = fn
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// New creates an empty store writing through backend.
func New(backend Backend, opts ...Option) *Store {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		backend:      backend,
		following:    make(map[string]struct{}),
		likes:        make(map[string]map[string]struct{}),
		counts:       make(map[string]*followerCount),
		writes:       make(map[writeKey]*pendingWrite),
		ctx:          ctx,
		cancel:       cancel,
		writeTimeout: 10 * time.Second,
		retries:      1,
		limiter:      rate.NewLimiter(rate.Inf, 0),
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close cancels outstanding writes and waits for every flusher to exit.
// Cancelled writes roll back and fail their ops. Idempotent.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	s.wg.Wait()
}

// InitFollowing replaces the followed set. Keys with unconfirmed writes
// keep their optimistic membership.
func (s *Store) InitFollowing(ids []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	for key, w := range s.writes {
		if key.kind != kindFollow {
			continue
		}
		if w.desired {
			next[key.b] = struct{}{}
		} else {
			delete(next, key.b)
		}
	}
	s.following = next
}

// InitLikes replaces the like set of every session present in pairs.
// Sessions absent from pairs are left alone, and keys with unconfirmed
// writes keep their optimistic membership.
func (s *Store) InitLikes(pairs []model.LikePair) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := make(map[string]map[string]struct{})
	for _, p := range pairs {
		set, ok := next[p.SessionID]
		if !ok {
			set = make(map[string]struct{})
			next[p.SessionID] = set
		}
		set[p.UserID] = struct{}{}
	}
	for sessionID, set := range next {
		s.overlayLikeWritesLocked(sessionID, set)
		s.likes[sessionID] = set
	}
}

func (s *Store) overlayLikeWritesLocked(sessionID string, set map[string]struct{}) {
	for key, w := range s.writes {
		if key.kind != kindLike || key.a != sessionID {
			continue
		}
		if w.desired {
			set[key.b] = struct{}{}
		} else {
			delete(set, key.b)
		}
	}
}

// SeedFollowerCount records the server follower count of a profile. Only
// the first seed is kept; ReconcileFollow is the refresh path.
func (s *Store) SeedFollowerCount(profileID string, count int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := s.countLocked(profileID)
	if c.seeded {
		return
	}
	c.seeded = true
	c.base = count
}

func (s *Store) countLocked(profileID string) *followerCount {
	c, ok := s.counts[profileID]
	if !ok {
		c = &followerCount{}
		s.counts[profileID] = c
	}
	return c
}

// IsFollowing reports the local (optimistic) follow membership.
func (s *Store) IsFollowing(profileID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.following[profileID]
	return ok
}

// FollowingIDs returns the followed profiles, sorted.
func (s *Store) FollowingIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]string, 0, len(s.following))
	for id := range s.following {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// IsLiked reports whether userID likes sessionID locally.
func (s *Store) IsLiked(sessionID, userID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.likes[sessionID][userID]
	return ok
}

// LikeCount returns the local like count of sessionID.
func (s *Store) LikeCount(sessionID string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.likes[sessionID])
}

// FollowerCount returns the displayed follower count and true, or (0,
// false) if the profile was never seeded.
func (s *Store) FollowerCount(profileID string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.counts[profileID]
	if !ok || !c.seeded {
		return 0, false
	}
	return c.displayed(c.base), true
}

// FollowerCountOr returns the displayed count, using fallback as the base
// when the profile was never seeded.
func (s *Store) FollowerCountOr(profileID string, fallback int) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.counts[profileID]
	if !ok {
		return max(0, fallback)
	}
	if !c.seeded {
		return c.displayed(fallback)
	}
	return c.displayed(c.base)
}

// Pending returns the number of keys with unconfirmed writes.
func (s *Store) Pending() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.writes)
}

// ReconcileFollow refetches follow membership and the target's follower
// count. It is a no-op while the pair has an unconfirmed write.
func (s *Store) ReconcileFollow(ctx context.Context, viewerID, targetID string) error {
	key := writeKey{kind: kindFollow, a: viewerID, b: targetID}
	if s.inFlight(key) {
		return nil
	}

	following, err := s.backend.IsFollowing(ctx, viewerID, targetID)
	if err != nil {
		return err
	}
	count, err := s.backend.CountFollowers(ctx, targetID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.writes[key]; ok {
		return nil
	}
	if following {
		s.following[targetID] = struct{}{}
	} else {
		delete(s.following, targetID)
	}
	c := s.countLocked(targetID)
	c.seeded = true
	c.base = count
	return nil
}

// ReconcileLikes refetches the like set of one session. Keys with
// unconfirmed writes keep their optimistic membership.
func (s *Store) ReconcileLikes(ctx context.Context, sessionID string) error {
	pairs, err := s.backend.ListSessionLikes(ctx, sessionID)
	if err != nil {
		return err
	}

	set := make(map[string]struct{}, len(pairs))
	for _, p := range pairs {
		set[p.UserID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.overlayLikeWritesLocked(sessionID, set)
	s.likes[sessionID] = set
	return nil
}

func (s *Store) inFlight(key writeKey) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.writes[key]
	return ok
}
