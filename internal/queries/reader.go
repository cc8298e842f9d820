package queries

import (
	"context"
	"time"

	"github.com/roach88/fitsync/internal/cache"
	"github.com/roach88/fitsync/internal/derive"
	"github.com/roach88/fitsync/internal/model"
)

// Backend is the read side of the backend.
type Backend interface {
	GetProfileByUsername(ctx context.Context, username string) (model.Profile, error)
	GetProfileByID(ctx context.Context, id string) (model.Profile, error)
	SearchProfiles(ctx context.Context, query string, limit int) ([]model.Profile, error)
	ListSessionsByOwner(ctx context.Context, userID string) ([]model.Session, error)
	GetSession(ctx context.Context, id string) (model.Session, error)
	ListFeedPage(ctx context.Context, page, size int) ([]model.FeedItem, error)
	ListPalmares(ctx context.Context, userID string) ([]model.Palmares, error)
	ListPersonalRecords(ctx context.Context, userID string) ([]model.PersonalRecord, error)
	FollowCounts(ctx context.Context, userID string) (model.FollowCounts, error)
	ListSessionLikes(ctx context.Context, sessionID string) ([]model.LikePair, error)
	ListComments(ctx context.Context, sessionID string) ([]model.Comment, error)
	ListSessionPhotos(ctx context.Context, sessionID string) ([]model.SessionPhoto, error)
	ListConversations(ctx context.Context, userID string) ([]model.Conversation, error)
	ListMessages(ctx context.Context, conversationID string) ([]model.Message, error)
}

// Reader serves reads through the cache. Returned values may be shared
// with other callers and must not be modified.
type Reader struct {
	backend  Backend
	cache    *cache.Cache
	ttl      TTLs
	pageSize int
}

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithTTLs overrides the per-resource TTLs.
func WithTTLs(ttl TTLs) ReaderOption {
	return func(r *Reader) {
		r.ttl = ttl
	}
}

// WithPageSize sets the feed page size.
func WithPageSize(n int) ReaderOption {
	return func(r *Reader) {
		r.pageSize = n
	}
}

// NewReader creates a Reader over backend and c.
func NewReader(backend Backend, c *cache.Cache, opts ...ReaderOption) *Reader {
	r := &Reader{
		backend:  backend,
		cache:    c,
		ttl:      DefaultTTLs(),
		pageSize: 20,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func readThrough[T any](ctx context.Context, r *Reader, key string, ttl time.Duration, fetch cache.Fetch[T]) (T, error) {
	return cache.ReadThrough(ctx, r.cache, key, ttl, []string{key}, fetch)
}

// Profile returns the public profile with the given username.
func (r *Reader) Profile(ctx context.Context, username string) (model.Profile, error) {
	username = NormalizeUsername(username)
	return readThrough(ctx, r, ProfileKey(username), r.ttl.Profile, func(ctx context.Context) (model.Profile, error) {
		return r.backend.GetProfileByUsername(ctx, username)
	})
}

// MyProfile returns the signed-in user's own profile.
func (r *Reader) MyProfile(ctx context.Context, userID string) (model.Profile, error) {
	return readThrough(ctx, r, MyProfileKey(userID), r.ttl.MyProfile, func(ctx context.Context) (model.Profile, error) {
		return r.backend.GetProfileByID(ctx, userID)
	})
}

// Sessions returns userID's journal, newest first.
func (r *Reader) Sessions(ctx context.Context, userID string) ([]model.Session, error) {
	return readThrough(ctx, r, SessionsKey(userID), r.ttl.Sessions, func(ctx context.Context) ([]model.Session, error) {
		return r.backend.ListSessionsByOwner(ctx, userID)
	})
}

// Session returns one session with its exercises.
func (r *Reader) Session(ctx context.Context, sessionID string) (model.Session, error) {
	return readThrough(ctx, r, SessionKey(sessionID), r.ttl.Session, func(ctx context.Context) (model.Session, error) {
		return r.backend.GetSession(ctx, sessionID)
	})
}

// Feed returns community feed page n (1-based).
func (r *Reader) Feed(ctx context.Context, page int) ([]model.FeedItem, error) {
	if page < 1 {
		page = 1
	}
	return cache.ReadThrough(ctx, r.cache, FeedPageKey(page), r.ttl.Feed, []string{FeedTag}, func(ctx context.Context) ([]model.FeedItem, error) {
		return r.backend.ListFeedPage(ctx, page, r.pageSize)
	})
}

// Palmares returns userID's competition results.
func (r *Reader) Palmares(ctx context.Context, userID string) ([]model.Palmares, error) {
	return readThrough(ctx, r, PalmaresKey(userID), r.ttl.Palmares, func(ctx context.Context) ([]model.Palmares, error) {
		return r.backend.ListPalmares(ctx, userID)
	})
}

// PersonalRecords returns userID's best lifts.
func (r *Reader) PersonalRecords(ctx context.Context, userID string) ([]model.PersonalRecord, error) {
	return readThrough(ctx, r, PRsKey(userID), r.ttl.PRs, func(ctx context.Context) ([]model.PersonalRecord, error) {
		return r.backend.ListPersonalRecords(ctx, userID)
	})
}

// FollowCounts returns follower and following totals of a profile.
func (r *Reader) FollowCounts(ctx context.Context, profileID string) (model.FollowCounts, error) {
	return readThrough(ctx, r, FollowsKey(profileID), r.ttl.Follows, func(ctx context.Context) (model.FollowCounts, error) {
		return r.backend.FollowCounts(ctx, profileID)
	})
}

// Streak returns userID's current training streak as of today, computed
// from the cached session list.
func (r *Reader) Streak(ctx context.Context, userID string, today time.Time) (int, error) {
	sessions, err := r.Sessions(ctx, userID)
	if err != nil {
		return 0, err
	}
	return derive.StreakFromSessions(sessions, today), nil
}

// Likes is never cached: the social store owns the live like state.
func (r *Reader) Likes(ctx context.Context, sessionID string) ([]model.LikePair, error) {
	return r.backend.ListSessionLikes(ctx, sessionID)
}

// Comments is never cached.
func (r *Reader) Comments(ctx context.Context, sessionID string) ([]model.Comment, error) {
	return r.backend.ListComments(ctx, sessionID)
}

// SessionPhotos is never cached.
func (r *Reader) SessionPhotos(ctx context.Context, sessionID string) ([]model.SessionPhoto, error) {
	return r.backend.ListSessionPhotos(ctx, sessionID)
}

// SearchProfiles matches query against usernames and display names. Search
// results are never cached.
func (r *Reader) SearchProfiles(ctx context.Context, query string, limit int) ([]model.Profile, error) {
	return r.backend.SearchProfiles(ctx, query, limit)
}

// Conversations returns the threads userID takes part in, newest first.
func (r *Reader) Conversations(ctx context.Context, userID string) ([]model.Conversation, error) {
	return r.backend.ListConversations(ctx, userID)
}

// Messages returns a thread oldest first. Messages are never cached.
func (r *Reader) Messages(ctx context.Context, conversationID string) ([]model.Message, error) {
	return r.backend.ListMessages(ctx, conversationID)
}
