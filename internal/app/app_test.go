package app

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"sync"
	"testing"
	"time"

	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/fitsync/internal/config"
	"github.com/roach88/fitsync/internal/derive"
	"github.com/roach88/fitsync/internal/media"
	"github.com/roach88/fitsync/internal/model"
	"github.com/roach88/fitsync/internal/queries"
	"github.com/roach88/fitsync/internal/realtime"
	"github.com/roach88/fitsync/internal/social"
	"github.com/roach88/fitsync/internal/store"
)

type stubPresigner struct{}

func (stubPresigner) PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error) {
	return &v4.PresignedHTTPRequest{URL: "https://signed.example/" + *params.Key, Method: http.MethodPut}, nil
}

type toastLog struct {
	mu     sync.Mutex
	toasts []realtime.Toast
}

func (l *toastLog) Show(t realtime.Toast) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.toasts = append(l.toasts, t)
}

func (l *toastLog) texts() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.toasts))
	for _, t := range l.toasts {
		out = append(out, t.Text)
	}
	return out
}

func newTestApp(t *testing.T, mutate ...func(*config.Config)) *App {
	t.Helper()
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "fitsync.db")
	cfg.Social.WriteTimeout = 2 * time.Second
	for _, fn := range mutate {
		fn(&cfg)
	}

	a, err := New(cfg,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithPresigner(stubPresigner{}, media.WithIDFunc(func() string { return "0001" })),
	)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a
}

func addProfile(t *testing.T, a *App, username string) model.Profile {
	t.Helper()
	p, err := a.Store.PutProfile(context.Background(), model.Profile{ID: username, Username: username})
	require.NoError(t, err)
	return p
}

func addSession(t *testing.T, a *App, owner, date string) model.Session {
	t.Helper()
	d, err := derive.ParseDate(date)
	require.NoError(t, err)
	s, err := a.Writer.AddSession(context.Background(), model.Session{UserID: owner, Title: "Session " + date, Date: d})
	require.NoError(t, err)
	return s
}

func openSession(t *testing.T, a *App, viewer string, opts ...SessionOption) *Session {
	t.Helper()
	s, err := a.OpenSession(context.Background(), viewer, opts...)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func waitOp(t *testing.T, op *social.Op) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, op.Wait(ctx))
}

func TestTTLsFromConfig(t *testing.T) {
	cfg := config.Default().Cache.TTL
	assert.Equal(t, queries.DefaultTTLs(), ttlsFromConfig(cfg))
}

func TestNew_BadDatabasePath(t *testing.T) {
	cfg := config.Default()
	cfg.Database.Path = filepath.Join(t.TempDir(), "missing", "dir", "fitsync.db")
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestOpenSession_Rejects(t *testing.T) {
	a := newTestApp(t)

	_, err := a.OpenSession(context.Background(), "")
	assert.True(t, social.IsUnauthenticated(err))

	_, err = a.OpenSession(context.Background(), "ghost")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestOpenSession_Hydrates(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	addProfile(t, a, "alice")
	addProfile(t, a, "bob")
	addProfile(t, a, "carol")
	bobSession := addSession(t, a, "bob", "2024-03-09")

	_, err := a.Store.InsertFollow(ctx, "alice", "bob")
	require.NoError(t, err)
	_, err = a.Store.InsertFollow(ctx, "carol", "bob")
	require.NoError(t, err)
	_, err = a.Store.InsertLike(ctx, bobSession.ID, "alice")
	require.NoError(t, err)

	s := openSession(t, a, "alice")

	assert.Equal(t, "alice", s.Viewer().Username)
	assert.True(t, s.Social.IsFollowing("bob"))
	assert.False(t, s.Social.IsFollowing("carol"))
	assert.True(t, s.Social.IsLiked(bobSession.ID, "alice"))

	n, ok := s.Social.FollowerCount("bob")
	require.True(t, ok)
	assert.Equal(t, 2, n)
	n, ok = s.Social.FollowerCount("alice")
	require.True(t, ok)
	assert.Zero(t, n)
	_, ok = s.Social.FollowerCount("carol")
	assert.False(t, ok, "profiles outside the viewer's graph stay unseeded")
}

func TestSession_FollowUpdatesCountsAndNotifies(t *testing.T) {
	a := newTestApp(t)
	addProfile(t, a, "alice")
	addProfile(t, a, "bob")

	toasts := &toastLog{}
	bob := openSession(t, a, "bob", WithToaster(toasts))
	alice := openSession(t, a, "alice")

	op, err := alice.Follow(context.Background(), "bob")
	require.NoError(t, err)
	assert.True(t, op.Value())
	n, ok := alice.Social.FollowerCount("bob")
	require.True(t, ok)
	assert.Equal(t, 1, n, "optimistic count")

	waitOp(t, op)

	counts, err := a.Reader.FollowCounts(context.Background(), "bob")
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Followers)

	require.Eventually(t, func() bool { return bob.Counters.UnreadNotifications() == 1 }, 5*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return len(toasts.texts()) == 1 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"alice started following you"}, toasts.texts())

	require.NoError(t, bob.Counters.MarkNotificationsRead(context.Background()))
	assert.Zero(t, bob.Counters.UnreadNotifications())
	unread, err := a.Store.CountUnread(context.Background(), "bob", model.CounterNotifications)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestSession_CountsExistingUnread(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	addProfile(t, a, "alice")
	addProfile(t, a, "bob")

	conv, err := a.Writer.StartConversation(ctx, []string{"alice", "bob"})
	require.NoError(t, err)
	_, err = a.Writer.SendMessage(ctx, conv.ID, "alice", "leg day?")
	require.NoError(t, err)

	bob := openSession(t, a, "bob")
	assert.Equal(t, 1, bob.Counters.UnreadMessages())
	assert.Zero(t, bob.Counters.UnreadNotifications())

	_, err = a.Writer.SendMessage(ctx, conv.ID, "alice", "6am")
	require.NoError(t, err)
	require.Eventually(t, func() bool { return bob.Counters.UnreadMessages() == 2 }, 5*time.Second, 10*time.Millisecond)
}

func TestSession_LikeLoadsUnseenSession(t *testing.T) {
	a := newTestApp(t, func(c *config.Config) { c.Cache.FeedPageSize = 1 })
	ctx := context.Background()
	addProfile(t, a, "alice")
	addProfile(t, a, "bob")
	older := addSession(t, a, "bob", "2024-03-01")
	addSession(t, a, "bob", "2024-03-02")

	_, err := a.Store.InsertLike(ctx, older.ID, "alice")
	require.NoError(t, err)

	alice := openSession(t, a, "alice")
	assert.False(t, alice.Social.IsLiked(older.ID, "alice"), "older session is off the first feed page")

	op, err := alice.Like(ctx, older.ID)
	require.NoError(t, err)
	assert.False(t, op.Value(), "toggle starts from the stored like")
	waitOp(t, op)

	likes, err := a.Store.ListSessionLikes(ctx, older.ID)
	require.NoError(t, err)
	assert.Empty(t, likes)
}

func TestSession_SelfLikeDoesNotNotify(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	addProfile(t, a, "alice")
	own := addSession(t, a, "alice", "2024-03-01")

	alice := openSession(t, a, "alice")
	op, err := alice.Like(ctx, own.ID)
	require.NoError(t, err)
	waitOp(t, op)

	assert.Equal(t, 1, alice.Social.LikeCount(own.ID))
	unread, err := a.Store.CountUnread(ctx, "alice", model.CounterNotifications)
	require.NoError(t, err)
	assert.Zero(t, unread)
}

func TestSessionPhotoUploads(t *testing.T) {
	a := newTestApp(t, func(c *config.Config) { c.Media.MaxPhotos = 2 })
	ctx := context.Background()
	addProfile(t, a, "alice")
	addProfile(t, a, "bob")
	sess := addSession(t, a, "alice", "2024-03-01")
	file := File{Name: "squat.jpg", ContentType: "image/jpeg", Size: 1024}

	_, err := a.PresignSessionPhoto(ctx, sess.ID, "bob", file)
	assert.ErrorIs(t, err, queries.ErrForbidden)

	up, err := a.PresignSessionPhoto(ctx, sess.ID, "alice", file)
	require.NoError(t, err)
	assert.Equal(t, "photo/alice/0001-squat.jpg", up.Key)

	for i := 0; i < 2; i++ {
		photo, err := a.AttachSessionPhoto(ctx, sess.ID, "alice", up.Key)
		require.NoError(t, err)
		assert.Equal(t, up.PublicURL, photo.URL)
	}

	_, err = a.PresignSessionPhoto(ctx, sess.ID, "alice", file)
	assert.ErrorIs(t, err, media.ErrPhotoLimit)
	_, err = a.AttachSessionPhoto(ctx, sess.ID, "alice", up.Key)
	assert.ErrorIs(t, err, media.ErrPhotoLimit)
}

func TestProfileImageUpload(t *testing.T) {
	a := newTestApp(t)
	ctx := context.Background()
	addProfile(t, a, "alice")

	_, err := a.PresignProfileImage(ctx, "alice", media.KindAvatar, File{Name: "me.png", ContentType: "image/png", Size: 3 << 20})
	assert.ErrorIs(t, err, media.ErrTooLarge)

	_, err = a.PresignProfileImage(ctx, "alice", media.KindPhoto, File{Name: "me.png", ContentType: "image/png", Size: 10})
	assert.ErrorIs(t, err, media.ErrUnknownKind)

	up, err := a.PresignProfileImage(ctx, "alice", media.KindBanner, File{Name: "top.png", ContentType: "image/png", Size: 3 << 20})
	require.NoError(t, err)

	cached, err := a.Reader.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, cached.BannerURL)

	p, err := a.SetProfileImage(ctx, "alice", media.KindBanner, up.Key)
	require.NoError(t, err)
	assert.Equal(t, up.PublicURL, p.BannerURL)

	fresh, err := a.Reader.Profile(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, up.PublicURL, fresh.BannerURL)
}

func TestRun_StopsOnCancel(t *testing.T) {
	a := newTestApp(t, func(c *config.Config) { c.Cache.SweepInterval = 10 * time.Millisecond })
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
