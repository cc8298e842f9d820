package social

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/roach88/fitsync/internal/model"
)

var errBackend = errors.New("backend unavailable")

// fakeBackend is an in-memory Backend with failure and latency injection.
type fakeBackend struct {
	mu            sync.Mutex
	follows       map[[2]string]bool
	likes         map[[2]string]bool
	notifications []model.Notification
	writes        []string

	// failWrites fails this many upcoming writes; failAlways fails all;
	// failPrefix fails writes whose log entry starts with it.
	failWrites int
	failAlways bool
	failPrefix string
	failNotify bool

	// gate, if set, blocks each write until it yields. writeStarted, if
	// set, is signalled as each write starts.
	gate         chan struct{}
	writeStarted chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		follows: make(map[[2]string]bool),
		likes:   make(map[[2]string]bool),
	}
}

func (b *fakeBackend) beforeWrite(ctx context.Context, op string) error {
	b.mu.Lock()
	started, gate := b.writeStarted, b.gate
	b.mu.Unlock()

	if started != nil {
		started <- struct{}{}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.writes = append(b.writes, op)
	if b.failAlways {
		return errBackend
	}
	if b.failPrefix != "" && strings.HasPrefix(op, b.failPrefix) {
		return errBackend
	}
	if b.failWrites > 0 {
		b.failWrites--
		return errBackend
	}
	return nil
}

func (b *fakeBackend) InsertFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	if err := b.beforeWrite(ctx, "insert-follow "+followerID+"->"+followingID); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	k := [2]string{followerID, followingID}
	if b.follows[k] {
		return false, nil
	}
	b.follows[k] = true
	return true, nil
}

func (b *fakeBackend) DeleteFollow(ctx context.Context, followerID, followingID string) error {
	if err := b.beforeWrite(ctx, "delete-follow "+followerID+"->"+followingID); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.follows, [2]string{followerID, followingID})
	return nil
}

func (b *fakeBackend) InsertLike(ctx context.Context, sessionID, userID string) (bool, error) {
	if err := b.beforeWrite(ctx, "insert-like "+userID+"@"+sessionID); err != nil {
		return false, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	k := [2]string{sessionID, userID}
	if b.likes[k] {
		return false, nil
	}
	b.likes[k] = true
	return true, nil
}

func (b *fakeBackend) DeleteLike(ctx context.Context, sessionID, userID string) error {
	if err := b.beforeWrite(ctx, "delete-like "+userID+"@"+sessionID); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.likes, [2]string{sessionID, userID})
	return nil
}

func (b *fakeBackend) InsertNotification(_ context.Context, n model.Notification) (model.Notification, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failNotify {
		return model.Notification{}, errors.New("notification table unavailable")
	}
	b.notifications = append(b.notifications, n)
	return n, nil
}

func (b *fakeBackend) IsFollowing(_ context.Context, followerID, followingID string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.follows[[2]string{followerID, followingID}], nil
}

func (b *fakeBackend) CountFollowers(_ context.Context, userID string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n := 0
	for k, ok := range b.follows {
		if ok && k[1] == userID {
			n++
		}
	}
	return n, nil
}

func (b *fakeBackend) ListSessionLikes(_ context.Context, sessionID string) ([]model.LikePair, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []model.LikePair
	for k, ok := range b.likes {
		if ok && k[0] == sessionID {
			out = append(out, model.LikePair{SessionID: k[0], UserID: k[1]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func (b *fakeBackend) following(followerID, followingID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.follows[[2]string{followerID, followingID}]
}

func (b *fakeBackend) liked(sessionID, userID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.likes[[2]string{sessionID, userID}]
}

func (b *fakeBackend) writeLog() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.writes...)
}

func (b *fakeBackend) sentNotifications() []model.Notification {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]model.Notification(nil), b.notifications...)
}

// recordingInvalidator collects invalidated follow tags.
type recordingInvalidator struct {
	mu       sync.Mutex
	profiles []string
}

func (r *recordingInvalidator) InvalidateFollows(profileID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.profiles = append(r.profiles, profileID)
}

func (r *recordingInvalidator) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.profiles...)
}
