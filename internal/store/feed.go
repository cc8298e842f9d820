package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/roach88/fitsync/internal/model"
	"github.com/roach88/fitsync/internal/queue"
)

// ErrFeedClosed is returned by Subscription.Next after Close, or after the
// store itself was closed.
var ErrFeedClosed = errors.New("change feed closed")

// DefaultPollInterval is how often a subscription checks the
// notifications table for rows committed by other connections.
const DefaultPollInterval = time.Second

// hub tracks open subscriptions per recipient. Inserts made through this
// Store wake the recipient's subscriptions so they poll at once instead of
// waiting for the next tick.
type hub struct {
	mu     sync.Mutex
	subs   map[string]map[*Subscription]struct{}
	closed bool
}

func newHub() *hub {
	return &hub{subs: make(map[string]map[*Subscription]struct{})}
}

// Subscription delivers notification rows inserted for one recipient, in
// commit order. Rows are read from the notifications table, so inserts
// committed by any process sharing the database file are delivered.
// Events are queued without bound until consumed.
type Subscription struct {
	userID string
	events *queue.FIFO[model.Notification]
	hub    *hub
	wake   chan struct{}
	stop   context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// UserID returns the recipient this subscription is filtered on.
func (s *Subscription) UserID() string {
	return s.userID
}

// Next blocks until the next inserted row arrives, ctx is done, or the
// subscription is closed.
func (s *Subscription) Next(ctx context.Context) (model.Notification, error) {
	n, err := s.events.Next(ctx)
	if errors.Is(err, queue.ErrClosed) {
		return model.Notification{}, ErrFeedClosed
	}
	return n, err
}

// Pending returns the number of delivered but unconsumed rows.
func (s *Subscription) Pending() int {
	return s.events.Len()
}

// Close detaches the subscription and stops its poller. Idempotent.
func (s *Subscription) Close() error {
	s.hub.remove(s)
	s.shutdown()
	return nil
}

func (s *Subscription) shutdown() {
	s.once.Do(func() {
		s.stop()
		<-s.done
		s.events.Close()
	})
}

// SubscribeInserts opens a change feed of notification rows inserted with
// user_id = userID. Only rows committed after this call are delivered.
func (s *Store) SubscribeInserts(ctx context.Context, userID string) (*Subscription, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if userID == "" {
		return nil, errors.New("subscribe inserts: empty user id")
	}

	var last int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(rowid), 0) FROM notifications`).Scan(&last)
	if err != nil {
		return nil, fmt.Errorf("subscribe inserts: read high-water mark: %w", err)
	}

	pollCtx, stop := context.WithCancel(context.Background())
	sub := &Subscription{
		userID: userID,
		events: queue.New[model.Notification](),
		hub:    s.feed,
		wake:   make(chan struct{}, 1),
		stop:   stop,
		done:   make(chan struct{}),
	}
	if err := s.feed.add(sub); err != nil {
		stop()
		return nil, err
	}

	go s.tail(pollCtx, sub, last)
	return sub, nil
}

// tail polls for rows above last until ctx is cancelled.
func (s *Store) tail(ctx context.Context, sub *Subscription, last int64) {
	defer close(sub.done)

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		case <-sub.wake:
		}

		rows, next, err := s.notificationsAfter(ctx, sub.userID, last)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("change feed poll failed", "user", sub.userID, "error", err)
			continue
		}
		last = next
		for _, n := range rows {
			sub.events.Enqueue(n)
		}
	}
}

// notificationsAfter returns userID's rows with a rowid above after, in
// rowid order, and the highest rowid seen.
func (s *Store) notificationsAfter(ctx context.Context, userID string, after int64) ([]model.Notification, int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT rowid, id, user_id, actor_id, type, COALESCE(session_id, ''), read, created_at
		FROM notifications
		WHERE user_id = ? AND rowid > ?
		ORDER BY rowid
	`, userID, after)
	if err != nil {
		return nil, after, fmt.Errorf("query new notifications: %w", err)
	}
	defer rows.Close()

	var out []model.Notification
	for rows.Next() {
		var (
			n   model.Notification
			typ string
			ts  int64
		)
		if err := rows.Scan(&after, &n.ID, &n.UserID, &n.ActorID, &typ, &n.SessionID, &n.Read, &ts); err != nil {
			return nil, after, fmt.Errorf("scan new notification: %w", err)
		}
		n.Type = model.NotificationType(typ)
		n.CreatedAt = fromStamp(ts)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, after, fmt.Errorf("iterate new notifications: %w", err)
	}
	return out, after, nil
}

// Subscribers returns the number of open subscriptions for userID.
func (s *Store) Subscribers(userID string) int {
	s.feed.mu.Lock()
	defer s.feed.mu.Unlock()
	return len(s.feed.subs[userID])
}

func (h *hub) add(sub *Subscription) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return ErrFeedClosed
	}
	set, ok := h.subs[sub.userID]
	if !ok {
		set = make(map[*Subscription]struct{})
		h.subs[sub.userID] = set
	}
	set[sub] = struct{}{}
	return nil
}

func (h *hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.subs[sub.userID]
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.userID)
	}
}

// notify wakes the subscriptions of every recipient in rows. It must only
// be called after the insert has committed.
func (h *hub) notify(rows ...model.Notification) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, n := range rows {
		for sub := range h.subs[n.UserID] {
			select {
			case sub.wake <- struct{}{}:
			default:
			}
		}
	}
}

func (h *hub) closeAll() {
	h.mu.Lock()
	subs := h.subs
	h.subs = make(map[string]map[*Subscription]struct{})
	h.closed = true
	h.mu.Unlock()

	for _, set := range subs {
		for sub := range set {
			sub.shutdown()
		}
	}
}
