// Package realtime keeps a viewer's unread notification and message
// counters live.
//
// Subscribe opens the change feed of notification inserts before it reads
// the authoritative unread baseline. Events that arrive while the
// baseline is loading wait in a FIFO and are replayed afterwards, and
// events whose notification is already part of the baseline are dropped,
// so every unread row is counted exactly once.
//
// Counters only go up on inserts. The mark-read operations are the only
// path that lowers them, and they retire exactly the rows the backend
// marked: a row marked read before its event is applied is never counted,
// and a row inserted after the mark stays counted.
package realtime

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/roach88/fitsync/internal/metrics"
	"github.com/roach88/fitsync/internal/model"
	"github.com/roach88/fitsync/internal/queue"
)

// Feed is an open change-feed subscription.
type Feed interface {
	Next(ctx context.Context) (model.Notification, error)
	Close() error
}

// Source is the backend side of the counters.
type Source interface {
	// SubscribeInserts opens a feed of notification rows inserted for userID.
	SubscribeInserts(ctx context.Context, userID string) (Feed, error)

	// UnreadIDs returns the ID and type of every unread notification.
	UnreadIDs(ctx context.Context, userID string) (map[string]model.NotificationType, error)

	// MarkRead marks one counter's notifications read and returns their IDs.
	MarkRead(ctx context.Context, userID string, c model.Counter) ([]string, error)
}

// Counters is safe for concurrent use. One Counters serves one viewer
// session.
type Counters struct {
	source   Source
	toaster  Toaster
	resolver ActorResolver
	logger   *slog.Logger

	mu            sync.Mutex
	viewer        string
	subscribed    bool
	gen           uint64
	notifications int
	messages      int
	// seen holds every ID counted or marked read this subscription.
	seen map[string]struct{}
	// unread maps counted, not yet marked IDs to their counter.
	unread map[string]model.Counter
}

// Option configures Counters.
type Option func(*Counters)

// WithToaster sets the toast renderer. The default discards toasts.
func WithToaster(t Toaster) Option {
	return func(c *Counters) {
		c.toaster = t
	}
}

// WithActorResolver sets how actor IDs become display names.
func WithActorResolver(r ActorResolver) Option {
	return func(c *Counters) {
		c.resolver = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Counters) {
		c.logger = logger
	}
}

// New creates unsubscribed counters reading from source.
func New(source Source, opts ...Option) *Counters {
	c := &Counters{
		source:  source,
		toaster: ToasterFunc(func(Toast) {}),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Subscribe starts tracking viewerID's unread counters. Subscribing again
// for the same viewer is a no-op returning a no-op unsubscribe; a
// different viewer is rejected with CodeViewerMismatch until the current
// subscription is released.
//
// The returned unsubscribe is idempotent. It closes the feed, waits for
// the consumer to stop, and resets both counters to 0.
func (c *Counters) Subscribe(ctx context.Context, viewerID string) (func(), error) {
	if viewerID == "" {
		return nil, ErrUnauthenticated
	}

	c.mu.Lock()
	if c.subscribed {
		current := c.viewer
		c.mu.Unlock()
		if current == viewerID {
			return func() {}, nil
		}
		return nil, viewerMismatch(current, viewerID)
	}
	c.subscribed = true
	c.viewer = viewerID
	c.gen++
	gen := c.gen
	c.mu.Unlock()

	feed, err := c.source.SubscribeInserts(ctx, viewerID)
	if err != nil {
		c.release(gen)
		return nil, err
	}

	runCtx, cancel := context.WithCancel(context.Background())
	buffered := queue.New[model.Notification]()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		defer buffered.Close()
		for {
			n, err := feed.Next(runCtx)
			if err != nil {
				if runCtx.Err() == nil {
					c.logger.Warn("notification feed ended", "viewer", viewerID, "error", err)
				}
				return
			}
			buffered.Enqueue(n)
		}
	}()

	snapshot, err := c.source.UnreadIDs(ctx, viewerID)
	if err != nil {
		cancel()
		_ = feed.Close()
		wg.Wait()
		c.release(gen)
		return nil, err
	}

	c.mu.Lock()
	c.seen = make(map[string]struct{}, len(snapshot))
	c.unread = make(map[string]model.Counter, len(snapshot))
	c.notifications, c.messages = 0, 0
	for id, typ := range snapshot {
		counter := model.Classify(typ)
		c.seen[id] = struct{}{}
		c.unread[id] = counter
		c.incrementLocked(counter)
	}
	c.mu.Unlock()

	c.logger.Debug("realtime subscribed",
		"viewer", viewerID,
		"unread_notifications", c.UnreadNotifications(),
		"unread_messages", c.UnreadMessages(),
		"buffered", buffered.Len(),
	)

	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			n, err := buffered.Next(runCtx)
			if err != nil {
				return
			}
			c.apply(runCtx, gen, n)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			cancel()
			_ = feed.Close()
			wg.Wait()
			c.release(gen)
			c.logger.Debug("realtime unsubscribed", "viewer", viewerID)
		})
	}, nil
}

// release clears subscription state if gen is still the active one.
func (c *Counters) release(gen uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.gen != gen {
		return
	}
	c.subscribed = false
	c.viewer = ""
	c.notifications, c.messages = 0, 0
	c.seen = nil
	c.unread = nil
}

func (c *Counters) incrementLocked(counter model.Counter) {
	if counter == model.CounterMessages {
		c.messages++
	} else {
		c.notifications++
	}
}

// apply counts one inserted row and shows its toast.
func (c *Counters) apply(ctx context.Context, gen uint64, n model.Notification) {
	c.mu.Lock()
	if !c.subscribed || c.gen != gen {
		c.mu.Unlock()
		return
	}
	if n.ID != "" {
		if _, dup := c.seen[n.ID]; dup {
			c.mu.Unlock()
			metrics.RealtimeDuplicates.Inc()
			return
		}
		c.seen[n.ID] = struct{}{}
	}
	counter := model.Classify(n.Type)
	if n.ID != "" {
		c.unread[n.ID] = counter
	}
	c.incrementLocked(counter)
	c.mu.Unlock()

	metrics.IncRealtimeEvent(counter.String())

	actor := c.actorName(ctx, n.ActorID)
	if text, ok := FormatToast(n.Type, actor); ok {
		c.toaster.Show(Toast{
			NotificationID: n.ID,
			Type:           n.Type,
			Actor:          actor,
			SessionID:      n.SessionID,
			Text:           text,
		})
	}
}

func (c *Counters) actorName(ctx context.Context, actorID string) string {
	if c.resolver == nil || actorID == "" {
		return UnknownActor
	}
	name, err := c.resolver(ctx, actorID)
	if err != nil || name == "" {
		if err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Debug("actor lookup failed", "actor", actorID, "error", err)
		}
		return UnknownActor
	}
	return name
}

// UnreadNotifications returns the unread like, comment and follow count.
func (c *Counters) UnreadNotifications() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notifications
}

// UnreadMessages returns the unread message count.
func (c *Counters) UnreadMessages() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.messages
}

// Subscribed reports whether a subscription is active.
func (c *Counters) Subscribed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.subscribed
}

// Viewer returns the subscribed viewer, or "".
func (c *Counters) Viewer() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewer
}

// MarkNotificationsRead persists read state for likes, comments and
// follows, then drops the rows it marked from the counter.
func (c *Counters) MarkNotificationsRead(ctx context.Context) error {
	return c.markRead(ctx, model.CounterNotifications)
}

// MarkMessagesRead persists read state for messages, then drops the rows
// it marked from the counter.
func (c *Counters) MarkMessagesRead(ctx context.Context) error {
	return c.markRead(ctx, model.CounterMessages)
}

func (c *Counters) markRead(ctx context.Context, counter model.Counter) error {
	viewer := c.Viewer()
	if viewer == "" {
		return ErrUnauthenticated
	}
	marked, err := c.source.MarkRead(ctx, viewer, counter)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.viewer != viewer {
		return nil
	}
	// Events for marked rows may still be queued behind the consumer.
	for _, id := range marked {
		c.seen[id] = struct{}{}
		if got, ok := c.unread[id]; ok && got == counter {
			delete(c.unread, id)
		}
	}
	remaining := 0
	for _, got := range c.unread {
		if got == counter {
			remaining++
		}
	}
	if counter == model.CounterMessages {
		c.messages = remaining
	} else {
		c.notifications = remaining
	}
	return nil
}
