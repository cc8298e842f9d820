package social

import (
	"context"
	"time"

	"github.com/roach88/fitsync/internal/metrics"
	"github.com/roach88/fitsync/internal/model"
)

// ToggleFollow flips whether viewerID follows targetID, locally and at
// once, and schedules the backend write. The returned Op resolves when the
// pair settles. ctx only bounds the call itself; the write outlives it.
//
// A confirmed follow inserts a follow notification for the target and
// invalidates the follow counts of both profiles.
func (s *Store) ToggleFollow(ctx context.Context, targetID, viewerID string) (*Op, error) {
	if viewerID == "" {
		return nil, ErrUnauthenticated
	}
	if targetID == "" {
		return nil, invalidInput(kindFollow, "missing target profile")
	}
	if targetID == viewerID {
		return nil, invalidInput(kindFollow, "cannot follow yourself")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	_, was := s.following[targetID]
	now := !was
	if now {
		s.following[targetID] = struct{}{}
		s.countLocked(targetID).pending++
	} else {
		delete(s.following, targetID)
		s.countLocked(targetID).pending--
	}

	op := newOp(now)
	s.enqueueLocked(writeKey{kind: kindFollow, a: viewerID, b: targetID}, was, now, "", op)
	return op, nil
}

// ToggleLike flips whether viewerID likes sessionID. A confirmed like
// notifies sessionOwnerID unless the viewer owns the session.
func (s *Store) ToggleLike(ctx context.Context, sessionID, sessionOwnerID, viewerID string) (*Op, error) {
	if viewerID == "" {
		return nil, ErrUnauthenticated
	}
	if sessionID == "" {
		return nil, invalidInput(kindLike, "missing session")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}

	set, ok := s.likes[sessionID]
	if !ok {
		set = make(map[string]struct{})
		s.likes[sessionID] = set
	}
	_, was := set[viewerID]
	now := !was
	if now {
		set[viewerID] = struct{}{}
	} else {
		delete(set, viewerID)
	}

	op := newOp(now)
	s.enqueueLocked(writeKey{kind: kindLike, a: sessionID, b: viewerID}, was, now, sessionOwnerID, op)
	return op, nil
}

// enqueueLocked records the new desired state and starts a flusher if the
// key had none. was is the local state before the toggle, which equals
// the confirmed state when no write is pending.
func (s *Store) enqueueLocked(key writeKey, was, now bool, ownerID string, op *Op) {
	w, ok := s.writes[key]
	if !ok {
		w = &pendingWrite{confirmed: was, ownerID: ownerID, start: time.Now()}
		s.writes[key] = w
		s.wg.Add(1)
		go s.flush(key, w)
	}
	w.desired = now
	w.waiters = append(w.waiters, op)
}

// flush drives one key until the backend matches the desired state or a
// write fails.
func (s *Store) flush(key writeKey, w *pendingWrite) {
	defer s.wg.Done()

	for {
		s.mu.Lock()
		if w.desired == w.confirmed {
			waiters := w.waiters
			delete(s.writes, key)
			s.mu.Unlock()

			for _, op := range waiters {
				op.resolve(nil)
			}
			metrics.ObserveSocialWrite(key.kind, "confirmed", w.start)
			return
		}
		target := w.desired
		s.mu.Unlock()

		created, err := s.persist(key, target)
		if err != nil {
			s.rollback(key, w, err)
			return
		}

		s.mu.Lock()
		if key.kind == kindFollow && target != w.confirmed {
			c := s.countLocked(key.b)
			delta := -1
			if target {
				delta = 1
			}
			c.pending -= delta
			if c.seeded {
				c.base += delta
			}
		}
		w.confirmed = target
		s.mu.Unlock()

		s.afterConfirm(key, w, target, created)
	}
}

// persist performs one write with the configured retries.
func (s *Store) persist(key writeKey, target bool) (bool, error) {
	var (
		created bool
		err     error
	)
	for attempt := 0; attempt <= s.retries; attempt++ {
		if err = s.limiter.Wait(s.ctx); err != nil {
			return false, err
		}

		ctx, cancel := context.WithTimeout(s.ctx, s.writeTimeout)
		created, err = s.write(ctx, key, target)
		cancel()
		if err == nil {
			return created, nil
		}
		if s.ctx.Err() != nil {
			return false, err
		}
		s.logger.Warn("social write attempt failed",
			"kind", key.kind,
			"actor", actorOf(key),
			"target", targetOf(key),
			"attempt", attempt+1,
			"error", err,
		)
	}
	return false, err
}

func (s *Store) write(ctx context.Context, key writeKey, target bool) (bool, error) {
	switch key.kind {
	case kindFollow:
		if target {
			return s.backend.InsertFollow(ctx, key.a, key.b)
		}
		return false, s.backend.DeleteFollow(ctx, key.a, key.b)
	default:
		if target {
			return s.backend.InsertLike(ctx, key.a, key.b)
		}
		return false, s.backend.DeleteLike(ctx, key.a, key.b)
	}
}

// afterConfirm runs the side effects of a confirmed write. Notification
// failures are logged only; the membership change stands.
func (s *Store) afterConfirm(key writeKey, w *pendingWrite, target, created bool) {
	if key.kind == kindFollow && s.invalidator != nil {
		s.invalidator.InvalidateFollows(key.b)
		s.invalidator.InvalidateFollows(key.a)
	}
	if !target || !created {
		return
	}

	var n model.Notification
	switch key.kind {
	case kindFollow:
		n = model.Notification{UserID: key.b, ActorID: key.a, Type: model.NotificationFollow}
	default:
		if w.ownerID == "" || w.ownerID == key.b {
			return
		}
		n = model.Notification{UserID: w.ownerID, ActorID: key.b, Type: model.NotificationLike, SessionID: key.a}
	}

	ctx, cancel := context.WithTimeout(s.ctx, s.writeTimeout)
	defer cancel()
	if _, err := s.backend.InsertNotification(ctx, n); err != nil {
		s.logger.Warn("notification insert failed",
			"type", n.Type,
			"recipient", n.UserID,
			"actor", n.ActorID,
			"error", err,
		)
	}
}

// rollback restores the last confirmed state and fails every waiter.
func (s *Store) rollback(key writeKey, w *pendingWrite, cause error) {
	s.mu.Lock()
	switch key.kind {
	case kindFollow:
		if w.desired != w.confirmed {
			c := s.countLocked(key.b)
			if w.desired {
				c.pending--
			} else {
				c.pending++
			}
		}
		if w.confirmed {
			s.following[key.b] = struct{}{}
		} else {
			delete(s.following, key.b)
		}
	default:
		set, ok := s.likes[key.a]
		if !ok {
			set = make(map[string]struct{})
			s.likes[key.a] = set
		}
		if w.confirmed {
			set[key.b] = struct{}{}
		} else {
			delete(set, key.b)
		}
	}
	w.desired = w.confirmed
	waiters := w.waiters
	delete(s.writes, key)
	s.mu.Unlock()

	err := writeFailed(key.kind, targetOf(key), cause)
	for _, op := range waiters {
		op.resolve(err)
	}

	metrics.ObserveSocialWrite(key.kind, "failed", w.start)
	s.logger.Error("social write rolled back",
		"kind", key.kind,
		"actor", actorOf(key),
		"target", targetOf(key),
		"error", cause,
	)
	if s.onFailure != nil {
		s.onFailure(Failure{Kind: key.kind, ActorID: actorOf(key), Target: targetOf(key), Err: cause})
	}
}

func actorOf(key writeKey) string {
	if key.kind == kindFollow {
		return key.a
	}
	return key.b
}

func targetOf(key writeKey) string {
	if key.kind == kindFollow {
		return key.b
	}
	return key.a
}
