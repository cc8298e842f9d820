package store

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/roach88/fitsync/internal/model"
)

// InsertNotification writes a notification row and wakes the
// recipient's change feeds once committed. ID and CreatedAt are assigned
// by the store; Read is always false on insert.
func (s *Store) InsertNotification(ctx context.Context, n model.Notification) (model.Notification, error) {
	var row model.Notification
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		row, err = s.insertNotificationTx(ctx, tx, n)
		return err
	})
	if err != nil {
		return model.Notification{}, err
	}
	s.feed.notify(row)
	return row, nil
}

func (s *Store) insertNotificationTx(ctx context.Context, tx *sql.Tx, n model.Notification) (model.Notification, error) {
	if n.UserID == "" || n.ActorID == "" {
		return model.Notification{}, fmt.Errorf("insert notification: recipient and actor are required")
	}
	if !n.Type.Valid() {
		return model.Notification{}, fmt.Errorf("insert notification: unknown type %q", n.Type)
	}

	n.ID = s.ids.Generate()
	n.Read = false
	ts := s.stamp()
	n.CreatedAt = fromStamp(ts)

	_, err := tx.ExecContext(ctx, `
		INSERT INTO notifications (id, user_id, actor_id, type, session_id, read, created_at)
		VALUES (?, ?, ?, ?, ?, 0, ?)
	`, n.ID, n.UserID, n.ActorID, string(n.Type), nullString(n.SessionID), ts)
	if err != nil {
		return model.Notification{}, fmt.Errorf("insert notification: %w", err)
	}
	return n, nil
}

// counterFilter returns the type predicate partitioning the two counters.
func counterFilter(c model.Counter) string {
	if c == model.CounterMessages {
		return "type = 'message'"
	}
	return "type <> 'message'"
}

// CountUnread counts unread notifications for userID on one counter.
func (s *Store) CountUnread(ctx context.Context, userID string, c model.Counter) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM notifications
		WHERE user_id = ? AND read = 0 AND `+counterFilter(c),
		userID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count unread %s: %w", c, err)
	}
	return n, nil
}

// UnreadIDs returns the ID and type of every unread notification for
// userID. It is the authoritative baseline for the unread counters: the
// per-counter counts are the partition sizes under model.Classify.
func (s *Store) UnreadIDs(ctx context.Context, userID string) (map[string]model.NotificationType, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, type FROM notifications
		WHERE user_id = ? AND read = 0
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query unread ids: %w", err)
	}
	defer rows.Close()

	out := make(map[string]model.NotificationType)
	for rows.Next() {
		var id, typ string
		if err := rows.Scan(&id, &typ); err != nil {
			return nil, fmt.Errorf("scan unread id: %w", err)
		}
		out[id] = model.NotificationType(typ)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unread ids: %w", err)
	}
	return out, nil
}

// MarkRead marks every unread notification on counter c as read and
// returns the IDs of the rows it changed.
func (s *Store) MarkRead(ctx context.Context, userID string, c model.Counter) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		UPDATE notifications SET read = 1
		WHERE user_id = ? AND read = 0 AND `+counterFilter(c)+`
		RETURNING id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("mark %s read: %w", c, err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan marked id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("mark %s read: %w", c, err)
	}
	return ids, nil
}

// ListNotifications returns the newest non-message notifications for
// userID, at most limit rows (limit <= 0 uses the store default).
func (s *Store) ListNotifications(ctx context.Context, userID string, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = s.limit
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, actor_id, type, COALESCE(session_id, ''), read, created_at
		FROM notifications
		WHERE user_id = ? AND type <> 'message'
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	defer rows.Close()

	out := []model.Notification{}
	for rows.Next() {
		var (
			n   model.Notification
			typ string
			ts  int64
		)
		if err := rows.Scan(&n.ID, &n.UserID, &n.ActorID, &typ, &n.SessionID, &n.Read, &ts); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		n.Type = model.NotificationType(typ)
		n.CreatedAt = fromStamp(ts)
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notifications: %w", err)
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
