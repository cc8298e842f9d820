package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/fitsync/internal/model"
)

// AddComment stores a comment and, unless the author owns the session,
// a comment notification for the owner. Both rows commit together; the
// notification reaches the owner's change feed once committed.
func (s *Store) AddComment(ctx context.Context, c model.Comment) (model.Comment, error) {
	if c.SessionID == "" || c.UserID == "" || c.Content == "" {
		return model.Comment{}, fmt.Errorf("add comment: session, author and content are required")
	}
	c.ID = s.ids.Generate()
	ts := s.stamp()
	c.CreatedAt = fromStamp(ts)

	var inserted []model.Notification
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var ownerID string
		if err := tx.QueryRowContext(ctx, `SELECT user_id FROM sessions WHERE id = ?`, c.SessionID).Scan(&ownerID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return ErrNotFound
			}
			return fmt.Errorf("lookup session owner: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO comments (id, session_id, user_id, content, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, c.ID, c.SessionID, c.UserID, c.Content, ts)
		if err != nil {
			return fmt.Errorf("insert comment: %w", err)
		}

		if ownerID == c.UserID {
			return nil
		}
		n, err := s.insertNotificationTx(ctx, tx, model.Notification{
			UserID:    ownerID,
			ActorID:   c.UserID,
			Type:      model.NotificationComment,
			SessionID: c.SessionID,
		})
		if err != nil {
			return err
		}
		inserted = append(inserted, n)
		return nil
	})
	if err != nil {
		return model.Comment{}, err
	}
	s.feed.notify(inserted...)
	return c, nil
}

// ListComments returns a session's comments, oldest first.
func (s *Store) ListComments(ctx context.Context, sessionID string) ([]model.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, user_id, content, created_at FROM comments
		WHERE session_id = ?
		ORDER BY created_at, id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query comments: %w", err)
	}
	defer rows.Close()

	out := []model.Comment{}
	for rows.Next() {
		var (
			c  model.Comment
			ts int64
		)
		if err := rows.Scan(&c.ID, &c.SessionID, &c.UserID, &c.Content, &ts); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		c.CreatedAt = fromStamp(ts)
		out = append(out, c)
	}
	return out, rows.Err()
}
