package store

import (
	"context"
	"fmt"

	"github.com/roach88/fitsync/internal/model"
)

// AddSessionPhoto attaches an already uploaded object URL to a session.
func (s *Store) AddSessionPhoto(ctx context.Context, p model.SessionPhoto) (model.SessionPhoto, error) {
	if p.SessionID == "" || p.UserID == "" || p.URL == "" {
		return model.SessionPhoto{}, fmt.Errorf("add session photo: session, owner and url are required")
	}
	p.ID = s.ids.Generate()
	ts := s.stamp()
	p.CreatedAt = fromStamp(ts)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO session_photos (id, session_id, user_id, url, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, p.ID, p.SessionID, p.UserID, p.URL, ts)
	if err != nil {
		return model.SessionPhoto{}, fmt.Errorf("insert session photo: %w", err)
	}
	return p, nil
}

// ListSessionPhotos returns a session's photos in upload order.
func (s *Store) ListSessionPhotos(ctx context.Context, sessionID string) ([]model.SessionPhoto, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, user_id, url, created_at FROM session_photos
		WHERE session_id = ?
		ORDER BY created_at, id
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("query session photos: %w", err)
	}
	defer rows.Close()

	out := []model.SessionPhoto{}
	for rows.Next() {
		var (
			p  model.SessionPhoto
			ts int64
		)
		if err := rows.Scan(&p.ID, &p.SessionID, &p.UserID, &p.URL, &ts); err != nil {
			return nil, fmt.Errorf("scan session photo: %w", err)
		}
		p.CreatedAt = fromStamp(ts)
		out = append(out, p)
	}
	return out, rows.Err()
}
