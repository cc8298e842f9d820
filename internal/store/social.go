package store

import (
	"context"
	"fmt"

	"github.com/roach88/fitsync/internal/model"
)

// InsertFollow records followerID -> followingID. Inserting an existing
// edge is a no-op. Returns true if a row was created.
func (s *Store) InsertFollow(ctx context.Context, followerID, followingID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO follows (follower_id, following_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(follower_id, following_id) DO NOTHING
	`, followerID, followingID, s.stamp())
	if err != nil {
		return false, fmt.Errorf("insert follow %s->%s: %w", followerID, followingID, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteFollow removes the edge. Deleting an absent edge is a no-op.
func (s *Store) DeleteFollow(ctx context.Context, followerID, followingID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM follows WHERE follower_id = ? AND following_id = ?
	`, followerID, followingID)
	if err != nil {
		return fmt.Errorf("delete follow %s->%s: %w", followerID, followingID, err)
	}
	return nil
}

// IsFollowing reports whether followerID follows followingID.
func (s *Store) IsFollowing(ctx context.Context, followerID, followingID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM follows WHERE follower_id = ? AND following_id = ?
	`, followerID, followingID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("query follow: %w", err)
	}
	return n > 0, nil
}

// CountFollowers returns how many profiles follow userID.
func (s *Store) CountFollowers(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM follows WHERE following_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count followers: %w", err)
	}
	return n, nil
}

// CountFollowing returns how many profiles userID follows.
func (s *Store) CountFollowing(ctx context.Context, userID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM follows WHERE follower_id = ?`, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count following: %w", err)
	}
	return n, nil
}

// FollowCounts returns both sides of userID's follow graph.
func (s *Store) FollowCounts(ctx context.Context, userID string) (model.FollowCounts, error) {
	followers, err := s.CountFollowers(ctx, userID)
	if err != nil {
		return model.FollowCounts{}, err
	}
	following, err := s.CountFollowing(ctx, userID)
	if err != nil {
		return model.FollowCounts{}, err
	}
	return model.FollowCounts{Followers: followers, Following: following}, nil
}

// ListFollowingIDs returns the IDs userID follows, oldest edge first.
func (s *Store) ListFollowingIDs(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT following_id FROM follows WHERE follower_id = ?
		ORDER BY created_at, following_id
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query following: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan following id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// InsertLike records userID liking sessionID. Idempotent; returns true if a
// row was created.
func (s *Store) InsertLike(ctx context.Context, sessionID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO likes (user_id, session_id, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(user_id, session_id) DO NOTHING
	`, userID, sessionID, s.stamp())
	if err != nil {
		return false, fmt.Errorf("insert like %s on %s: %w", userID, sessionID, err)
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// DeleteLike removes the like. Deleting an absent like is a no-op.
func (s *Store) DeleteLike(ctx context.Context, sessionID, userID string) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM likes WHERE user_id = ? AND session_id = ?
	`, userID, sessionID)
	if err != nil {
		return fmt.Errorf("delete like %s on %s: %w", userID, sessionID, err)
	}
	return nil
}

// ListLikes returns every like on the given sessions.
func (s *Store) ListLikes(ctx context.Context, sessionIDs []string) ([]model.LikePair, error) {
	if len(sessionIDs) == 0 {
		return []model.LikePair{}, nil
	}
	query, args := inClause(`
		SELECT session_id, user_id FROM likes
		WHERE session_id IN (%s)
		ORDER BY session_id, created_at, user_id
	`, sessionIDs)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query likes: %w", err)
	}
	defer rows.Close()

	pairs := []model.LikePair{}
	for rows.Next() {
		var p model.LikePair
		if err := rows.Scan(&p.SessionID, &p.UserID); err != nil {
			return nil, fmt.Errorf("scan like: %w", err)
		}
		pairs = append(pairs, p)
	}
	return pairs, rows.Err()
}

// ListSessionLikes returns the likes on one session.
func (s *Store) ListSessionLikes(ctx context.Context, sessionID string) ([]model.LikePair, error) {
	return s.ListLikes(ctx, []string{sessionID})
}
