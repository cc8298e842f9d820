package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/roach88/fitsync/internal/derive"
	"github.com/roach88/fitsync/internal/model"
)

const sessionColumns = `s.id, s.user_id, s.title, s.date, s.feeling, s.tags, s.notes, s.created_at`

// PutSession inserts or replaces a session and its exercise list.
// Exercises are rewritten in the given order.
func (s *Store) PutSession(ctx context.Context, sess model.Session) (model.Session, error) {
	if sess.UserID == "" || sess.Title == "" {
		return model.Session{}, fmt.Errorf("put session: owner and title are required")
	}
	if sess.Date.IsZero() {
		return model.Session{}, fmt.Errorf("put session: date is required")
	}
	if sess.ID == "" {
		sess.ID = s.ids.Generate()
	}
	if sess.Tags == nil {
		sess.Tags = []string{}
	}
	tags, err := json.Marshal(sess.Tags)
	if err != nil {
		return model.Session{}, fmt.Errorf("encode tags: %w", err)
	}
	ts := s.stamp()

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO sessions (id, user_id, title, date, feeling, tags, notes, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				title   = excluded.title,
				date    = excluded.date,
				feeling = excluded.feeling,
				tags    = excluded.tags,
				notes   = excluded.notes
		`, sess.ID, sess.UserID, sess.Title, sess.Date.Format(derive.DateLayout), sess.Feeling, string(tags), sess.Notes, ts)
		if err != nil {
			return fmt.Errorf("upsert session: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `DELETE FROM exercises WHERE session_id = ?`, sess.ID); err != nil {
			return fmt.Errorf("clear exercises: %w", err)
		}
		for i, ex := range sess.Exercises {
			if ex.ID == "" {
				ex.ID = s.ids.Generate()
			}
			_, err := tx.ExecContext(ctx, `
				INSERT INTO exercises (id, session_id, position, name, sets, reps, weight)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, ex.ID, sess.ID, i, ex.Name, ex.Sets, ex.Reps, ex.Weight)
			if err != nil {
				return fmt.Errorf("insert exercise %d: %w", i, err)
			}
		}
		return nil
	})
	if err != nil {
		return model.Session{}, err
	}
	return s.GetSession(ctx, sess.ID)
}

// GetSession returns one session with its exercises, or ErrNotFound.
func (s *Store) GetSession(ctx context.Context, id string) (model.Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions s WHERE s.id = ?`, id)
	sess, err := scanSession(row)
	if err != nil {
		return model.Session{}, err
	}
	exercises, err := s.listExercises(ctx, []string{sess.ID})
	if err != nil {
		return model.Session{}, err
	}
	sess.Exercises = exercises[sess.ID]
	return sess, nil
}

// ListSessionsByOwner returns every session of userID, newest date first.
func (s *Store) ListSessionsByOwner(ctx context.Context, userID string) ([]model.Session, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+` FROM sessions s
		WHERE s.user_id = ?
		ORDER BY s.date DESC, s.created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	out := []model.Session{}
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}
	if err := s.attachExercises(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteSession removes a session owned by userID. Exercises, likes,
// comments and photos cascade. Deleting an absent session is a no-op.
func (s *Store) DeleteSession(ctx context.Context, id, userID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// ListFeedPage returns one page of the community feed, most recently
// created first, each session joined with its author. Pages are 1-based.
func (s *Store) ListFeedPage(ctx context.Context, page, size int) ([]model.FeedItem, error) {
	if page < 1 {
		page = 1
	}
	if size <= 0 {
		size = s.limit
	}
	if page-1 > math.MaxInt/size {
		return []model.FeedItem{}, nil
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+sessionColumns+`,
			p.id, p.username, p.display_name, p.bio, p.avatar_url, p.banner_url, p.sport, p.created_at
		FROM sessions s
		JOIN profiles p ON p.id = s.user_id
		ORDER BY s.created_at DESC, s.id DESC
		LIMIT ? OFFSET ?
	`, size, (page-1)*size)
	if err != nil {
		return nil, fmt.Errorf("query feed page %d: %w", page, err)
	}
	defer rows.Close()

	items := []model.FeedItem{}
	for rows.Next() {
		var (
			item           model.FeedItem
			date, tags     string
			sessTS, profTS int64
		)
		a := &item.Author
		err := rows.Scan(
			&item.Session.ID, &item.Session.UserID, &item.Session.Title, &date, &item.Session.Feeling,
			&tags, &item.Session.Notes, &sessTS,
			&a.ID, &a.Username, &a.DisplayName, &a.Bio, &a.AvatarURL, &a.BannerURL, &a.Sport, &profTS,
		)
		if err != nil {
			return nil, fmt.Errorf("scan feed item: %w", err)
		}
		if err := decodeSessionColumns(&item.Session, date, tags, sessTS); err != nil {
			return nil, err
		}
		a.CreatedAt = fromStamp(profTS)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feed: %w", err)
	}

	sessions := make([]model.Session, len(items))
	for i := range items {
		sessions[i] = items[i].Session
	}
	if err := s.attachExercises(ctx, sessions); err != nil {
		return nil, err
	}
	for i := range items {
		items[i].Session.Exercises = sessions[i].Exercises
	}
	return items, nil
}

func scanSession(row rowScanner) (model.Session, error) {
	var (
		sess       model.Session
		date, tags string
		ts         int64
	)
	err := row.Scan(&sess.ID, &sess.UserID, &sess.Title, &date, &sess.Feeling, &tags, &sess.Notes, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("scan session: %w", err)
	}
	if err := decodeSessionColumns(&sess, date, tags, ts); err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

func decodeSessionColumns(sess *model.Session, date, tags string, ts int64) error {
	d, err := derive.ParseDate(date)
	if err != nil {
		return fmt.Errorf("session %s: %w", sess.ID, err)
	}
	sess.Date = d
	if err := json.Unmarshal([]byte(tags), &sess.Tags); err != nil {
		return fmt.Errorf("session %s: decode tags: %w", sess.ID, err)
	}
	sess.CreatedAt = fromStamp(ts)
	return nil
}

func (s *Store) attachExercises(ctx context.Context, sessions []model.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	ids := make([]string, len(sessions))
	for i, sess := range sessions {
		ids[i] = sess.ID
	}
	bySession, err := s.listExercises(ctx, ids)
	if err != nil {
		return err
	}
	for i := range sessions {
		sessions[i].Exercises = bySession[sessions[i].ID]
	}
	return nil
}

func (s *Store) listExercises(ctx context.Context, sessionIDs []string) (map[string][]model.Exercise, error) {
	out := make(map[string][]model.Exercise)
	if len(sessionIDs) == 0 {
		return out, nil
	}
	query, args := inClause(`
		SELECT id, session_id, name, sets, reps, weight FROM exercises
		WHERE session_id IN (%s)
		ORDER BY session_id, position
	`, sessionIDs)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query exercises: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ex model.Exercise
		if err := rows.Scan(&ex.ID, &ex.SessionID, &ex.Name, &ex.Sets, &ex.Reps, &ex.Weight); err != nil {
			return nil, fmt.Errorf("scan exercise: %w", err)
		}
		out[ex.SessionID] = append(out[ex.SessionID], ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate exercises: %w", err)
	}
	return out, nil
}

// inClause expands a single %s placeholder in query into one "?" per value.
func inClause(query string, values []string) (string, []any) {
	marks := make([]byte, 0, len(values)*2)
	args := make([]any, len(values))
	for i, v := range values {
		if i > 0 {
			marks = append(marks, ',')
		}
		marks = append(marks, '?')
		args[i] = v
	}
	return fmt.Sprintf(query, string(marks)), args
}
