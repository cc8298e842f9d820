package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/fitsync/internal/model"
)

const profileColumns = `id, username, display_name, bio, avatar_url, banner_url, sport, created_at`

// PutProfile inserts a profile or updates every mutable column of an
// existing one. An empty ID is assigned by the store. CreatedAt is kept
// from the first insert.
func (s *Store) PutProfile(ctx context.Context, p model.Profile) (model.Profile, error) {
	if p.Username == "" {
		return model.Profile{}, fmt.Errorf("put profile: username is required")
	}
	if p.ID == "" {
		p.ID = s.ids.Generate()
	}
	ts := s.stamp()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (`+profileColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			username     = excluded.username,
			display_name = excluded.display_name,
			bio          = excluded.bio,
			avatar_url   = excluded.avatar_url,
			banner_url   = excluded.banner_url,
			sport        = excluded.sport
	`, p.ID, p.Username, p.DisplayName, p.Bio, p.AvatarURL, p.BannerURL, p.Sport, ts)
	if err != nil {
		return model.Profile{}, fmt.Errorf("put profile %s: %w", p.Username, err)
	}
	return s.GetProfileByID(ctx, p.ID)
}

// GetProfileByID returns ErrNotFound if no profile has that ID.
func (s *Store) GetProfileByID(ctx context.Context, id string) (model.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE id = ?`, id)
	return scanProfile(row)
}

// GetProfileByUsername returns ErrNotFound if no profile has that username.
func (s *Store) GetProfileByUsername(ctx context.Context, username string) (model.Profile, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+profileColumns+` FROM profiles WHERE username = ?`, username)
	return scanProfile(row)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (model.Profile, error) {
	var (
		p  model.Profile
		ts int64
	)
	err := row.Scan(&p.ID, &p.Username, &p.DisplayName, &p.Bio, &p.AvatarURL, &p.BannerURL, &p.Sport, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Profile{}, ErrNotFound
	}
	if err != nil {
		return model.Profile{}, fmt.Errorf("scan profile: %w", err)
	}
	p.CreatedAt = fromStamp(ts)
	return p, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// SearchProfiles returns profiles whose username or display name contains
// query, ignoring ASCII case, ordered by username. A blank query matches
// nothing. limit <= 0 uses 20.
func (s *Store) SearchProfiles(ctx context.Context, query string, limit int) ([]model.Profile, error) {
	out := []model.Profile{}
	query = strings.TrimSpace(query)
	if query == "" {
		return out, nil
	}
	if limit <= 0 {
		limit = 20
	}

	pattern := "%" + likeEscaper.Replace(query) + "%"
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+profileColumns+` FROM profiles
		WHERE username LIKE ? ESCAPE '\' OR display_name LIKE ? ESCAPE '\'
		ORDER BY username
		LIMIT ?
	`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("search profiles: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		p, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate profiles: %w", err)
	}
	return out, nil
}
