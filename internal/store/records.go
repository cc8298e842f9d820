package store

import (
	"context"
	"fmt"

	"github.com/roach88/fitsync/internal/model"
)

// AddPalmares stores a competition result.
func (s *Store) AddPalmares(ctx context.Context, p model.Palmares) (model.Palmares, error) {
	if p.UserID == "" || p.Competition == "" || p.Result == "" {
		return model.Palmares{}, fmt.Errorf("add palmares: owner, competition and result are required")
	}
	p.ID = s.ids.Generate()
	ts := s.stamp()
	p.CreatedAt = fromStamp(ts)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO palmares (id, user_id, year, competition, category, result, federation, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.UserID, p.Year, p.Competition, p.Category, p.Result, p.Federation, ts)
	if err != nil {
		return model.Palmares{}, fmt.Errorf("insert palmares: %w", err)
	}
	return p, nil
}

// ListPalmares returns userID's results, most recent year first.
func (s *Store) ListPalmares(ctx context.Context, userID string) ([]model.Palmares, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, year, competition, category, result, federation, created_at
		FROM palmares WHERE user_id = ?
		ORDER BY year DESC, created_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query palmares: %w", err)
	}
	defer rows.Close()

	out := []model.Palmares{}
	for rows.Next() {
		var (
			p  model.Palmares
			ts int64
		)
		if err := rows.Scan(&p.ID, &p.UserID, &p.Year, &p.Competition, &p.Category, &p.Result, &p.Federation, &ts); err != nil {
			return nil, fmt.Errorf("scan palmares: %w", err)
		}
		p.CreatedAt = fromStamp(ts)
		out = append(out, p)
	}
	return out, rows.Err()
}

// AddPersonalRecord stores a best lift. Unit defaults to kg.
func (s *Store) AddPersonalRecord(ctx context.Context, pr model.PersonalRecord) (model.PersonalRecord, error) {
	if pr.UserID == "" || pr.Lift == "" {
		return model.PersonalRecord{}, fmt.Errorf("add personal record: owner and lift are required")
	}
	if pr.Unit == "" {
		pr.Unit = "kg"
	}
	pr.ID = s.ids.Generate()
	ts := s.stamp()
	pr.CreatedAt = fromStamp(ts)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO personal_records (id, user_id, lift, weight, unit, validated, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, pr.ID, pr.UserID, pr.Lift, pr.Weight, pr.Unit, pr.Validated, ts)
	if err != nil {
		return model.PersonalRecord{}, fmt.Errorf("insert personal record: %w", err)
	}
	return pr, nil
}

// ListPersonalRecords returns userID's records ordered by lift name.
func (s *Store) ListPersonalRecords(ctx context.Context, userID string) ([]model.PersonalRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, lift, weight, unit, validated, created_at
		FROM personal_records WHERE user_id = ?
		ORDER BY lift, created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("query personal records: %w", err)
	}
	defer rows.Close()

	out := []model.PersonalRecord{}
	for rows.Next() {
		var (
			pr model.PersonalRecord
			ts int64
		)
		if err := rows.Scan(&pr.ID, &pr.UserID, &pr.Lift, &pr.Weight, &pr.Unit, &pr.Validated, &ts); err != nil {
			return nil, fmt.Errorf("scan personal record: %w", err)
		}
		pr.CreatedAt = fromStamp(ts)
		out = append(out, pr)
	}
	return out, rows.Err()
}
