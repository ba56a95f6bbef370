package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/models"
)

func scanJoyKeys(row rowScanner) (*models.JoyKeys, error) {
	var k models.JoyKeys
	var at [4]sql.NullTime
	if err := row.Scan(&k.ParticipantId, &k.Unlocked, &at[0], &at[1], &at[2], &at[3], &k.UpdatedAt); err != nil {
		return nil, err
	}
	k.UnlockedAt = make(map[int]time.Time)
	for i, t := range at {
		if t.Valid {
			k.UnlockedAt[i+1] = t.Time
		}
	}
	return &k, nil
}

// GetJoyKeys returns the participant's unlock state. A participant without a
// row has every key locked.
func (s *Service) GetJoyKeys(ctx context.Context, participantId string) (*models.JoyKeys, error) {
	k, err := scanJoyKeys(s.db.QueryRowContext(ctx, queryGetJoyKeys, participantId))
	if errors.Is(err, sql.ErrNoRows) {
		return &models.JoyKeys{ParticipantId: participantId, UnlockedAt: map[int]time.Time{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query joy keys: %w", err)
	}
	return k, nil
}

func (s *Service) SaveJoyKeys(ctx context.Context, keys models.JoyKeys) error {
	var at [4]sql.NullTime
	for i := range at {
		if t, ok := keys.UnlockedAt[i+1]; ok {
			at[i] = sql.NullTime{Time: t.UTC(), Valid: true}
		}
	}
	if keys.UpdatedAt.IsZero() {
		keys.UpdatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx, queryUpsertJoyKeys,
		keys.ParticipantId, keys.Unlocked, at[0], at[1], at[2], at[3], keys.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("unable to save joy keys: %w", err)
	}
	return nil
}

// ListStalledJoyKeys returns participants that still have locked keys and have
// not unlocked anything since olderThan.
func (s *Service) ListStalledJoyKeys(ctx context.Context, olderThan time.Time) ([]models.JoyKeys, error) {
	rows, err := s.db.QueryContext(ctx, queryListStalledJoyKeys, olderThan.UTC())
	if err != nil {
		return nil, fmt.Errorf("unable to query stalled joy keys: %w", err)
	}
	defer closeRows(rows)

	var stalled []models.JoyKeys
	for rows.Next() {
		k, err := scanJoyKeys(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan joy keys: %w", err)
		}
		stalled = append(stalled, *k)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating joy key rows: %w", err)
	}
	return stalled, nil
}
