package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/shopspring/decimal"
)

// UnlockAchievement records an achievement once. It reports whether the row was new.
func (s *Service) UnlockAchievement(ctx context.Context, participantId, key string, at time.Time) (bool, error) {
	result, err := s.db.ExecContext(ctx, queryInsertAchievement, participantId, key, at.UTC())
	if err != nil {
		return false, fmt.Errorf("unable to insert achievement: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("unable to get rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *Service) ListAchievements(ctx context.Context, participantId string) ([]models.Achievement, error) {
	rows, err := s.db.QueryContext(ctx, queryListAchievements, participantId)
	if err != nil {
		return nil, fmt.Errorf("unable to query achievements: %w", err)
	}
	defer closeRows(rows)

	achievements := []models.Achievement{}
	for rows.Next() {
		var a models.Achievement
		if err := rows.Scan(&a.ParticipantId, &a.Key, &a.UnlockedAt); err != nil {
			return nil, fmt.Errorf("unable to scan achievement: %w", err)
		}
		achievements = append(achievements, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating achievement rows: %w", err)
	}
	return achievements, nil
}

func scanClip(row rowScanner) (*models.Clip, error) {
	var c models.Clip
	var bonus string
	var reviewedAt sql.NullTime
	err := row.Scan(&c.Id, &c.ParticipantId, &c.URL, &c.Platform, &c.Views, &c.Status, &bonus, &c.ReviewNote, &c.CreatedAt, &reviewedAt)
	if err != nil {
		return nil, err
	}
	if c.Bonus, err = decimal.NewFromString(bonus); err != nil {
		return nil, fmt.Errorf("failed to parse bonus '%s': %w", bonus, err)
	}
	c.ReviewedAt = timePtr(reviewedAt)
	return &c, nil
}

func (s *Service) CreateClip(ctx context.Context, clip models.Clip) (*models.Clip, error) {
	if clip.CreatedAt.IsZero() {
		clip.CreatedAt = time.Now().UTC()
	}
	if clip.Status == "" {
		clip.Status = models.ClipSubmitted
	}
	_, err := s.db.ExecContext(ctx, queryInsertClip,
		clip.Id, clip.ParticipantId, clip.URL, clip.Platform, clip.Views, clip.Status, clip.Bonus.String(), clip.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("clip %s: %w", clip.URL, store.ErrDuplicate)
		}
		return nil, fmt.Errorf("unable to insert clip: %w", err)
	}
	return &clip, nil
}

func (s *Service) GetClip(ctx context.Context, id string) (*models.Clip, error) {
	c, err := scanClip(s.db.QueryRowContext(ctx, queryGetClip, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("clip %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query clip: %w", err)
	}
	return c, nil
}

// ListClips returns one participant's clips, or every clip when participantId is empty.
func (s *Service) ListClips(ctx context.Context, participantId string) ([]models.Clip, error) {
	rows, err := s.db.QueryContext(ctx, queryListClips, participantId, participantId)
	if err != nil {
		return nil, fmt.Errorf("unable to query clips: %w", err)
	}
	defer closeRows(rows)

	clips := []models.Clip{}
	for rows.Next() {
		c, err := scanClip(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan clip: %w", err)
		}
		clips = append(clips, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating clip rows: %w", err)
	}
	return clips, nil
}

// ReviewClip settles a submitted clip. Reviewing a clip twice yields ErrInvalidTransition.
func (s *Service) ReviewClip(ctx context.Context, id, status string, views int64, bonus decimal.Decimal, note string, at time.Time) error {
	if status != models.ClipApproved && status != models.ClipRejected {
		return fmt.Errorf("clip review status %q: %w", status, store.ErrInvalidTransition)
	}
	result, err := s.db.ExecContext(ctx, queryReviewClip, status, views, bonus.String(), note, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("unable to review clip: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to get rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.GetClip(ctx, id); err != nil {
			return err
		}
		return fmt.Errorf("clip %s already reviewed: %w", id, store.ErrInvalidTransition)
	}
	return nil
}

func (s *Service) SumApprovedViews(ctx context.Context, participantId string) (int64, error) {
	return s.count(ctx, querySumApprovedViews, participantId)
}
