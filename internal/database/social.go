package database

import (
	"context"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/models"
)

func (s *Service) CreateNomination(ctx context.Context, n models.Nomination) (*models.Nomination, error) {
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	if n.Status == "" {
		n.Status = models.NominationPending
	}
	_, err := s.db.ExecContext(ctx, queryInsertNomination,
		n.Id, n.NominatorId, n.NomineeName, n.NomineePhone, n.NomineeEmail, n.Message, n.Status, n.CreatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("unable to insert nomination: %w", err)
	}
	return &n, nil
}

func (s *Service) CountNominations(ctx context.Context, nominatorId string) (int64, error) {
	return s.count(ctx, queryCountNominations, nominatorId)
}

func (s *Service) CreateBlessing(ctx context.Context, b models.Blessing) (*models.Blessing, error) {
	if b.CreatedAt.IsZero() {
		b.CreatedAt = time.Now().UTC()
	}
	if b.Status == "" {
		b.Status = models.BlessingDraft
	}
	_, err := s.db.ExecContext(ctx, queryInsertBlessing,
		b.Id, b.SenderId, b.RecipientName, b.RecipientPhone, b.RecipientEmail, b.Message, b.Generated, b.Status, b.CreatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("unable to insert blessing: %w", err)
	}
	return &b, nil
}

func (s *Service) CountBlessings(ctx context.Context, senderId string) (int64, error) {
	return s.count(ctx, queryCountBlessings, senderId)
}
