package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

func (s *Service) CreateReferralCode(ctx context.Context, participantId, code string) (*models.ReferralCode, error) {
	now := time.Now().UTC()
	if _, err := s.db.ExecContext(ctx, queryInsertReferralCode, code, participantId, now); err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("referral code %s: %w", code, store.ErrDuplicate)
		}
		return nil, fmt.Errorf("unable to insert referral code: %w", err)
	}
	return &models.ReferralCode{Code: code, ParticipantId: participantId, CreatedAt: now}, nil
}

func (s *Service) GetReferralCode(ctx context.Context, code string) (*models.ReferralCode, error) {
	return s.getReferralCode(ctx, queryGetReferralCode, code)
}

func (s *Service) GetReferralCodeFor(ctx context.Context, participantId string) (*models.ReferralCode, error) {
	return s.getReferralCode(ctx, queryGetReferralCodeFor, participantId)
}

func (s *Service) getReferralCode(ctx context.Context, query, arg string) (*models.ReferralCode, error) {
	var rc models.ReferralCode
	err := s.db.QueryRowContext(ctx, query, arg).Scan(&rc.Code, &rc.ParticipantId, &rc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("referral code %s: %w", arg, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query referral code: %w", err)
	}
	return &rc, nil
}

func (s *Service) CreateReferral(ctx context.Context, referrerId, referredId, code string) (*models.Referral, error) {
	ref := &models.Referral{
		Id:         uuid.New().String(),
		ReferrerId: referrerId,
		ReferredId: referredId,
		Code:       code,
		Status:     models.ReferralPending,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, queryInsertReferral, ref.Id, ref.ReferrerId, ref.ReferredId, ref.Code, ref.Status, ref.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("referral for %s: %w", referredId, store.ErrDuplicate)
		}
		return nil, fmt.Errorf("unable to insert referral: %w", err)
	}

	zap.L().Info("Referral recorded",
		zap.String("referrer_id", referrerId),
		zap.String("referred_id", referredId),
		zap.String("code", code))
	return ref, nil
}

func (s *Service) GetReferralByReferred(ctx context.Context, referredId string) (*models.Referral, error) {
	var ref models.Referral
	var convertedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, queryGetReferralByReferred, referredId).Scan(
		&ref.Id, &ref.ReferrerId, &ref.ReferredId, &ref.Code, &ref.Status, &ref.CreatedAt, &convertedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("referral for %s: %w", referredId, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query referral: %w", err)
	}
	ref.ConvertedAt = timePtr(convertedAt)
	return &ref, nil
}

// MarkReferralConverted moves a pending referral to converted. A referral that
// is already converted yields ErrInvalidTransition.
func (s *Service) MarkReferralConverted(ctx context.Context, id string, at time.Time) error {
	result, err := s.db.ExecContext(ctx, queryMarkReferralConverted, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("unable to convert referral: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to get rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("referral %s: %w", id, store.ErrInvalidTransition)
	}
	return nil
}

func (s *Service) CountConvertedReferrals(ctx context.Context, referrerId string) (int64, error) {
	return s.count(ctx, queryCountConvertedReferrals, referrerId)
}

func (s *Service) count(ctx context.Context, query string, args ...any) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("unable to count rows: %w", err)
	}
	return n, nil
}
