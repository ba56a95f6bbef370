package api

import (
	"context"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/gamification"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// SubmitClip records a creator clip for review.
func (s *FunnelService) SubmitClip(ctx context.Context, p models.Participant, req models.ClipRequest) (*models.Clip, error) {
	clip, err := s.funnel.CreateClip(ctx, models.Clip{
		Id:            uuid.New().String(),
		ParticipantId: p.Id,
		URL:           req.URL,
		Platform:      req.Platform,
		Views:         req.Views,
		Status:        models.ClipSubmitted,
		Bonus:         decimal.Zero,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Clip submitted",
		zap.String("participant_id", p.Id),
		zap.String("clip_id", clip.Id),
		zap.String("platform", clip.Platform))

	if _, err := s.awards.EvaluateAchievements(ctx, p.Id); err != nil {
		zap.L().Warn("Failed to evaluate achievements", zap.String("participant_id", p.Id), zap.Error(err))
	}
	return clip, nil
}

func (s *FunnelService) Clips(ctx context.Context, participantId string) ([]models.Clip, error) {
	return s.funnel.ListClips(ctx, participantId)
}

// ReviewClip approves or rejects a submitted clip. Approval pays the clipper
// ladder bonus for the verified view count in USD credits plus the clip coins.
func (s *FunnelService) ReviewClip(ctx context.Context, clipId string, req models.ClipReviewRequest) (*models.Clip, error) {
	clip, err := s.funnel.GetClip(ctx, clipId)
	if err != nil {
		return nil, err
	}

	if clip.Status != models.ClipSubmitted {
		return nil, fmt.Errorf("clip %s already reviewed: %w", clipId, store.ErrInvalidTransition)
	}

	views := req.Views
	if views == 0 {
		views = clip.Views
	}
	status := models.ClipRejected
	bonus := decimal.Zero
	if req.Approve {
		status = models.ClipApproved
		if tier, ok := s.awards.Ladders().Clipper.Lookup(decimal.NewFromInt(views)); ok {
			bonus = tier.Reward
		}
	}

	// payouts are idempotent by clip id, so they go first and a failed
	// review can be retried without losing them
	if req.Approve {
		if _, err := s.awards.CreditUSD(ctx, clip.ParticipantId, bonus, "clip_bonus", "clip:"+clipId); err != nil {
			return nil, err
		}
		if _, err := s.awards.Award(ctx, clip.ParticipantId, gamification.EventClipApproved, clipId); err != nil {
			return nil, err
		}
	}

	if err := s.funnel.ReviewClip(ctx, clipId, status, views, bonus, req.Note, s.now()); err != nil {
		return nil, err
	}

	zap.L().Info("Clip reviewed",
		zap.String("clip_id", clipId),
		zap.String("status", status),
		zap.Int64("views", views),
		zap.String("bonus", bonus.StringFixed(2)))

	return s.funnel.GetClip(ctx, clipId)
}

func hours(n int) time.Duration {
	return time.Duration(n) * time.Hour
}
