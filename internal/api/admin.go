package api

import (
	"context"
	"errors"
	"time"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"go.uber.org/zap"
)

// EnrollResult reports an admin bulk enrollment
type EnrollResult struct {
	Campaign string   `json:"campaign"`
	Enrolled []string `json:"enrolled"`
	Skipped  []string `json:"skipped"`
}

func (s *FunnelService) Stats(ctx context.Context, since time.Time) (*models.FunnelStats, error) {
	if since.IsZero() {
		since = s.now().Add(-24 * time.Hour)
	}
	return s.funnel.Stats(ctx, since)
}

// EnrollParticipants enrolls each participant in the campaign. Participants
// already enrolled or unknown are reported as skipped.
func (s *FunnelService) EnrollParticipants(ctx context.Context, campaignKey string, participantIds []string, start time.Time) (*EnrollResult, error) {
	if _, ok := s.drips.Catalog().Get(campaignKey); !ok {
		return nil, store.ErrNotFound
	}
	if start.IsZero() {
		start = s.now()
	}

	result := &EnrollResult{Campaign: campaignKey, Enrolled: []string{}, Skipped: []string{}}
	for _, id := range participantIds {
		if _, err := s.funnel.GetParticipant(ctx, id); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				result.Skipped = append(result.Skipped, id)
				continue
			}
			return nil, err
		}
		_, err := s.drips.Enroll(ctx, id, campaignKey, start)
		switch {
		case err == nil:
			result.Enrolled = append(result.Enrolled, id)
		case errors.Is(err, store.ErrDuplicate):
			result.Skipped = append(result.Skipped, id)
		default:
			return nil, err
		}
	}

	zap.L().Info("Admin enrollment complete",
		zap.String("campaign", campaignKey),
		zap.Int("enrolled", len(result.Enrolled)),
		zap.Int("skipped", len(result.Skipped)))
	return result, nil
}

// Messages lists scheduled messages, newest first, filtered by status when set.
func (s *FunnelService) Messages(ctx context.Context, status string, limit int) ([]models.ScheduledMessage, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	messages, err := s.messages.ListMessages(ctx, status, limit)
	if err != nil {
		return nil, err
	}
	if messages == nil {
		messages = []models.ScheduledMessage{}
	}
	return messages, nil
}
