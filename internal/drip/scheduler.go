package drip

import (
	"context"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"go.uber.org/zap"
)

// Scheduler enrolls participants into campaigns.
type Scheduler struct {
	catalog  *Catalog
	messages store.MessageStore
}

func NewScheduler(catalog *Catalog, messages store.MessageStore) *Scheduler {
	return &Scheduler{catalog: catalog, messages: messages}
}

func (s *Scheduler) Catalog() *Catalog {
	return s.catalog
}

// Enroll schedules every step of the campaign relative to start. A participant
// can only be enrolled once per campaign; a repeat returns store.ErrDuplicate.
func (s *Scheduler) Enroll(ctx context.Context, participantId, campaignKey string, start time.Time) (*models.Enrollment, error) {
	campaign, ok := s.catalog.Get(campaignKey)
	if !ok {
		return nil, fmt.Errorf("campaign %s: %w", campaignKey, store.ErrNotFound)
	}

	start = start.UTC()
	steps := make([]store.ScheduleParams, len(campaign.Steps))
	for i, step := range campaign.Steps {
		steps[i] = store.ScheduleParams{
			Step:            i + 1,
			Channel:         step.Channel,
			Subject:         step.Subject,
			Template:        step.Template,
			ScheduledSendAt: start.Add(step.Offset),
		}
	}

	enrollment, err := s.messages.Enroll(ctx, participantId, campaignKey, start, steps)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Participant enrolled in campaign",
		zap.String("participant_id", participantId),
		zap.String("campaign", campaignKey),
		zap.Int("steps", len(steps)))
	return enrollment, nil
}

// Cancel stops an active enrollment and skips its pending messages.
func (s *Scheduler) Cancel(ctx context.Context, participantId, campaignKey string) error {
	return s.messages.CancelEnrollment(ctx, participantId, campaignKey)
}
