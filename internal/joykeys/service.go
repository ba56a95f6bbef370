package joykeys

import (
	"context"
	"errors"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/gamification"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"go.uber.org/zap"
)

// NudgeCampaign is the campaign key of the one-off "next key" reminder.
const NudgeCampaign = "joy-keys-next"

// DefaultNudgeDelay is how long after an unlock the next-key reminder goes out.
const DefaultNudgeDelay = 15 * time.Minute

var nudgeTemplates = map[Key]string{
	KeyShare:    "{{.FirstName}}, your gratitude key is unlocked! Key 2 is waiting: share your blessing link {{.ReferralLink}}",
	KeyNominate: "{{.FirstName}}, 2 keys down! Unlock key 3 by nominating someone who deserves a blessing.",
	KeyCheckout: "{{.FirstName}}, one key left. Claim your gratitude pack to unlock the final joy key: {{.CheckoutLink}}",
}

type Service struct {
	funnel     store.FunnelStore
	messages   store.MessageStore
	awards     *gamification.Service
	nudgeDelay time.Duration
	now        func() time.Time
}

func NewService(funnel store.FunnelStore, messages store.MessageStore, awards *gamification.Service) *Service {
	return &Service{
		funnel:     funnel,
		messages:   messages,
		awards:     awards,
		nudgeDelay: DefaultNudgeDelay,
		now:        time.Now,
	}
}

// State returns the participant's keys.
func (s *Service) State(ctx context.Context, participantId string) (*models.JoyKeys, error) {
	return s.funnel.GetJoyKeys(ctx, participantId)
}

// Unlock advances the participant's state to include key k. On a fresh unlock it
// awards coins and schedules the reminder for the next key.
func (s *Service) Unlock(ctx context.Context, participantId string, k Key) (*models.JoyKeys, bool, error) {
	state, err := s.funnel.GetJoyKeys(ctx, participantId)
	if err != nil {
		return nil, false, err
	}

	now := s.now().UTC()
	next, changed, err := Advance(*state, k, now)
	if err != nil {
		return state, false, err
	}
	if !changed {
		return state, false, nil
	}

	if err := s.funnel.SaveJoyKeys(ctx, next); err != nil {
		return nil, false, err
	}
	zap.L().Info("Joy key unlocked",
		zap.String("participant_id", participantId),
		zap.String("key", k.String()))

	if _, err := s.awards.Award(ctx, participantId, gamification.EventJoyKeyUnlocked, fmt.Sprintf("%s:%d", participantId, k)); err != nil {
		zap.L().Error("Failed to award joy key coins",
			zap.String("participant_id", participantId), zap.Error(err))
	}

	if following, ok := Next(next); ok {
		if err := s.scheduleNudge(ctx, participantId, following, now.Add(s.nudgeDelay)); err != nil {
			zap.L().Error("Failed to schedule joy key nudge",
				zap.String("participant_id", participantId), zap.Error(err))
		}
	}

	return &next, true, nil
}

// TryUnlock unlocks k when its predecessor is unlocked and ignores the event otherwise.
// Funnel events call it so that actions taken out of order do not fail the request.
func (s *Service) TryUnlock(ctx context.Context, participantId string, k Key) *models.JoyKeys {
	state, _, err := s.Unlock(ctx, participantId, k)
	if err != nil && !errors.Is(err, store.ErrInvalidTransition) {
		zap.L().Warn("Failed to unlock joy key",
			zap.String("participant_id", participantId),
			zap.String("key", k.String()),
			zap.Error(err))
	}
	return state
}

func (s *Service) scheduleNudge(ctx context.Context, participantId string, k Key, at time.Time) error {
	tmpl, ok := nudgeTemplates[k]
	if !ok {
		return nil
	}

	p, err := s.funnel.GetParticipant(ctx, participantId)
	if err != nil {
		return err
	}
	channel := models.ChannelSMS
	if p.Phone == "" {
		channel = models.ChannelEmail
	}

	_, err = s.messages.ScheduleOneOff(ctx, participantId, store.ScheduleParams{
		CampaignKey:     NudgeCampaign,
		Step:            int(k),
		Channel:         channel,
		Subject:         "Your next joy key is waiting",
		Template:        tmpl,
		ScheduledSendAt: at,
	})
	return err
}

// Stale reports whether a scheduled nudge no longer applies because the key it
// points at has been unlocked since it was scheduled. Other messages are never stale.
func (s *Service) Stale(ctx context.Context, msg models.ScheduledMessage) (bool, error) {
	if msg.CampaignKey != NudgeCampaign {
		return false, nil
	}
	state, err := s.funnel.GetJoyKeys(ctx, msg.ParticipantId)
	if err != nil {
		return false, err
	}
	return IsUnlocked(*state, Key(msg.Step)), nil
}
