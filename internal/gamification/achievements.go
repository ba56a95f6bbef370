package gamification

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Achievement keys
const (
	AchievementFirstBlessing = "first_blessing"
	AchievementReferrals3    = "referrals_3"
	AchievementReferrals10   = "referrals_10"
	AchievementFirstPurchase = "first_purchase"
	AchievementFirstClip     = "first_clip"
	AchievementJoyMaster     = "joy_master"
)

// allKeysUnlocked is the joy keys bitmask with keys 1-4 set.
const allKeysUnlocked = 0b1111

// EvaluateAchievements unlocks every achievement whose condition now holds and
// returns the keys unlocked by this call.
func (s *Service) EvaluateAchievements(ctx context.Context, participantId string) ([]string, error) {
	blessings, err := s.funnel.CountBlessings(ctx, participantId)
	if err != nil {
		return nil, fmt.Errorf("failed to count blessings: %w", err)
	}
	referrals, err := s.funnel.CountConvertedReferrals(ctx, participantId)
	if err != nil {
		return nil, fmt.Errorf("failed to count referrals: %w", err)
	}
	orders, err := s.funnel.CountPaidOrders(ctx, participantId)
	if err != nil {
		return nil, fmt.Errorf("failed to count orders: %w", err)
	}
	clips, err := s.funnel.ListClips(ctx, participantId)
	if err != nil {
		return nil, fmt.Errorf("failed to list clips: %w", err)
	}
	keys, err := s.funnel.GetJoyKeys(ctx, participantId)
	if err != nil {
		return nil, fmt.Errorf("failed to get joy keys: %w", err)
	}

	earned := map[string]bool{
		AchievementFirstBlessing: blessings >= 1,
		AchievementReferrals3:    referrals >= 3,
		AchievementReferrals10:   referrals >= 10,
		AchievementFirstPurchase: orders >= 1,
		AchievementFirstClip:     len(clips) >= 1,
		AchievementJoyMaster:     keys.Unlocked&allKeysUnlocked == allKeysUnlocked,
	}

	now := time.Now()
	var unlocked []string
	for _, key := range []string{
		AchievementFirstBlessing,
		AchievementReferrals3,
		AchievementReferrals10,
		AchievementFirstPurchase,
		AchievementFirstClip,
		AchievementJoyMaster,
	} {
		if !earned[key] {
			continue
		}
		added, err := s.funnel.UnlockAchievement(ctx, participantId, key, now)
		if err != nil {
			return unlocked, fmt.Errorf("failed to unlock %s: %w", key, err)
		}
		if added {
			zap.L().Info("Achievement unlocked",
				zap.String("participant_id", participantId), zap.String("achievement", key))
			unlocked = append(unlocked, key)
		}
	}
	return unlocked, nil
}
