/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

// Package gamification awards coins for funnel events, tracks achievements and
// exposes the participant wallet.
package gamification

import (
	"context"
	"errors"
	"fmt"

	"iamblessed-funnel-go/internal/metrics"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"
	"iamblessed-funnel-go/internal/tiers"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Funnel events that earn coins
const (
	EventSignup            = "signup"
	EventShare             = "share"
	EventReferralConverted = "referral_converted"
	EventPurchase          = "purchase"
	EventClipApproved      = "clip_approved"
	EventBlessingSent      = "blessing_sent"
	EventNominationSent    = "nomination_sent"
	EventJoyKeyUnlocked    = "joy_key_unlocked"
)

// participantDescriber is implemented by ledgers that keep their own participant directory.
type participantDescriber interface {
	DescribeParticipant(ctx context.Context, p models.Participant) error
}

type Service struct {
	ledger  store.CoinLedger
	funnel  store.FunnelStore
	rewards models.RewardsConfig
	ladders *tiers.Set
}

func NewService(ledger store.CoinLedger, funnel store.FunnelStore, rewards models.RewardsConfig, ladders *tiers.Set) *Service {
	if ladders == nil {
		ladders = tiers.Defaults()
	}
	return &Service{
		ledger:  ledger,
		funnel:  funnel,
		rewards: rewards,
		ladders: ladders,
	}
}

// Ladders returns the tier ladders in use.
func (s *Service) Ladders() *tiers.Set {
	return s.ladders
}

// RewardFor returns the coin amount configured for an event.
func (s *Service) RewardFor(event string) decimal.Decimal {
	switch event {
	case EventSignup:
		return s.rewards.Signup
	case EventShare:
		return s.rewards.Share
	case EventReferralConverted:
		return s.rewards.ReferralConverted
	case EventPurchase:
		return s.rewards.Purchase
	case EventClipApproved:
		return s.rewards.ClipApproved
	case EventBlessingSent:
		return s.rewards.BlessingSent
	case EventNominationSent:
		return s.rewards.NominationSent
	case EventJoyKeyUnlocked:
		return s.rewards.JoyKeyUnlocked
	}
	return decimal.Zero
}

// Register lets the ledger backend record the participant, when it supports it.
func (s *Service) Register(ctx context.Context, p models.Participant) {
	d, ok := s.ledger.(participantDescriber)
	if !ok {
		return
	}
	if err := d.DescribeParticipant(ctx, p); err != nil {
		zap.L().Warn("Failed to register participant with ledger",
			zap.String("participant_id", p.Id), zap.Error(err))
	}
}

// Award credits the coins for event once per ref. A repeated ref returns (nil, nil).
func (s *Service) Award(ctx context.Context, participantId, event, ref string) (*models.CoinTransaction, error) {
	amount := s.RewardFor(event)
	if !amount.IsPositive() {
		return nil, nil
	}

	tx, err := s.ledger.Credit(ctx, store.CoinEntryParams{
		ParticipantId: participantId,
		Currency:      models.CurrencyCoins,
		Amount:        amount,
		ExternalRef:   fmt.Sprintf("%s:%s", event, ref),
		Reason:        event,
	})
	if errors.Is(err, store.ErrDuplicate) {
		zap.L().Debug("Coins already awarded",
			zap.String("participant_id", participantId),
			zap.String("event", event),
			zap.String("ref", ref))
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to award %s coins: %w", event, err)
	}

	metrics.RecordAward(event)
	zap.L().Info("Coins awarded",
		zap.String("participant_id", participantId),
		zap.String("event", event),
		zap.String("amount", amount.String()))

	if _, err := s.EvaluateAchievements(ctx, participantId); err != nil {
		zap.L().Warn("Failed to evaluate achievements",
			zap.String("participant_id", participantId), zap.Error(err))
	}
	return tx, nil
}

// CreditUSD credits affiliate or creator earnings once per ref.
func (s *Service) CreditUSD(ctx context.Context, participantId string, amount decimal.Decimal, reason, ref string) (*models.CoinTransaction, error) {
	amount = amount.Round(2)
	if !amount.IsPositive() {
		return nil, nil
	}

	tx, err := s.ledger.Credit(ctx, store.CoinEntryParams{
		ParticipantId: participantId,
		Currency:      models.CurrencyCredits,
		Amount:        amount,
		ExternalRef:   ref,
		Reason:        reason,
	})
	if errors.Is(err, store.ErrDuplicate) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to credit %s: %w", reason, err)
	}
	return tx, nil
}

// AwardTierBonuses credits the coin reward of every affiliate tier reached between before and after.
func (s *Service) AwardTierBonuses(ctx context.Context, participantId string, before, after decimal.Decimal) error {
	for _, t := range s.ladders.Affiliate.Crossed(before, after) {
		if !t.Reward.IsPositive() {
			continue
		}
		_, err := s.ledger.Credit(ctx, store.CoinEntryParams{
			ParticipantId: participantId,
			Currency:      models.CurrencyCoins,
			Amount:        t.Reward,
			ExternalRef:   fmt.Sprintf("tier:%s:%s:%s", tiers.Affiliate, t.Name, participantId),
			Reason:        "tier_reached",
		})
		if err != nil && !errors.Is(err, store.ErrDuplicate) {
			return fmt.Errorf("failed to award %s tier bonus: %w", t.Name, err)
		}
		zap.L().Info("Affiliate tier reached",
			zap.String("participant_id", participantId), zap.String("tier", t.Name))
	}
	return nil
}
