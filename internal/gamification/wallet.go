package gamification

import (
	"context"
	"fmt"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Wallet returns coins, credits, affiliate progress and achievements for a participant.
func (s *Service) Wallet(ctx context.Context, participantId string) (*models.WalletSummary, error) {
	if participantId == "" {
		return nil, fmt.Errorf("participant_id is required")
	}

	summary := &models.WalletSummary{
		ParticipantId: participantId,
		Coins:         decimal.Zero,
		Credits:       decimal.Zero,
	}

	balances, err := s.ledger.Balances(ctx, participantId)
	if err != nil {
		zap.L().Error("Failed to get wallet balances", zap.String("participant_id", participantId), zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve balances: %w", err)
	}
	for _, b := range balances {
		switch b.Currency {
		case models.CurrencyCoins:
			summary.Coins = b.Balance
		case models.CurrencyCredits:
			summary.Credits = b.Balance
		}
	}

	converted, err := s.funnel.CountConvertedReferrals(ctx, participantId)
	if err != nil {
		return nil, fmt.Errorf("failed to count referrals: %w", err)
	}
	summary.Affiliate = s.ladders.Affiliate.Progress(decimal.NewFromInt(converted))

	achievements, err := s.funnel.ListAchievements(ctx, participantId)
	if err != nil {
		return nil, fmt.Errorf("failed to list achievements: %w", err)
	}
	summary.Achievements = achievements
	if summary.Achievements == nil {
		summary.Achievements = []models.Achievement{}
	}

	return summary, nil
}

// Progress returns the affiliate and clipper ladder positions for a participant.
func (s *Service) Progress(ctx context.Context, participantId string) ([]models.TierProgress, error) {
	converted, err := s.funnel.CountConvertedReferrals(ctx, participantId)
	if err != nil {
		return nil, fmt.Errorf("failed to count referrals: %w", err)
	}
	views, err := s.funnel.SumApprovedViews(ctx, participantId)
	if err != nil {
		return nil, fmt.Errorf("failed to sum clip views: %w", err)
	}
	return []models.TierProgress{
		s.ladders.Affiliate.Progress(decimal.NewFromInt(converted)),
		s.ladders.Clipper.Progress(decimal.NewFromInt(views)),
	}, nil
}

// History returns paginated wallet history. An empty currency lists every currency.
func (s *Service) History(ctx context.Context, participantId, currency string, limit, offset int) ([]models.TransactionRecord, error) {
	if participantId == "" {
		return nil, fmt.Errorf("participant_id is required")
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	txs, err := s.ledger.History(ctx, participantId, currency, limit, offset)
	if err != nil {
		zap.L().Error("Failed to get wallet history",
			zap.String("participant_id", participantId),
			zap.String("currency", currency),
			zap.Error(err))
		return nil, fmt.Errorf("failed to retrieve history: %w", err)
	}

	records := make([]models.TransactionRecord, len(txs))
	for i, tx := range txs {
		records[i] = models.TransactionRecord{
			Id:        tx.Id,
			Kind:      tx.Kind,
			Currency:  tx.Currency,
			Amount:    tx.Amount,
			Reason:    tx.Reason,
			Status:    tx.Status,
			CreatedAt: tx.CreatedAt,
		}
	}
	return records, nil
}

// Redeem spends coins. The ledger rejects the debit with store.ErrInsufficientFunds
// when the balance is too low.
func (s *Service) Redeem(ctx context.Context, participantId string, amount decimal.Decimal, reason string) (*models.CoinTransaction, error) {
	if !amount.IsPositive() || !amount.Equal(amount.Truncate(0)) {
		return nil, fmt.Errorf("%w: redeem amount must be a positive whole number of coins", store.ErrInvalidInput)
	}

	tx, err := s.ledger.Debit(ctx, store.CoinEntryParams{
		ParticipantId: participantId,
		Currency:      models.CurrencyCoins,
		Amount:        amount,
		ExternalRef:   "redeem:" + uuid.New().String(),
		Reason:        reason,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Coins redeemed",
		zap.String("participant_id", participantId),
		zap.String("amount", amount.String()),
		zap.String("reason", reason))
	return tx, nil
}
