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

package api

import (
	"context"
	"fmt"
	"strings"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/shopspring/decimal"
)

// Wallet returns coins, credits, affiliate progress and achievements
func (s *FunnelService) Wallet(ctx context.Context, participantId string) (*models.WalletSummary, error) {
	return s.awards.Wallet(ctx, participantId)
}

// History returns paginated wallet history for one currency, or all when empty
func (s *FunnelService) History(ctx context.Context, participantId, currency string, limit, offset int) ([]models.TransactionRecord, error) {
	currency = strings.ToUpper(currency)
	switch currency {
	case "", models.CurrencyCoins, models.CurrencyCredits:
	default:
		return nil, fmt.Errorf("%w: unknown currency %q", store.ErrInvalidInput, currency)
	}
	return s.awards.History(ctx, participantId, currency, limit, offset)
}

// Redeem spends coins and returns the new coin balance
func (s *FunnelService) Redeem(ctx context.Context, participantId string, req models.RedeemRequest) (decimal.Decimal, error) {
	if _, err := s.awards.Redeem(ctx, participantId, req.Amount, req.Reason); err != nil {
		return decimal.Zero, err
	}
	return s.ledger.Balance(ctx, participantId, models.CurrencyCoins)
}

// Tiers returns affiliate and clipper progress
func (s *FunnelService) Tiers(ctx context.Context, participantId string) ([]models.TierProgress, error) {
	return s.awards.Progress(ctx, participantId)
}

// JoyKeys returns the participant's progressive unlock state
func (s *FunnelService) JoyKeys(ctx context.Context, participantId string) (*models.JoyKeys, error) {
	return s.joyKeys.State(ctx, participantId)
}
