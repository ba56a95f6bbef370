package formance

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"iamblessed-funnel-go/internal/models"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Balance returns the current balance for a participant and currency.
func (s *Service) Balance(ctx context.Context, participantId, currency string) (decimal.Decimal, error) {
	zap.L().Debug("Getting participant balance from Formance",
		zap.String("participant_id", participantId), zap.String("currency", currency))

	acct, err := s.getAccount(ctx, participantAccount(participantId))
	if err != nil {
		return decimal.Zero, err
	}
	if acct == nil {
		return decimal.Zero, nil
	}
	if bal := volumeBalance(acct.Volumes, formanceAsset(currency)); bal != nil {
		return bigIntToDecimal(bal, currency), nil
	}
	return decimal.Zero, nil
}

// Balances returns every currency balance held by a participant.
func (s *Service) Balances(ctx context.Context, participantId string) ([]models.CoinBalance, error) {
	addr := participantAccount(participantId)
	acct, err := s.getAccount(ctx, addr)
	if err != nil {
		return nil, err
	}
	if acct == nil {
		return nil, nil
	}

	updatedAt := time.Now()
	if acct.UpdatedAt != nil {
		updatedAt = *acct.UpdatedAt
	} else if acct.FirstUsage != nil {
		updatedAt = *acct.FirstUsage
	}

	var balances []models.CoinBalance
	for fAsset := range acct.Volumes {
		bal := volumeBalance(acct.Volumes, fAsset)
		if bal == nil {
			continue
		}
		currency := assetSymbol(fAsset)
		balances = append(balances, models.CoinBalance{
			Id:            addr,
			ParticipantId: participantId,
			Currency:      currency,
			Balance:       bigIntToDecimal(bal, currency),
			UpdatedAt:     updatedAt,
		})
	}
	return balances, nil
}

// getAccount fetches an account with its volumes. A missing account yields nil without error.
func (s *Service) getAccount(ctx context.Context, address string) (*shared.V2Account, error) {
	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: address,
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get account %s: %w", address, err)
	}
	acct := resp.V2AccountResponse.Data
	return &acct, nil
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, fAsset string) *big.Int {
	vol, ok := vols[fAsset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}

// bigIntToDecimal converts a *big.Int in smallest-unit to a human-readable decimal.
func bigIntToDecimal(raw *big.Int, currency string) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -int32(precisionFor(currency)))
}
