package formance

import (
	"context"
	"fmt"
	"strings"
	"time"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Numscript templates. Metadata is set inside the script so every Formance
// transaction is self-describing.

const numscriptCredit = `vars {
  asset $asset
  number $amount
  account $participant_id
  string $external_ref
  string $reason
  string $amount_human
}

send [$asset $amount] (
  source = @world
  destination = @participants:$participant_id
)

set_tx_meta("event_type", "credit")
set_tx_meta("external_ref", $external_ref)
set_tx_meta("reason", $reason)
set_tx_meta("amount_human", $amount_human)
`

const numscriptDebit = `vars {
  asset $asset
  number $amount
  account $participant_id
  account $bucket
  string $external_ref
  string $reason
  string $amount_human
}

send [$asset $amount] (
  source = @participants:$participant_id
  destination = @platform:spent:$bucket
)

set_tx_meta("event_type", "debit")
set_tx_meta("external_ref", $external_ref)
set_tx_meta("reason", $reason)
set_tx_meta("amount_human", $amount_human)
`

// numscriptDebitOverdraft is used for clawbacks that may take a wallet negative.
const numscriptDebitOverdraft = `vars {
  asset $asset
  number $amount
  account $participant_id
  account $bucket
  string $external_ref
  string $reason
  string $amount_human
}

send [$asset $amount] (
  source = @participants:$participant_id allowing unbounded overdraft
  destination = @platform:spent:$bucket
)

set_tx_meta("event_type", "debit")
set_tx_meta("external_ref", $external_ref)
set_tx_meta("reason", $reason)
set_tx_meta("amount_human", $amount_human)
`

func (s *Service) Credit(ctx context.Context, params store.CoinEntryParams) (*models.CoinTransaction, error) {
	return s.post(ctx, params, "credit", numscriptCredit, nil)
}

func (s *Service) Debit(ctx context.Context, params store.CoinEntryParams) (*models.CoinTransaction, error) {
	script := numscriptDebit
	if params.AllowOverdraft {
		script = numscriptDebitOverdraft
	}
	return s.post(ctx, params, "debit", script, map[string]string{"bucket": accountSegment(params.Reason)})
}

func (s *Service) post(ctx context.Context, params store.CoinEntryParams, kind, script string, extraVars map[string]string) (*models.CoinTransaction, error) {
	if params.ParticipantId == "" {
		return nil, fmt.Errorf("participant id cannot be empty")
	}
	if _, ok := currencyPrecision[params.Currency]; !ok {
		return nil, fmt.Errorf("unsupported currency %q", params.Currency)
	}
	if !params.Amount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive, got %s", params.Amount.String())
	}

	p := int32(precisionFor(params.Currency))
	if !params.Amount.Shift(p).Equal(params.Amount.Shift(p).Truncate(0)) {
		return nil, fmt.Errorf("amount %s exceeds %s precision %d", params.Amount.String(), params.Currency, p)
	}

	vars := map[string]string{
		"asset":          formanceAsset(params.Currency),
		"amount":         params.Amount.Shift(p).BigInt().String(),
		"participant_id": params.ParticipantId,
		"external_ref":   params.ExternalRef,
		"reason":         params.Reason,
		"amount_human":   params.Amount.String(),
	}
	for k, v := range extraVars {
		vars[k] = v
	}

	now := time.Now().UTC()
	postTx := shared.V2PostTransaction{
		Script: &shared.V2PostTransactionScript{
			Plain: script,
			Vars:  vars,
		},
		Metadata: attributionMetadata(ctx),
	}
	if params.ExternalRef != "" {
		postTx.Reference = strPtr(params.ExternalRef)
	}

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			return nil, fmt.Errorf("%w: reference %s already exists", store.ErrDuplicate, params.ExternalRef)
		}
		if isInsufficientFundError(err) {
			return nil, fmt.Errorf("%w: %s %s", store.ErrInsufficientFunds, params.Amount.String(), params.Currency)
		}
		return nil, fmt.Errorf("error recording %s: %w", kind, err)
	}

	zap.L().Info("Coin transaction recorded in Formance",
		zap.String("participant_id", params.ParticipantId),
		zap.String("kind", kind),
		zap.String("currency", params.Currency),
		zap.String("amount", params.Amount.String()),
		zap.String("external_ref", params.ExternalRef))

	amount := params.Amount
	if kind == "debit" {
		amount = amount.Neg()
	}
	return &models.CoinTransaction{
		Id:            params.ExternalRef,
		ParticipantId: params.ParticipantId,
		Currency:      params.Currency,
		Kind:          kind,
		Amount:        amount,
		ExternalRef:   params.ExternalRef,
		Reason:        params.Reason,
		Status:        "confirmed",
		CreatedAt:     now,
	}, nil
}

// attributionMetadata copies funnel attribution from the context into transaction metadata.
func attributionMetadata(ctx context.Context) map[string]string {
	a := models.GetAttribution(ctx)
	if a == nil {
		return nil
	}
	meta := map[string]string{}
	if a.Campaign != "" {
		meta["campaign"] = a.Campaign
	}
	if a.Variant != "" {
		meta["variant"] = a.Variant
	}
	if a.ReferralCode != "" {
		meta["referral_code"] = a.ReferralCode
	}
	if a.Source != "" {
		meta["source"] = a.Source
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

// History returns paginated history for a participant. An empty currency lists all currencies.
func (s *Service) History(ctx context.Context, participantId, currency string, limit, offset int) ([]models.CoinTransaction, error) {
	addr := participantAccount(participantId)
	pageSize := int64(limit + offset)

	resp, err := s.client.Ledger.V2.ListTransactions(ctx, operations.V2ListTransactionsRequest{
		Ledger:   s.ledger,
		PageSize: &pageSize,
		RequestBody: map[string]any{
			"$or": []any{
				map[string]any{"$match": map[string]any{"source": addr}},
				map[string]any{"$match": map[string]any{"destination": addr}},
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	var result []models.CoinTransaction
	skipped := 0
	for _, tx := range resp.V2TransactionsCursorResponse.Cursor.Data {
		for _, p := range tx.Postings {
			symbol := assetSymbol(p.Asset)
			if currency != "" && symbol != currency {
				continue
			}

			amt := decimal.NewFromBigInt(p.Amount, -int32(precisionFor(symbol)))
			kind := "credit"
			switch {
			case p.Source == addr:
				amt = amt.Neg()
				kind = "debit"
			case p.Destination != addr:
				continue
			}

			if skipped < offset {
				skipped++
				continue
			}

			ref := ""
			if tx.Reference != nil {
				ref = *tx.Reference
			}
			status := "confirmed"
			if tx.Reverted {
				status = "reverted"
			}

			result = append(result, models.CoinTransaction{
				Id:            tx.ID.String(),
				ParticipantId: participantId,
				Currency:      symbol,
				Kind:          kind,
				Amount:        amt,
				ExternalRef:   ref,
				Reason:        tx.Metadata["reason"],
				Status:        status,
				CreatedAt:     tx.Timestamp,
			})
		}
		if len(result) >= limit {
			break
		}
	}
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Reconcile is a no-op in Formance; balances are consistent by construction.
func (s *Service) Reconcile(ctx context.Context, participantId, currency string) error {
	zap.L().Info("Reconciliation is a no-op in Formance (consistent by construction)",
		zap.String("participant_id", participantId), zap.String("currency", currency))
	return nil
}

// isPlatformAccount reports whether an address belongs to the platform side of the books.
func isPlatformAccount(address string) bool {
	return address == "world" || strings.HasPrefix(address, "platform:")
}
