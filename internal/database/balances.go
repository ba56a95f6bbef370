package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// parseAmount reads a sqlite REAL column scanned as text
func parseAmount(column, raw string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse %s '%s': %w", column, raw, err)
	}
	return d, nil
}

// GetBalance returns the hot wallet balance. A participant who never earned
// in the currency has a zero balance.
func (s *SubledgerService) GetBalance(ctx context.Context, participantId, currency string) (decimal.Decimal, error) {
	var raw string
	err := s.db.QueryRowContext(ctx, queryGetBalance, participantId, currency).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return decimal.Zero, nil
	}
	if err != nil {
		zap.L().Error("Failed to read wallet",
			zap.String("participant_id", participantId),
			zap.String("currency", currency),
			zap.Error(err))
		return decimal.Zero, fmt.Errorf("failed to get %s balance: %w", currency, err)
	}
	return parseAmount("balance", raw)
}

func scanCoinBalance(row rowScanner) (models.CoinBalance, error) {
	var b models.CoinBalance
	var raw string
	if err := row.Scan(&b.Id, &b.ParticipantId, &b.Currency, &raw, &b.LastTransactionId, &b.Version, &b.UpdatedAt); err != nil {
		return b, fmt.Errorf("failed to scan wallet: %w", err)
	}
	var err error
	b.Balance, err = parseAmount("balance", raw)
	return b, err
}

// GetAllBalances returns the coin and credit wallets of a participant, ordered by currency.
func (s *SubledgerService) GetAllBalances(ctx context.Context, participantId string) ([]models.CoinBalance, error) {
	rows, err := s.db.QueryContext(ctx, queryGetAllParticipantBalances, participantId)
	if err != nil {
		return nil, fmt.Errorf("failed to list wallets: %w", err)
	}
	defer closeRows(rows)

	var wallets []models.CoinBalance
	for rows.Next() {
		b, err := scanCoinBalance(rows)
		if err != nil {
			return nil, err
		}
		wallets = append(wallets, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallets: %w", err)
	}
	return wallets, nil
}

// Outstanding totals the coins and credits held across all participants.
// Credits outstanding are the USD the funnel owes affiliates and clippers.
func (s *SubledgerService) Outstanding(ctx context.Context) ([]models.CurrencyTotal, error) {
	rows, err := s.db.QueryContext(ctx, queryOutstandingBalances)
	if err != nil {
		return nil, fmt.Errorf("failed to total wallets: %w", err)
	}
	defer closeRows(rows)

	totals := []models.CurrencyTotal{}
	for rows.Next() {
		var t models.CurrencyTotal
		var raw string
		if err := rows.Scan(&t.Currency, &raw, &t.Holders); err != nil {
			return nil, fmt.Errorf("failed to scan wallet total: %w", err)
		}
		if t.Total, err = parseAmount("total", raw); err != nil {
			return nil, err
		}
		totals = append(totals, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wallet totals: %w", err)
	}
	return totals, nil
}

// ReconcileBalance checks the hot balance against the sum of confirmed
// transactions. A difference wraps store.ErrBalanceMismatch.
func (s *SubledgerService) ReconcileBalance(ctx context.Context, participantId, currency string) error {
	var hotRaw, sumRaw string
	err := s.db.QueryRowContext(ctx, queryReconcileBalance, participantId, currency, participantId, currency).Scan(&hotRaw, &sumRaw)
	if err != nil {
		return fmt.Errorf("failed to reconcile %s wallet: %w", currency, err)
	}
	hot, err := parseAmount("balance", hotRaw)
	if err != nil {
		return err
	}
	sum, err := parseAmount("transaction sum", sumRaw)
	if err != nil {
		return err
	}

	if !hot.Equal(sum) {
		zap.L().Error("Wallet out of balance",
			zap.String("participant_id", participantId),
			zap.String("currency", currency),
			zap.String("balance", hot.String()),
			zap.String("transactions", sum.String()),
			zap.String("difference", hot.Sub(sum).String()))
		return fmt.Errorf("%w: %s %s wallet holds %s, transactions sum to %s",
			store.ErrBalanceMismatch, participantId, currency, hot, sum)
	}

	zap.L().Debug("Wallet reconciled",
		zap.String("participant_id", participantId),
		zap.String("currency", currency),
		zap.String("balance", hot.String()))
	return nil
}
