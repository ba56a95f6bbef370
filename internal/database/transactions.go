package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProcessTransactionParams contains the parameters for processing a transaction.
// Amount is signed: positive for credits, negative for debits.
type ProcessTransactionParams struct {
	ParticipantId  string
	Currency       string
	Kind           string
	Amount         decimal.Decimal
	ExternalRef    string
	Reason         string
	AllowOverdraft bool
}

type journalEntry struct {
	accountType  string
	accountId    string
	debitAmount  decimal.Decimal
	creditAmount decimal.Decimal
}

// ProcessTransaction atomically updates balance and records transaction
func (s *SubledgerService) ProcessTransaction(ctx context.Context, params ProcessTransactionParams) (*models.CoinTransaction, error) {

	zap.L().Info("Processing coin transaction",
		zap.String("participant_id", params.ParticipantId),
		zap.String("currency", params.Currency),
		zap.String("kind", params.Kind),
		zap.String("amount", params.Amount.String()),
		zap.String("external_ref", params.ExternalRef))

	// Check for duplicate external reference
	if params.ExternalRef != "" {
		var existingTxId string
		err := s.db.QueryRowContext(ctx, queryCheckDuplicateTransaction, params.ExternalRef).Scan(&existingTxId)
		if err == nil {
			zap.L().Debug("Duplicate external reference, skipping",
				zap.String("external_ref", params.ExternalRef),
				zap.String("existing_tx_id", existingTxId))
			return nil, fmt.Errorf("%w: external_ref %s already exists", store.ErrDuplicate, params.ExternalRef)
		} else if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("failed to check for duplicate transaction: %w", err)
		}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var currentBalanceStr string
	var accountId string
	var version int64

	err = tx.QueryRowContext(ctx, queryGetAccountBalance, params.ParticipantId, params.Currency).Scan(&accountId, &currentBalanceStr, &version)

	var currentBalance decimal.Decimal
	if errors.Is(err, sql.ErrNoRows) {
		accountId = uuid.New().String()
		currentBalance = decimal.Zero
		version = 1

		_, err = tx.ExecContext(ctx, queryInsertAccountBalance, accountId, params.ParticipantId, params.Currency, "0", 1)
		if err != nil {
			return nil, fmt.Errorf("failed to create coin balance: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to get current balance: %w", err)
	} else {
		currentBalance, err = decimal.NewFromString(currentBalanceStr)
		if err != nil {
			return nil, fmt.Errorf("failed to parse current balance '%s': %w", currentBalanceStr, err)
		}
	}

	newBalance := currentBalance.Add(params.Amount)
	if newBalance.IsNegative() && !params.AllowOverdraft {
		return nil, fmt.Errorf("%w: balance %s, requested %s", store.ErrInsufficientFunds, currentBalance.String(), params.Amount.Abs().String())
	}

	transactionId := uuid.New().String()
	now := time.Now().UTC()
	transaction := &models.CoinTransaction{}

	var amountStr, balanceBeforeStr, balanceAfterStr string
	err = tx.QueryRowContext(ctx, queryInsertTransaction,
		transactionId, params.ParticipantId, params.Currency, params.Kind,
		params.Amount.String(), currentBalance.String(), newBalance.String(),
		params.ExternalRef, params.Reason, "confirmed", now).
		Scan(&transaction.Id, &transaction.ParticipantId, &transaction.Currency, &transaction.Kind,
			&amountStr, &balanceBeforeStr, &balanceAfterStr,
			&transaction.ExternalRef, &transaction.Reason, &transaction.Status, &transaction.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to insert transaction: %w", err)
	}

	if transaction.Amount, err = decimal.NewFromString(amountStr); err != nil {
		return nil, fmt.Errorf("failed to parse returned amount: %w", err)
	}
	if transaction.BalanceBefore, err = decimal.NewFromString(balanceBeforeStr); err != nil {
		return nil, fmt.Errorf("failed to parse returned balance_before: %w", err)
	}
	if transaction.BalanceAfter, err = decimal.NewFromString(balanceAfterStr); err != nil {
		return nil, fmt.Errorf("failed to parse returned balance_after: %w", err)
	}

	// Optimistic locking on the version read above
	result, err := tx.ExecContext(ctx, queryUpdateAccountBalance, newBalance.String(), transactionId, now, params.ParticipantId, params.Currency, version)
	if err != nil {
		return nil, fmt.Errorf("failed to update balance: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return nil, fmt.Errorf("balance update failed - %w", store.ErrConcurrentModification)
	}

	if err := s.addJournalEntries(ctx, tx, transaction); err != nil {
		return nil, fmt.Errorf("failed to add journal entries: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	zap.L().Info("Coin transaction processed",
		zap.String("transaction_id", transactionId),
		zap.String("participant_id", params.ParticipantId),
		zap.String("currency", params.Currency),
		zap.String("old_balance", currentBalance.String()),
		zap.String("new_balance", newBalance.String()))

	return transaction, nil
}

// addJournalEntries creates double-entry bookkeeping entries.
// Credits move value from platform issuance into the participant wallet,
// debits move it from the wallet into platform redemptions.
func (s *SubledgerService) addJournalEntries(ctx context.Context, tx *sql.Tx, transaction *models.CoinTransaction) error {
	wallet := fmt.Sprintf("%s_%s", transaction.ParticipantId, transaction.Currency)

	var entries []journalEntry
	switch transaction.Kind {
	case KindCredit:
		entries = []journalEntry{
			{"participant_wallet", wallet, transaction.Amount, decimal.Zero},
			{"platform_issuance", fmt.Sprintf("issued_%s", transaction.Currency), decimal.Zero, transaction.Amount},
		}
	case KindDebit:
		entries = []journalEntry{
			{"participant_wallet", wallet, decimal.Zero, transaction.Amount.Neg()},
			{"platform_redemption", fmt.Sprintf("redeemed_%s", transaction.Currency), transaction.Amount.Neg(), decimal.Zero},
		}
	}

	for _, entry := range entries {
		_, err := tx.ExecContext(ctx, queryInsertJournalEntry,
			uuid.New().String(), transaction.Id, entry.accountType, entry.accountId, entry.debitAmount.String(), entry.creditAmount.String())
		if err != nil {
			return err
		}
	}

	return nil
}

// GetTransactionHistory returns paginated history for a participant. An empty currency lists all currencies.
func (s *SubledgerService) GetTransactionHistory(ctx context.Context, participantId, currency string, limit, offset int) ([]models.CoinTransaction, error) {
	zap.L().Debug("Getting transaction history",
		zap.String("participant_id", participantId),
		zap.String("currency", currency),
		zap.Int("limit", limit),
		zap.Int("offset", offset))

	rows, err := s.db.QueryContext(ctx, queryGetTransactionHistory, participantId, currency, currency, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get transaction history: %w", err)
	}
	defer func(rows *sql.Rows) {
		if err := rows.Close(); err != nil {
			zap.L().Warn("Failed to close rows", zap.Error(err))
		}
	}(rows)

	var transactions []models.CoinTransaction
	for rows.Next() {
		var tx models.CoinTransaction
		var amountStr, balanceBeforeStr, balanceAfterStr string
		err := rows.Scan(&tx.Id, &tx.ParticipantId, &tx.Currency, &tx.Kind,
			&amountStr, &balanceBeforeStr, &balanceAfterStr,
			&tx.ExternalRef, &tx.Reason, &tx.Status, &tx.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}

		if tx.Amount, err = decimal.NewFromString(amountStr); err != nil {
			return nil, fmt.Errorf("failed to parse amount '%s': %w", amountStr, err)
		}
		if tx.BalanceBefore, err = decimal.NewFromString(balanceBeforeStr); err != nil {
			return nil, fmt.Errorf("failed to parse balance before '%s': %w", balanceBeforeStr, err)
		}
		if tx.BalanceAfter, err = decimal.NewFromString(balanceAfterStr); err != nil {
			return nil, fmt.Errorf("failed to parse balance after '%s': %w", balanceAfterStr, err)
		}

		transactions = append(transactions, tx)
	}

	if err := rows.Err(); err != nil {
		zap.L().Error("Error during transaction row iteration", zap.Error(err))
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}

	return transactions, nil
}
