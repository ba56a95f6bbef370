package database

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
)

func setupTestDb(t *testing.T) (*SubledgerService, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	service := NewSubledgerService(db)
	if err := service.InitSchema(); err != nil {
		t.Fatalf("Failed to create test schema: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return service, cleanup
}

func TestProcessTransaction_Credit(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	amount := decimal.NewFromInt(50)

	result, err := service.ProcessTransaction(ctx, ProcessTransactionParams{
		ParticipantId: "p1",
		Currency:      models.CurrencyCoins,
		Kind:          KindCredit,
		Amount:        amount,
		ExternalRef:   "signup:p1",
		Reason:        "signup",
	})
	if err != nil {
		t.Fatalf("ProcessTransaction failed: %v", err)
	}

	if result.ParticipantId != "p1" {
		t.Errorf("Expected participant p1, got %s", result.ParticipantId)
	}
	if result.Currency != models.CurrencyCoins {
		t.Errorf("Expected currency %s, got %s", models.CurrencyCoins, result.Currency)
	}
	if !result.Amount.Equal(amount) {
		t.Errorf("Expected amount %s, got %s", amount.String(), result.Amount.String())
	}
	if !result.BalanceBefore.IsZero() {
		t.Errorf("Expected balance before 0, got %s", result.BalanceBefore.String())
	}
	if !result.BalanceAfter.Equal(amount) {
		t.Errorf("Expected balance %s, got %s", amount.String(), result.BalanceAfter.String())
	}
}

func TestProcessTransaction_Debit(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	_, err := service.ProcessTransaction(ctx, ProcessTransactionParams{"p1", models.CurrencyCoins, KindCredit, decimal.NewFromInt(100), "tx1", "", false})
	if err != nil {
		t.Fatalf("Initial credit failed: %v", err)
	}

	result, err := service.ProcessTransaction(ctx, ProcessTransactionParams{"p1", models.CurrencyCoins, KindDebit, decimal.NewFromInt(-40), "tx2", "redeem", false})
	if err != nil {
		t.Fatalf("ProcessTransaction debit failed: %v", err)
	}

	expectedBalance := decimal.NewFromInt(60)
	if !result.BalanceAfter.Equal(expectedBalance) {
		t.Errorf("Expected balance %s, got %s", expectedBalance.String(), result.BalanceAfter.String())
	}
}

func TestProcessTransaction_DuplicateHandling(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	params := ProcessTransactionParams{"p1", models.CurrencyCoins, KindCredit, decimal.NewFromInt(10), "share:p1:abc", "share", false}

	if _, err := service.ProcessTransaction(ctx, params); err != nil {
		t.Fatalf("First ProcessTransaction failed: %v", err)
	}

	_, err := service.ProcessTransaction(ctx, params)
	if err == nil {
		t.Fatalf("Expected duplicate transaction error, got nil")
	}
	if !errors.Is(err, store.ErrDuplicate) {
		t.Errorf("Expected duplicate error, got: %v", err)
	}

	balance, err := service.GetBalance(ctx, "p1", models.CurrencyCoins)
	if err != nil {
		t.Fatalf("GetBalance failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected balance 10 after duplicate, got %s", balance.String())
	}
}

func TestProcessTransaction_InsufficientFunds(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()

	_, err := service.ProcessTransaction(ctx, ProcessTransactionParams{"p1", models.CurrencyCoins, KindDebit, decimal.NewFromInt(-1), "tx1", "", false})
	if !errors.Is(err, store.ErrInsufficientFunds) {
		t.Fatalf("Expected insufficient funds, got %v", err)
	}

	history, err := service.GetTransactionHistory(ctx, "p1", models.CurrencyCoins, 10, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(history) != 0 {
		t.Errorf("Expected no transactions after rejected debit, got %d", len(history))
	}
}

func TestProcessTransaction_OverdraftAllowed(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	amount := decimal.NewFromInt(-5)

	result, err := service.ProcessTransaction(ctx, ProcessTransactionParams{"p1", models.CurrencyCredits, KindDebit, amount, "clawback:1", "refund", true})
	if err != nil {
		t.Fatalf("ProcessTransaction with overdraft failed: %v", err)
	}
	if !result.BalanceAfter.Equal(amount) {
		t.Errorf("Expected negative balance %s, got %s", amount.String(), result.BalanceAfter.String())
	}
}

func TestProcessTransaction_JournalEntriesBalance(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	tx, err := service.ProcessTransaction(ctx, ProcessTransactionParams{"p1", models.CurrencyCoins, KindCredit, decimal.NewFromInt(25), "tx1", "", false})
	if err != nil {
		t.Fatalf("ProcessTransaction failed: %v", err)
	}

	var debits, credits float64
	err = service.db.QueryRow(`SELECT SUM(debit_amount), SUM(credit_amount) FROM journal_entries WHERE transaction_id = ?`, tx.Id).
		Scan(&debits, &credits)
	if err != nil {
		t.Fatalf("Failed to sum journal entries: %v", err)
	}
	if debits != 25 || credits != 25 {
		t.Errorf("Expected balanced journal 25/25, got %v/%v", debits, credits)
	}
}

func TestGetTransactionHistory_AllCurrencies(t *testing.T) {
	service, cleanup := setupTestDb(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.ProcessTransaction(ctx, ProcessTransactionParams{"p1", models.CurrencyCoins, KindCredit, decimal.NewFromInt(5), "a", "", false}); err != nil {
		t.Fatalf("credit coins failed: %v", err)
	}
	if _, err := service.ProcessTransaction(ctx, ProcessTransactionParams{"p1", models.CurrencyCredits, KindCredit, decimal.NewFromInt(3), "b", "", false}); err != nil {
		t.Fatalf("credit USD failed: %v", err)
	}

	all, err := service.GetTransactionHistory(ctx, "p1", "", 10, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(all) != 2 {
		t.Errorf("Expected 2 transactions, got %d", len(all))
	}

	coins, err := service.GetTransactionHistory(ctx, "p1", models.CurrencyCoins, 10, 0)
	if err != nil {
		t.Fatalf("GetTransactionHistory failed: %v", err)
	}
	if len(coins) != 1 {
		t.Errorf("Expected 1 coin transaction, got %d", len(coins))
	}
}
