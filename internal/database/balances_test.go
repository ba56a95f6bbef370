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

func setupServiceTestDB(t *testing.T) (*Service, func()) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	service := newServiceWithDB(db)
	if err := service.initSchema(context.Background(), false); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	cleanup := func() {
		db.Close()
	}

	return service, cleanup
}

func TestBalance_NoBalance(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	balance, err := service.Balance(context.Background(), "p1", models.CurrencyCoins)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}

	if !balance.Equal(decimal.Zero) {
		t.Errorf("Expected balance 0, got %s", balance.String())
	}
}

func TestCreditDebit(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()

	_, err := service.Credit(ctx, store.CoinEntryParams{ParticipantId: "p1", Currency: models.CurrencyCoins, Amount: decimal.NewFromInt(250), ExternalRef: "purchase:cs_1"})
	if err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	tx, err := service.Debit(ctx, store.CoinEntryParams{ParticipantId: "p1", Currency: models.CurrencyCoins, Amount: decimal.NewFromInt(100), ExternalRef: "redeem:1", Reason: "sticker pack"})
	if err != nil {
		t.Fatalf("Debit failed: %v", err)
	}
	if tx.Kind != KindDebit {
		t.Errorf("Expected kind debit, got %s", tx.Kind)
	}
	if !tx.Amount.Equal(decimal.NewFromInt(-100)) {
		t.Errorf("Expected stored amount -100, got %s", tx.Amount.String())
	}

	balance, err := service.Balance(ctx, "p1", models.CurrencyCoins)
	if err != nil {
		t.Fatalf("Balance failed: %v", err)
	}
	if !balance.Equal(decimal.NewFromInt(150)) {
		t.Errorf("Expected balance 150, got %s", balance.String())
	}

	if err := service.Reconcile(ctx, "p1", models.CurrencyCoins); err != nil {
		t.Errorf("Reconcile failed: %v", err)
	}
}

func TestCredit_Validation(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	tests := []struct {
		name   string
		params store.CoinEntryParams
	}{
		{"empty participant", store.CoinEntryParams{Currency: models.CurrencyCoins, Amount: decimal.NewFromInt(1)}},
		{"unknown currency", store.CoinEntryParams{ParticipantId: "p1", Currency: "BTC", Amount: decimal.NewFromInt(1)}},
		{"zero amount", store.CoinEntryParams{ParticipantId: "p1", Currency: models.CurrencyCoins, Amount: decimal.Zero}},
		{"negative amount", store.CoinEntryParams{ParticipantId: "p1", Currency: models.CurrencyCoins, Amount: decimal.NewFromInt(-3)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := service.Credit(ctx, tt.params); err == nil {
				t.Errorf("Expected validation error")
			}
		})
	}
}

func TestBalances(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()

	if _, err := service.Credit(ctx, store.CoinEntryParams{ParticipantId: "p1", Currency: models.CurrencyCoins, Amount: decimal.NewFromInt(10), ExternalRef: "tx1"}); err != nil {
		t.Fatalf("Failed to credit coins: %v", err)
	}
	if _, err := service.Credit(ctx, store.CoinEntryParams{ParticipantId: "p1", Currency: models.CurrencyCredits, Amount: decimal.RequireFromString("6.6"), ExternalRef: "tx2"}); err != nil {
		t.Fatalf("Failed to credit USD: %v", err)
	}

	balances, err := service.Balances(ctx, "p1")
	if err != nil {
		t.Fatalf("Balances failed: %v", err)
	}
	if len(balances) != 2 {
		t.Fatalf("Expected 2 balances, got %d", len(balances))
	}

	found := make(map[string]decimal.Decimal)
	for _, balance := range balances {
		found[balance.Currency] = balance.Balance
	}
	if !found[models.CurrencyCoins].Equal(decimal.NewFromInt(10)) {
		t.Errorf("Expected COIN balance 10, got %s", found[models.CurrencyCoins].String())
	}
	if !found[models.CurrencyCredits].Equal(decimal.RequireFromString("6.6")) {
		t.Errorf("Expected USD balance 6.6, got %s", found[models.CurrencyCredits].String())
	}
}

func TestReconcile_Mismatch(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if _, err := service.Credit(ctx, store.CoinEntryParams{ParticipantId: "p1", Currency: models.CurrencyCoins, Amount: decimal.NewFromInt(10), ExternalRef: "tx1"}); err != nil {
		t.Fatalf("Credit failed: %v", err)
	}

	if _, err := service.db.Exec(`UPDATE coin_balances SET balance = 99 WHERE participant_id = 'p1'`); err != nil {
		t.Fatalf("Failed to tamper balance: %v", err)
	}

	err := service.Reconcile(ctx, "p1", models.CurrencyCoins)
	if !errors.Is(err, store.ErrBalanceMismatch) {
		t.Errorf("Expected balance mismatch, got %v", err)
	}
}

func TestReconcile_NoWallet(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	if err := service.Reconcile(context.Background(), "nobody", models.CurrencyCredits); err != nil {
		t.Errorf("Expected empty wallet to reconcile, got %v", err)
	}
}

func TestOutstanding(t *testing.T) {
	service, cleanup := setupServiceTestDB(t)
	defer cleanup()

	ctx := context.Background()
	entries := []store.CoinEntryParams{
		{ParticipantId: "p1", Currency: models.CurrencyCoins, Amount: decimal.NewFromInt(50), ExternalRef: "signup:p1"},
		{ParticipantId: "p2", Currency: models.CurrencyCoins, Amount: decimal.NewFromInt(75), ExternalRef: "signup:p2"},
		{ParticipantId: "p1", Currency: models.CurrencyCredits, Amount: decimal.RequireFromString("3.3"), ExternalRef: "commission:r1"},
	}
	for _, e := range entries {
		if _, err := service.Credit(ctx, e); err != nil {
			t.Fatalf("Credit failed: %v", err)
		}
	}
	// a fully spent wallet is not counted as a holder
	if _, err := service.Debit(ctx, store.CoinEntryParams{ParticipantId: "p2", Currency: models.CurrencyCoins, Amount: decimal.NewFromInt(75), ExternalRef: "redeem:p2"}); err != nil {
		t.Fatalf("Debit failed: %v", err)
	}

	totals, err := service.subledger.Outstanding(ctx)
	if err != nil {
		t.Fatalf("Outstanding failed: %v", err)
	}
	if len(totals) != 2 {
		t.Fatalf("Expected 2 currencies, got %+v", totals)
	}
	if totals[0].Currency != models.CurrencyCoins || !totals[0].Total.Equal(decimal.NewFromInt(50)) || totals[0].Holders != 1 {
		t.Errorf("Unexpected coin total %+v", totals[0])
	}
	if totals[1].Currency != models.CurrencyCredits || !totals[1].Total.Equal(decimal.RequireFromString("3.3")) || totals[1].Holders != 1 {
		t.Errorf("Unexpected credit total %+v", totals[1])
	}
}
