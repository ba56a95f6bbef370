package formance

import (
	"context"
	"errors"
	"testing"

	"iamblessed-funnel-go/internal/models"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/sdkerrors"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
)

// ---------- Unit tests for pure helpers (no Formance stack needed) ----------

func TestFormanceAsset(t *testing.T) {
	tests := []struct {
		currency string
		want     string
	}{
		{models.CurrencyCoins, "COIN/0"},
		{models.CurrencyCredits, "USD/2"},
		{"UNKNOWN", "UNKNOWN/2"}, // default precision
	}
	for _, tt := range tests {
		if got := formanceAsset(tt.currency); got != tt.want {
			t.Errorf("formanceAsset(%q) = %q, want %q", tt.currency, got, tt.want)
		}
	}
}

func TestAssetSymbol(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"COIN/0", "COIN"},
		{"USD/2", "USD"},
		{"PLAIN", "PLAIN"},
	}
	for _, tt := range tests {
		if got := assetSymbol(tt.input); got != tt.want {
			t.Errorf("assetSymbol(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestBigIntToDecimal(t *testing.T) {
	// 1234 cents = 12.34 USD
	result := bigIntToDecimal(decimal.NewFromInt(1234).BigInt(), models.CurrencyCredits)
	if !result.Equal(decimal.RequireFromString("12.34")) {
		t.Errorf("expected 12.34, got %s", result.String())
	}

	// coins have no fractional part
	result = bigIntToDecimal(decimal.NewFromInt(75).BigInt(), models.CurrencyCoins)
	if !result.Equal(decimal.NewFromInt(75)) {
		t.Errorf("expected 75, got %s", result.String())
	}

	if !bigIntToDecimal(nil, models.CurrencyCoins).IsZero() {
		t.Error("expected nil to convert to zero")
	}
}

func TestAccountSegment(t *testing.T) {
	tests := []struct {
		reason string
		want   string
	}{
		{"Sticker Pack", "sticker_pack"},
		{"joy-key #4", "joy_key_4"},
		{"", "general"},
		{"!!!", "general"},
	}
	for _, tt := range tests {
		if got := accountSegment(tt.reason); got != tt.want {
			t.Errorf("accountSegment(%q) = %q, want %q", tt.reason, got, tt.want)
		}
	}
}

func TestErrorCodeHelpers(t *testing.T) {
	if isConflictError(nil) {
		t.Error("nil should not be a conflict error")
	}

	conflict := &sdkerrors.V2ErrorResponse{ErrorCode: shared.V2ErrorsEnumConflict}
	if !isConflictError(conflict) {
		t.Error("expected conflict to be detected")
	}
	if isNotFoundError(conflict) {
		t.Error("conflict should not be not-found")
	}

	wrapped := errors.Join(errors.New("context"), &sdkerrors.V2ErrorResponse{ErrorCode: shared.V2ErrorsEnumInsufficientFund})
	if !isInsufficientFundError(wrapped) {
		t.Error("expected wrapped insufficient fund to be detected")
	}
}

func TestAttributionMetadata(t *testing.T) {
	if meta := attributionMetadata(context.Background()); meta != nil {
		t.Errorf("expected nil metadata without attribution, got %v", meta)
	}

	ctx := models.WithAttribution(context.Background(), &models.Attribution{Variant: "b", ReferralCode: "ABCD2345"})
	meta := attributionMetadata(ctx)
	if meta["variant"] != "b" || meta["referral_code"] != "ABCD2345" {
		t.Errorf("unexpected metadata: %v", meta)
	}
	if _, ok := meta["campaign"]; ok {
		t.Error("empty fields should be omitted")
	}
}

func TestIsPlatformAccount(t *testing.T) {
	if !isPlatformAccount("world") || !isPlatformAccount("platform:spent:general") {
		t.Error("expected platform accounts")
	}
	if isPlatformAccount("participants:p1") {
		t.Error("participant wallet is not a platform account")
	}
}
