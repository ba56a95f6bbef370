package tiers

import (
	"testing"

	"github.com/shopspring/decimal"
)

func d(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestLookup(t *testing.T) {
	l := DefaultAffiliate()

	tests := []struct {
		metric string
		want   string
		found  bool
	}{
		{"0", "Seed", true},
		{"2", "Seed", true},
		{"3", "Sprout", true},
		{"24", "Bloom", true},
		{"50", "Legacy", true},
		{"500", "Legacy", true},
	}
	for _, tt := range tests {
		got, ok := l.Lookup(d(tt.metric))
		if ok != tt.found || got.Name != tt.want {
			t.Errorf("Lookup(%s) = %q/%v, want %q/%v", tt.metric, got.Name, ok, tt.want, tt.found)
		}
	}
}

func TestLookupBelowFirstTier(t *testing.T) {
	l, err := NewLadder("test", []Tier{
		{Name: "Bronze", Threshold: d("10")},
		{Name: "Silver", Threshold: d("20")},
	})
	if err != nil {
		t.Fatalf("NewLadder failed: %v", err)
	}
	if _, ok := l.Lookup(d("9.99")); ok {
		t.Error("expected no tier below the first threshold")
	}

	p := l.Progress(d("5"))
	if p.Current != "" || p.Next != "Bronze" {
		t.Errorf("unexpected progress %+v", p)
	}
	if !p.Percent.Equal(d("50")) {
		t.Errorf("expected 50%%, got %s", p.Percent)
	}
	if !p.Remaining.Equal(d("5")) {
		t.Errorf("expected remaining 5, got %s", p.Remaining)
	}
}

func TestProgressInterpolates(t *testing.T) {
	l := DefaultClipper()

	p := l.Progress(d("30000"))
	if p.Current != "Rising" || p.Next != "Trending" {
		t.Fatalf("unexpected tiers %q -> %q", p.Current, p.Next)
	}
	// (30000-10000)/(50000-10000) = 50%
	if !p.Percent.Equal(d("50")) {
		t.Errorf("expected 50%%, got %s", p.Percent)
	}
	if !p.Remaining.Equal(d("20000")) {
		t.Errorf("expected remaining 20000, got %s", p.Remaining)
	}
}

func TestProgressTopTier(t *testing.T) {
	p := DefaultAffiliate().Progress(d("75"))
	if p.Current != "Legacy" || p.Next != "" {
		t.Errorf("unexpected tiers %q -> %q", p.Current, p.Next)
	}
	if !p.Percent.Equal(d("100")) {
		t.Errorf("expected 100%% at the top tier, got %s", p.Percent)
	}
	if !p.Remaining.IsZero() {
		t.Errorf("expected no remaining amount, got %s", p.Remaining)
	}
	if !p.Rate.Equal(d("0.30")) {
		t.Errorf("expected rate 0.30, got %s", p.Rate)
	}
}

func TestCrossed(t *testing.T) {
	l := DefaultAffiliate()

	crossed := l.Crossed(d("2"), d("3"))
	if len(crossed) != 1 || crossed[0].Name != "Sprout" {
		t.Errorf("expected Sprout to be crossed, got %+v", crossed)
	}
	if got := l.Crossed(d("3"), d("4")); len(got) != 0 {
		t.Errorf("expected nothing crossed, got %+v", got)
	}
	if got := l.Crossed(d("0"), d("60")); len(got) != 4 {
		t.Errorf("expected 4 tiers crossed, got %d", len(got))
	}
}

func TestNewLadderValidation(t *testing.T) {
	tests := []struct {
		name  string
		tiers []Tier
	}{
		{"empty", nil},
		{"missing name", []Tier{{Threshold: d("0")}}},
		{"negative", []Tier{{Name: "a", Threshold: d("-1")}}},
		{"duplicate threshold", []Tier{{Name: "a", Threshold: d("1")}, {Name: "b", Threshold: d("1")}}},
		{"decreasing", []Tier{{Name: "a", Threshold: d("5")}, {Name: "b", Threshold: d("1")}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewLadder("x", tt.tiers); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestParseOverridesOneLadder(t *testing.T) {
	data := []byte(`
affiliate:
  - name: Friend
    threshold: 0
    rate: 0.05
  - name: Champion
    threshold: 5
    reward: 20
    rate: 0.12
`)
	set, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	if len(set.Affiliate.Tiers) != 2 || set.Affiliate.Tiers[1].Name != "Champion" {
		t.Errorf("unexpected affiliate ladder: %+v", set.Affiliate.Tiers)
	}
	if !set.Affiliate.Tiers[1].Rate.Equal(d("0.12")) {
		t.Errorf("expected rate 0.12, got %s", set.Affiliate.Tiers[1].Rate)
	}
	if len(set.Clipper.Tiers) != len(DefaultClipper().Tiers) {
		t.Error("clipper ladder should keep its defaults")
	}
}

func TestParseRejectsUnorderedLadder(t *testing.T) {
	data := []byte(`
clipper:
  - name: Big
    threshold: 1000
  - name: Small
    threshold: 10
`)
	if _, err := Parse(data); err == nil {
		t.Error("expected error for decreasing thresholds")
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	set, err := Load(t.TempDir() + "/missing.yaml")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if set.Affiliate.Tiers[0].Name != "Seed" {
		t.Errorf("expected default affiliate ladder, got %+v", set.Affiliate.Tiers[0])
	}
}
