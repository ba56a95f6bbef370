package tiers

import "github.com/shopspring/decimal"

// Ladder names
const (
	Affiliate = "affiliate"
	Clipper   = "clipper"
)

func tier(name string, threshold int64, reward, rate string) Tier {
	return Tier{
		Name:      name,
		Threshold: decimal.NewFromInt(threshold),
		Reward:    decimal.RequireFromString(reward),
		Rate:      decimal.RequireFromString(rate),
	}
}

// DefaultAffiliate ranks affiliates by converted referrals. Rate is the share of
// the referred order credited to the referrer in USD.
func DefaultAffiliate() *Ladder {
	l, _ := NewLadder(Affiliate, []Tier{
		tier("Seed", 0, "0", "0.10"),
		tier("Sprout", 3, "50", "0.15"),
		tier("Bloom", 10, "150", "0.20"),
		tier("Harvest", 25, "400", "0.25"),
		tier("Legacy", 50, "1000", "0.30"),
	})
	return l
}

// DefaultClipper ranks approved clips by view count. Reward is the USD bonus paid on approval.
func DefaultClipper() *Ladder {
	l, _ := NewLadder(Clipper, []Tier{
		tier("Starter", 0, "0", "0"),
		tier("Rising", 10_000, "5", "0"),
		tier("Trending", 50_000, "25", "0"),
		tier("Viral", 100_000, "50", "0"),
		tier("Mega", 500_000, "250", "0"),
		tier("Legend", 1_000_000, "500", "0"),
	})
	return l
}

// Set bundles the ladders the funnel uses.
type Set struct {
	Affiliate *Ladder
	Clipper   *Ladder
}

// Defaults returns the built-in ladders.
func Defaults() *Set {
	return &Set{Affiliate: DefaultAffiliate(), Clipper: DefaultClipper()}
}
