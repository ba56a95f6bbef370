// Package tiers maps cumulative metrics (converted referrals, clip views) onto reward ladders.
package tiers

import (
	"errors"
	"fmt"

	"iamblessed-funnel-go/internal/models"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Tier is one rung of a ladder.
type Tier struct {
	Name      string
	Threshold decimal.Decimal
	Reward    decimal.Decimal // one-time bonus paid when the tier is reached
	Rate      decimal.Decimal // commission rate applied while in the tier
}

// Ladder is a list of tiers sorted by strictly increasing threshold.
type Ladder struct {
	Name  string
	Tiers []Tier
}

// NewLadder validates that tiers are named and ordered by strictly increasing threshold.
func NewLadder(name string, tiers []Tier) (*Ladder, error) {
	if len(tiers) == 0 {
		return nil, errors.New("ladder must have at least one tier")
	}

	steps := make([]Tier, len(tiers))
	copy(steps, tiers)

	for i, t := range steps {
		if t.Name == "" {
			return nil, fmt.Errorf("tier at index %d missing name", i)
		}
		if t.Threshold.IsNegative() {
			return nil, fmt.Errorf("tier %s has negative threshold", t.Name)
		}
		if i > 0 && !t.Threshold.GreaterThan(steps[i-1].Threshold) {
			return nil, fmt.Errorf("tier %s threshold %s must be greater than %s", t.Name, t.Threshold, steps[i-1].Threshold)
		}
	}

	return &Ladder{Name: name, Tiers: steps}, nil
}

// Lookup returns the highest tier whose threshold is at or below metric.
func (l *Ladder) Lookup(metric decimal.Decimal) (Tier, bool) {
	idx := l.index(metric)
	if idx < 0 {
		return Tier{}, false
	}
	return l.Tiers[idx], true
}

func (l *Ladder) index(metric decimal.Decimal) int {
	idx := -1
	for i, t := range l.Tiers {
		if t.Threshold.GreaterThan(metric) {
			break
		}
		idx = i
	}
	return idx
}

// Progress reports the position of metric between the current and the next tier.
func (l *Ladder) Progress(metric decimal.Decimal) models.TierProgress {
	p := models.TierProgress{Ladder: l.Name, Metric: metric}

	idx := l.index(metric)
	if idx == len(l.Tiers)-1 {
		top := l.Tiers[idx]
		p.Current = top.Name
		p.Rate = top.Rate
		p.Percent = hundred
		return p
	}

	next := l.Tiers[idx+1]
	floor := decimal.Zero
	if idx >= 0 {
		cur := l.Tiers[idx]
		p.Current = cur.Name
		p.Rate = cur.Rate
		floor = cur.Threshold
	}
	p.Next = next.Name
	p.Remaining = next.Threshold.Sub(metric)

	span := next.Threshold.Sub(floor)
	if span.IsPositive() {
		p.Percent = clampPercent(metric.Sub(floor).Mul(hundred).Div(span).Round(2))
	}
	return p
}

// Crossed returns the tiers reached by moving the metric from before to after.
func (l *Ladder) Crossed(before, after decimal.Decimal) []Tier {
	var out []Tier
	for _, t := range l.Tiers {
		if t.Threshold.GreaterThan(before) && !t.Threshold.GreaterThan(after) {
			out = append(out, t)
		}
	}
	return out
}

func clampPercent(v decimal.Decimal) decimal.Decimal {
	if v.IsNegative() {
		return decimal.Zero
	}
	if v.GreaterThan(hundred) {
		return hundred
	}
	return v
}
