package database

import (
	"context"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/models"

	"github.com/shopspring/decimal"
)

// Stats aggregates the admin dashboard counters for the window starting at since.
func (s *Service) Stats(ctx context.Context, since time.Time) (*models.FunnelStats, error) {
	since = since.UTC()
	stats := &models.FunnelStats{Since: since, Revenue: decimal.Zero}

	if err := s.db.QueryRowContext(ctx, queryStatsParticipants, since).Scan(&stats.Participants, &stats.NewParticipants); err != nil {
		return nil, fmt.Errorf("unable to count participants: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, queryStatsReferrals).Scan(&stats.Referrals, &stats.ConvertedReferral); err != nil {
		return nil, fmt.Errorf("unable to count referrals: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, queryStatsPaidOrders, since)
	if err != nil {
		return nil, fmt.Errorf("unable to query paid orders: %w", err)
	}
	defer closeRows(rows)
	for rows.Next() {
		var amount string
		if err := rows.Scan(&amount); err != nil {
			return nil, fmt.Errorf("unable to scan order amount: %w", err)
		}
		d, err := decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse order amount '%s': %w", amount, err)
		}
		stats.PaidOrders++
		stats.Revenue = stats.Revenue.Add(d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating order rows: %w", err)
	}

	if stats.MessagesSent, err = s.CountLogs(ctx, models.MessageSent, since); err != nil {
		return nil, err
	}
	if stats.MessagesFailed, err = s.CountLogs(ctx, models.MessageFailed, since); err != nil {
		return nil, err
	}
	if stats.PendingClips, err = s.count(ctx, queryStatsPendingClips); err != nil {
		return nil, err
	}
	if stats.Outstanding, err = s.subledger.Outstanding(ctx); err != nil {
		return nil, err
	}

	return stats, nil
}
