package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func (s *Service) CreateOrder(ctx context.Context, order models.Order) (*models.Order, error) {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	if order.Status == "" {
		order.Status = models.OrderPending
	}
	_, err := s.db.ExecContext(ctx, queryInsertOrder,
		order.Id, order.ParticipantId, order.SessionId, order.Amount.String(), order.ReferralCode, order.Status, order.CreatedAt.UTC())
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("order for session %s: %w", order.SessionId, store.ErrDuplicate)
		}
		return nil, fmt.Errorf("unable to insert order: %w", err)
	}
	return &order, nil
}

func (s *Service) GetOrderBySession(ctx context.Context, sessionId string) (*models.Order, error) {
	var o models.Order
	var amount string
	var paidAt sql.NullTime
	err := s.db.QueryRowContext(ctx, queryGetOrderBySession, sessionId).Scan(
		&o.Id, &o.ParticipantId, &o.SessionId, &amount, &o.ReferralCode, &o.Status, &o.CreatedAt, &paidAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("order for session %s: %w", sessionId, store.ErrNotFound)
		}
		return nil, fmt.Errorf("unable to query order: %w", err)
	}
	if o.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, fmt.Errorf("failed to parse order amount '%s': %w", amount, err)
	}
	o.PaidAt = timePtr(paidAt)
	return &o, nil
}

// UpdateOrderStatus moves an order from one status to another. If the order is
// not in the expected status the call fails with ErrInvalidTransition, which is
// how repeated webhook deliveries are detected.
func (s *Service) UpdateOrderStatus(ctx context.Context, sessionId, from, to string, at time.Time) error {
	var paidAt sql.NullTime
	if to == models.OrderPaid {
		paidAt = sql.NullTime{Time: at.UTC(), Valid: true}
	}
	result, err := s.db.ExecContext(ctx, queryUpdateOrderStatus, to, paidAt, sessionId, from)
	if err != nil {
		return fmt.Errorf("unable to update order: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("unable to get rows affected: %w", err)
	}
	if n == 0 {
		if _, err := s.GetOrderBySession(ctx, sessionId); err != nil {
			return err
		}
		return fmt.Errorf("order %s not %s: %w", sessionId, from, store.ErrInvalidTransition)
	}

	zap.L().Info("Order status updated",
		zap.String("session_id", sessionId),
		zap.String("from", from),
		zap.String("to", to))
	return nil
}

func (s *Service) CountPaidOrders(ctx context.Context, participantId string) (int64, error) {
	return s.count(ctx, queryCountPaidOrders, participantId)
}
