package api

import (
	"context"
	"errors"

	"iamblessed-funnel-go/internal/gamification"
	"iamblessed-funnel-go/internal/joykeys"
	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/payments"
	"iamblessed-funnel-go/internal/store"

	"go.uber.org/zap"
)

// Checkout opens a payment session. The referral code defaults to the one the
// participant signed up with.
func (s *FunnelService) Checkout(ctx context.Context, p models.Participant, req models.CheckoutRequest) (*models.CheckoutResponse, error) {
	if s.payments == nil {
		return nil, payments.ErrNotConfigured
	}
	code := req.ReferralCode
	if code == "" {
		code = p.ReferredBy
	}

	checkout, err := s.payments.CreateCheckout(ctx, p, req.Quantity, code)
	if err != nil {
		return nil, err
	}
	return &models.CheckoutResponse{OrderId: checkout.Order.Id, URL: checkout.URL}, nil
}

// OrderPaid applies a settled order: purchase coins, the checkout key and the
// referral conversion. Every step is keyed by the order so redelivery is safe.
func (s *FunnelService) OrderPaid(ctx context.Context, order models.Order) error {
	if _, err := s.awards.Award(ctx, order.ParticipantId, gamification.EventPurchase, order.Id); err != nil {
		return err
	}

	s.joyKeys.TryUnlock(ctx, order.ParticipantId, joykeys.KeyCheckout)

	// a code entered at checkout attributes participants who signed up without one
	if order.ReferralCode != "" {
		_, err := s.referrals.Attribute(ctx, order.ParticipantId, order.ReferralCode)
		if err != nil && !errors.Is(err, store.ErrDuplicate) && !errors.Is(err, store.ErrInvalidTransition) && !errors.Is(err, store.ErrNotFound) {
			return err
		}
	}

	if err := s.referrals.Convert(ctx, order.ParticipantId, order.Id, order.Amount); err != nil {
		zap.L().Error("Referral conversion failed",
			zap.String("order_id", order.Id),
			zap.String("participant_id", order.ParticipantId),
			zap.Error(err))
		return err
	}
	return nil
}
