// Package payments creates Stripe checkout sessions and applies the webhook
// events that settle them.
package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"iamblessed-funnel-go/internal/models"
	"iamblessed-funnel-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"github.com/stripe/stripe-go/v79/webhook"
	"go.uber.org/zap"
)

// Webhook event types handled by HandleWebhook
const (
	EventSessionCompleted     = "checkout.session.completed"
	EventSessionExpired       = "checkout.session.expired"
	EventAsyncPaymentFailed   = "checkout.session.async_payment_failed"
	EventAsyncPaymentSucceeded = "checkout.session.async_payment_succeeded"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrNotConfigured    = errors.New("payments not configured")
)

// OrderPaidFunc runs the funnel side effects of a paid order. It may be called
// more than once for the same order and must be idempotent.
type OrderPaidFunc func(ctx context.Context, order models.Order) error

type sessionCreator interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// Checkout is a created checkout session and its pending order.
type Checkout struct {
	Order models.Order
	URL   string
}

type Service struct {
	sessions sessionCreator
	funnel   store.FunnelStore
	cfg      models.StripeConfig
	onPaid   OrderPaidFunc
	now      func() time.Time
}

// NewService creates the Stripe client. Without a secret key checkout is
// disabled, while webhooks still fail closed on signature checks.
func NewService(cfg models.StripeConfig, funnel store.FunnelStore) *Service {
	s := &Service{funnel: funnel, cfg: cfg, now: time.Now}
	if cfg.SecretKey != "" {
		sc := &client.API{}
		sc.Init(cfg.SecretKey, nil)
		s.sessions = sc.CheckoutSessions
	}
	return s
}

// OnOrderPaid sets the handler run when an order settles.
func (s *Service) OnOrderPaid(fn OrderPaidFunc) {
	s.onPaid = fn
}

// CreateCheckout opens a hosted checkout session for the participant and records
// the pending order.
func (s *Service) CreateCheckout(ctx context.Context, p models.Participant, quantity int64, referralCode string) (*Checkout, error) {
	if s.sessions == nil || s.cfg.PriceID == "" {
		return nil, ErrNotConfigured
	}
	if quantity <= 0 {
		quantity = 1
	}

	orderId := uuid.New().String()
	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.cfg.PriceID),
				Quantity: stripe.Int64(quantity),
			},
		},
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(p.Id),
	}
	if p.Email != "" {
		params.CustomerEmail = stripe.String(p.Email)
	}
	params.Context = ctx
	params.AddMetadata("order_id", orderId)
	params.AddMetadata("participant_id", p.Id)
	if referralCode != "" {
		params.AddMetadata("referral_code", referralCode)
	}

	session, err := s.sessions.New(params)
	if err != nil {
		zap.L().Error("Failed to create checkout session",
			zap.String("participant_id", p.Id),
			zap.Error(err))
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	order, err := s.funnel.CreateOrder(ctx, models.Order{
		Id:            orderId,
		ParticipantId: p.Id,
		SessionId:     session.ID,
		Amount:        s.cfg.UnitAmount.Mul(decimal.NewFromInt(quantity)),
		ReferralCode:  referralCode,
		Status:        models.OrderPending,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("Checkout session created",
		zap.String("participant_id", p.Id),
		zap.String("order_id", order.Id),
		zap.String("session_id", session.ID))
	return &Checkout{Order: *order, URL: session.URL}, nil
}

// HandleWebhook verifies and applies one Stripe event, returning its type.
// Unknown event types are acknowledged without action.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) (string, error) {
	if s.cfg.WebhookSecret == "" {
		return "", ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.cfg.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		zap.L().Warn("Rejected webhook", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}

	eventType := string(event.Type)
	switch eventType {
	case EventSessionCompleted, EventAsyncPaymentSucceeded:
		session, err := decodeSession(event)
		if err != nil {
			return eventType, err
		}
		if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
			zap.L().Info("Checkout completed, payment pending", zap.String("session_id", session.ID))
			return eventType, nil
		}
		return eventType, s.settle(ctx, session)
	case EventSessionExpired, EventAsyncPaymentFailed:
		session, err := decodeSession(event)
		if err != nil {
			return eventType, err
		}
		return eventType, s.fail(ctx, session.ID)
	default:
		zap.L().Debug("Ignoring webhook event", zap.String("type", eventType), zap.String("event_id", event.ID))
		return eventType, nil
	}
}

func decodeSession(event stripe.Event) (*stripe.CheckoutSession, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return nil, fmt.Errorf("unable to decode checkout session: %w", err)
	}
	return &session, nil
}

// settle marks the order paid and runs the paid handler. A redelivered event
// finds the order already paid and reruns the idempotent handler only.
func (s *Service) settle(ctx context.Context, session *stripe.CheckoutSession) error {
	order, err := s.funnel.GetOrderBySession(ctx, session.ID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			zap.L().Warn("Webhook for unknown checkout session", zap.String("session_id", session.ID))
			return nil
		}
		return err
	}

	switch order.Status {
	case models.OrderFailed:
		zap.L().Warn("Payment completed for failed order", zap.String("order_id", order.Id))
		return nil
	case models.OrderPending:
		now := s.now()
		err := s.funnel.UpdateOrderStatus(ctx, session.ID, models.OrderPending, models.OrderPaid, now)
		if err != nil && !errors.Is(err, store.ErrInvalidTransition) {
			return err
		}
		order.Status = models.OrderPaid
		order.PaidAt = &now
	}

	if session.AmountTotal > 0 {
		order.Amount = decimal.New(session.AmountTotal, -2)
	}

	zap.L().Info("Order paid",
		zap.String("order_id", order.Id),
		zap.String("participant_id", order.ParticipantId),
		zap.String("amount", order.Amount.StringFixed(2)))

	if s.onPaid == nil {
		return nil
	}
	return s.onPaid(ctx, *order)
}

func (s *Service) fail(ctx context.Context, sessionId string) error {
	err := s.funnel.UpdateOrderStatus(ctx, sessionId, models.OrderPending, models.OrderFailed, s.now())
	switch {
	case err == nil:
		zap.L().Info("Order failed", zap.String("session_id", sessionId))
		return nil
	case errors.Is(err, store.ErrInvalidTransition), errors.Is(err, store.ErrNotFound):
		return nil
	default:
		return err
	}
}
