// Package messaging delivers SMS, WhatsApp and email messages through Twilio and Resend.
package messaging

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"iamblessed-funnel-go/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Message is one outbound message.
type Message struct {
	Channel string
	To      string
	Subject string
	Body    string
}

// Result describes a delivered message.
type Result struct {
	Channel    string // channel that actually delivered, may differ after fallback
	ProviderId string
}

// Sender delivers messages on one channel.
type Sender interface {
	Send(ctx context.Context, msg Message) (Result, error)
}

// ProviderError is a failure reported by a messaging provider's API.
type ProviderError struct {
	Provider string
	Status   int
	Code     int
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s error (status %d, code %d): %s", e.Provider, e.Status, e.Code, e.Message)
}

// HTTPStatus maps a provider failure onto the status returned to API clients.
func HTTPStatus(err error) int {
	var pe *ProviderError
	if !errors.As(err, &pe) {
		return http.StatusInternalServerError
	}
	switch pe.Status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return http.StatusUnauthorized
	case http.StatusPaymentRequired:
		return http.StatusPaymentRequired
	case http.StatusTooManyRequests:
		return http.StatusTooManyRequests
	}
	return http.StatusInternalServerError
}

// FallbackSender tries Primary and, if it fails, Secondary.
type FallbackSender struct {
	Primary          Sender
	Secondary        Sender
	SecondaryChannel string
}

func (f *FallbackSender) Send(ctx context.Context, msg Message) (Result, error) {
	res, err := f.Primary.Send(ctx, msg)
	if err == nil {
		return res, nil
	}

	zap.L().Warn("Primary channel failed, falling back",
		zap.String("channel", msg.Channel),
		zap.String("fallback", f.SecondaryChannel),
		zap.Error(err))

	fallback := msg
	fallback.Channel = f.SecondaryChannel
	res, fallbackErr := f.Secondary.Send(ctx, fallback)
	if fallbackErr != nil {
		return Result{}, fmt.Errorf("%s failed: %w; %s failed: %w", msg.Channel, err, f.SecondaryChannel, fallbackErr)
	}
	return res, nil
}

// LogSender records messages in the log instead of delivering them.
// It stands in for providers that are not configured.
type LogSender struct {
	Channel string
}

func (l *LogSender) Send(_ context.Context, msg Message) (Result, error) {
	id := "dry-run-" + uuid.New().String()
	zap.L().Info("Message not delivered, provider not configured",
		zap.String("channel", l.Channel),
		zap.String("to", msg.To),
		zap.String("subject", msg.Subject),
		zap.Int("body_length", len(msg.Body)),
		zap.String("provider_id", id))
	return Result{Channel: l.Channel, ProviderId: id}, nil
}

// Senders routes messages to the sender for their channel.
type Senders struct {
	SMS      Sender
	WhatsApp Sender
	Email    Sender
}

// NewSenders builds the senders for the configured providers. Unconfigured
// providers are replaced by a LogSender.
func NewSenders(twilioCfg models.TwilioConfig, resendCfg models.ResendConfig) *Senders {
	s := &Senders{
		SMS:      &LogSender{Channel: models.ChannelSMS},
		WhatsApp: &LogSender{Channel: models.ChannelWhatsApp},
		Email:    &LogSender{Channel: models.ChannelEmail},
	}

	if twilioCfg.AccountSID != "" && twilioCfg.AuthToken != "" {
		tw := NewTwilioSender(twilioCfg)
		s.SMS = tw.Channel(models.ChannelSMS)
		if twilioCfg.WhatsAppFrom != "" {
			s.WhatsApp = &FallbackSender{
				Primary:          tw.Channel(models.ChannelWhatsApp),
				Secondary:        s.SMS,
				SecondaryChannel: models.ChannelSMS,
			}
		} else {
			s.WhatsApp = s.SMS
		}
	} else {
		zap.L().Warn("Twilio not configured, SMS and WhatsApp messages will only be logged")
	}

	if resendCfg.APIKey != "" && resendCfg.From != "" {
		s.Email = NewResendSender(resendCfg)
	} else {
		zap.L().Warn("Resend not configured, email messages will only be logged")
	}

	return s
}

// For returns the sender for channel.
func (s *Senders) For(channel string) (Sender, error) {
	switch channel {
	case models.ChannelSMS:
		return s.SMS, nil
	case models.ChannelWhatsApp:
		return s.WhatsApp, nil
	case models.ChannelEmail:
		return s.Email, nil
	}
	return nil, fmt.Errorf("unknown channel %q", channel)
}

// Send delivers msg on its channel.
func (s *Senders) Send(ctx context.Context, msg Message) (Result, error) {
	sender, err := s.For(msg.Channel)
	if err != nil {
		return Result{}, err
	}
	return sender.Send(ctx, msg)
}
