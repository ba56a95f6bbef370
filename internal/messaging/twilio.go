package messaging

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"iamblessed-funnel-go/internal/models"

	"github.com/twilio/twilio-go"
	twilioclient "github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
	"go.uber.org/zap"
)

const whatsAppPrefix = "whatsapp:"

type messageCreator interface {
	CreateMessage(params *openapi.CreateMessageParams) (*openapi.ApiV2010Message, error)
}

// TwilioSender sends SMS and WhatsApp messages through the Twilio Messages API.
type TwilioSender struct {
	api                 messageCreator
	fromNumber          string
	whatsAppFrom        string
	messagingServiceSID string
}

func NewTwilioSender(cfg models.TwilioConfig) *TwilioSender {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: cfg.AccountSID,
		Password: cfg.AuthToken,
	})
	return &TwilioSender{
		api:                 client.Api,
		fromNumber:          cfg.FromNumber,
		whatsAppFrom:        cfg.WhatsAppFrom,
		messagingServiceSID: cfg.MessagingServiceSID,
	}
}

// Channel returns a Sender bound to the sms or whatsapp channel.
func (t *TwilioSender) Channel(channel string) Sender {
	return &twilioChannel{twilio: t, channel: channel}
}

type twilioChannel struct {
	twilio  *TwilioSender
	channel string
}

func (c *twilioChannel) Send(ctx context.Context, msg Message) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}

	to, err := NormalizePhone(strings.TrimPrefix(msg.To, whatsAppPrefix))
	if err != nil {
		return Result{}, err
	}

	params := &openapi.CreateMessageParams{}
	params.SetBody(msg.Body)

	if c.channel == models.ChannelWhatsApp {
		params.SetTo(whatsAppPrefix + to)
		params.SetFrom(whatsAppPrefix + strings.TrimPrefix(c.twilio.whatsAppFrom, whatsAppPrefix))
	} else {
		params.SetTo(to)
		if c.twilio.messagingServiceSID != "" {
			params.SetMessagingServiceSid(c.twilio.messagingServiceSID)
		} else {
			params.SetFrom(c.twilio.fromNumber)
		}
	}

	resp, err := c.twilio.api.CreateMessage(params)
	if err != nil {
		return Result{}, twilioError(err)
	}

	res := Result{Channel: c.channel}
	if resp != nil && resp.Sid != nil {
		res.ProviderId = *resp.Sid
	}
	zap.L().Debug("Twilio message queued",
		zap.String("channel", c.channel),
		zap.String("sid", res.ProviderId))
	return res, nil
}

func twilioError(err error) error {
	var restErr *twilioclient.TwilioRestError
	if errors.As(err, &restErr) {
		return &ProviderError{
			Provider: "twilio",
			Status:   restErr.Status,
			Code:     restErr.Code,
			Message:  restErr.Message,
		}
	}
	return fmt.Errorf("twilio request failed: %w", err)
}
