package messaging

import (
	"context"
	"fmt"
	"html"
	"strings"

	"iamblessed-funnel-go/internal/models"

	"github.com/resend/resend-go/v2"
	"go.uber.org/zap"
)

type emailSender interface {
	SendWithContext(ctx context.Context, params *resend.SendEmailRequest) (*resend.SendEmailResponse, error)
}

// ResendSender sends transactional email through Resend.
type ResendSender struct {
	emails emailSender
	from   string
}

func NewResendSender(cfg models.ResendConfig) *ResendSender {
	client := resend.NewClient(cfg.APIKey)
	return &ResendSender{emails: client.Emails, from: cfg.From}
}

func (r *ResendSender) Send(ctx context.Context, msg Message) (Result, error) {
	if msg.To == "" || !strings.Contains(msg.To, "@") {
		return Result{}, fmt.Errorf("invalid email recipient %q", msg.To)
	}

	sent, err := r.emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    r.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Text:    msg.Body,
		Html:    textToHTML(msg.Body),
	})
	if err != nil {
		return Result{}, resendError(err)
	}

	zap.L().Debug("Resend email accepted", zap.String("id", sent.Id))
	return Result{Channel: models.ChannelEmail, ProviderId: sent.Id}, nil
}

// textToHTML escapes a plain-text body and keeps its paragraphs.
func textToHTML(body string) string {
	paragraphs := strings.Split(html.EscapeString(body), "\n\n")
	for i, p := range paragraphs {
		paragraphs[i] = "<p>" + strings.ReplaceAll(p, "\n", "<br>") + "</p>"
	}
	return strings.Join(paragraphs, "\n")
}

// resendError maps the SDK's error text onto a ProviderError status.
func resendError(err error) error {
	msg := err.Error()
	lower := strings.ToLower(msg)
	status := 0
	switch {
	case strings.Contains(lower, "rate limit") || strings.Contains(lower, "429"):
		status = 429
	case strings.Contains(lower, "api key") || strings.Contains(lower, "401") || strings.Contains(lower, "403"):
		status = 401
	}
	if status == 0 {
		return fmt.Errorf("resend request failed: %w", err)
	}
	return &ProviderError{Provider: "resend", Status: status, Message: msg}
}
