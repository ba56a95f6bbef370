// Package assistant streams AI chat completions for the gratitude coach and
// blessing writer, relaying them to the browser as server-sent events.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"iamblessed-funnel-go/internal/models"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

const DefaultSystemPrompt = "You are the IamBlessedAF gratitude coach. Answer warmly and briefly, " +
	"encourage the person to notice what they are thankful for, and never give medical or financial advice."

const blessingPrompt = "Write a short, heartfelt blessing message (at most 60 words) from %s to %s. " +
	"Plain text only, no hashtags."

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Provider streams the assistant reply for a conversation, calling onDelta
// for every text fragment in order. An error from onDelta aborts the stream.
type Provider interface {
	Name() string
	Stream(ctx context.Context, system string, messages []Message, onDelta func(string) error) error
}

// StatusError is an upstream failure with an HTTP status worth passing on.
type StatusError struct {
	Status  int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("assistant upstream returned %d: %s", e.Status, e.Message)
}

// HTTPStatus maps a provider error to the status returned to the client.
// Rate limits and exhausted credits pass through; everything else is a 502.
func HTTPStatus(err error) int {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		switch statusErr.Status {
		case http.StatusTooManyRequests, http.StatusPaymentRequired:
			return statusErr.Status
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

// NewProvider builds the configured provider. It returns nil when no API key is set.
func NewProvider(ctx context.Context, cfg models.AssistantConfig) (Provider, error) {
	if cfg.APIKey == "" {
		return nil, nil
	}
	switch cfg.Provider {
	case "", "genai":
		return NewGenAIProvider(ctx, cfg.APIKey, cfg.Model)
	case "gateway":
		return NewGatewayProvider(cfg.GatewayURL, cfg.APIKey, cfg.Model)
	default:
		return nil, fmt.Errorf("unknown assistant provider %q", cfg.Provider)
	}
}

// FromChat converts validated request messages.
func FromChat(in []models.ChatMessage) []Message {
	out := make([]Message, len(in))
	for i, m := range in {
		out[i] = Message{Role: m.Role, Content: m.Content}
	}
	return out
}

// Generate collects a full reply without streaming.
func Generate(ctx context.Context, p Provider, system string, messages []Message) (string, error) {
	var b strings.Builder
	err := p.Stream(ctx, system, messages, func(delta string) error {
		b.WriteString(delta)
		return nil
	})
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(b.String()), nil
}

// GenerateBlessing writes a blessing message from sender to recipient.
func GenerateBlessing(ctx context.Context, p Provider, sender, recipient string) (string, error) {
	prompt := fmt.Sprintf(blessingPrompt, sender, recipient)
	text, err := Generate(ctx, p, DefaultSystemPrompt, []Message{{Role: RoleUser, Content: prompt}})
	if err != nil {
		return "", err
	}
	if text == "" {
		return "", errors.New("assistant returned an empty blessing")
	}
	return text, nil
}
