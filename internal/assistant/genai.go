package assistant

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"google.golang.org/genai"
)

const defaultGenAIModel = "gemini-2.5-flash"

type contentStreamer interface {
	GenerateContentStream(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) iter.Seq2[*genai.GenerateContentResponse, error]
}

// GenAIProvider streams from Google's Gemini API.
type GenAIProvider struct {
	models contentStreamer
	model  string
}

func NewGenAIProvider(ctx context.Context, apiKey, model string) (*GenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = defaultGenAIModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIProvider{models: client.Models, model: model}, nil
}

func (p *GenAIProvider) Name() string {
	return "genai:" + p.model
}

func (p *GenAIProvider) Stream(ctx context.Context, system string, messages []Message, onDelta func(string) error) error {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.Role(genai.RoleUser)
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}

	var config *genai.GenerateContentConfig
	if system != "" {
		config = &genai.GenerateContentConfig{
			SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		}
	}

	for resp, err := range p.models.GenerateContentStream(ctx, p.model, contents, config) {
		if err != nil {
			return genaiError(err)
		}
		if text := resp.Text(); text != "" {
			if err := onDelta(text); err != nil {
				return err
			}
		}
	}
	return nil
}

func genaiError(err error) error {
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return &StatusError{Status: apiErr.Code, Message: apiErr.Message}
	}
	return fmt.Errorf("GenAI stream failed: %w", err)
}
