package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// GatewayProvider streams from an OpenAI-compatible chat completions endpoint.
type GatewayProvider struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
}

type gatewayRequest struct {
	Model    string    `json:"model"`
	Messages []Message `json:"messages"`
	Stream   bool      `json:"stream"`
}

type gatewayChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func NewGatewayProvider(url, apiKey, model string) (*GatewayProvider, error) {
	if url == "" {
		return nil, errors.New("gateway URL is required")
	}
	return &GatewayProvider{
		url:        strings.TrimRight(url, "/"),
		apiKey:     apiKey,
		model:      model,
		httpClient: &http.Client{},
	}, nil
}

func (p *GatewayProvider) Name() string {
	return "gateway:" + p.model
}

func (p *GatewayProvider) Stream(ctx context.Context, system string, messages []Message, onDelta func(string) error) error {
	all := make([]Message, 0, len(messages)+1)
	if system != "" {
		all = append(all, Message{Role: "system", Content: system})
	}
	all = append(all, messages...)

	body, err := json.Marshal(gatewayRequest{Model: p.model, Messages: all, Stream: true})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}

	return ReadEvents(resp.Body, func(data string) error {
		var chunk gatewayChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return fmt.Errorf("malformed stream chunk: %w", err)
		}
		if chunk.Error != nil {
			return fmt.Errorf("gateway error: %s", chunk.Error.Message)
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				if err := onDelta(choice.Delta.Content); err != nil {
					return err
				}
			}
		}
		return nil
	})
}
