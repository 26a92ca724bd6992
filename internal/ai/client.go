package ai

import (
	"context"
	"fmt"
)

// Client is the pipeline's LLM entry point. It wraps a Provider with the
// two call shapes the generators need: free-form text and structured JSON.
type Client struct {
	provider Provider
}

// NewClient creates a client backed by the given provider.
func NewClient(p Provider) *Client {
	return &Client{provider: p}
}

// ProviderName reports which backend the client talks to.
func (c *Client) ProviderName() string {
	return c.provider.Name()
}

// Generate sends a prompt with an optional system message and returns the
// raw text response.
func (c *Client) Generate(ctx context.Context, prompt, system string, temperature float64, maxTokens int) (string, error) {
	msgs := buildMessages(prompt, system)
	resp, err := c.provider.Chat(ctx, ChatRequest{
		Messages:    msgs,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// GenerateJSON requests JSON-mode output and returns the extracted JSON
// text. An empty extraction is an error so callers can branch to their
// fallback path on a single condition.
func (c *Client) GenerateJSON(ctx context.Context, prompt, system string, maxTokens int) (string, error) {
	msgs := buildMessages(prompt, system)
	resp, err := c.provider.Chat(ctx, ChatRequest{
		Messages:    msgs,
		Temperature: 0.2,
		MaxTokens:   maxTokens,
		JSONMode:    true,
	})
	if err != nil {
		return "", err
	}

	jsonText := ExtractJSON(resp.Content)
	if jsonText == "" {
		return "", fmt.Errorf("empty JSON response from %s", c.provider.Name())
	}
	return jsonText, nil
}

func buildMessages(prompt, system string) []Message {
	var msgs []Message
	if system != "" {
		msgs = append(msgs, Message{Role: "system", Content: system})
	}
	return append(msgs, Message{Role: "user", Content: prompt})
}
