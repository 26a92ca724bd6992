package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultDashScopeURL = "https://dashscope.aliyuncs.com/compatible-mode/v1/chat/completions"

// DashScopeProvider implements Provider for Alibaba's DashScope
// OpenAI-compatible endpoint (Qwen models).
type DashScopeProvider struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
}

// NewDashScopeProvider creates a DashScope provider. baseURL and model fall
// back to the compatible-mode endpoint and qwen-plus when empty.
func NewDashScopeProvider(apiKey, baseURL, model string) *DashScopeProvider {
	if baseURL == "" {
		baseURL = defaultDashScopeURL
	}
	if model == "" {
		model = "qwen-plus"
	}
	return &DashScopeProvider{
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		apiKey:     strings.TrimSpace(apiKey),
		baseURL:    baseURL,
		model:      model,
	}
}

func (d *DashScopeProvider) Name() string { return "dashscope" }

func (d *DashScopeProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if d.apiKey == "" {
		return nil, fmt.Errorf("dashscope API key not configured — set llm.api_key or DASHSCOPE_API_KEY")
	}

	if ctx.Err() != nil {
		return nil, fmt.Errorf("dashscope request skipped (context already cancelled): %w", ctx.Err())
	}

	body := chatCompletionRequest{
		Model:       d.model,
		Messages:    toWireMessages(req.Messages),
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stream:      false,
	}
	if req.JSONMode {
		body.ResponseFormat = &respFormat{Type: "json_object"}
	}

	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	promptChars := 0
	for _, m := range req.Messages {
		promptChars += len(m.Content)
	}
	slog.Debug("DashScope request starting", "model", d.model, "prompt_chars", promptChars, "json_mode", req.JSONMode)

	httpReq, err := http.NewRequestWithContext(ctx, "POST", d.baseURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+d.apiKey)

	start := time.Now()
	resp, err := d.httpClient.Do(httpReq)
	if err != nil {
		slog.Error("DashScope request failed", "model", d.model, "elapsed", time.Since(start), "error", err)
		return nil, fmt.Errorf("dashscope request failed (model=%s): %w", d.model, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != 200 {
		errMsg := extractAPIError(respBody)
		if errMsg == "" {
			errMsg = string(respBody)
		}
		slog.Error("DashScope API error", "status", resp.StatusCode, "model", d.model, "error", errMsg)
		return nil, fmt.Errorf("dashscope returned status %d: %s", resp.StatusCode, errMsg)
	}

	var chatResp chatCompletionResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("parse dashscope response: %w", err)
	}

	tokensUsed := 0
	if chatResp.Usage != nil {
		tokensUsed = chatResp.Usage.TotalTokens
	}

	content := ""
	if len(chatResp.Choices) > 0 {
		content = chatResp.Choices[0].Message.Content
	}

	slog.Debug("DashScope request completed", "model", d.model, "elapsed", time.Since(start), "tokens", tokensUsed, "response_chars", len(content))

	return &ChatResponse{
		Content:    content,
		TokensUsed: tokensUsed,
		Model:      d.model,
		Provider:   "dashscope",
	}, nil
}
