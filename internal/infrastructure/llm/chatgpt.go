package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"MarketNewsroom/internal/config"
	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

// ChatGPTClient implements ports.TextGenerator backed by OpenAI-compatible APIs.
type ChatGPTClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
}

var _ ports.TextGenerator = (*ChatGPTClient)(nil)

// NewChatGPTClient builds a client from configuration.
func NewChatGPTClient(cfg config.ProviderConfig) *ChatGPTClient {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ChatGPTClient{
		endpoint:   cfg.BaseURL,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Name identifies the provider in logs and draft metadata.
func (c *ChatGPTClient) Name() string { return config.ProviderOpenAI }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model          string         `json:"model"`
	Messages       []chatMessage  `json:"messages"`
	Temperature    float32        `json:"temperature,omitempty"`
	MaxTokens      int            `json:"max_tokens,omitempty"`
	ResponseFormat map[string]any `json:"response_format,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate posts the prompt as a chat completion and returns the first choice.
func (c *ChatGPTClient) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	if c == nil {
		return "", fmt.Errorf("chatgpt client is nil")
	}
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("chatgpt client misconfigured: %w", domain.ErrProviderUnavailable)
	}

	payload := chatRequest{
		Model:       c.model,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if system := strings.TrimSpace(req.SystemInstruction); system != "" {
		payload.Messages = append(payload.Messages, chatMessage{Role: "system", Content: system})
	}
	payload.Messages = append(payload.Messages, chatMessage{Role: "user", Content: req.Prompt})
	if req.JSON {
		payload.ResponseFormat = map[string]any{"type": "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal chatgpt payload: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("send completion: %v: %w", err, domain.ErrProviderUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("chatgpt error %s: %s: %w", resp.Status, strings.TrimSpace(string(snippet)), domain.ErrProviderUnavailable)
	}

	var decoded chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("decode completion: %v: %w", err, domain.ErrMalformedResponse)
	}
	if len(decoded.Choices) == 0 || strings.TrimSpace(decoded.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("empty completion: %w", domain.ErrMalformedResponse)
	}
	return decoded.Choices[0].Message.Content, nil
}
