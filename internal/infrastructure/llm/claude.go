package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"MarketNewsroom/internal/config"
	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

const defaultClaudeMaxTokens = 2048

type messageFunc func(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)

// ClaudeClient generates text through the Anthropic Messages API.
type ClaudeClient struct {
	newMessage messageFunc
	model      string
}

var _ ports.TextGenerator = (*ClaudeClient)(nil)

// NewClaudeClient builds the client; the API key is required.
func NewClaudeClient(cfg config.ProviderConfig) (*ClaudeClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	client := anthropic.NewClient(opts...)
	return &ClaudeClient{newMessage: client.Messages.New, model: cfg.Model}, nil
}

// Name identifies the provider.
func (c *ClaudeClient) Name() string { return config.ProviderClaude }

// Generate sends one user message and concatenates the text blocks of the reply.
func (c *ClaudeClient) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultClaudeMaxTokens
	}

	prompt := req.Prompt
	if req.JSON {
		prompt += "\n\nResponda apenas com o objeto JSON."
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}
	if req.Temperature > 0 {
		params.Temperature = anthropic.Float(float64(req.Temperature))
	}
	if req.SystemInstruction != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemInstruction}}
	}

	resp, err := c.newMessage(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API call failed: %v: %w", err, domain.ErrProviderUnavailable)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("no response generated by claude: %w", domain.ErrMalformedResponse)
	}
	return out.String(), nil
}
