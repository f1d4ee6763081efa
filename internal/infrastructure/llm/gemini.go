package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"MarketNewsroom/internal/config"
	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

// GeminiClient generates text through the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

var _ ports.TextGenerator = (*GeminiClient)(nil)

// NewGeminiClient creates the genai client; the API key is required.
func NewGeminiClient(ctx context.Context, cfg config.ProviderConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: cfg.Model}, nil
}

// Name identifies the provider.
func (g *GeminiClient) Name() string { return config.ProviderGemini }

// Generate runs a single-turn completion.
func (g *GeminiClient) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	genCfg := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(req.Temperature),
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if req.SystemInstruction != "" {
		genCfg.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if req.JSON {
		genCfg.ResponseMIMEType = "application/json"
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(req.Prompt), genCfg)
	if err != nil {
		return "", fmt.Errorf("gemini generation failed: %v: %w", err, domain.ErrProviderUnavailable)
	}

	var out strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part != nil && part.Text != "" {
					out.WriteString(part.Text)
				}
			}
			if out.Len() > 0 {
				break
			}
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("no response generated by gemini: %w", domain.ErrMalformedResponse)
	}
	return out.String(), nil
}
