// Package market implements quote oracles for the market data stage.
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/jsonutil"
	"MarketNewsroom/internal/ports"
)

const oracleSystemInstruction = "Você é um assistente especializado em análise financeira. Você fornece dados financeiros estruturados em formato JSON."

const oraclePrompt = `Forneça os dados financeiros mais recentes da empresa %q (Bolsa de Valores Brasileira - B3) em formato JSON estruturado com os seguintes campos:

{
  "symbol": "codigo_de_negociacao_na_b3",
  "company_name": "nome_oficial_da_empresa",
  "price": valor_do_preco_atual_em_reais,
  "previous_close": valor_do_fechamento_anterior_em_reais,
  "change": variacao_em_reais,
  "change_percent": variacao_percentual,
  "volume": volume_negociado,
  "market_cap": capitalizacao_de_mercado_em_reais,
  "pe_ratio": indicador_p_l,
  "dividend_yield": dividend_yield_percentual,
  "high_52w": maior_preco_52_semanas_em_reais,
  "low_52w": menor_preco_52_semanas_em_reais
}

Se não tiver acesso a dados atualizados, use valores realistas baseados em conhecimento geral sobre a ação.`

// LLMOracle asks a text generator for a quote in a fixed JSON layout.
type LLMOracle struct {
	generator   ports.TextGenerator
	temperature float32
	maxTokens   int
}

var _ ports.QuoteOracle = (*LLMOracle)(nil)

// NewLLMOracle wraps generator; it must not be nil.
func NewLLMOracle(generator ports.TextGenerator) *LLMOracle {
	return &LLMOracle{generator: generator, temperature: 0.2, maxTokens: 1024}
}

// Name reports the generator behind the oracle.
func (o *LLMOracle) Name() string {
	return domain.SourceLLM + ":" + o.generator.Name()
}

// Quote prompts the generator for companyName and normalizes the answer.
func (o *LLMOracle) Quote(ctx context.Context, companyName string) (domain.Quote, error) {
	text, err := o.generator.Generate(ctx, ports.GenerateRequest{
		Prompt:            fmt.Sprintf(oraclePrompt, companyName),
		SystemInstruction: oracleSystemInstruction,
		Temperature:       o.temperature,
		MaxTokens:         o.maxTokens,
		JSON:              true,
	})
	if err != nil {
		return domain.Quote{}, fmt.Errorf("llm quote for %s: %w", companyName, err)
	}

	var fields map[string]any
	if err := jsonutil.Decode(text, &fields); err != nil {
		return domain.Quote{}, fmt.Errorf("decode llm quote: %v: %w", err, domain.ErrMalformedResponse)
	}

	quote := domain.Quote{
		Ticker:        domain.CanonicalTicker(stringField(fields, "symbol")),
		Name:          strings.TrimSpace(stringField(fields, "company_name")),
		Source:        domain.SourceLLM,
		Price:         extractNumeric(fields["price"]),
		PreviousClose: extractNumeric(fields["previous_close"]),
		Change:        extractNumeric(fields["change"]),
		ChangePercent: extractNumeric(fields["change_percent"]),
		Volume:        extractNumeric(fields["volume"]),
		MarketCap:     extractNumeric(fields["market_cap"]),
		PERatio:       extractNumeric(fields["pe_ratio"]),
		DividendYield: extractNumeric(fields["dividend_yield"]),
		High52w:       extractNumeric(fields["high_52w"]),
		Low52w:        extractNumeric(fields["low_52w"]),
		Raw:           map[string]any{"provider": o.generator.Name(), "response": fields},
	}
	if !quote.HasData() {
		return domain.Quote{}, fmt.Errorf("llm quote for %s carries no data: %w", companyName, domain.ErrMalformedResponse)
	}
	return quote, nil
}

func stringField(fields map[string]any, key string) string {
	if s, ok := fields[key].(string); ok {
		return s
	}
	return ""
}

var nonNumeric = regexp.MustCompile(`[^0-9.,\-]`)

// extractNumeric accepts numbers or loosely formatted strings ("R$ 30,50").
func extractNumeric(value any) *float64 {
	switch v := value.(type) {
	case nil:
		return nil
	case float64:
		return domain.Float(v)
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return domain.Float(f)
		}
		return nil
	case string:
		cleaned := strings.ReplaceAll(nonNumeric.ReplaceAllString(v, ""), ",", ".")
		if f, err := strconv.ParseFloat(cleaned, 64); err == nil {
			return domain.Float(f)
		}
		return nil
	default:
		return nil
	}
}
