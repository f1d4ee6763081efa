package market

import (
	"fmt"

	"MarketNewsroom/internal/config"
	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

// NewOracle selects the oracle named by cfg.Oracle. A nil oracle means the
// collector runs on synthetic data only.
func NewOracle(cfg config.MarketConfig, generator ports.TextGenerator, symbols ports.SymbolRepository) (ports.QuoteOracle, error) {
	switch cfg.Oracle {
	case "", domain.SourceLLM:
		if generator == nil {
			return nil, nil
		}
		return NewLLMOracle(generator), nil
	case domain.SourceYahoo:
		return NewYahooOracle(symbols, cfg.YahooSuffix), nil
	case domain.SourceSynthetic:
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown market oracle %q", cfg.Oracle)
	}
}
