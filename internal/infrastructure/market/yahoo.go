package market

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	finance "github.com/piquette/finance-go"
	"github.com/piquette/finance-go/equity"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

var b3Ticker = regexp.MustCompile(`^[A-Z]{4}[0-9]{1,2}$`)

type equityFetcher func(symbol string) (*finance.Equity, error)

// YahooOracle reads quotes from Yahoo Finance. Company names are mapped to
// tickers through the symbol registry.
type YahooOracle struct {
	fetch   equityFetcher
	symbols ports.SymbolRepository
	suffix  string
}

var _ ports.QuoteOracle = (*YahooOracle)(nil)

// NewYahooOracle builds the oracle; suffix is appended to B3 tickers (".SA").
func NewYahooOracle(symbols ports.SymbolRepository, suffix string) *YahooOracle {
	return &YahooOracle{fetch: equity.Get, symbols: symbols, suffix: suffix}
}

// Name identifies the oracle.
func (y *YahooOracle) Name() string { return domain.SourceYahoo }

// Quote resolves query to a ticker and fetches its equity quote.
func (y *YahooOracle) Quote(ctx context.Context, query string) (domain.Quote, error) {
	ticker, name, err := y.resolve(ctx, query)
	if err != nil {
		return domain.Quote{}, err
	}
	if err := ctx.Err(); err != nil {
		return domain.Quote{}, err
	}

	eq, err := y.fetch(ticker + y.suffix)
	if err != nil {
		return domain.Quote{}, fmt.Errorf("failed to get quote for %s: %v: %w", ticker, err, domain.ErrProviderUnavailable)
	}
	if eq == nil {
		return domain.Quote{}, fmt.Errorf("no yahoo quote for %s: %w", ticker, domain.ErrProviderUnavailable)
	}

	if eq.ShortName != "" {
		name = eq.ShortName
	}
	quote := domain.Quote{
		Ticker:        ticker,
		Name:          name,
		Source:        domain.SourceYahoo,
		Price:         positive(eq.RegularMarketPrice),
		PreviousClose: positive(eq.RegularMarketPreviousClose),
		Change:        domain.Float(eq.RegularMarketChange),
		ChangePercent: domain.Float(eq.RegularMarketChangePercent),
		Volume:        positive(float64(eq.RegularMarketVolume)),
		MarketCap:     positive(float64(eq.MarketCap)),
		PERatio:       positive(eq.TrailingPE),
		DividendYield: positive(eq.TrailingAnnualDividendYield * 100),
		High52w:       positive(eq.FiftyTwoWeekHigh),
		Low52w:        positive(eq.FiftyTwoWeekLow),
		Raw: map[string]any{
			"provider": domain.SourceYahoo,
			"symbol":   eq.Symbol,
			"currency": eq.CurrencyID,
			"exchange": eq.FullExchangeName,
		},
	}
	if quote.Price == nil {
		quote.Change, quote.ChangePercent = nil, nil
	}
	return quote, nil
}

func (y *YahooOracle) resolve(ctx context.Context, query string) (string, string, error) {
	candidate := domain.CanonicalTicker(query)
	if b3Ticker.MatchString(candidate) {
		return candidate, "", nil
	}
	if y.symbols != nil {
		sym, err := y.symbols.FindByName(ctx, strings.TrimSpace(query))
		switch {
		case err == nil:
			return sym.Ticker, sym.DisplayName(), nil
		case !errors.Is(err, domain.ErrNotFound):
			return "", "", fmt.Errorf("lookup symbol %s: %w", query, err)
		}
	}
	return "", "", fmt.Errorf("no ticker known for %q: %w", query, domain.ErrProviderUnavailable)
}

func positive(v float64) *float64 {
	if v <= 0 {
		return nil
	}
	return domain.Float(v)
}
