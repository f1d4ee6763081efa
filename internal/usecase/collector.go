package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

// CollectorConfig tunes the market data stage.
type CollectorConfig struct {
	CacheTTL  time.Duration
	Synthetic SyntheticRanges
}

// Collector fetches market snapshots: cache, then oracle, then synthetic data.
type Collector struct {
	oracle    ports.QuoteOracle
	cache     ports.Cache
	registry  *SymbolRegistry
	snapshots ports.SnapshotRepository
	cfg       CollectorConfig
	clock     Clock
	logger    *slog.Logger
}

// NewCollector wires the collector; oracle and cache may be nil.
func NewCollector(oracle ports.QuoteOracle, cache ports.Cache, registry *SymbolRegistry, snapshots ports.SnapshotRepository, cfg CollectorConfig, clock Clock, logger *slog.Logger) *Collector {
	return &Collector{
		oracle:    oracle,
		cache:     cache,
		registry:  registry,
		snapshots: snapshots,
		cfg:       cfg,
		clock:     clock,
		logger:    componentLogger(logger, "collector"),
	}
}

// FetchSnapshot collects, validates and persists one snapshot for the company.
// tickerHint is used when the oracle does not name a ticker.
func (c *Collector) FetchSnapshot(ctx context.Context, companyName, tickerHint string, log *domain.RunLog) (domain.MarketSnapshot, domain.Symbol, error) {
	query := strings.TrimSpace(companyName)
	if query == "" {
		return domain.MarketSnapshot{}, domain.Symbol{}, domain.ErrEmptyCompanyName
	}

	quote := c.quote(ctx, query, log)
	DeriveChange(&quote)

	ticker := quote.Ticker
	if tickerHint != "" && (ticker == "" || quote.Source == domain.SourceSynthetic) {
		ticker = tickerHint
	}
	if ticker == "" {
		ticker = query
	}
	sym, err := c.registry.ResolveTicker(ctx, ticker, query)
	if err != nil {
		return domain.MarketSnapshot{}, domain.Symbol{}, err
	}
	log.Add(StageFetchMarketData, "Símbolo resolvido: %s (%s)", sym.Ticker, sym.DisplayName())

	snap := domain.MarketSnapshot{
		SymbolID:      sym.ID,
		Ticker:        sym.Ticker,
		CompanyName:   sym.DisplayName(),
		Price:         quote.Price,
		PreviousClose: quote.PreviousClose,
		Change:        quote.Change,
		ChangePercent: quote.ChangePercent,
		Volume:        quote.Volume,
		MarketCap:     quote.MarketCap,
		PERatio:       quote.PERatio,
		DividendYield: quote.DividendYield,
		High52w:       quote.High52w,
		Low52w:        quote.Low52w,
		Source:        quote.Source,
		Raw:           quote.Raw,
		CollectedAt:   c.clock.now(),
	}
	if err := domain.Validate(StageFetchMarketData, snap); err != nil {
		return domain.MarketSnapshot{}, sym, err
	}

	snap, err = c.snapshots.Create(ctx, snap)
	if err != nil {
		return domain.MarketSnapshot{}, sym, fmt.Errorf("persist snapshot: %w", err)
	}

	log.Add(StageFetchMarketData, "Dados financeiros coletados (%s): preço %s, variação %s%%",
		snap.Source, formatOptional(snap.Price), formatOptional(snap.ChangePercent))
	c.logger.Info("snapshot collected", "ticker", snap.Ticker, "source", snap.Source, "snapshot_id", snap.ID)
	return snap, sym, nil
}

func (c *Collector) quote(ctx context.Context, query string, log *domain.RunLog) domain.Quote {
	key := cacheKey("market", strings.ToLower(domain.TickerForName(query)), hourBucket(c.clock.now()))

	var cached domain.Quote
	if readThrough(ctx, c.cache, c.logger, key, &cached) && cached.HasData() {
		log.Add(StageFetchMarketData, "Dados de mercado obtidos do cache")
		return cached
	}

	if c.oracle == nil {
		return c.degrade(query, "oracle not configured", log)
	}

	quote, err := c.oracle.Quote(ctx, query)
	if err == nil && !quote.HasData() {
		err = fmt.Errorf("quote without price, volume, market cap or ticker: %w", domain.ErrMalformedResponse)
	}
	if err != nil {
		reason := err.Error()
		if errors.Is(err, context.DeadlineExceeded) {
			reason = "oracle timeout"
		}
		c.logger.Warn("oracle failed, using synthetic snapshot", "oracle", c.oracle.Name(), "query", query, "error", err)
		return c.degrade(query, reason, log)
	}

	writeThrough(ctx, c.cache, c.logger, key, quote, c.cfg.CacheTTL)
	log.Add(StageFetchMarketData, "Dados de mercado obtidos via %s", c.oracle.Name())
	return quote
}

func (c *Collector) degrade(query, reason string, log *domain.RunLog) domain.Quote {
	log.Add(StageFetchMarketData, "Aviso: provedor de dados indisponível (%s), usando dados sintéticos", reason)
	return SyntheticQuote(query, reason, c.cfg.Synthetic)
}

// DeriveChange fills change and change percent from price and previous close.
// Values supplied by the provider are kept.
func DeriveChange(q *domain.Quote) {
	if q.Price == nil || q.PreviousClose == nil || *q.PreviousClose <= 0 {
		return
	}

	price := decimal.NewFromFloat(*q.Price)
	prev := decimal.NewFromFloat(*q.PreviousClose)

	change := price.Sub(prev)
	if q.Change != nil {
		change = decimal.NewFromFloat(*q.Change)
	} else {
		v, _ := change.Round(4).Float64()
		q.Change = &v
	}

	if q.ChangePercent == nil {
		v, _ := change.Div(prev).Mul(decimal.NewFromInt(100)).Round(4).Float64()
		q.ChangePercent = &v
	}
}

func formatOptional(v *float64) string {
	if v == nil {
		return "N/A"
	}
	return decimal.NewFromFloat(*v).StringFixed(2)
}
