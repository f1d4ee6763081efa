package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

const resolveAttempts = 3

// SymbolRegistry resolves free-text company names and tickers to canonical symbols.
type SymbolRegistry struct {
	repo   ports.SymbolRepository
	logger *slog.Logger
}

// NewSymbolRegistry wires the registry to its repository.
func NewSymbolRegistry(repo ports.SymbolRepository, logger *slog.Logger) *SymbolRegistry {
	return &SymbolRegistry{repo: repo, logger: componentLogger(logger, "symbols")}
}

// Resolve finds or creates the symbol for a company name or ticker.
func (r *SymbolRegistry) Resolve(ctx context.Context, nameOrTicker string) (domain.Symbol, error) {
	input := strings.TrimSpace(nameOrTicker)
	if input == "" {
		return domain.Symbol{}, domain.ErrEmptyCompanyName
	}
	return r.ResolveTicker(ctx, input, input)
}

// ResolveTicker finds the symbol by exact ticker or by company name, creating it when absent.
// Concurrent callers converge on one row through the unique ticker constraint.
func (r *SymbolRegistry) ResolveTicker(ctx context.Context, ticker, displayName string) (domain.Symbol, error) {
	displayName = strings.TrimSpace(displayName)
	canonical := domain.CanonicalTicker(ticker)
	if canonical == "" {
		canonical = domain.TickerForName(displayName)
	}
	if canonical == "" {
		return domain.Symbol{}, domain.ErrEmptyCompanyName
	}

	var lastErr error
	for attempt := 1; attempt <= resolveAttempts; attempt++ {
		sym, err := r.find(ctx, canonical, displayName)
		if err == nil {
			return r.backfillName(ctx, sym, displayName)
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return domain.Symbol{}, fmt.Errorf("resolve symbol %s: %w", canonical, err)
		}

		created, err := r.repo.Create(ctx, domain.Symbol{Ticker: canonical, Name: displayName, Active: true})
		if err == nil {
			r.logger.Info("symbol created", "ticker", created.Ticker, "name", created.Name)
			return created, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return domain.Symbol{}, fmt.Errorf("create symbol %s: %w", canonical, err)
		}

		lastErr = err
		r.logger.Debug("symbol created concurrently, re-reading", "ticker", canonical, "attempt", attempt)
	}

	return domain.Symbol{}, fmt.Errorf("resolve symbol %s after %d attempts: %w", canonical, resolveAttempts, lastErr)
}

func (r *SymbolRegistry) find(ctx context.Context, ticker, displayName string) (domain.Symbol, error) {
	sym, err := r.repo.FindByTicker(ctx, ticker)
	if err == nil || !errors.Is(err, domain.ErrNotFound) || displayName == "" {
		return sym, err
	}
	return r.repo.FindByName(ctx, displayName)
}

func (r *SymbolRegistry) backfillName(ctx context.Context, sym domain.Symbol, displayName string) (domain.Symbol, error) {
	if strings.TrimSpace(sym.Name) != "" || displayName == "" {
		return sym, nil
	}
	sym.Name = displayName
	if err := r.repo.Update(ctx, sym); err != nil {
		return domain.Symbol{}, fmt.Errorf("backfill symbol name %s: %w", sym.Ticker, err)
	}
	return sym, nil
}

// Get loads a symbol by id.
func (r *SymbolRegistry) Get(ctx context.Context, id int64) (domain.Symbol, error) {
	return r.repo.Get(ctx, id)
}

// List pages through symbols.
func (r *SymbolRegistry) List(ctx context.Context, filter ports.ListFilter) ([]domain.Symbol, error) {
	return r.repo.List(ctx, filter)
}

// ListDefaults returns the active watchlist.
func (r *SymbolRegistry) ListDefaults(ctx context.Context) ([]domain.Symbol, error) {
	return r.repo.ListDefaults(ctx)
}

// UpdateFlags changes the active and default flags; nil leaves a flag untouched.
func (r *SymbolRegistry) UpdateFlags(ctx context.Context, id int64, active, isDefault *bool) (domain.Symbol, error) {
	sym, err := r.repo.Get(ctx, id)
	if err != nil {
		return domain.Symbol{}, fmt.Errorf("load symbol %d: %w", id, err)
	}
	if active != nil {
		sym.Active = *active
	}
	if isDefault != nil {
		sym.Default = *isDefault
	}
	if err := r.repo.Update(ctx, sym); err != nil {
		return domain.Symbol{}, fmt.Errorf("update symbol %d: %w", id, err)
	}
	return sym, nil
}

// SetDefault adds or removes a symbol from the scheduled watchlist.
func (r *SymbolRegistry) SetDefault(ctx context.Context, id int64, isDefault bool) (domain.Symbol, error) {
	return r.UpdateFlags(ctx, id, nil, &isDefault)
}

// SetActive toggles whether the symbol takes part in scheduled runs.
func (r *SymbolRegistry) SetActive(ctx context.Context, id int64, active bool) (domain.Symbol, error) {
	return r.UpdateFlags(ctx, id, &active, nil)
}
