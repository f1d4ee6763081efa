package usecase

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/infrastructure/storage/memory"
	"MarketNewsroom/internal/ports"
)

func TestResolveCreatesCanonicalSymbol(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry := NewSymbolRegistry(memory.NewStore().Symbols(), nil)

	sym, err := registry.Resolve(ctx, " petr4.sa ")
	require.NoError(t, err)
	assert.Equal(t, "PETR4", sym.Ticker)
	assert.True(t, sym.Active)

	again, err := registry.Resolve(ctx, "PETR4")
	require.NoError(t, err)
	assert.Equal(t, sym.ID, again.ID)
}

func TestResolveRejectsBlankInput(t *testing.T) {
	t.Parallel()

	registry := NewSymbolRegistry(memory.NewStore().Symbols(), nil)

	_, err := registry.Resolve(context.Background(), "   ")
	assert.ErrorIs(t, err, domain.ErrEmptyCompanyName)

	_, err = registry.ResolveTicker(context.Background(), "...", "")
	assert.ErrorIs(t, err, domain.ErrEmptyCompanyName)
}

func TestResolveConcurrentCallersShareOneRow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	registry := NewSymbolRegistry(store.Symbols(), nil)

	const callers = 16
	ids := make([]int64, callers)
	errs := make([]error, callers)

	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sym, err := registry.Resolve(ctx, "Acme Co")
			ids[i], errs[i] = sym.ID, err
		}(i)
	}
	wg.Wait()

	for i := range ids {
		require.NoError(t, errs[i])
		assert.Equal(t, ids[0], ids[i])
	}

	all, err := store.Symbols().List(ctx, ports.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestResolveTickerFindsByCompanyName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	registry := NewSymbolRegistry(store.Symbols(), nil)

	existing, err := store.Symbols().Create(ctx, domain.Symbol{Ticker: "VALE3", Name: "Vale"})
	require.NoError(t, err)

	sym, err := registry.ResolveTicker(ctx, "Vale", "Vale")
	require.NoError(t, err)
	assert.Equal(t, existing.ID, sym.ID)
}

func TestResolveTickerBackfillsMissingName(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := memory.NewStore()
	registry := NewSymbolRegistry(store.Symbols(), nil)

	created, err := store.Symbols().Create(ctx, domain.Symbol{Ticker: "ITUB4"})
	require.NoError(t, err)

	sym, err := registry.ResolveTicker(ctx, "ITUB4", "Itaú Unibanco")
	require.NoError(t, err)
	assert.Equal(t, "Itaú Unibanco", sym.Name)

	stored, err := registry.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Itaú Unibanco", stored.Name)
}

func TestUpdateFlagsDrivesWatchlist(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	registry := NewSymbolRegistry(memory.NewStore().Symbols(), nil)

	sym, err := registry.Resolve(ctx, "WEGE3")
	require.NoError(t, err)

	defaults, err := registry.ListDefaults(ctx)
	require.NoError(t, err)
	assert.Empty(t, defaults)

	_, err = registry.SetDefault(ctx, sym.ID, true)
	require.NoError(t, err)
	defaults, err = registry.ListDefaults(ctx)
	require.NoError(t, err)
	require.Len(t, defaults, 1)
	assert.Equal(t, "WEGE3", defaults[0].Ticker)

	updated, err := registry.SetActive(ctx, sym.ID, false)
	require.NoError(t, err)
	assert.False(t, updated.Active)
	assert.True(t, updated.Default)

	_, err = registry.UpdateFlags(ctx, 999, nil, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
