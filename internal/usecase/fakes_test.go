package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/infrastructure/storage/memory"
	"MarketNewsroom/internal/ports"
)

var fixedNow = time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

type mockGenerator struct {
	mock.Mock
}

func (m *mockGenerator) Name() string { return "mock" }

func (m *mockGenerator) Generate(ctx context.Context, req ports.GenerateRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func isDraftRequest(req ports.GenerateRequest) bool {
	return req.SystemInstruction == draftSystemInstruction
}

func isEnrichmentRequest(req ports.GenerateRequest) bool {
	return req.SystemInstruction == enrichmentSystemInstruction
}

type fakeOracle struct {
	mu    sync.Mutex
	quote domain.Quote
	err   error
	calls int
}

func (f *fakeOracle) Name() string { return "fake-oracle" }

func (f *fakeOracle) Quote(_ context.Context, _ string) (domain.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.quote, f.err
}

func (f *fakeOracle) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeNews struct {
	items []domain.NewsItem
	err   error
	calls int
}

func (f *fakeNews) Name() string { return "fake-news" }

func (f *fakeNews) Search(_ context.Context, q ports.NewsQuery) ([]domain.NewsItem, error) {
	f.calls++
	return f.items, f.err
}

// memCache round-trips values through JSON like the badger cache does.
type memCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}}
}

func (c *memCache) Get(_ context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dst)
}

func (c *memCache) Set(_ context.Context, key string, value any, _ time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

type fakeNotifier struct {
	channel string
	err     error
	notices []ports.DraftReadyNotice
}

func (f *fakeNotifier) Channel() string { return f.channel }

func (f *fakeNotifier) NotifyDraftReady(_ context.Context, notice ports.DraftReadyNotice) error {
	if f.err != nil {
		return f.err
	}
	f.notices = append(f.notices, notice)
	return nil
}

type fakeArchiver struct {
	err     error
	records []ports.ArchiveRecord
}

func (f *fakeArchiver) Archive(_ context.Context, rec ports.ArchiveRecord) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.records = append(f.records, rec)
	return "drafts/discarded/artigo.json", nil
}

type fakeQueue struct {
	mu    sync.Mutex
	tasks []ports.StageTask
	err   error
}

func (q *fakeQueue) Enqueue(_ context.Context, task ports.StageTask) error {
	if q.err != nil {
		return q.err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.tasks = append(q.tasks, task)
	return nil
}

// drain delivers tasks until the queue is empty, redelivering failed ones with a bumped attempt.
func (q *fakeQueue) drain(ctx context.Context, handle func(context.Context, ports.StageTask) error) int {
	delivered := 0
	for {
		q.mu.Lock()
		if len(q.tasks) == 0 {
			q.mu.Unlock()
			return delivered
		}
		task := q.tasks[0]
		q.tasks = q.tasks[1:]
		q.mu.Unlock()

		delivered++
		if err := handle(ctx, task); err != nil {
			task.Attempt++
			q.mu.Lock()
			q.tasks = append(q.tasks, task)
			q.mu.Unlock()
		}
	}
}

var errProviderDown = errors.New("provider down")

type harness struct {
	store     *memory.Store
	registry  *SymbolRegistry
	collector *Collector
	analyzer  *SentimentAnalyzer
	drafter   *Drafter
	notifier  *NotificationDispatcher
	review    *ReviewGate
	pipeline  *Pipeline
	oracle    *fakeOracle
	news      *fakeNews
	cache     *memCache
	mailer    *fakeNotifier
	archiver  *fakeArchiver
}

type harnessOptions struct {
	oracle    *fakeOracle
	news      *fakeNews
	generator ports.TextGenerator
}

func testRanges() SyntheticRanges {
	return SyntheticRanges{
		BasePrice:    30,
		PriceSpread:  50,
		HighFactor:   1.2,
		LowFactor:    0.8,
		MaxChange:    1,
		VolumeMin:    1_000_000,
		VolumeMax:    100_000_000,
		MarketCapMin: 1_000_000_000,
		MarketCapMax: 500_000_000_000,
	}
}

func newHarness(opts harnessOptions) *harness {
	h := &harness{
		store:    memory.NewStore(),
		oracle:   opts.oracle,
		news:     opts.news,
		cache:    newMemCache(),
		mailer:   &fakeNotifier{channel: "email"},
		archiver: &fakeArchiver{},
	}

	var oracle ports.QuoteOracle
	if opts.oracle != nil {
		oracle = opts.oracle
	}
	var news ports.NewsSource
	if opts.news != nil {
		news = opts.news
	}

	clock := Clock(fixedClock)
	h.registry = NewSymbolRegistry(h.store.Symbols(), nil)
	h.collector = NewCollector(oracle, h.cache, h.registry, h.store.Snapshots(),
		CollectorConfig{CacheTTL: 5 * time.Minute, Synthetic: testRanges()}, clock, nil)
	h.analyzer = NewSentimentAnalyzer(news, opts.generator, h.cache, h.store.Reports(),
		SentimentConfig{Language: "pt", Limit: 20, CacheTTL: 30 * time.Minute, Temperature: 0.5, MaxTokens: 2048}, clock, nil)
	h.drafter = NewDrafter(opts.generator, h.cache, h.store.Drafts(),
		DrafterConfig{CacheTTL: time.Hour, Temperature: 0.6, MaxTokens: 3072}, clock, nil)
	h.notifier = NewNotificationDispatcher(h.store.Drafts(), clock, nil, h.mailer)
	h.review = NewReviewGate(h.store.Drafts(), h.store.Runs(), h.store.Snapshots(), h.store.Reports(), h.archiver, clock, nil)
	h.pipeline = NewPipeline(PipelineDeps{
		Runs:      h.store.Runs(),
		Snapshots: h.store.Snapshots(),
		Reports:   h.store.Reports(),
		Drafts:    h.store.Drafts(),
		Registry:  h.registry,
		Collector: h.collector,
		Analyzer:  h.analyzer,
		Drafter:   h.drafter,
		Notifier:  h.notifier,
		Clock:     clock,
	})
	return h
}

// acme registers the ACME4 symbol so reports and snapshots can reference it.
func (h *harness) acme(t *testing.T) domain.Symbol {
	t.Helper()
	sym, err := h.registry.ResolveTicker(context.Background(), acmeSymbol.Ticker, acmeSymbol.Name)
	if err != nil {
		t.Fatalf("register acme: %v", err)
	}
	return sym
}

func acmeOracle() *fakeOracle {
	return &fakeOracle{quote: domain.Quote{
		Ticker:        "ACME4",
		Source:        domain.SourceLLM,
		Price:         domain.Float(30.50),
		PreviousClose: domain.Float(30.00),
	}}
}

func positiveNews() *fakeNews {
	return &fakeNews{items: []domain.NewsItem{
		{Title: "Acme registra lucro recorde", Description: "Ações em alta após resultado", Source: "Valor"},
		{Title: "Acme anuncia expansão", Description: "Crescimento acelerado no trimestre", Source: "InfoMoney"},
	}}
}
