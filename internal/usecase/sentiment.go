package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/jsonutil"
	"MarketNewsroom/internal/ports"
)

// SentimentConfig tunes news retrieval and enrichment.
type SentimentConfig struct {
	Language    string
	Limit       int
	CacheTTL    time.Duration
	Temperature float32
	MaxTokens   int
}

const maxEnrichmentItems = 10

// extraAnalysisKeys are enrichment fields kept verbatim under raw_data.analysis.
var extraAnalysisKeys = []string{"digital_data", "behavioral_data", "strategic_insights", "cost_optimization"}

// SentimentAnalyzer builds sentiment reports from news plus optional generative enrichment.
type SentimentAnalyzer struct {
	news      ports.NewsSource
	generator ports.TextGenerator
	cache     ports.Cache
	reports   ports.ReportRepository
	cfg       SentimentConfig
	clock     Clock
	logger    *slog.Logger
}

// NewSentimentAnalyzer wires the analyzer; news, generator and cache may be nil.
func NewSentimentAnalyzer(news ports.NewsSource, generator ports.TextGenerator, cache ports.Cache, reports ports.ReportRepository, cfg SentimentConfig, clock Clock, logger *slog.Logger) *SentimentAnalyzer {
	if cfg.Limit <= 0 {
		cfg.Limit = 20
	}
	return &SentimentAnalyzer{
		news:      news,
		generator: generator,
		cache:     cache,
		reports:   reports,
		cfg:       cfg,
		clock:     clock,
		logger:    componentLogger(logger, "sentiment"),
	}
}

// Analyze gathers news for the symbol, scores it and persists the merged report.
func (a *SentimentAnalyzer) Analyze(ctx context.Context, sym domain.Symbol, companyName string, snap domain.MarketSnapshot, log *domain.RunLog) (domain.SentimentReport, error) {
	query := strings.TrimSpace(companyName)
	if query == "" {
		query = sym.DisplayName()
	}

	items := a.fetchNews(ctx, sym, query, log)
	base := ScoreItems(items)
	log.Add(StageAnalyzeSentiment, "Sentimento base: %s (score %.4f) em %d notícias", base.Sentiment, base.Score, len(items))

	enrichment, extras := a.enrich(ctx, sym, query, items, snap, log)
	report := MergeReport(sym, items, base, enrichment, extras, a.clock.now())

	if err := domain.Validate(StageAnalyzeSentiment, report); err != nil {
		return domain.SentimentReport{}, err
	}

	report, err := a.reports.Create(ctx, report)
	if err != nil {
		return domain.SentimentReport{}, fmt.Errorf("persist report: %w", err)
	}

	log.Add(StageAnalyzeSentiment, "Análise de sentimento concluída: %s (score %.4f)", report.Sentiment, report.ScoreValue())
	a.logger.Info("report stored", "ticker", report.Ticker, "sentiment", report.Sentiment, "report_id", report.ID)
	return report, nil
}

func (a *SentimentAnalyzer) fetchNews(ctx context.Context, sym domain.Symbol, query string, log *domain.RunLog) []domain.NewsItem {
	if a.news == nil {
		log.Add(StageAnalyzeSentiment, "Aviso: provedor de notícias não configurado, usando notícia de referência")
		return []domain.NewsItem{placeholderItem(sym.Ticker, a.clock.now())}
	}

	key := cacheKey("news", strings.ToLower(query), hourBucket(a.clock.now()))
	var cached []domain.NewsItem
	if readThrough(ctx, a.cache, a.logger, key, &cached) {
		log.Add(StageAnalyzeSentiment, "%d notícias obtidas do cache", len(cached))
		return cached
	}

	items, err := a.news.Search(ctx, ports.NewsQuery{Query: query, Language: a.cfg.Language, Limit: a.cfg.Limit})
	if err != nil {
		a.logger.Warn("news search failed, using placeholder", "source", a.news.Name(), "query", query, "error", err)
		log.Add(StageAnalyzeSentiment, "Aviso: busca de notícias indisponível (%s), usando notícia de referência", a.news.Name())
		return []domain.NewsItem{placeholderItem(sym.Ticker, a.clock.now())}
	}
	if len(items) > a.cfg.Limit {
		items = items[:a.cfg.Limit]
	}
	if items == nil {
		items = []domain.NewsItem{}
	}

	writeThrough(ctx, a.cache, a.logger, key, items, a.cfg.CacheTTL)
	log.Add(StageAnalyzeSentiment, "%d notícias encontradas via %s", len(items), a.news.Name())
	return items
}

func placeholderItem(ticker string, now time.Time) domain.NewsItem {
	return domain.NewsItem{
		Title:       fmt.Sprintf("Análise: %s mostra sinais positivos no mercado", ticker),
		Description: fmt.Sprintf("Especialistas indicam crescimento para %s", ticker),
		Source:      "Financial News",
		PublishedAt: now,
	}
}

func (a *SentimentAnalyzer) enrich(ctx context.Context, sym domain.Symbol, companyName string, items []domain.NewsItem, snap domain.MarketSnapshot, log *domain.RunLog) (*domain.Enrichment, map[string]any) {
	if a.generator == nil {
		return nil, nil
	}

	text, err := a.generator.Generate(ctx, ports.GenerateRequest{
		Prompt:            enrichmentPrompt(sym, companyName, items, snap),
		SystemInstruction: enrichmentSystemInstruction,
		Temperature:       a.cfg.Temperature,
		MaxTokens:         a.cfg.MaxTokens,
		JSON:              true,
	})
	if err != nil {
		a.logger.Warn("enrichment failed", "provider", a.generator.Name(), "error", err)
		log.Add(StageAnalyzeSentiment, "Aviso: enriquecimento indisponível, mantendo análise base")
		return nil, nil
	}

	enrichment, extras, err := ParseEnrichment(text)
	if err != nil {
		a.logger.Warn("enrichment discarded", "provider", a.generator.Name(), "error", err)
		log.Add(StageAnalyzeSentiment, "Aviso: resposta de enriquecimento inválida, mantendo análise base")
		return nil, nil
	}

	log.Add(StageAnalyzeSentiment, "Enriquecimento de mercado e marca recebido via %s", a.generator.Name())
	return enrichment, extras
}

// ParseEnrichment decodes a provider response into the typed enrichment and its verbatim extras.
func ParseEnrichment(text string) (*domain.Enrichment, map[string]any, error) {
	obj, err := jsonutil.ExtractObject(text)
	if err != nil {
		return nil, nil, fmt.Errorf("extract enrichment: %w", domain.ErrMalformedResponse)
	}

	var e domain.Enrichment
	if err := json.Unmarshal([]byte(obj), &e); err != nil {
		return nil, nil, fmt.Errorf("decode enrichment: %v: %w", err, domain.ErrMalformedResponse)
	}

	var loose map[string]any
	if err := json.Unmarshal([]byte(obj), &loose); err != nil {
		return nil, nil, fmt.Errorf("decode enrichment extras: %v: %w", err, domain.ErrMalformedResponse)
	}

	extras := map[string]any{}
	for _, k := range extraAnalysisKeys {
		if v, ok := loose[k]; ok && v != nil {
			extras[k] = v
		}
	}
	if len(extras) > 0 {
		e.Extras = extras
	}

	if e.Sentiment != "" && !e.Sentiment.Valid() {
		e.Sentiment = ""
	}
	if e.Score != nil && (*e.Score < -1 || *e.Score > 1) {
		e.Score = nil
	}
	return &e, extras, nil
}

// MergeReport combines the lexical baseline and the enrichment.
// Enrichment score and topics win when present and counts always come from the baseline.
// The category follows the merged score, unless the enrichment names a category without a score.
func MergeReport(sym domain.Symbol, items []domain.NewsItem, base Baseline, e *domain.Enrichment, extras map[string]any, now time.Time) domain.SentimentReport {
	score := base.Score
	topics := base.TrendingTopics
	category := domain.Categorize(score)

	if e != nil {
		if e.Score != nil {
			score = roundTo(*e.Score, 4)
			category = domain.Categorize(score)
		} else if e.Sentiment.Valid() {
			category = e.Sentiment
		}
		if len(e.TrendingTopics) > 0 {
			topics = e.TrendingTopics
		}
	}

	if items == nil {
		items = []domain.NewsItem{}
	}
	if extras == nil {
		extras = map[string]any{}
	}

	return domain.SentimentReport{
		SymbolID:       sym.ID,
		Ticker:         sym.Ticker,
		Sentiment:      category,
		Score:          &score,
		NewsCount:      len(items),
		PositiveCount:  base.PositiveCount,
		NegativeCount:  base.NegativeCount,
		NeutralCount:   base.NeutralCount,
		TrendingTopics: topics,
		Sources:        base.Sources,
		Enrichment:     e,
		Raw:            domain.RawNews{Items: items, Analysis: extras},
		AnalyzedAt:     now,
	}
}
