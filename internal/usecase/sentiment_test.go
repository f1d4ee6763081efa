package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

var acmeSymbol = domain.Symbol{ID: 1, Ticker: "ACME4", Name: "Acme Co", Active: true}

func TestLexicalScore(t *testing.T) {
	t.Parallel()

	assert.InDelta(t, 1.0/3.0, LexicalScore("Lucro em ALTA, mas com risco"), 1e-9)
	assert.Equal(t, -1.0, LexicalScore("queda e prejuízo"))
	assert.Equal(t, 0.0, LexicalScore("reunião de conselho"))
}

func TestScoreItemsWithoutNewsIsNeutral(t *testing.T) {
	t.Parallel()

	b := ScoreItems(nil)
	assert.Equal(t, domain.SentimentNeutral, b.Sentiment)
	assert.Zero(t, b.Score)
	assert.Empty(t, b.TrendingTopics)
	assert.NotNil(t, b.Sources)
}

func TestScoreItemsCountsAndSources(t *testing.T) {
	t.Parallel()

	items := append(positiveNews().items, domain.NewsItem{Title: "Acme enfrenta crise", Description: "queda nas vendas"})
	b := ScoreItems(items)

	assert.Equal(t, 2, b.PositiveCount)
	assert.Equal(t, 1, b.NegativeCount)
	assert.Equal(t, 0, b.NeutralCount)
	assert.InDelta(t, 0.3333, b.Score, 1e-9)
	assert.Equal(t, domain.SentimentPositive, b.Sentiment)
	assert.Equal(t, []string{"Valor", "InfoMoney", "Desconhecido"}, b.Sources)
}

func TestTrendingKeywords(t *testing.T) {
	t.Parallel()

	got := TrendingKeywords([]string{"alpha beta gamma omega", "Omega, delta!"}, 2)
	assert.Equal(t, []string{"omega", "alpha"}, got)

	assert.Equal(t, []string{}, TrendingKeywords(nil, 5))
}

func TestParseEnrichmentIsLenient(t *testing.T) {
	t.Parallel()

	raw := "Segue a análise:\n```json\n" + `{
		"sentiment": "muito bom",
		"sentiment_score": 1.5,
		"trending_topics": ["dividendos"],
		"market_analysis": "Mercado otimista",
		"digital_data": {"social_mentions": 120},
		"risk_alerts": ["câmbio"]
	}` + "\n```"

	e, extras, err := ParseEnrichment(raw)
	require.NoError(t, err)

	assert.Empty(t, e.Sentiment)
	assert.Nil(t, e.Score)
	assert.Equal(t, []string{"dividendos"}, e.TrendingTopics)
	require.NotNil(t, e.MarketAnalysis)
	assert.Equal(t, "Mercado otimista", e.MarketAnalysis.Summary)
	assert.Contains(t, extras, "digital_data")
	assert.Equal(t, extras, e.Extras)

	_, _, err = ParseEnrichment("sem json aqui")
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestMergeReportUsesEnrichmentCategoryWithoutScore(t *testing.T) {
	t.Parallel()

	base := Baseline{Score: 0.5, Sentiment: domain.SentimentPositive, PositiveCount: 3}
	e := &domain.Enrichment{Sentiment: domain.SentimentNegative, TrendingTopics: []string{"dívida"}}

	r := MergeReport(acmeSymbol, nil, base, e, nil, fixedNow)

	assert.Equal(t, domain.SentimentNegative, r.Sentiment)
	assert.Equal(t, 0.5, r.ScoreValue())
	assert.Equal(t, []string{"dívida"}, r.TrendingTopics)

	r = MergeReport(acmeSymbol, nil, base, &domain.Enrichment{}, nil, fixedNow)
	assert.Equal(t, domain.SentimentPositive, r.Sentiment)
}

func TestMergeReportRecomputesCategoryFromScore(t *testing.T) {
	t.Parallel()

	base := Baseline{Score: 0.5, Sentiment: domain.SentimentPositive, PositiveCount: 3, TrendingTopics: []string{"lucro"}, Sources: []string{"Valor"}}
	e := &domain.Enrichment{Sentiment: domain.SentimentPositive, Score: domain.Float(-0.4)}

	r := MergeReport(acmeSymbol, nil, base, e, nil, fixedNow)

	assert.Equal(t, domain.SentimentNegative, r.Sentiment)
	assert.Equal(t, -0.4, r.ScoreValue())
	assert.Equal(t, 3, r.PositiveCount)
	assert.Equal(t, []string{"lucro"}, r.TrendingTopics)
	assert.Equal(t, 0, r.NewsCount)
	assert.NotNil(t, r.Raw.Items)
	assert.NotNil(t, r.Raw.Analysis)
}

func TestAnalyzeWithoutNewsIsNeutral(t *testing.T) {
	t.Parallel()

	h := newHarness(harnessOptions{news: &fakeNews{}})

	report, err := h.analyzer.Analyze(context.Background(), h.acme(t), "Acme Co", domain.MarketSnapshot{}, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.SentimentNeutral, report.Sentiment)
	assert.Equal(t, 0, report.NewsCount)
	require.NotNil(t, report.Score)
	assert.Zero(t, *report.Score)
	assert.NotZero(t, report.ID)
}

func TestAnalyzeFallsBackToPlaceholderNews(t *testing.T) {
	t.Parallel()

	h := newHarness(harnessOptions{news: &fakeNews{err: errProviderDown}})
	log := domain.NewRunLog(fixedClock)

	report, err := h.analyzer.Analyze(context.Background(), h.acme(t), "Acme Co", domain.MarketSnapshot{}, log)
	require.NoError(t, err)

	require.Len(t, report.Raw.Items, 1)
	item := report.Raw.Items[0]
	assert.Equal(t, "Análise: ACME4 mostra sinais positivos no mercado", item.Title)
	assert.Equal(t, "Financial News", item.Source)
	assert.Equal(t, domain.SentimentPositive, report.Sentiment)
	assert.Equal(t, []string{"Financial News"}, report.Sources)
}

func TestAnalyzeCachesNewsPerHour(t *testing.T) {
	t.Parallel()

	news := positiveNews()
	h := newHarness(harnessOptions{news: news})

	_, err := h.analyzer.Analyze(context.Background(), h.acme(t), "Acme Co", domain.MarketSnapshot{}, nil)
	require.NoError(t, err)
	again, err := h.analyzer.Analyze(context.Background(), h.acme(t), "Acme Co", domain.MarketSnapshot{}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, news.calls)
	assert.Equal(t, 2, again.NewsCount)
}

func TestAnalyzeMergesEnrichment(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.MatchedBy(func(req ports.GenerateRequest) bool {
		return isEnrichmentRequest(req) && req.JSON
	})).Return(`{"sentiment":"negative","sentiment_score":-0.6,"trending_topics":["dívida","juros"],"key_insights":["alavancagem alta"]}`, nil).Once()

	h := newHarness(harnessOptions{news: positiveNews(), generator: gen})

	report, err := h.analyzer.Analyze(context.Background(), h.acme(t), "Acme Co", domain.MarketSnapshot{}, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.SentimentNegative, report.Sentiment)
	assert.Equal(t, -0.6, report.ScoreValue())
	assert.Equal(t, []string{"dívida", "juros"}, report.TrendingTopics)
	assert.Equal(t, 2, report.PositiveCount)
	require.NotNil(t, report.Enrichment)
	assert.Equal(t, []string{"alavancagem alta"}, report.Enrichment.KeyInsights)
	gen.AssertExpectations(t)
}

func TestAnalyzeKeepsBaselineWhenEnrichmentFails(t *testing.T) {
	t.Parallel()

	gen := &mockGenerator{}
	gen.On("Generate", mock.Anything, mock.Anything).Return("", errProviderDown).Once()

	h := newHarness(harnessOptions{news: positiveNews(), generator: gen})

	report, err := h.analyzer.Analyze(context.Background(), h.acme(t), "Acme Co", domain.MarketSnapshot{}, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.SentimentPositive, report.Sentiment)
	assert.Equal(t, 1.0, report.ScoreValue())
	assert.Nil(t, report.Enrichment)
	gen.AssertExpectations(t)
}
