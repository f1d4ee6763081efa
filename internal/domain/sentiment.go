package domain

import (
	"encoding/json"
	"time"
)

// Sentiment is the categorical reading of a report.
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNegative Sentiment = "negative"
	SentimentNeutral  Sentiment = "neutral"
)

// SentimentThreshold bounds the neutral band around zero.
const SentimentThreshold = 0.1

// Categorize buckets a score in [-1,1].
func Categorize(score float64) Sentiment {
	switch {
	case score > SentimentThreshold:
		return SentimentPositive
	case score < -SentimentThreshold:
		return SentimentNegative
	default:
		return SentimentNeutral
	}
}

// Valid reports whether s is one of the known categories.
func (s Sentiment) Valid() bool {
	return s == SentimentPositive || s == SentimentNegative || s == SentimentNeutral
}

// NewsItem is a single article returned by a news-search provider.
type NewsItem struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// RawNews keeps the normalized provider payload of a report.
type RawNews struct {
	Items    []NewsItem     `json:"items"`
	Analysis map[string]any `json:"analysis"`
}

// SentimentReport is the merged lexical and generative analysis for a symbol.
type SentimentReport struct {
	ID             int64       `json:"id"`
	SymbolID       int64       `json:"stock_symbol_id" validate:"required"`
	Ticker         string      `json:"symbol" validate:"required"`
	Sentiment      Sentiment   `json:"sentiment" validate:"required,oneof=positive negative neutral"`
	Score          *float64    `json:"sentiment_score" validate:"required"`
	NewsCount      int         `json:"news_count" validate:"gte=0"`
	PositiveCount  int         `json:"positive_count" validate:"gte=0"`
	NegativeCount  int         `json:"negative_count" validate:"gte=0"`
	NeutralCount   int         `json:"neutral_count" validate:"gte=0"`
	TrendingTopics []string    `json:"trending_topics"`
	Sources        []string    `json:"news_sources"`
	Enrichment     *Enrichment `json:"enrichment,omitempty"`
	Raw            RawNews     `json:"raw_data"`
	AnalyzedAt     time.Time   `json:"analyzed_at" validate:"required"`
}

// ScoreValue returns the score or 0.
func (r SentimentReport) ScoreValue() float64 {
	return Value(r.Score)
}

// Enrichment is the optional generative market and brand analysis.
type Enrichment struct {
	Sentiment             Sentiment              `json:"sentiment,omitempty"`
	Score                 *float64               `json:"sentiment_score,omitempty"`
	TrendingTopics        []string               `json:"trending_topics,omitempty"`
	MarketAnalysis        *MarketAnalysis        `json:"market_analysis,omitempty"`
	MacroeconomicAnalysis *MacroeconomicAnalysis `json:"macroeconomic_analysis,omitempty"`
	KeyInsights           []string               `json:"key_insights,omitempty"`
	Recommendation        string                 `json:"recommendation,omitempty"`
	BrandPerception       *BrandPerception       `json:"brand_perception,omitempty"`
	StrategicInsights     *StrategicInsights     `json:"strategic_insights,omitempty"`
	RiskAlerts            []string               `json:"risk_alerts,omitempty"`
	Extras                map[string]any         `json:"extras,omitempty"`
}

// MarketAnalysis describes the market reading of the news flow.
type MarketAnalysis struct {
	Summary string   `json:"summary"`
	Trend   string   `json:"trend,omitempty"`
	Drivers []string `json:"drivers,omitempty"`
	Outlook string   `json:"outlook,omitempty"`
}

// UnmarshalJSON accepts either the object form or a bare string summary.
func (m *MarketAnalysis) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*m = MarketAnalysis{Summary: text}
		return nil
	}
	type plain MarketAnalysis
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = MarketAnalysis(v)
	return nil
}

// MacroeconomicAnalysis places the company in its macro context.
type MacroeconomicAnalysis struct {
	Summary            string   `json:"summary"`
	Factors            []string `json:"factors,omitempty"`
	InterestRateImpact string   `json:"interest_rate_impact,omitempty"`
	CurrencyImpact     string   `json:"currency_impact,omitempty"`
}

// UnmarshalJSON accepts either the object form or a bare string summary.
func (m *MacroeconomicAnalysis) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err == nil {
		*m = MacroeconomicAnalysis{Summary: text}
		return nil
	}
	type plain MacroeconomicAnalysis
	var v plain
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*m = MacroeconomicAnalysis(v)
	return nil
}

// MentionCount is one point of a mentions series.
type MentionCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// BrandPerception aggregates engagement and perception metrics.
type BrandPerception struct {
	TotalMentions      int                `json:"total_mentions"`
	MentionsPeak       *MentionCount      `json:"mentions_peak,omitempty"`
	MentionsTimeline   []MentionCount     `json:"mentions_timeline,omitempty"`
	SentimentBreakdown map[string]float64 `json:"sentiment_breakdown,omitempty"`
	EngagementScore    *float64           `json:"engagement_score,omitempty"`
	InvestorConfidence string             `json:"investor_confidence,omitempty"`
	ConfidenceScore    *float64           `json:"confidence_score,omitempty"`
	Perception         string             `json:"perception,omitempty"`
	MainThemes         []string           `json:"main_themes,omitempty"`
	Emotions           map[string]float64 `json:"emotions,omitempty"`
}

// StrategicInsights holds the actionable part of the enrichment.
type StrategicInsights struct {
	ActionableInsights       []string `json:"actionable_insights,omitempty"`
	ImprovementOpportunities []string `json:"improvement_opportunities,omitempty"`
	StrategicAnalysis        string   `json:"strategic_analysis,omitempty"`
}
