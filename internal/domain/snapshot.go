package domain

import "time"

// Quote sources.
const (
	SourceLLM       = "llm"
	SourceYahoo     = "yahoo"
	SourceSynthetic = "synthetic"
)

// Quote is what a market oracle hands back before it is tied to a Symbol.
type Quote struct {
	Ticker        string
	Name          string
	Source        string
	Price         *float64
	PreviousClose *float64
	Change        *float64
	ChangePercent *float64
	Volume        *float64
	MarketCap     *float64
	PERatio       *float64
	DividendYield *float64
	High52w       *float64
	Low52w        *float64
	Raw           map[string]any
}

// HasData reports whether the quote carries anything a snapshot can be built from.
func (q Quote) HasData() bool {
	return q.Price != nil || q.Volume != nil || q.MarketCap != nil || q.Ticker != ""
}

// MarketSnapshot is an immutable point-in-time capture of market metrics.
type MarketSnapshot struct {
	ID            int64          `json:"id"`
	SymbolID      int64          `json:"stock_symbol_id" validate:"required"`
	Ticker        string         `json:"symbol" validate:"required"`
	CompanyName   string         `json:"company_name,omitempty"`
	Price         *float64       `json:"price"`
	PreviousClose *float64       `json:"previous_close"`
	Change        *float64       `json:"change"`
	ChangePercent *float64       `json:"change_percent"`
	Volume        *float64       `json:"volume"`
	MarketCap     *float64       `json:"market_cap"`
	PERatio       *float64       `json:"pe_ratio"`
	DividendYield *float64       `json:"dividend_yield"`
	High52w       *float64       `json:"high_52w"`
	Low52w        *float64       `json:"low_52w"`
	Source        string         `json:"source" validate:"required,oneof=llm yahoo synthetic"`
	Raw           map[string]any `json:"raw_data,omitempty"`
	CollectedAt   time.Time      `json:"collected_at" validate:"required"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// Value dereferences p, returning 0 for nil.
func Value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
