package usecase

import (
	"hash/fnv"
	"strings"

	"github.com/shopspring/decimal"

	"MarketNewsroom/internal/domain"
)

// SyntheticRanges bounds the degraded-mode snapshot.
type SyntheticRanges struct {
	BasePrice    float64
	PriceSpread  int
	HighFactor   float64
	LowFactor    float64
	MaxChange    float64
	VolumeMin    float64
	VolumeMax    float64
	MarketCapMin float64
	MarketCapMax float64
}

// SyntheticQuote derives a deterministic quote from the input string.
// The same input always yields the same numbers.
func SyntheticQuote(input, reason string, r SyntheticRanges) domain.Quote {
	canonical := domain.TickerForName(input)
	h := fnv.New64a()
	_, _ = h.Write([]byte(strings.ToUpper(strings.TrimSpace(input))))
	seed := h.Sum64()

	spread := r.PriceSpread
	if spread <= 0 {
		spread = 1
	}

	cents := decimal.New(int64(seed>>8%100), -2)
	price := decimal.NewFromFloat(r.BasePrice).Add(decimal.NewFromInt(int64(seed % uint64(spread)))).Add(cents)

	maxChangeCents := int64(r.MaxChange * 100)
	change := decimal.Zero
	if maxChangeCents > 0 {
		offset := int64(seed >> 16 % uint64(2*maxChangeCents+1))
		change = decimal.New(offset-maxChangeCents, -2)
	}
	prev := price.Sub(change)

	q := domain.Quote{
		Ticker:        canonical,
		Name:          strings.TrimSpace(input),
		Source:        domain.SourceSynthetic,
		Price:         round(price, 2),
		PreviousClose: round(prev, 2),
		Change:        round(change, 2),
		Volume:        round(between(seed>>24, r.VolumeMin, r.VolumeMax), 0),
		MarketCap:     round(between(seed>>32, r.MarketCapMin, r.MarketCapMax), 0),
		PERatio:       round(decimal.NewFromInt(5).Add(decimal.New(int64(seed>>40%2000), -2)), 2),
		DividendYield: round(decimal.New(int64(seed>>48%800), -2), 2),
		High52w:       round(price.Mul(decimal.NewFromFloat(r.HighFactor)), 2),
		Low52w:        round(price.Mul(decimal.NewFromFloat(r.LowFactor)), 2),
		Raw: map[string]any{
			"source": domain.SourceSynthetic,
			"reason": reason,
		},
	}
	if prev.IsPositive() {
		q.ChangePercent = round(change.Div(prev).Mul(decimal.NewFromInt(100)), 4)
	}
	return q
}

func between(seed uint64, lo, hi float64) decimal.Decimal {
	if hi <= lo {
		return decimal.NewFromFloat(lo)
	}
	span := decimal.NewFromFloat(hi - lo)
	frac := decimal.New(int64(seed%10000), -4)
	return decimal.NewFromFloat(lo).Add(span.Mul(frac))
}

func round(d decimal.Decimal, places int32) *float64 {
	v, _ := d.Round(places).Float64()
	return &v
}
