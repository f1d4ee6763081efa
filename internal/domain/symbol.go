package domain

import (
	"fmt"
	"hash/fnv"
	"strings"
	"time"
)

const maxTickerLength = 32

// Symbol is the canonical ticker record every pipeline artifact references.
type Symbol struct {
	ID        int64     `json:"id"`
	Ticker    string    `json:"symbol" validate:"required,max=32"`
	Name      string    `json:"company_name"`
	Active    bool      `json:"is_active"`
	Default   bool      `json:"is_default"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DisplayName falls back to the ticker when no company name was recorded.
func (s Symbol) DisplayName() string {
	if strings.TrimSpace(s.Name) != "" {
		return s.Name
	}
	return s.Ticker
}

// CanonicalTicker upper-cases the input, drops the B3 ".SA" suffix and keeps A-Z0-9 only.
func CanonicalTicker(value string) string {
	v := strings.ToUpper(strings.TrimSpace(value))
	v = strings.TrimSuffix(v, ".SA")

	var b strings.Builder
	for _, r := range v {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	out := b.String()
	if len(out) > maxTickerLength {
		out = out[:maxTickerLength]
	}
	return out
}

// TickerForName canonicalises a company name into a ticker. Names without any
// A-Z0-9 character, such as "日本電信電話", map to a stable hash-based ticker.
func TickerForName(name string) string {
	name = strings.TrimSpace(name)
	if t := CanonicalTicker(name); t != "" || name == "" {
		return t
	}
	h := fnv.New32a()
	_, _ = h.Write([]byte(name))
	return fmt.Sprintf("SYM%08X", h.Sum32())
}
