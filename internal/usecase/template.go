package usecase

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"MarketNewsroom/internal/domain"
)

// TemplateArticle renders the deterministic fallback article as Markdown.
func TemplateArticle(snap domain.MarketSnapshot, report domain.SentimentReport, ticker string) (string, string) {
	change := domain.Value(snap.Change)
	trend := "estabilidade"
	switch {
	case change > 0:
		trend = "alta"
	case change < 0:
		trend = "queda"
	}

	title := fmt.Sprintf("Análise %s: Mercado em %s - R$ %s", ticker, trend, formatBRL(snap.Price, 2))

	var b strings.Builder
	fmt.Fprintf(&b, "## Análise de %s\n\n", ticker)

	b.WriteString("### Dados Financeiros\n\n")
	fmt.Fprintf(&b, "A ação %s está sendo negociada a R$ %s.\n\n", ticker, formatBRL(snap.Price, 2))
	if change != 0 {
		abs := domain.Float(absFloat(change))
		pct := domain.Float(absFloat(domain.Value(snap.ChangePercent)))
		fmt.Fprintf(&b, "A variação do dia foi de R$ %s (%s%%), ", formatBRL(abs, 2), formatBRL(pct, 2))
		if change > 0 {
			b.WriteString("representando uma valorização.\n\n")
		} else {
			b.WriteString("representando uma desvalorização.\n\n")
		}
	}
	if snap.Volume != nil {
		fmt.Fprintf(&b, "O volume negociado foi de %s ações.\n\n", formatBRL(snap.Volume, 0))
	}

	b.WriteString("### Análise de Sentimento\n\n")
	fmt.Fprintf(&b, "Com base na análise de %d notícias, o sentimento do mercado é **%s** com score de %s.\n\n",
		report.NewsCount, sentimentLabel(report.Sentiment), decimal.NewFromFloat(report.ScoreValue()).StringFixed(2))
	if len(report.TrendingTopics) > 0 {
		fmt.Fprintf(&b, "**Tópicos em destaque:** %s\n\n", strings.Join(report.TrendingTopics, ", "))
	}

	b.WriteString("### Recomendação\n\n")
	b.WriteString(templateRecommendation(report.Sentiment, domain.Value(snap.ChangePercent)))
	b.WriteString("\n")

	return title, b.String()
}

func templateRecommendation(sentiment domain.Sentiment, changePercent float64) string {
	rec := "Considerando os dados financeiros e a análise de sentimento do mercado, "
	switch {
	case sentiment == domain.SentimentPositive && changePercent > 0:
		rec += "há sinais positivos, mas é importante avaliar cuidadosamente antes de investir. " +
			"Recomenda-se análise técnica e fundamentalista adicional."
	case sentiment == domain.SentimentNegative && changePercent < 0:
		rec += "há sinais de cautela. Recomenda-se aguardar mais informações ou evitar posições arriscadas. " +
			"Consulte um analista financeiro antes de tomar decisões."
	default:
		rec += "o mercado mostra sinais mistos. Recomenda-se acompanhar de perto e buscar mais informações antes de investir."
	}
	return rec
}

func sentimentLabel(s domain.Sentiment) string {
	switch s {
	case domain.SentimentPositive:
		return "positivo"
	case domain.SentimentNegative:
		return "negativo"
	default:
		return "neutro"
	}
}

// formatBRL renders v with "." thousands and "," decimals.
func formatBRL(v *float64, places int32) string {
	if v == nil {
		return "N/A"
	}
	fixed := decimal.NewFromFloat(*v).StringFixed(places)

	sign := ""
	if strings.HasPrefix(fixed, "-") {
		sign, fixed = "-", fixed[1:]
	}
	intPart, frac, _ := strings.Cut(fixed, ".")

	var grouped strings.Builder
	for i, r := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			grouped.WriteByte('.')
		}
		grouped.WriteRune(r)
	}

	if frac == "" {
		return sign + grouped.String()
	}
	return sign + grouped.String() + "," + frac
}

func absFloat(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
