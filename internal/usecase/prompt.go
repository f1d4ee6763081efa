package usecase

import (
	"encoding/json"
	"fmt"
	"strings"

	"MarketNewsroom/internal/domain"
)

const enrichmentSystemInstruction = "Você é um analista de mercado especializado em sentimento de mídia e percepção de marca. " +
	"Responda somente com JSON válido, sem texto adicional."

const draftSystemInstruction = "Você é um jornalista financeiro veterano com mais de 15 anos de experiência. " +
	"Sua missão é transformar dados técnicos em redação jornalística clara, objetiva, aprofundada e profissional."

// Disclaimer is appended to every draft that does not already carry one.
const Disclaimer = "<p><em>Este conteúdo foi gerado automaticamente com auxílio de inteligência artificial e requer revisão humana antes da publicação. " +
	"As informações apresentadas não constituem recomendação de investimento. " +
	"Consulte sempre um analista financeiro certificado antes de tomar decisões de investimento.</em></p>"

func enrichmentPrompt(sym domain.Symbol, companyName string, items []domain.NewsItem, snap domain.MarketSnapshot) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Analise o sentimento do mercado e a percepção de marca de %s (%s).\n\n", companyName, sym.Ticker)

	b.WriteString("DADOS FINANCEIROS:\n")
	writeSnapshot(&b, snap)

	b.WriteString("\nNOTÍCIAS RECENTES:\n")
	if len(items) == 0 {
		b.WriteString("- Nenhuma notícia encontrada\n")
	}
	for i, item := range items {
		if i == maxEnrichmentItems {
			break
		}
		fmt.Fprintf(&b, "%d. %s (%s)\n", i+1, item.Title, sourceOrUnknown(item.Source))
		if d := strings.TrimSpace(item.Description); d != "" {
			fmt.Fprintf(&b, "   %s\n", d)
		}
	}

	b.WriteString(`
Retorne APENAS um JSON com a estrutura:
{
  "sentiment": "positive|negative|neutral",
  "sentiment_score": número entre -1 e 1,
  "trending_topics": ["tópico"],
  "market_analysis": {"summary": "", "trend": "", "drivers": [""], "outlook": ""},
  "macroeconomic_analysis": {"summary": "", "factors": [""], "interest_rate_impact": "", "currency_impact": ""},
  "key_insights": [""],
  "recommendation": "",
  "brand_perception": {
    "total_mentions": 0,
    "mentions_peak": {"date": "AAAA-MM-DD", "count": 0},
    "mentions_timeline": [{"date": "AAAA-MM-DD", "count": 0}],
    "sentiment_breakdown": {"positive": 0, "negative": 0, "neutral": 0},
    "engagement_score": 0,
    "investor_confidence": "alta|média|baixa",
    "confidence_score": 0,
    "perception": "",
    "main_themes": [""],
    "emotions": {"confiança": 0, "medo": 0}
  },
  "strategic_insights": {"actionable_insights": [""], "improvement_opportunities": [""], "strategic_analysis": ""},
  "risk_alerts": [""],
  "digital_data": {},
  "behavioral_data": {},
  "cost_optimization": {}
}
`)
	return b.String()
}

func articlePrompt(snap domain.MarketSnapshot, report domain.SentimentReport, sym domain.Symbol) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Escreva uma matéria jornalística sobre a ação %s (%s) para um portal financeiro. "+
		"A matéria será revisada por editores humanos antes da publicação.\n\n", sym.Ticker, sym.DisplayName())

	b.WriteString("DADOS FINANCEIROS:\n")
	writeSnapshot(&b, snap)

	b.WriteString("\nANÁLISE DE SENTIMENTO:\n")
	fmt.Fprintf(&b, "- Sentimento geral: %s\n", report.Sentiment)
	fmt.Fprintf(&b, "- Score de sentimento: %.4f\n", report.ScoreValue())
	fmt.Fprintf(&b, "- Notícias analisadas: %d (positivas %d, negativas %d, neutras %d)\n",
		report.NewsCount, report.PositiveCount, report.NegativeCount, report.NeutralCount)
	fmt.Fprintf(&b, "- Tópicos em destaque: %s\n", joinOrNA(report.TrendingTopics))
	fmt.Fprintf(&b, "- Fontes: %s\n", joinOrNA(report.Sources))

	if e := report.Enrichment; e != nil {
		section(&b, "ANÁLISE DE MERCADO", e.MarketAnalysis)
		section(&b, "ANÁLISE MACROECONÔMICA", e.MacroeconomicAnalysis)
		section(&b, "INSIGHTS PRINCIPAIS", e.KeyInsights)
		section(&b, "MÉTRICAS DE PERCEPÇÃO DE MARCA", e.BrandPerception)
		if e.StrategicInsights != nil {
			section(&b, "INSIGHTS ESTRATÉGICOS", e.StrategicInsights.ActionableInsights)
			section(&b, "OPORTUNIDADES DE MELHORIA", e.StrategicInsights.ImprovementOpportunities)
		}
		section(&b, "ALERTAS DE RISCO", e.RiskAlerts)
	}
	if a := report.Raw.Analysis; len(a) > 0 {
		section(&b, "DADOS DIGITAIS", a["digital_data"])
		section(&b, "DADOS COMPORTAMENTAIS", a["behavioral_data"])
	}

	b.WriteString(`
DIRETRIZES DE REDAÇÃO:
1. Título informativo e preciso, com o símbolo da ação, sem sensacionalismo.
2. Lead forte: o que está acontecendo e por que é relevante, ancorado em preço e variação.
3. Análise dos indicadores: explique P/L, dividend yield, volume e máximas/mínimas de 52 semanas.
4. Contexto de mercado e sentimento: relacione notícias e movimentos de preço.
5. Percepção de marca e comportamento, quando disponível.
6. Riscos e perspectivas de forma equilibrada, sem especulação.
7. Conclusão sem recomendação explícita de compra ou venda.
8. Tom neutro, profissional e preciso com números.
9. Parágrafos curtos; explique termos técnicos.
10. Formate o conteúdo em HTML com <h2>, <p>, <strong>, <ul> e <li>.

Não inclua o aviso legal; ele será adicionado automaticamente.

Retorne APENAS um JSON válido:
{"title": "Título da matéria", "content": "Conteúdo completo em HTML"}
`)
	return b.String()
}

func writeSnapshot(b *strings.Builder, snap domain.MarketSnapshot) {
	fmt.Fprintf(b, "- Preço atual: R$ %s\n", formatOptional(snap.Price))
	fmt.Fprintf(b, "- Fechamento anterior: R$ %s\n", formatOptional(snap.PreviousClose))
	fmt.Fprintf(b, "- Variação: %s (%s%%)\n", formatOptional(snap.Change), formatOptional(snap.ChangePercent))
	fmt.Fprintf(b, "- Volume negociado: %s\n", formatOptional(snap.Volume))
	fmt.Fprintf(b, "- Capitalização de mercado: R$ %s\n", formatOptional(snap.MarketCap))
	fmt.Fprintf(b, "- P/L: %s\n", formatOptional(snap.PERatio))
	fmt.Fprintf(b, "- Dividend Yield: %s%%\n", formatOptional(snap.DividendYield))
	fmt.Fprintf(b, "- Máxima 52 semanas: R$ %s\n", formatOptional(snap.High52w))
	fmt.Fprintf(b, "- Mínima 52 semanas: R$ %s\n", formatOptional(snap.Low52w))
}

func section(b *strings.Builder, title string, v any) {
	if isEmpty(v) {
		return
	}
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return
	}
	fmt.Fprintf(b, "\n%s:\n%s\n", title, raw)
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case []string:
		return len(x) == 0
	case map[string]any:
		return len(x) == 0
	case *domain.MarketAnalysis:
		return x == nil
	case *domain.MacroeconomicAnalysis:
		return x == nil
	case *domain.BrandPerception:
		return x == nil
	}
	return false
}

func joinOrNA(v []string) string {
	if len(v) == 0 {
		return "N/A"
	}
	return strings.Join(v, ", ")
}

func sourceOrUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Desconhecido"
	}
	return s
}
