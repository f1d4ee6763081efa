package usecase

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"MarketNewsroom/internal/domain"
)

var (
	positiveWords = []string{"cresce", "alta", "ganho", "lucro", "positivo", "subiu", "melhora", "expansão", "crescimento", "sucesso", "vitória"}
	negativeWords = []string{"queda", "perda", "prejuízo", "negativo", "caiu", "decresce", "crise", "problema", "risco", "derrota"}

	stopWords = map[string]struct{}{
		"o": {}, "a": {}, "de": {}, "do": {}, "da": {}, "em": {}, "no": {}, "na": {}, "para": {}, "com": {},
		"que": {}, "e": {}, "ou": {}, "se": {}, "um": {}, "uma": {}, "por": {}, "mais": {},
		"sobre": {}, "entre": {}, "depois": {}, "ainda": {}, "também": {}, "segundo": {},
	}
)

const maxTrendingTopics = 10

// LexicalScore counts lexicon hits in text and returns (p-n)/(p+n), or 0 with no hits.
func LexicalScore(text string) float64 {
	content := strings.ToLower(text)
	var pos, neg int
	for _, w := range positiveWords {
		pos += strings.Count(content, w)
	}
	for _, w := range negativeWords {
		neg += strings.Count(content, w)
	}
	if pos+neg == 0 {
		return 0
	}
	return float64(pos-neg) / float64(pos+neg)
}

// Baseline is the lexical reading of a set of news items.
type Baseline struct {
	Score          float64
	Sentiment      domain.Sentiment
	PositiveCount  int
	NegativeCount  int
	NeutralCount   int
	TrendingTopics []string
	Sources        []string
}

// ScoreItems computes the lexical baseline over items.
func ScoreItems(items []domain.NewsItem) Baseline {
	b := Baseline{Sentiment: domain.SentimentNeutral, TrendingTopics: []string{}, Sources: []string{}}
	if len(items) == 0 {
		return b
	}

	var total float64
	texts := make([]string, 0, len(items))
	seen := map[string]struct{}{}
	for _, item := range items {
		text := item.Title + " " + item.Description
		score := LexicalScore(text)
		total += score

		switch domain.Categorize(score) {
		case domain.SentimentPositive:
			b.PositiveCount++
		case domain.SentimentNegative:
			b.NegativeCount++
		default:
			b.NeutralCount++
		}

		source := strings.TrimSpace(item.Source)
		if source == "" {
			source = "Desconhecido"
		}
		if _, ok := seen[source]; !ok {
			seen[source] = struct{}{}
			b.Sources = append(b.Sources, source)
		}
		texts = append(texts, text)
	}

	b.Score = roundTo(total/float64(len(items)), 4)
	b.Sentiment = domain.Categorize(b.Score)
	b.TrendingTopics = TrendingKeywords(texts, maxTrendingTopics)
	return b
}

// TrendingKeywords returns the most frequent words longer than four letters.
// Ties keep first-appearance order.
func TrendingKeywords(texts []string, limit int) []string {
	counts := map[string]int{}
	var order []string
	for _, text := range texts {
		words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool { return !unicode.IsLetter(r) })
		for _, w := range words {
			if utf8.RuneCountInString(w) <= 4 {
				continue
			}
			if _, stop := stopWords[w]; stop {
				continue
			}
			if counts[w] == 0 {
				order = append(order, w)
			}
			counts[w]++
		}
	}

	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	if len(order) > limit {
		order = order[:limit]
	}
	if order == nil {
		return []string{}
	}
	return order
}

func roundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
