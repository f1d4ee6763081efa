package usecase

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/jsonutil"
	"MarketNewsroom/internal/ports"
)

const maxTitleLength = 500

// DrafterConfig tunes article generation.
type DrafterConfig struct {
	CacheTTL    time.Duration
	Temperature float32
	MaxTokens   int
}

// DraftInput is everything the drafter needs for one article.
type DraftInput struct {
	Snapshot      domain.MarketSnapshot
	Report        domain.SentimentReport
	Symbol        domain.Symbol
	RunID         int64
	CorrelationID string
}

type draftText struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Source   string `json:"source"`
	Provider string `json:"provider,omitempty"`
}

// Drafter turns a snapshot and a report into a pending-review article.
type Drafter struct {
	generator ports.TextGenerator
	cache     ports.Cache
	drafts    ports.DraftRepository
	cfg       DrafterConfig
	clock     Clock
	logger    *slog.Logger
}

// NewDrafter wires the drafter; generator and cache may be nil.
func NewDrafter(generator ports.TextGenerator, cache ports.Cache, drafts ports.DraftRepository, cfg DrafterConfig, clock Clock, logger *slog.Logger) *Drafter {
	return &Drafter{
		generator: generator,
		cache:     cache,
		drafts:    drafts,
		cfg:       cfg,
		clock:     clock,
		logger:    componentLogger(logger, "drafter"),
	}
}

// Draft generates, normalizes and persists the article.
func (d *Drafter) Draft(ctx context.Context, in DraftInput, log *domain.RunLog) (domain.Draft, error) {
	ticker := in.Symbol.Ticker
	text := d.compose(ctx, in, log)

	content, err := NormalizeMarkup(text.Content)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("normalize draft markup: %w", err)
	}
	if !HasVisibleText(content) && text.Source != domain.DraftSourceTemplate {
		d.logger.Warn("article body has no text, using template", "ticker", ticker, "source", text.Source)
		log.Add(StageDraftArticle, "Aviso: corpo do artigo vazio, usando modelo padrão")
		text = d.template(in)
		if content, err = NormalizeMarkup(text.Content); err != nil {
			return domain.Draft{}, fmt.Errorf("normalize draft markup: %w", err)
		}
	}
	recommendation := ExtractRecommendation(content)
	content = WithDisclaimer(content)

	now := d.clock.now()
	draft := domain.Draft{
		SymbolID:       in.Symbol.ID,
		SnapshotID:     in.Snapshot.ID,
		ReportID:       in.Report.ID,
		RunID:          in.RunID,
		Ticker:         ticker,
		Title:          truncateRunes(strings.TrimSpace(text.Title), maxTitleLength),
		Content:        content,
		Status:         domain.DraftPendingReview,
		Recommendation: recommendation,
		Metadata: domain.DraftMetadata{
			GeneratedAt:         now,
			Source:              text.Source,
			Provider:            text.Provider,
			CorrelationID:       in.CorrelationID,
			SnapshotCollectedAt: in.Snapshot.CollectedAt,
			ReportAnalyzedAt:    in.Report.AnalyzedAt,
		},
	}
	if err := domain.Validate(StageDraftArticle, draft); err != nil {
		return domain.Draft{}, err
	}

	draft, err = d.drafts.Create(ctx, draft)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("persist draft: %w", err)
	}

	log.Add(StageDraftArticle, "Artigo gerado (%s): %s", draft.Metadata.Source, draft.Title)
	d.logger.Info("draft stored", "ticker", ticker, "draft_id", draft.ID, "source", draft.Metadata.Source)
	return draft, nil
}

func (d *Drafter) compose(ctx context.Context, in DraftInput, log *domain.RunLog) draftText {
	if d.generator == nil {
		log.Add(StageDraftArticle, "Provedor de IA não configurado, usando modelo padrão")
		return d.template(in)
	}

	key := DraftCacheKey(in.Snapshot, in.Report, in.Symbol.Ticker)
	var cached draftText
	if readThrough(ctx, d.cache, d.logger, key, &cached) && cached.Title != "" && cached.Content != "" {
		log.Add(StageDraftArticle, "Artigo obtido do cache")
		cached.Source = domain.DraftSourceCache
		return cached
	}

	text := d.generate(ctx, in, log)
	if text.Source == domain.DraftSourceAI {
		writeThrough(ctx, d.cache, d.logger, key, text, d.cfg.CacheTTL)
	}
	return text
}

func (d *Drafter) generate(ctx context.Context, in DraftInput, log *domain.RunLog) draftText {
	raw, err := d.generator.Generate(ctx, ports.GenerateRequest{
		Prompt:            articlePrompt(in.Snapshot, in.Report, in.Symbol),
		SystemInstruction: draftSystemInstruction,
		Temperature:       d.cfg.Temperature,
		MaxTokens:         d.cfg.MaxTokens,
		JSON:              true,
	})
	if err != nil {
		d.logger.Warn("article generation failed, using template", "provider", d.generator.Name(), "error", err)
		log.Add(StageDraftArticle, "Aviso: geração por IA falhou, usando modelo padrão")
		return d.template(in)
	}

	title, content, ok := ParseArticle(raw)
	if ok {
		normalized, err := NormalizeMarkup(content)
		ok = err == nil && HasVisibleText(normalized)
	}
	if !ok {
		d.logger.Warn("unusable article response, using template", "provider", d.generator.Name())
		log.Add(StageDraftArticle, "Aviso: resposta da IA inutilizável, usando modelo padrão")
		return d.template(in)
	}

	log.Add(StageDraftArticle, "Artigo redigido via %s", d.generator.Name())
	return draftText{Title: title, Content: content, Source: domain.DraftSourceAI, Provider: d.generator.Name()}
}

func (d *Drafter) template(in DraftInput) draftText {
	title, content := TemplateArticle(in.Snapshot, in.Report, in.Symbol.Ticker)
	return draftText{Title: title, Content: content, Source: domain.DraftSourceTemplate}
}

// ParseArticle extracts title and body from a provider response.
// It tries a JSON object, then an HTML heading, then a Markdown heading or short first line.
func ParseArticle(raw string) (string, string, bool) {
	var doc struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := jsonutil.Decode(raw, &doc); err == nil {
		title, content := strings.TrimSpace(doc.Title), strings.TrimSpace(doc.Content)
		if title != "" && content != "" {
			return title, content, true
		}
	}

	body := jsonutil.StripFences(raw)
	if body == "" {
		return "", "", false
	}

	var title, content string
	var ok bool
	if htmlTagRe.MatchString(body) {
		title, content, ok = splitHTMLTitle(body)
	} else {
		title, content, ok = splitMarkdownTitle(body)
	}
	if !ok || strings.TrimSpace(content) == "" {
		return "", "", false
	}
	return title, content, true
}

// DraftCacheKey hashes the inputs that decide an article.
func DraftCacheKey(snap domain.MarketSnapshot, report domain.SentimentReport, ticker string) string {
	raw := fmt.Sprintf("%s|%s|%s|%s|%.4f|%s",
		formatOptional(snap.Price), ticker, formatOptional(snap.ChangePercent), report.Sentiment, report.ScoreValue(), ticker)
	sum := md5.Sum([]byte(raw))
	return "draft:" + hex.EncodeToString(sum[:])
}
