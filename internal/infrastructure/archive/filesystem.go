// Package archive writes rejected drafts to disk as JSON documents.
package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

// Filesystem stores one pretty-printed JSON file per rejected draft.
type Filesystem struct {
	dir string
}

var _ ports.Archiver = (*Filesystem)(nil)

// NewFilesystem archives into dir, created on first use.
func NewFilesystem(dir string) *Filesystem {
	return &Filesystem{dir: dir}
}

type archivedArticle struct {
	ID               int64              `json:"id"`
	Title            string             `json:"title"`
	Content          string             `json:"content"`
	Symbol           string             `json:"symbol"`
	Status           domain.DraftStatus `json:"status"`
	RejectionReason  *string            `json:"motivo_reprovacao"`
	Recommendation   *string            `json:"recomendacao,omitempty"`
	CreatedAt        string             `json:"created_at,omitempty"`
	ReviewedAt       string             `json:"reviewed_at,omitempty"`
	GenerationSource string             `json:"generation_source,omitempty"`
}

type archivedSnapshot struct {
	Price         *float64 `json:"price"`
	Change        *float64 `json:"change"`
	ChangePercent *float64 `json:"change_percent"`
	Volume        *float64 `json:"volume"`
	Source        string   `json:"source"`
}

type archivedReport struct {
	Sentiment domain.Sentiment `json:"sentiment"`
	Score     *float64         `json:"sentiment_score"`
	NewsCount int              `json:"news_count"`
}

type archiveDocument struct {
	Article           archivedArticle   `json:"article"`
	FinancialData     *archivedSnapshot `json:"financial_data"`
	SentimentAnalysis *archivedReport   `json:"sentiment_analysis"`
	SavedAt           string            `json:"saved_at"`
}

// Archive writes artigo_{id}_{ticker}_{timestamp}.json and returns its path.
func (f *Filesystem) Archive(ctx context.Context, rec ports.ArchiveRecord) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(f.dir, 0o755); err != nil {
		return "", fmt.Errorf("create archive dir: %w", err)
	}

	savedAt := rec.SavedAt
	if savedAt.IsZero() {
		savedAt = time.Now()
	}

	doc := archiveDocument{
		Article: archivedArticle{
			ID:               rec.Draft.ID,
			Title:            rec.Draft.Title,
			Content:          rec.Draft.Content,
			Symbol:           rec.Draft.Ticker,
			Status:           rec.Draft.Status,
			RejectionReason:  rec.Draft.RejectionReason,
			Recommendation:   rec.Draft.Recommendation,
			CreatedAt:        isoTime(rec.Draft.CreatedAt),
			GenerationSource: rec.Draft.Metadata.Source,
		},
		SavedAt: savedAt.Format(time.RFC3339),
	}
	if rec.Draft.ReviewedAt != nil {
		doc.Article.ReviewedAt = isoTime(*rec.Draft.ReviewedAt)
	}
	if rec.Snapshot.ID != 0 {
		doc.FinancialData = &archivedSnapshot{
			Price:         rec.Snapshot.Price,
			Change:        rec.Snapshot.Change,
			ChangePercent: rec.Snapshot.ChangePercent,
			Volume:        rec.Snapshot.Volume,
			Source:        rec.Snapshot.Source,
		}
	}
	if rec.Report.ID != 0 {
		doc.SentimentAnalysis = &archivedReport{
			Sentiment: rec.Report.Sentiment,
			Score:     rec.Report.Score,
			NewsCount: rec.Report.NewsCount,
		}
	}

	data, err := json.MarshalIndent(doc, "", "    ")
	if err != nil {
		return "", fmt.Errorf("encode archive: %w", err)
	}

	name := fmt.Sprintf("artigo_%d_%s_%s.json", rec.Draft.ID, domain.CanonicalTicker(rec.Draft.Ticker), savedAt.Format("2006-01-02_150405"))
	path := filepath.Join(f.dir, name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write archive: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("finalize archive: %w", err)
	}
	return path, nil
}

func isoTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.RFC3339)
}
