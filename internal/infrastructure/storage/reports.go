package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

// ReportRepository appends sentiment reports to sentiment_analysis.
type ReportRepository struct {
	db *DB
}

var _ ports.ReportRepository = (*ReportRepository)(nil)

// NewReportRepository wires the shared DB.
func NewReportRepository(db *DB) *ReportRepository {
	return &ReportRepository{db: db}
}

var reportColumns = []string{
	"id", "stock_symbol_id", "symbol", "sentiment", "sentiment_score", "news_count", "positive_count",
	"negative_count", "neutral_count", "trending_topics", "news_sources", "enrichment", "raw_data", "analyzed_at",
}

func scanReport(row rowScanner) (domain.SentimentReport, error) {
	var (
		r          domain.SentimentReport
		score      float64
		topics     pq.StringArray
		sources    pq.StringArray
		enrichment []byte
		raw        []byte
	)
	err := row.Scan(&r.ID, &r.SymbolID, &r.Ticker, &r.Sentiment, &score, &r.NewsCount, &r.PositiveCount,
		&r.NegativeCount, &r.NeutralCount, &topics, &sources, &enrichment, &raw, &r.AnalyzedAt)
	if err != nil {
		return r, err
	}
	r.Score = &score
	r.TrendingTopics = []string(topics)
	r.Sources = []string(sources)
	if len(enrichment) > 0 && string(enrichment) != "null" {
		r.Enrichment = &domain.Enrichment{}
		if err := unmarshalJSON(enrichment, r.Enrichment); err != nil {
			return r, fmt.Errorf("decode enrichment: %w", err)
		}
	}
	if err := unmarshalJSON(raw, &r.Raw); err != nil {
		return r, fmt.Errorf("decode raw_data: %w", err)
	}
	return r, nil
}

// Create inserts a report.
func (r *ReportRepository) Create(ctx context.Context, rep domain.SentimentReport) (domain.SentimentReport, error) {
	var enrichment any
	if rep.Enrichment != nil {
		var err error
		if enrichment, err = marshalJSON(rep.Enrichment); err != nil {
			return domain.SentimentReport{}, fmt.Errorf("encode enrichment: %w", err)
		}
	}
	raw, err := marshalJSON(rep.Raw)
	if err != nil {
		return domain.SentimentReport{}, fmt.Errorf("encode raw_data: %w", err)
	}

	query, args, err := r.db.builder.Insert("sentiment_analysis").
		Columns(reportColumns[1:]...).
		Values(rep.SymbolID, rep.Ticker, string(rep.Sentiment), rep.ScoreValue(), rep.NewsCount, rep.PositiveCount,
			rep.NegativeCount, rep.NeutralCount, pq.StringArray(nonNil(rep.TrendingTopics)), pq.StringArray(nonNil(rep.Sources)),
			enrichment, raw, rep.AnalyzedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return domain.SentimentReport{}, fmt.Errorf("build insert report: %w", err)
	}

	err = r.db.withSchemaRetry(ctx, "insert report", func() error {
		return mapError(r.db.conn.QueryRowContext(ctx, query, args...).Scan(&rep.ID))
	})
	if err != nil {
		return domain.SentimentReport{}, fmt.Errorf("insert report %s: %w", rep.Ticker, err)
	}
	return rep, nil
}

// Get loads one report.
func (r *ReportRepository) Get(ctx context.Context, id int64) (domain.SentimentReport, error) {
	query, args, err := r.db.builder.Select(reportColumns...).From("sentiment_analysis").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.SentimentReport{}, fmt.Errorf("build get report: %w", err)
	}

	var rep domain.SentimentReport
	err = r.db.withSchemaRetry(ctx, "get report", func() error {
		var scanErr error
		rep, scanErr = scanReport(r.db.conn.QueryRowContext(ctx, query, args...))
		return mapError(scanErr)
	})
	if err != nil {
		return domain.SentimentReport{}, fmt.Errorf("report %d: %w", id, err)
	}
	return rep, nil
}

// List pages through reports; Status filters by sentiment category.
func (r *ReportRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.SentimentReport, error) {
	b := applyFilter(r.db.builder.Select(reportColumns...).From("sentiment_analysis").OrderBy("analyzed_at DESC", "id DESC"),
		filter, "symbol", "sentiment", "analyzed_at")

	var out []domain.SentimentReport
	err := r.db.query(ctx, "list reports", b, func(rows *sql.Rows) error {
		rep, err := scanReport(rows)
		if err != nil {
			return err
		}
		out = append(out, rep)
		return nil
	})
	return out, err
}

func nonNil(v []string) []string {
	if v == nil {
		return []string{}
	}
	return v
}
