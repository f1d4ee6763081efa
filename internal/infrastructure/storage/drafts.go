package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

// DraftRepository persists drafts into articles.
type DraftRepository struct {
	db *DB
}

var _ ports.DraftRepository = (*DraftRepository)(nil)

// NewDraftRepository wires the shared DB.
func NewDraftRepository(db *DB) *DraftRepository {
	return &DraftRepository{db: db}
}

var draftColumns = []string{
	"id", "stock_symbol_id", "financial_data_id", "sentiment_analysis_id", "analysis_id", "symbol", "title", "content",
	"status", "motivo_reprovacao", "recomendacao", "metadata", "notified_at", "reviewed_at", "published_at",
	"archived_at", "created_at",
}

func scanDraft(row rowScanner) (domain.Draft, error) {
	var (
		d        domain.Draft
		runID    sql.NullInt64
		metadata []byte
	)
	err := row.Scan(&d.ID, &d.SymbolID, &d.SnapshotID, &d.ReportID, &runID, &d.Ticker, &d.Title, &d.Content,
		&d.Status, &d.RejectionReason, &d.Recommendation, &metadata, &d.NotifiedAt, &d.ReviewedAt, &d.PublishedAt,
		&d.ArchivedAt, &d.CreatedAt)
	if err != nil {
		return d, err
	}
	d.RunID = runID.Int64
	if err := unmarshalJSON(metadata, &d.Metadata); err != nil {
		return d, fmt.Errorf("decode metadata: %w", err)
	}
	return d, nil
}

func nullableID(id int64) sql.NullInt64 {
	return sql.NullInt64{Int64: id, Valid: id != 0}
}

// Create inserts a draft.
func (r *DraftRepository) Create(ctx context.Context, d domain.Draft) (domain.Draft, error) {
	metadata, err := marshalJSON(d.Metadata)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("encode metadata: %w", err)
	}

	query, args, err := r.db.builder.Insert("articles").
		Columns(draftColumns[1:16]...).
		Values(d.SymbolID, d.SnapshotID, d.ReportID, nullableID(d.RunID), d.Ticker, d.Title, d.Content,
			string(d.Status), d.RejectionReason, d.Recommendation, metadata, d.NotifiedAt, d.ReviewedAt, d.PublishedAt,
			d.ArchivedAt).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return domain.Draft{}, fmt.Errorf("build insert draft: %w", err)
	}

	err = r.db.withSchemaRetry(ctx, "insert draft", func() error {
		return mapError(r.db.conn.QueryRowContext(ctx, query, args...).Scan(&d.ID, &d.CreatedAt))
	})
	if err != nil {
		return domain.Draft{}, fmt.Errorf("insert draft %s: %w", d.Ticker, err)
	}
	return d, nil
}

// Get loads one draft.
func (r *DraftRepository) Get(ctx context.Context, id int64) (domain.Draft, error) {
	query, args, err := r.db.builder.Select(draftColumns...).From("articles").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.Draft{}, fmt.Errorf("build get draft: %w", err)
	}

	var d domain.Draft
	err = r.db.withSchemaRetry(ctx, "get draft", func() error {
		var scanErr error
		d, scanErr = scanDraft(r.db.conn.QueryRowContext(ctx, query, args...))
		return mapError(scanErr)
	})
	if err != nil {
		return domain.Draft{}, fmt.Errorf("draft %d: %w", id, err)
	}
	return d, nil
}

// Update writes the review-mutable columns.
func (r *DraftRepository) Update(ctx context.Context, d domain.Draft) error {
	query, args, err := r.db.builder.Update("articles").
		Set("status", string(d.Status)).
		Set("motivo_reprovacao", d.RejectionReason).
		Set("recomendacao", d.Recommendation).
		Set("notified_at", d.NotifiedAt).
		Set("reviewed_at", d.ReviewedAt).
		Set("published_at", d.PublishedAt).
		Set("archived_at", d.ArchivedAt).
		Where(sq.Eq{"id": d.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update draft: %w", err)
	}
	if err := r.db.exec(ctx, "update draft", query, args); err != nil {
		return fmt.Errorf("update draft %d: %w", d.ID, err)
	}
	return nil
}

// List pages through drafts, newest first.
func (r *DraftRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Draft, error) {
	b := applyFilter(r.db.builder.Select(draftColumns...).From("articles").OrderBy("created_at DESC", "id DESC"),
		filter, "symbol", "status", "created_at")

	var out []domain.Draft
	err := r.db.query(ctx, "list drafts", b, func(rows *sql.Rows) error {
		d, err := scanDraft(rows)
		if err != nil {
			return err
		}
		out = append(out, d)
		return nil
	})
	return out, err
}
