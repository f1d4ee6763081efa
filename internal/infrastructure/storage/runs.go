package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

// RunRepository persists pipeline runs into analyses.
type RunRepository struct {
	db *DB
}

var _ ports.RunRepository = (*RunRepository)(nil)

// NewRunRepository wires the shared DB.
func NewRunRepository(db *DB) *RunRepository {
	return &RunRepository{db: db}
}

var runColumns = []string{
	"id", "correlation_id", "stock_symbol_id", "company_name", "ticker", "status", "financial_data_id",
	"sentiment_analysis_id", "article_id", "error_message", "logs", "created_by", "started_at", "completed_at", "created_at",
}

func scanRun(row rowScanner) (domain.PipelineRun, error) {
	var (
		r    domain.PipelineRun
		logs []byte
	)
	err := row.Scan(&r.ID, &r.CorrelationID, &r.SymbolID, &r.CompanyName, &r.Ticker, &r.Status, &r.SnapshotID,
		&r.ReportID, &r.DraftID, &r.ErrorMessage, &logs, &r.CreatedBy, &r.StartedAt, &r.CompletedAt, &r.CreatedAt)
	if err != nil {
		return r, err
	}
	if err := unmarshalJSON(logs, &r.Logs); err != nil {
		return r, fmt.Errorf("decode logs: %w", err)
	}
	return r, nil
}

func encodeLogs(entries []domain.LogEntry) (any, error) {
	if entries == nil {
		entries = []domain.LogEntry{}
	}
	return marshalJSON(entries)
}

// Create inserts a run.
func (r *RunRepository) Create(ctx context.Context, run domain.PipelineRun) (domain.PipelineRun, error) {
	logs, err := encodeLogs(run.Logs)
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("encode logs: %w", err)
	}

	query, args, err := r.db.builder.Insert("analyses").
		Columns(runColumns[1:14]...).
		Values(run.CorrelationID, run.SymbolID, run.CompanyName, run.Ticker, string(run.Status), run.SnapshotID,
			run.ReportID, run.DraftID, run.ErrorMessage, logs, run.CreatedBy, run.StartedAt, run.CompletedAt).
		Suffix("RETURNING id, created_at").
		ToSql()
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("build insert run: %w", err)
	}

	err = r.db.withSchemaRetry(ctx, "insert run", func() error {
		return mapError(r.db.conn.QueryRowContext(ctx, query, args...).Scan(&run.ID, &run.CreatedAt))
	})
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("insert run: %w", err)
	}
	return run, nil
}

func (r *RunRepository) getWhere(ctx context.Context, name string, where sq.Sqlizer) (domain.PipelineRun, error) {
	query, args, err := r.db.builder.Select(runColumns...).From("analyses").Where(where).OrderBy("id DESC").Limit(1).ToSql()
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("build %s: %w", name, err)
	}

	var run domain.PipelineRun
	err = r.db.withSchemaRetry(ctx, name, func() error {
		var scanErr error
		run, scanErr = scanRun(r.db.conn.QueryRowContext(ctx, query, args...))
		return mapError(scanErr)
	})
	return run, err
}

// Get loads one run.
func (r *RunRepository) Get(ctx context.Context, id int64) (domain.PipelineRun, error) {
	run, err := r.getWhere(ctx, "get run", sq.Eq{"id": id})
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("run %d: %w", id, err)
	}
	return run, nil
}

// FindByDraft returns the run that produced a draft.
func (r *RunRepository) FindByDraft(ctx context.Context, draftID int64) (domain.PipelineRun, error) {
	run, err := r.getWhere(ctx, "find run by draft", sq.Eq{"article_id": draftID})
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("run for draft %d: %w", draftID, err)
	}
	return run, nil
}

// Update rewrites status, references, error and log.
func (r *RunRepository) Update(ctx context.Context, run domain.PipelineRun) error {
	logs, err := encodeLogs(run.Logs)
	if err != nil {
		return fmt.Errorf("encode logs: %w", err)
	}

	query, args, err := r.db.builder.Update("analyses").
		Set("stock_symbol_id", run.SymbolID).
		Set("ticker", run.Ticker).
		Set("status", string(run.Status)).
		Set("financial_data_id", run.SnapshotID).
		Set("sentiment_analysis_id", run.ReportID).
		Set("article_id", run.DraftID).
		Set("error_message", run.ErrorMessage).
		Set("logs", logs).
		Set("started_at", run.StartedAt).
		Set("completed_at", run.CompletedAt).
		Where(sq.Eq{"id": run.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update run: %w", err)
	}
	if err := r.db.exec(ctx, "update run", query, args); err != nil {
		return fmt.Errorf("update run %d: %w", run.ID, err)
	}
	return nil
}

// List pages through runs, newest first.
func (r *RunRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.PipelineRun, error) {
	b := applyFilter(r.db.builder.Select(runColumns...).From("analyses").OrderBy("created_at DESC", "id DESC"),
		filter, "ticker", "status", "created_at")

	var out []domain.PipelineRun
	err := r.db.query(ctx, "list runs", b, func(rows *sql.Rows) error {
		run, err := scanRun(rows)
		if err != nil {
			return err
		}
		out = append(out, run)
		return nil
	})
	return out, err
}
