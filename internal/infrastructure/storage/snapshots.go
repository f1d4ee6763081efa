package storage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

// SnapshotRepository appends market snapshots to financial_data.
type SnapshotRepository struct {
	db *DB
}

var _ ports.SnapshotRepository = (*SnapshotRepository)(nil)

// NewSnapshotRepository wires the shared DB.
func NewSnapshotRepository(db *DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

var snapshotColumns = []string{
	"id", "stock_symbol_id", "symbol", "company_name", "price", "previous_close", "change", "change_percent",
	"volume", "market_cap", "pe_ratio", "dividend_yield", "high_52w", "low_52w", "source", "raw_data", "collected_at",
}

func scanSnapshot(row rowScanner) (domain.MarketSnapshot, error) {
	var (
		s   domain.MarketSnapshot
		raw []byte
	)
	err := row.Scan(&s.ID, &s.SymbolID, &s.Ticker, &s.CompanyName, &s.Price, &s.PreviousClose, &s.Change, &s.ChangePercent,
		&s.Volume, &s.MarketCap, &s.PERatio, &s.DividendYield, &s.High52w, &s.Low52w, &s.Source, &raw, &s.CollectedAt)
	if err != nil {
		return s, err
	}
	if err := unmarshalJSON(raw, &s.Raw); err != nil {
		return s, fmt.Errorf("decode raw_data: %w", err)
	}
	return s, nil
}

// Create inserts an immutable snapshot.
func (r *SnapshotRepository) Create(ctx context.Context, s domain.MarketSnapshot) (domain.MarketSnapshot, error) {
	raw, err := marshalJSON(s.Raw)
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("encode raw_data: %w", err)
	}

	query, args, err := r.db.builder.Insert("financial_data").
		Columns(snapshotColumns[1:]...).
		Values(s.SymbolID, s.Ticker, s.CompanyName, s.Price, s.PreviousClose, s.Change, s.ChangePercent,
			s.Volume, s.MarketCap, s.PERatio, s.DividendYield, s.High52w, s.Low52w, s.Source, raw, s.CollectedAt).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("build insert snapshot: %w", err)
	}

	err = r.db.withSchemaRetry(ctx, "insert snapshot", func() error {
		return mapError(r.db.conn.QueryRowContext(ctx, query, args...).Scan(&s.ID))
	})
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("insert snapshot %s: %w", s.Ticker, err)
	}
	return s, nil
}

// Get loads one snapshot.
func (r *SnapshotRepository) Get(ctx context.Context, id int64) (domain.MarketSnapshot, error) {
	query, args, err := r.db.builder.Select(snapshotColumns...).From("financial_data").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("build get snapshot: %w", err)
	}

	var snap domain.MarketSnapshot
	err = r.db.withSchemaRetry(ctx, "get snapshot", func() error {
		var scanErr error
		snap, scanErr = scanSnapshot(r.db.conn.QueryRowContext(ctx, query, args...))
		return mapError(scanErr)
	})
	if err != nil {
		return domain.MarketSnapshot{}, fmt.Errorf("snapshot %d: %w", id, err)
	}
	return snap, nil
}

// List pages through snapshots, newest first.
func (r *SnapshotRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.MarketSnapshot, error) {
	b := applyFilter(r.db.builder.Select(snapshotColumns...).From("financial_data").OrderBy("collected_at DESC", "id DESC"),
		filter, "symbol", "", "collected_at")

	var out []domain.MarketSnapshot
	err := r.db.query(ctx, "list snapshots", b, func(rows *sql.Rows) error {
		s, err := scanSnapshot(rows)
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}
