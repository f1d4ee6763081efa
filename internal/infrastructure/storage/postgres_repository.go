package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

const (
	pqUniqueViolation = "23505"
	pqUndefinedTable  = "42P01"
)

// DB wraps the Postgres pool with a squirrel builder and the schema retry policy.
type DB struct {
	conn      *sql.DB
	builder   sq.StatementBuilderType
	logger    *slog.Logger
	provision sync.Mutex
	ensure    func(context.Context) error
}

var _ ports.SchemaManager = (*DB)(nil)

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string, maxOpenConns int, logger *slog.Logger) (*DB, error) {
	conn, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if maxOpenConns > 0 {
		conn.SetMaxOpenConns(maxOpenConns)
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return NewDB(conn, logger), nil
}

// NewDB wires an existing sql.DB implementation.
func NewDB(conn *sql.DB, logger *slog.Logger) *DB {
	d := &DB{
		conn:    conn,
		builder: sq.StatementBuilder.PlaceholderFormat(sq.Dollar),
		logger:  logger,
	}
	d.ensure = d.EnsureSchema
	return d
}

// Close releases the pool.
func (d *DB) Close() error {
	if d.conn == nil {
		return nil
	}
	return d.conn.Close()
}

// EnsureSchema creates missing tables and verifies every required table exists.
func (d *DB) EnsureSchema(ctx context.Context) error {
	d.provision.Lock()
	defer d.provision.Unlock()

	if _, err := d.conn.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	for _, table := range requiredTables {
		var regclass sql.NullString
		if err := d.conn.QueryRowContext(ctx, `SELECT to_regclass($1)::text`, "public."+table).Scan(&regclass); err != nil {
			return fmt.Errorf("check table %s: %w", table, err)
		}
		if !regclass.Valid {
			return fmt.Errorf("table %s: %w", table, domain.ErrSchemaMissing)
		}
	}
	return nil
}

// withSchemaRetry runs op once more after provisioning when the first attempt hit a missing table.
func (d *DB) withSchemaRetry(ctx context.Context, name string, op func() error) error {
	err := op()
	if !errors.Is(err, domain.ErrSchemaMissing) {
		return err
	}

	if d.logger != nil {
		d.logger.Warn("schema missing, provisioning", "operation", name, "error", err)
	}
	if perr := d.ensure(ctx); perr != nil {
		return fmt.Errorf("%s: provision schema: %w", name, perr)
	}
	if err := op(); err != nil {
		return fmt.Errorf("%s after provisioning: %w", name, err)
	}
	return nil
}

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch string(pqErr.Code) {
		case pqUniqueViolation:
			return fmt.Errorf("%s: %w", pqErr.Message, domain.ErrConflict)
		case pqUndefinedTable:
			return fmt.Errorf("%s: %w", pqErr.Message, domain.ErrSchemaMissing)
		}
	}
	return err
}

func applyFilter(b sq.SelectBuilder, filter ports.ListFilter, tickerCol, statusCol, timeCol string) sq.SelectBuilder {
	if filter.Ticker != "" && tickerCol != "" {
		b = b.Where(sq.Eq{tickerCol: filter.Ticker})
	}
	if filter.Status != "" && statusCol != "" {
		b = b.Where(sq.Eq{statusCol: filter.Status})
	}
	if !filter.From.IsZero() {
		b = b.Where(sq.GtOrEq{timeCol: filter.From})
	}
	if !filter.To.IsZero() {
		b = b.Where(sq.LtOrEq{timeCol: filter.To})
	}
	if filter.Page.PerPage > 0 {
		b = b.Limit(uint64(filter.Page.PerPage)).Offset(uint64(filter.Page.Offset()))
	}
	return b
}

// marshalJSON encodes v as a JSONB argument; nil stays SQL NULL.
func marshalJSON(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func unmarshalJSON(raw []byte, v any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, v)
}

type rowScanner interface {
	Scan(dest ...any) error
}

// SymbolRepository persists stock symbols into Postgres.
type SymbolRepository struct {
	db *DB
}

var _ ports.SymbolRepository = (*SymbolRepository)(nil)

// NewSymbolRepository wires the shared DB.
func NewSymbolRepository(db *DB) *SymbolRepository {
	return &SymbolRepository{db: db}
}

var symbolColumns = []string{"id", "symbol", "company_name", "is_active", "is_default", "created_at", "updated_at"}

func scanSymbol(row rowScanner) (domain.Symbol, error) {
	var s domain.Symbol
	err := row.Scan(&s.ID, &s.Ticker, &s.Name, &s.Active, &s.Default, &s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func (r *SymbolRepository) findOne(ctx context.Context, name string, where sq.Sqlizer) (domain.Symbol, error) {
	query, args, err := r.db.builder.Select(symbolColumns...).From("stock_symbols").Where(where).OrderBy("id").Limit(1).ToSql()
	if err != nil {
		return domain.Symbol{}, fmt.Errorf("build %s: %w", name, err)
	}

	var sym domain.Symbol
	err = r.db.withSchemaRetry(ctx, name, func() error {
		var scanErr error
		sym, scanErr = scanSymbol(r.db.conn.QueryRowContext(ctx, query, args...))
		return mapError(scanErr)
	})
	return sym, err
}

// FindByTicker looks up an exact ticker.
func (r *SymbolRepository) FindByTicker(ctx context.Context, ticker string) (domain.Symbol, error) {
	return r.findOne(ctx, "find symbol by ticker", sq.Eq{"symbol": ticker})
}

// FindByName matches a case-insensitive substring of the company name.
func (r *SymbolRepository) FindByName(ctx context.Context, name string) (domain.Symbol, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return domain.Symbol{}, domain.ErrNotFound
	}
	return r.findOne(ctx, "find symbol by name", sq.ILike{"company_name": "%" + escapeLike(name) + "%"})
}

// Get loads a symbol by id.
func (r *SymbolRepository) Get(ctx context.Context, id int64) (domain.Symbol, error) {
	return r.findOne(ctx, "get symbol", sq.Eq{"id": id})
}

// Create inserts a symbol; duplicates surface as domain.ErrConflict.
func (r *SymbolRepository) Create(ctx context.Context, symbol domain.Symbol) (domain.Symbol, error) {
	query, args, err := r.db.builder.Insert("stock_symbols").
		Columns("symbol", "company_name", "is_active", "is_default").
		Values(symbol.Ticker, symbol.Name, symbol.Active, symbol.Default).
		Suffix("RETURNING id, created_at, updated_at").
		ToSql()
	if err != nil {
		return domain.Symbol{}, fmt.Errorf("build insert symbol: %w", err)
	}

	err = r.db.withSchemaRetry(ctx, "insert symbol", func() error {
		return mapError(r.db.conn.QueryRowContext(ctx, query, args...).Scan(&symbol.ID, &symbol.CreatedAt, &symbol.UpdatedAt))
	})
	if err != nil {
		return domain.Symbol{}, fmt.Errorf("insert symbol %s: %w", symbol.Ticker, err)
	}
	return symbol, nil
}

// Update writes name and flags.
func (r *SymbolRepository) Update(ctx context.Context, symbol domain.Symbol) error {
	query, args, err := r.db.builder.Update("stock_symbols").
		Set("company_name", symbol.Name).
		Set("is_active", symbol.Active).
		Set("is_default", symbol.Default).
		Set("updated_at", sq.Expr("NOW()")).
		Where(sq.Eq{"id": symbol.ID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build update symbol: %w", err)
	}
	return r.db.exec(ctx, "update symbol", query, args)
}

// List pages through symbols.
func (r *SymbolRepository) List(ctx context.Context, filter ports.ListFilter) ([]domain.Symbol, error) {
	b := applyFilter(r.db.builder.Select(symbolColumns...).From("stock_symbols").OrderBy("id"), filter, "symbol", "", "created_at")
	return r.list(ctx, "list symbols", b)
}

// ListDefaults returns active default symbols, the scheduler watchlist.
func (r *SymbolRepository) ListDefaults(ctx context.Context) ([]domain.Symbol, error) {
	b := r.db.builder.Select(symbolColumns...).From("stock_symbols").
		Where(sq.Eq{"is_default": true, "is_active": true}).OrderBy("id")
	return r.list(ctx, "list default symbols", b)
}

func (r *SymbolRepository) list(ctx context.Context, name string, b sq.SelectBuilder) ([]domain.Symbol, error) {
	var out []domain.Symbol
	err := r.db.query(ctx, name, b, func(rows *sql.Rows) error {
		s, err := scanSymbol(rows)
		if err != nil {
			return err
		}
		out = append(out, s)
		return nil
	})
	return out, err
}

func (d *DB) exec(ctx context.Context, name, query string, args []any) error {
	return d.withSchemaRetry(ctx, name, func() error {
		res, err := d.conn.ExecContext(ctx, query, args...)
		if err != nil {
			return mapError(err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return domain.ErrNotFound
		}
		return nil
	})
}

func (d *DB) query(ctx context.Context, name string, b sq.SelectBuilder, each func(*sql.Rows) error) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build %s: %w", name, err)
	}

	return d.withSchemaRetry(ctx, name, func() error {
		rows, err := d.conn.QueryContext(ctx, query, args...)
		if err != nil {
			return mapError(err)
		}

		for rows.Next() {
			if err := each(rows); err != nil {
				_ = rows.Close()
				return fmt.Errorf("scan row: %w", err)
			}
		}

		if rowsErr := rows.Err(); rowsErr != nil {
			_ = rows.Close()
			return fmt.Errorf("rows iteration: %w", rowsErr)
		}

		if closeErr := rows.Close(); closeErr != nil {
			return fmt.Errorf("close rows: %w", closeErr)
		}
		return nil
	})
}

func escapeLike(v string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(v)
}
