package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

// Store keeps every entity in process memory. It backs tests and the
// "memory" database driver.
type Store struct {
	mu        sync.RWMutex
	seq       int64
	symbols   map[int64]domain.Symbol
	snapshots map[int64]domain.MarketSnapshot
	reports   map[int64]domain.SentimentReport
	drafts    map[int64]domain.Draft
	runs      map[int64]domain.PipelineRun
	now       func() time.Time
}

// NewStore builds an empty store.
func NewStore() *Store {
	return &Store{
		symbols:   map[int64]domain.Symbol{},
		snapshots: map[int64]domain.MarketSnapshot{},
		reports:   map[int64]domain.SentimentReport{},
		drafts:    map[int64]domain.Draft{},
		runs:      map[int64]domain.PipelineRun{},
		now:       time.Now,
	}
}

// EnsureSchema is a no-op; the maps exist from construction.
func (s *Store) EnsureSchema(context.Context) error { return nil }

var _ ports.SchemaManager = (*Store)(nil)

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// Symbols exposes the symbol repository view.
func (s *Store) Symbols() *SymbolRepository { return &SymbolRepository{s: s} }

// Snapshots exposes the snapshot repository view.
func (s *Store) Snapshots() *SnapshotRepository { return &SnapshotRepository{s: s} }

// Reports exposes the report repository view.
func (s *Store) Reports() *ReportRepository { return &ReportRepository{s: s} }

// Drafts exposes the draft repository view.
func (s *Store) Drafts() *DraftRepository { return &DraftRepository{s: s} }

// Runs exposes the run repository view.
func (s *Store) Runs() *RunRepository { return &RunRepository{s: s} }

// SymbolRepository implements ports.SymbolRepository.
type SymbolRepository struct{ s *Store }

var _ ports.SymbolRepository = (*SymbolRepository)(nil)

func (r *SymbolRepository) FindByTicker(_ context.Context, ticker string) (domain.Symbol, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, sym := range r.s.symbols {
		if sym.Ticker == ticker {
			return sym, nil
		}
	}
	return domain.Symbol{}, domain.ErrNotFound
}

func (r *SymbolRepository) FindByName(_ context.Context, name string) (domain.Symbol, error) {
	needle := strings.ToLower(strings.TrimSpace(name))
	if needle == "" {
		return domain.Symbol{}, domain.ErrNotFound
	}
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, sym := range sortedSymbols(r.s.symbols) {
		if strings.Contains(strings.ToLower(sym.Name), needle) {
			return sym, nil
		}
	}
	return domain.Symbol{}, domain.ErrNotFound
}

func (r *SymbolRepository) Get(_ context.Context, id int64) (domain.Symbol, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sym, ok := r.s.symbols[id]
	if !ok {
		return domain.Symbol{}, fmt.Errorf("symbol %d: %w", id, domain.ErrNotFound)
	}
	return sym, nil
}

func (r *SymbolRepository) Create(_ context.Context, symbol domain.Symbol) (domain.Symbol, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.symbols {
		if existing.Ticker == symbol.Ticker {
			return domain.Symbol{}, fmt.Errorf("symbol %s: %w", symbol.Ticker, domain.ErrConflict)
		}
	}
	now := r.s.now().UTC()
	symbol.ID = r.s.nextID()
	symbol.CreatedAt = now
	symbol.UpdatedAt = now
	r.s.symbols[symbol.ID] = symbol
	return symbol, nil
}

func (r *SymbolRepository) Update(_ context.Context, symbol domain.Symbol) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.symbols[symbol.ID]; !ok {
		return fmt.Errorf("symbol %d: %w", symbol.ID, domain.ErrNotFound)
	}
	symbol.UpdatedAt = r.s.now().UTC()
	r.s.symbols[symbol.ID] = symbol
	return nil
}

func (r *SymbolRepository) List(_ context.Context, filter ports.ListFilter) ([]domain.Symbol, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Symbol
	for _, sym := range sortedSymbols(r.s.symbols) {
		if filter.Ticker != "" && sym.Ticker != filter.Ticker {
			continue
		}
		if !inRange(sym.CreatedAt, filter) {
			continue
		}
		out = append(out, sym)
	}
	return paginate(out, filter.Page), nil
}

func (r *SymbolRepository) ListDefaults(_ context.Context) ([]domain.Symbol, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Symbol
	for _, sym := range sortedSymbols(r.s.symbols) {
		if sym.Default && sym.Active {
			out = append(out, sym)
		}
	}
	return out, nil
}

func sortedSymbols(m map[int64]domain.Symbol) []domain.Symbol {
	out := make([]domain.Symbol, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// SnapshotRepository implements ports.SnapshotRepository.
type SnapshotRepository struct{ s *Store }

var _ ports.SnapshotRepository = (*SnapshotRepository)(nil)

func (r *SnapshotRepository) Create(_ context.Context, snapshot domain.MarketSnapshot) (domain.MarketSnapshot, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.symbols[snapshot.SymbolID]; !ok {
		return domain.MarketSnapshot{}, fmt.Errorf("symbol %d: %w", snapshot.SymbolID, domain.ErrNotFound)
	}
	snapshot.ID = r.s.nextID()
	r.s.snapshots[snapshot.ID] = snapshot
	return snapshot, nil
}

func (r *SnapshotRepository) Get(_ context.Context, id int64) (domain.MarketSnapshot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	snap, ok := r.s.snapshots[id]
	if !ok {
		return domain.MarketSnapshot{}, fmt.Errorf("snapshot %d: %w", id, domain.ErrNotFound)
	}
	return snap, nil
}

func (r *SnapshotRepository) List(_ context.Context, filter ports.ListFilter) ([]domain.MarketSnapshot, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.MarketSnapshot
	for _, id := range newestKeys(r.s.snapshots) {
		snap := r.s.snapshots[id]
		if filter.Ticker != "" && snap.Ticker != filter.Ticker {
			continue
		}
		if !inRange(snap.CollectedAt, filter) {
			continue
		}
		out = append(out, snap)
	}
	return paginate(out, filter.Page), nil
}

// ReportRepository implements ports.ReportRepository.
type ReportRepository struct{ s *Store }

var _ ports.ReportRepository = (*ReportRepository)(nil)

func (r *ReportRepository) Create(_ context.Context, report domain.SentimentReport) (domain.SentimentReport, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.symbols[report.SymbolID]; !ok {
		return domain.SentimentReport{}, fmt.Errorf("symbol %d: %w", report.SymbolID, domain.ErrNotFound)
	}
	report.ID = r.s.nextID()
	r.s.reports[report.ID] = report
	return report, nil
}

func (r *ReportRepository) Get(_ context.Context, id int64) (domain.SentimentReport, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rep, ok := r.s.reports[id]
	if !ok {
		return domain.SentimentReport{}, fmt.Errorf("report %d: %w", id, domain.ErrNotFound)
	}
	return rep, nil
}

func (r *ReportRepository) List(_ context.Context, filter ports.ListFilter) ([]domain.SentimentReport, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.SentimentReport
	for _, id := range newestKeys(r.s.reports) {
		rep := r.s.reports[id]
		if filter.Ticker != "" && rep.Ticker != filter.Ticker {
			continue
		}
		if filter.Status != "" && string(rep.Sentiment) != filter.Status {
			continue
		}
		if !inRange(rep.AnalyzedAt, filter) {
			continue
		}
		out = append(out, rep)
	}
	return paginate(out, filter.Page), nil
}

// DraftRepository implements ports.DraftRepository.
type DraftRepository struct{ s *Store }

var _ ports.DraftRepository = (*DraftRepository)(nil)

func (r *DraftRepository) Create(_ context.Context, draft domain.Draft) (domain.Draft, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	draft.ID = r.s.nextID()
	if draft.CreatedAt.IsZero() {
		draft.CreatedAt = r.s.now().UTC()
	}
	r.s.drafts[draft.ID] = draft
	return draft, nil
}

func (r *DraftRepository) Get(_ context.Context, id int64) (domain.Draft, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	d, ok := r.s.drafts[id]
	if !ok {
		return domain.Draft{}, fmt.Errorf("draft %d: %w", id, domain.ErrNotFound)
	}
	return d, nil
}

func (r *DraftRepository) Update(_ context.Context, draft domain.Draft) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.drafts[draft.ID]; !ok {
		return fmt.Errorf("draft %d: %w", draft.ID, domain.ErrNotFound)
	}
	r.s.drafts[draft.ID] = draft
	return nil
}

func (r *DraftRepository) List(_ context.Context, filter ports.ListFilter) ([]domain.Draft, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Draft
	for _, id := range newestKeys(r.s.drafts) {
		d := r.s.drafts[id]
		if filter.Ticker != "" && d.Ticker != filter.Ticker {
			continue
		}
		if filter.Status != "" && string(d.Status) != filter.Status {
			continue
		}
		if !inRange(d.CreatedAt, filter) {
			continue
		}
		out = append(out, d)
	}
	return paginate(out, filter.Page), nil
}

// RunRepository implements ports.RunRepository.
type RunRepository struct{ s *Store }

var _ ports.RunRepository = (*RunRepository)(nil)

func (r *RunRepository) Create(_ context.Context, run domain.PipelineRun) (domain.PipelineRun, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	run.ID = r.s.nextID()
	if run.CreatedAt.IsZero() {
		run.CreatedAt = r.s.now().UTC()
	}
	run.Logs = cloneLogs(run.Logs)
	r.s.runs[run.ID] = run
	run.Logs = cloneLogs(run.Logs)
	return run, nil
}

func (r *RunRepository) Get(_ context.Context, id int64) (domain.PipelineRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	run, ok := r.s.runs[id]
	if !ok {
		return domain.PipelineRun{}, fmt.Errorf("run %d: %w", id, domain.ErrNotFound)
	}
	run.Logs = cloneLogs(run.Logs)
	return run, nil
}

func (r *RunRepository) Update(_ context.Context, run domain.PipelineRun) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.runs[run.ID]; !ok {
		return fmt.Errorf("run %d: %w", run.ID, domain.ErrNotFound)
	}
	run.Logs = cloneLogs(run.Logs)
	r.s.runs[run.ID] = run
	return nil
}

func (r *RunRepository) FindByDraft(_ context.Context, draftID int64) (domain.PipelineRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, id := range newestKeys(r.s.runs) {
		run := r.s.runs[id]
		if run.DraftID != nil && *run.DraftID == draftID {
			run.Logs = cloneLogs(run.Logs)
			return run, nil
		}
	}
	return domain.PipelineRun{}, fmt.Errorf("run for draft %d: %w", draftID, domain.ErrNotFound)
}

func (r *RunRepository) List(_ context.Context, filter ports.ListFilter) ([]domain.PipelineRun, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.PipelineRun
	for _, id := range newestKeys(r.s.runs) {
		run := r.s.runs[id]
		if filter.Ticker != "" && run.Ticker != filter.Ticker {
			continue
		}
		if filter.Status != "" && string(run.Status) != filter.Status {
			continue
		}
		if !inRange(run.CreatedAt, filter) {
			continue
		}
		run.Logs = cloneLogs(run.Logs)
		out = append(out, run)
	}
	return paginate(out, filter.Page), nil
}

func cloneLogs(in []domain.LogEntry) []domain.LogEntry {
	if in == nil {
		return nil
	}
	out := make([]domain.LogEntry, len(in))
	copy(out, in)
	return out
}

// newestKeys orders ids newest first, matching the Postgres listings.
func newestKeys[T any](m map[int64]T) []int64 {
	keys := make([]int64, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] > keys[j] })
	return keys
}

func inRange(ts time.Time, filter ports.ListFilter) bool {
	if !filter.From.IsZero() && ts.Before(filter.From) {
		return false
	}
	if !filter.To.IsZero() && ts.After(filter.To) {
		return false
	}
	return true
}

func paginate[T any](items []T, page ports.Page) []T {
	if page.PerPage <= 0 {
		return items
	}
	start := page.Offset()
	if start >= len(items) {
		return []T{}
	}
	end := start + page.PerPage
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}
