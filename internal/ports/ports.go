package ports

import (
	"context"
	"time"

	"MarketNewsroom/internal/domain"
)

// Page bounds a listing query.
type Page struct {
	Number  int
	PerPage int
}

// Offset converts the 1-based page number to a row offset.
func (p Page) Offset() int {
	if p.Number <= 1 {
		return 0
	}
	return (p.Number - 1) * p.PerPage
}

// ListFilter narrows listing endpoints; zero values mean "any".
type ListFilter struct {
	Ticker string
	Status string
	From   time.Time
	To     time.Time
	Page   Page
}

// SymbolRepository stores canonical symbols; Create returns domain.ErrConflict on a duplicate ticker.
type SymbolRepository interface {
	FindByTicker(ctx context.Context, ticker string) (domain.Symbol, error)
	FindByName(ctx context.Context, name string) (domain.Symbol, error)
	Get(ctx context.Context, id int64) (domain.Symbol, error)
	Create(ctx context.Context, symbol domain.Symbol) (domain.Symbol, error)
	Update(ctx context.Context, symbol domain.Symbol) error
	List(ctx context.Context, filter ListFilter) ([]domain.Symbol, error)
	ListDefaults(ctx context.Context) ([]domain.Symbol, error)
}

// SnapshotRepository is the append-only market snapshot series.
type SnapshotRepository interface {
	Create(ctx context.Context, snapshot domain.MarketSnapshot) (domain.MarketSnapshot, error)
	Get(ctx context.Context, id int64) (domain.MarketSnapshot, error)
	List(ctx context.Context, filter ListFilter) ([]domain.MarketSnapshot, error)
}

// ReportRepository is the append-only sentiment report series.
type ReportRepository interface {
	Create(ctx context.Context, report domain.SentimentReport) (domain.SentimentReport, error)
	Get(ctx context.Context, id int64) (domain.SentimentReport, error)
	List(ctx context.Context, filter ListFilter) ([]domain.SentimentReport, error)
}

// DraftRepository stores drafts; Update persists review transitions.
type DraftRepository interface {
	Create(ctx context.Context, draft domain.Draft) (domain.Draft, error)
	Get(ctx context.Context, id int64) (domain.Draft, error)
	Update(ctx context.Context, draft domain.Draft) error
	List(ctx context.Context, filter ListFilter) ([]domain.Draft, error)
}

// RunRepository stores pipeline runs and their logs.
type RunRepository interface {
	Create(ctx context.Context, run domain.PipelineRun) (domain.PipelineRun, error)
	Get(ctx context.Context, id int64) (domain.PipelineRun, error)
	Update(ctx context.Context, run domain.PipelineRun) error
	FindByDraft(ctx context.Context, draftID int64) (domain.PipelineRun, error)
	List(ctx context.Context, filter ListFilter) ([]domain.PipelineRun, error)
}

// SchemaManager provisions storage tables.
type SchemaManager interface {
	EnsureSchema(ctx context.Context) error
}

// GenerateRequest is a provider-agnostic text generation call.
type GenerateRequest struct {
	Prompt            string
	SystemInstruction string
	Temperature       float32
	MaxTokens         int
	JSON              bool
}

// TextGenerator is a generative-AI provider (Gemini, Claude, OpenAI-compatible).
type TextGenerator interface {
	Name() string
	Generate(ctx context.Context, req GenerateRequest) (string, error)
}

// QuoteOracle returns market metrics for a company name or ticker.
type QuoteOracle interface {
	Name() string
	Quote(ctx context.Context, query string) (domain.Quote, error)
}

// NewsQuery parameterizes a news search.
type NewsQuery struct {
	Query    string
	Language string
	Limit    int
}

// NewsSource searches recent news items.
type NewsSource interface {
	Name() string
	Search(ctx context.Context, q NewsQuery) ([]domain.NewsItem, error)
}

// Cache is a read-through TTL cache; Get reports whether the key was present.
type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
}

// DraftReadyNotice carries what a reviewer needs to act on a draft.
type DraftReadyNotice struct {
	Draft  domain.Draft
	Symbol domain.Symbol
}

// ReviewerNotifier alerts a human reviewer (e-mail, Telegram).
type ReviewerNotifier interface {
	Channel() string
	NotifyDraftReady(ctx context.Context, notice DraftReadyNotice) error
}

// ArchiveRecord is what gets persisted when a draft is rejected.
type ArchiveRecord struct {
	Draft    domain.Draft
	Snapshot domain.MarketSnapshot
	Report   domain.SentimentReport
	SavedAt  time.Time
}

// Archiver durably stores rejected drafts for later re-analysis.
type Archiver interface {
	Archive(ctx context.Context, record ArchiveRecord) (string, error)
}

// StageTask is one queued unit of pipeline work.
type StageTask struct {
	RunID   int64  `json:"run_id"`
	Stage   string `json:"stage"`
	Attempt int    `json:"attempt"`
}

// TaskQueue carries stage tasks between workers.
type TaskQueue interface {
	Enqueue(ctx context.Context, task StageTask) error
}

// Scheduler controls when recurring jobs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
