package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// RunStatus is the pipeline run state.
type RunStatus string

const (
	RunPending            RunStatus = "pending"
	RunFetchingMarketData RunStatus = "fetching_market_data"
	RunAnalyzingSentiment RunStatus = "analyzing_sentiment"
	RunDraftingArticle    RunStatus = "drafting_article"
	RunPendingReview      RunStatus = "pending_review"
	RunCompleted          RunStatus = "completed"
	RunFailed             RunStatus = "failed"
	RunCancelled          RunStatus = "cancelled"
)

// Terminal reports whether no stage may run after s.
func (s RunStatus) Terminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// PipelineRun is one end-to-end execution for a company-name input.
type PipelineRun struct {
	ID            int64      `json:"id"`
	CorrelationID string     `json:"correlation_id"`
	SymbolID      *int64     `json:"stock_symbol_id"`
	CompanyName   string     `json:"company_name" validate:"required,max=255"`
	Ticker        string     `json:"ticker,omitempty"`
	Status        RunStatus  `json:"status"`
	SnapshotID    *int64     `json:"financial_data_id"`
	ReportID      *int64     `json:"sentiment_analysis_id"`
	DraftID       *int64     `json:"article_id"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	Logs          []LogEntry `json:"logs"`
	CreatedBy     string     `json:"created_by,omitempty"`
	StartedAt     *time.Time `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at"`
	CreatedAt     time.Time  `json:"created_at"`
}

// Fail marks the run failed; msg must be non-empty.
func (r *PipelineRun) Fail(msg string, now time.Time) {
	if msg == "" {
		msg = "unknown error"
	}
	r.Status = RunFailed
	r.ErrorMessage = msg
	r.CompletedAt = &now
}

// LogEntry is one user-visible step message of a run.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Stage     string    `json:"agent"`
	Message   string    `json:"message"`
}

// RunLog is threaded through every stage call and returned with the result.
type RunLog struct {
	entries []LogEntry
	now     func() time.Time
}

// NewRunLog starts a log seeded with prior entries; clock may be nil.
func NewRunLog(clock func() time.Time, seed ...LogEntry) *RunLog {
	if clock == nil {
		clock = time.Now
	}
	entries := make([]LogEntry, len(seed))
	copy(entries, seed)
	return &RunLog{entries: entries, now: clock}
}

// Add appends a formatted entry. A nil log discards the message.
func (l *RunLog) Add(stage, format string, args ...any) {
	if l == nil {
		return
	}
	if l.now == nil {
		l.now = time.Now
	}
	msg := format
	if len(args) > 0 {
		msg = fmt.Sprintf(format, args...)
	}
	l.entries = append(l.entries, LogEntry{Timestamp: l.now().UTC(), Stage: stage, Message: msg})
}

// Entries returns a copy of the accumulated entries.
func (l *RunLog) Entries() []LogEntry {
	if l == nil {
		return nil
	}
	out := make([]LogEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len is the number of entries.
func (l *RunLog) Len() int {
	if l == nil {
		return 0
	}
	return len(l.entries)
}

// MarshalJSON encodes the entries as a plain list.
func (l *RunLog) MarshalJSON() ([]byte, error) {
	entries := l.Entries()
	if entries == nil {
		entries = []LogEntry{}
	}
	return json.Marshal(entries)
}
