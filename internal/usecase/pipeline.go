package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

// Pipeline stages in execution order.
const (
	StageFetchMarketData  = "fetch_market_data"
	StageAnalyzeSentiment = "analyze_sentiment"
	StageDraftArticle     = "draft_article"
	StageNotifyReviewer   = "notify_reviewer"
)

const stagePipeline = "pipeline"

// Stages lists every stage in order.
var Stages = []string{StageFetchMarketData, StageAnalyzeSentiment, StageDraftArticle, StageNotifyReviewer}

type stageSpec struct {
	accepts []domain.RunStatus
	running domain.RunStatus
	done    domain.RunStatus
}

var stageSpecs = map[string]stageSpec{
	StageFetchMarketData: {
		accepts: []domain.RunStatus{domain.RunPending, domain.RunFetchingMarketData},
		running: domain.RunFetchingMarketData,
		done:    domain.RunAnalyzingSentiment,
	},
	StageAnalyzeSentiment: {
		accepts: []domain.RunStatus{domain.RunAnalyzingSentiment},
		running: domain.RunAnalyzingSentiment,
		done:    domain.RunDraftingArticle,
	},
	StageDraftArticle: {
		accepts: []domain.RunStatus{domain.RunDraftingArticle},
		running: domain.RunDraftingArticle,
		done:    domain.RunPendingReview,
	},
	StageNotifyReviewer: {
		accepts: []domain.RunStatus{domain.RunPendingReview},
		running: domain.RunPendingReview,
		done:    domain.RunPendingReview,
	},
}

// NextStage returns the stage after stage, if any.
func NextStage(stage string) (string, bool) {
	for i, s := range Stages {
		if s == stage && i+1 < len(Stages) {
			return Stages[i+1], true
		}
	}
	return "", false
}

// Retryable reports whether a stage error may succeed on a later attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return !domain.IsClientError(err) &&
		!errors.Is(err, domain.ErrNotFound) &&
		!errors.Is(err, domain.ErrRunCancelled) &&
		!errors.Is(err, context.Canceled)
}

// PipelineDeps wires the stage components into the pipeline.
type PipelineDeps struct {
	Runs      ports.RunRepository
	Snapshots ports.SnapshotRepository
	Reports   ports.ReportRepository
	Drafts    ports.DraftRepository
	Registry  *SymbolRegistry
	Collector *Collector
	Analyzer  *SentimentAnalyzer
	Drafter   *Drafter
	Notifier  *NotificationDispatcher
	Clock     Clock
	Logger    *slog.Logger
}

// Pipeline is the single stage definition shared by every execution strategy.
type Pipeline struct {
	runs      ports.RunRepository
	snapshots ports.SnapshotRepository
	reports   ports.ReportRepository
	drafts    ports.DraftRepository
	registry  *SymbolRegistry
	collector *Collector
	analyzer  *SentimentAnalyzer
	drafter   *Drafter
	notifier  *NotificationDispatcher
	clock     Clock
	logger    *slog.Logger
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		runs:      deps.Runs,
		snapshots: deps.Snapshots,
		reports:   deps.Reports,
		drafts:    deps.Drafts,
		registry:  deps.Registry,
		collector: deps.Collector,
		analyzer:  deps.Analyzer,
		drafter:   deps.Drafter,
		notifier:  deps.Notifier,
		clock:     deps.Clock,
		logger:    componentLogger(deps.Logger, "pipeline"),
	}
}

// RunResult is a run with every entity it produced so far.
type RunResult struct {
	Run      domain.PipelineRun      `json:"analysis"`
	Symbol   *domain.Symbol          `json:"symbol,omitempty"`
	Snapshot *domain.MarketSnapshot  `json:"financial_data,omitempty"`
	Report   *domain.SentimentReport `json:"sentiment_data,omitempty"`
	Draft    *domain.Draft           `json:"article,omitempty"`
}

// Logs returns the run log entries.
func (r RunResult) Logs() []domain.LogEntry {
	return r.Run.Logs
}

// Run creates a run and hands it to the strategy.
func (p *Pipeline) Run(ctx context.Context, companyName, ticker, createdBy string, strategy Strategy) (RunResult, error) {
	run, err := p.Start(ctx, companyName, ticker, createdBy)
	if err != nil {
		return RunResult{}, err
	}
	return strategy.Execute(ctx, run)
}

// Start records a pending run.
func (p *Pipeline) Start(ctx context.Context, companyName, ticker, createdBy string) (domain.PipelineRun, error) {
	companyName = strings.TrimSpace(companyName)
	if companyName == "" {
		return domain.PipelineRun{}, domain.ErrEmptyCompanyName
	}

	log := domain.NewRunLog(p.clock.now)
	log.Add(stagePipeline, "Execução iniciada para %s", companyName)

	run := domain.PipelineRun{
		CorrelationID: uuid.NewString(),
		CompanyName:   companyName,
		Ticker:        domain.CanonicalTicker(ticker),
		Status:        domain.RunPending,
		CreatedBy:     createdBy,
		Logs:          log.Entries(),
	}
	if err := domain.Validate(stagePipeline, run); err != nil {
		return domain.PipelineRun{}, err
	}

	run, err := p.runs.Create(ctx, run)
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("create run: %w", err)
	}
	p.logger.Info("run created", "run_id", run.ID, "correlation_id", run.CorrelationID, "company", companyName)
	return run, nil
}

// Cancel stops a run that has not produced its draft yet.
func (p *Pipeline) Cancel(ctx context.Context, runID int64) (domain.PipelineRun, error) {
	run, err := p.runs.Get(ctx, runID)
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("load run %d: %w", runID, err)
	}
	if run.Status.Terminal() || run.Status == domain.RunPendingReview {
		return run, fmt.Errorf("run %d is %s: %w", runID, run.Status, domain.ErrInvalidTransition)
	}

	now := p.clock.now()
	log := domain.NewRunLog(p.clock.now, run.Logs...)
	log.Add(stagePipeline, "Execução cancelada")
	run.Status = domain.RunCancelled
	run.CompletedAt = &now
	run.Logs = log.Entries()
	if err := p.runs.Update(ctx, run); err != nil {
		return domain.PipelineRun{}, fmt.Errorf("cancel run %d: %w", runID, err)
	}
	p.logger.Info("run cancelled", "run_id", runID)
	return run, nil
}

// ExecuteStage runs one stage of a run and commits its output reference.
// A stage whose output is already committed is skipped. On error the run is marked
// failed unless mayRetry is set and the error is retryable.
func (p *Pipeline) ExecuteStage(ctx context.Context, runID int64, stage string, mayRetry bool) (domain.PipelineRun, error) {
	spec, ok := stageSpecs[stage]
	if !ok {
		return domain.PipelineRun{}, &domain.ValidationError{Stage: stagePipeline, Err: fmt.Errorf("unknown stage %q", stage)}
	}

	run, err := p.runs.Get(ctx, runID)
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("load run %d: %w", runID, err)
	}
	if run.Status == domain.RunCancelled {
		return run, domain.ErrRunCancelled
	}
	if stageCommitted(run, stage) {
		p.logger.Debug("stage already committed", "run_id", runID, "stage", stage)
		return run, nil
	}
	if !acceptsStatus(spec, run.Status) {
		return run, fmt.Errorf("stage %s on run %d in status %s: %w", stage, runID, run.Status, domain.ErrInvalidTransition)
	}

	log := domain.NewRunLog(p.clock.now, run.Logs...)
	if run.Status != spec.running {
		now := p.clock.now()
		run.Status = spec.running
		if run.StartedAt == nil {
			run.StartedAt = &now
		}
		run.Logs = log.Entries()
		if err := p.runs.Update(ctx, run); err != nil {
			return run, fmt.Errorf("mark run %d %s: %w", runID, spec.running, err)
		}
	}

	p.logger.Info("stage started", "run_id", runID, "stage", stage, "correlation_id", run.CorrelationID)
	stageErr := p.runStage(ctx, &run, stage, log)

	latest, err := p.runs.Get(ctx, runID)
	if err == nil && latest.Status == domain.RunCancelled {
		return latest, domain.ErrRunCancelled
	}

	if stageErr != nil {
		return p.stageFailed(ctx, run, stage, log, stageErr, mayRetry)
	}

	run.Status = spec.done
	run.Logs = log.Entries()
	if err := p.runs.Update(ctx, run); err != nil {
		commitErr := fmt.Errorf("commit stage %s of run %d: %w", stage, runID, err)
		if !mayRetry || !Retryable(err) {
			if _, ferr := p.failRun(ctx, runID, commitErr); ferr != nil {
				p.logger.Error("mark run failed after commit error", "run_id", runID, "error", ferr)
			}
		}
		return run, commitErr
	}
	p.logger.Info("stage committed", "run_id", runID, "stage", stage, "status", run.Status)
	return run, nil
}

func (p *Pipeline) stageFailed(ctx context.Context, run domain.PipelineRun, stage string, log *domain.RunLog, stageErr error, mayRetry bool) (domain.PipelineRun, error) {
	if mayRetry && Retryable(stageErr) {
		log.Add(stage, "Falha temporária, nova tentativa agendada: %v", stageErr)
		run.Logs = log.Entries()
		if err := p.runs.Update(ctx, run); err != nil {
			p.logger.Warn("persist retry log", "run_id", run.ID, "error", err)
		}
		p.logger.Warn("stage failed, will retry", "run_id", run.ID, "stage", stage, "error", stageErr)
		return run, fmt.Errorf("stage %s: %w", stage, stageErr)
	}

	log.Add(stage, "Erro: %v", stageErr)
	run.Logs = log.Entries()
	run.Fail(stageErr.Error(), p.clock.now())
	if err := p.runs.Update(ctx, run); err != nil {
		p.logger.Error("persist failed run", "run_id", run.ID, "error", err)
	}
	p.logger.Error("stage failed", "run_id", run.ID, "stage", stage, "error", stageErr)
	return run, fmt.Errorf("stage %s: %w", stage, stageErr)
}

// failRun marks a run failed outside of a stage, e.g. when its first task cannot be queued.
func (p *Pipeline) failRun(ctx context.Context, runID int64, cause error) (domain.PipelineRun, error) {
	run, err := p.runs.Get(ctx, runID)
	if err != nil {
		return domain.PipelineRun{}, fmt.Errorf("load run %d: %w", runID, err)
	}
	log := domain.NewRunLog(p.clock.now, run.Logs...)
	log.Add(stagePipeline, "Erro: %v", cause)
	run.Logs = log.Entries()
	run.Fail(cause.Error(), p.clock.now())
	if err := p.runs.Update(ctx, run); err != nil {
		return run, fmt.Errorf("fail run %d: %w", runID, err)
	}
	return run, nil
}

func (p *Pipeline) runStage(ctx context.Context, run *domain.PipelineRun, stage string, log *domain.RunLog) error {
	switch stage {
	case StageFetchMarketData:
		log.Add(stage, "Coletando dados de mercado para %s", run.CompanyName)
		snap, sym, err := p.collector.FetchSnapshot(ctx, run.CompanyName, run.Ticker, log)
		if err != nil {
			return err
		}
		run.SymbolID = &sym.ID
		run.Ticker = sym.Ticker
		run.SnapshotID = &snap.ID
		return nil

	case StageAnalyzeSentiment:
		sym, snap, err := p.loadSymbolAndSnapshot(ctx, *run)
		if err != nil {
			return err
		}
		log.Add(stage, "Analisando sentimento de mercado para %s", sym.Ticker)
		report, err := p.analyzer.Analyze(ctx, sym, run.CompanyName, snap, log)
		if err != nil {
			return err
		}
		run.ReportID = &report.ID
		return nil

	case StageDraftArticle:
		sym, snap, err := p.loadSymbolAndSnapshot(ctx, *run)
		if err != nil {
			return err
		}
		if run.ReportID == nil {
			return &domain.ValidationError{Stage: stage, Err: errors.New("run has no sentiment report")}
		}
		report, err := p.reports.Get(ctx, *run.ReportID)
		if err != nil {
			return fmt.Errorf("load report: %w", err)
		}
		log.Add(stage, "Redigindo artigo para %s", sym.Ticker)
		draft, err := p.drafter.Draft(ctx, DraftInput{
			Snapshot:      snap,
			Report:        report,
			Symbol:        sym,
			RunID:         run.ID,
			CorrelationID: run.CorrelationID,
		}, log)
		if err != nil {
			return err
		}
		run.DraftID = &draft.ID
		return nil

	case StageNotifyReviewer:
		if run.DraftID == nil || run.SymbolID == nil {
			return &domain.ValidationError{Stage: stage, Err: errors.New("run has no draft")}
		}
		draft, err := p.drafts.Get(ctx, *run.DraftID)
		if err != nil {
			return fmt.Errorf("load draft: %w", err)
		}
		if draft.NotifiedAt != nil {
			return nil
		}
		sym, err := p.registry.Get(ctx, *run.SymbolID)
		if err != nil {
			return fmt.Errorf("load symbol: %w", err)
		}
		p.notifier.NotifyDraftReady(ctx, draft, sym, log)
		log.Add(stage, "Artigo aguardando revisão")
		return nil
	}
	return fmt.Errorf("unknown stage %q", stage)
}

func (p *Pipeline) loadSymbolAndSnapshot(ctx context.Context, run domain.PipelineRun) (domain.Symbol, domain.MarketSnapshot, error) {
	if run.SymbolID == nil || run.SnapshotID == nil {
		return domain.Symbol{}, domain.MarketSnapshot{}, &domain.ValidationError{Stage: stagePipeline, Err: errors.New("run has no market snapshot")}
	}
	sym, err := p.registry.Get(ctx, *run.SymbolID)
	if err != nil {
		return domain.Symbol{}, domain.MarketSnapshot{}, fmt.Errorf("load symbol: %w", err)
	}
	snap, err := p.snapshots.Get(ctx, *run.SnapshotID)
	if err != nil {
		return domain.Symbol{}, domain.MarketSnapshot{}, fmt.Errorf("load snapshot: %w", err)
	}
	return sym, snap, nil
}

// Result loads a run and the entities it references.
func (p *Pipeline) Result(ctx context.Context, runID int64) (RunResult, error) {
	run, err := p.runs.Get(ctx, runID)
	if err != nil {
		return RunResult{}, fmt.Errorf("load run %d: %w", runID, err)
	}

	res := RunResult{Run: run}
	if run.SymbolID != nil {
		if sym, err := p.registry.Get(ctx, *run.SymbolID); err == nil {
			res.Symbol = &sym
		}
	}
	if run.SnapshotID != nil {
		if snap, err := p.snapshots.Get(ctx, *run.SnapshotID); err == nil {
			res.Snapshot = &snap
		}
	}
	if run.ReportID != nil {
		if report, err := p.reports.Get(ctx, *run.ReportID); err == nil {
			res.Report = &report
		}
	}
	if run.DraftID != nil {
		if draft, err := p.drafts.Get(ctx, *run.DraftID); err == nil {
			res.Draft = &draft
		}
	}
	return res, nil
}

func stageCommitted(run domain.PipelineRun, stage string) bool {
	switch stage {
	case StageFetchMarketData:
		return run.SnapshotID != nil
	case StageAnalyzeSentiment:
		return run.ReportID != nil
	case StageDraftArticle:
		return run.DraftID != nil
	}
	return false
}

func acceptsStatus(spec stageSpec, status domain.RunStatus) bool {
	for _, s := range spec.accepts {
		if s == status {
			return true
		}
	}
	return false
}
