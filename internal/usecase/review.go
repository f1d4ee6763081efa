package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

// Review decisions accepted by Decide.
const (
	DecisionApprove = "approve"
	DecisionReject  = "reject"
)

const stageReview = "review"

// ReviewGate applies human decisions to drafts.
type ReviewGate struct {
	drafts    ports.DraftRepository
	runs      ports.RunRepository
	snapshots ports.SnapshotRepository
	reports   ports.ReportRepository
	archiver  ports.Archiver
	clock     Clock
	logger    *slog.Logger
}

// NewReviewGate wires the gate; archiver may be nil.
func NewReviewGate(drafts ports.DraftRepository, runs ports.RunRepository, snapshots ports.SnapshotRepository, reports ports.ReportRepository, archiver ports.Archiver, clock Clock, logger *slog.Logger) *ReviewGate {
	return &ReviewGate{
		drafts:    drafts,
		runs:      runs,
		snapshots: snapshots,
		reports:   reports,
		archiver:  archiver,
		clock:     clock,
		logger:    componentLogger(logger, "review"),
	}
}

// Decide dispatches an approve or reject decision.
func (g *ReviewGate) Decide(ctx context.Context, draftID int64, decision, reason string, log *domain.RunLog) (domain.Draft, error) {
	switch strings.ToLower(strings.TrimSpace(decision)) {
	case DecisionApprove:
		return g.Approve(ctx, draftID, log)
	case DecisionReject:
		return g.Reject(ctx, draftID, reason, log)
	default:
		return domain.Draft{}, &domain.ValidationError{Stage: stageReview, Err: fmt.Errorf("unknown decision %q", decision)}
	}
}

// Approve publishes a pending draft.
func (g *ReviewGate) Approve(ctx context.Context, draftID int64, log *domain.RunLog) (domain.Draft, error) {
	draft, err := g.drafts.Get(ctx, draftID)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("load draft %d: %w", draftID, err)
	}

	now := g.clock.now()
	if err := draft.Approve(now); err != nil {
		return domain.Draft{}, err
	}
	if err := g.drafts.Update(ctx, draft); err != nil {
		return domain.Draft{}, fmt.Errorf("publish draft %d: %w", draftID, err)
	}

	log.Add(stageReview, "Artigo %d aprovado e publicado", draft.ID)
	g.logger.Info("draft published", "draft_id", draft.ID, "ticker", draft.Ticker)
	g.completeRun(ctx, draft.ID, "Revisão concluída: artigo publicado")
	return draft, nil
}

// Reject records the reason and archives the draft with its inputs.
// An archive failure leaves the draft rejected.
func (g *ReviewGate) Reject(ctx context.Context, draftID int64, reason string, log *domain.RunLog) (domain.Draft, error) {
	draft, err := g.drafts.Get(ctx, draftID)
	if err != nil {
		return domain.Draft{}, fmt.Errorf("load draft %d: %w", draftID, err)
	}

	now := g.clock.now()
	if err := draft.Reject(reason, now); err != nil {
		return domain.Draft{}, err
	}
	if err := g.drafts.Update(ctx, draft); err != nil {
		return domain.Draft{}, fmt.Errorf("reject draft %d: %w", draftID, err)
	}
	log.Add(stageReview, "Artigo %d reprovado: %s", draft.ID, *draft.RejectionReason)

	if path, err := g.archive(ctx, draft); err != nil {
		g.logger.Warn("archive failed, draft stays rejected", "draft_id", draft.ID, "error", err)
		log.Add(stageReview, "Aviso: falha ao arquivar artigo %d", draft.ID)
	} else {
		archived := draft
		if err := archived.Archive(g.clock.now()); err != nil {
			return draft, err
		}
		if err := g.drafts.Update(ctx, archived); err != nil {
			g.logger.Warn("archived draft status not saved", "draft_id", draft.ID, "error", err)
		} else {
			draft = archived
			log.Add(stageReview, "Artigo %d arquivado em %s", draft.ID, path)
		}
	}

	g.logger.Info("draft rejected", "draft_id", draft.ID, "status", draft.Status)
	g.completeRun(ctx, draft.ID, "Revisão concluída: artigo reprovado")
	return draft, nil
}

func (g *ReviewGate) archive(ctx context.Context, draft domain.Draft) (string, error) {
	if g.archiver == nil {
		return "", errors.New("archiver not configured")
	}

	record := ports.ArchiveRecord{Draft: draft, SavedAt: g.clock.now()}
	if snap, err := g.snapshots.Get(ctx, draft.SnapshotID); err == nil {
		record.Snapshot = snap
	} else {
		g.logger.Warn("archive without snapshot", "draft_id", draft.ID, "error", err)
	}
	if report, err := g.reports.Get(ctx, draft.ReportID); err == nil {
		record.Report = report
	} else {
		g.logger.Warn("archive without report", "draft_id", draft.ID, "error", err)
	}

	return g.archiver.Archive(ctx, record)
}

func (g *ReviewGate) completeRun(ctx context.Context, draftID int64, message string) {
	if g.runs == nil {
		return
	}
	run, err := g.runs.FindByDraft(ctx, draftID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			g.logger.Warn("load run for draft", "draft_id", draftID, "error", err)
		}
		return
	}
	if run.Status.Terminal() {
		return
	}

	now := g.clock.now()
	runLog := domain.NewRunLog(g.clock.now, run.Logs...)
	runLog.Add(stageReview, "%s", message)
	run.Logs = runLog.Entries()
	run.Status = domain.RunCompleted
	run.CompletedAt = &now
	if err := g.runs.Update(ctx, run); err != nil {
		g.logger.Warn("complete run", "run_id", run.ID, "error", err)
	}
}
