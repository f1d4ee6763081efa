package usecase

import (
	"context"
	"log/slog"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

// NotificationDispatcher alerts reviewers on every configured channel, best effort.
type NotificationDispatcher struct {
	notifiers []ports.ReviewerNotifier
	drafts    ports.DraftRepository
	clock     Clock
	logger    *slog.Logger
}

// NewNotificationDispatcher wires the channels; an empty list disables notifications.
func NewNotificationDispatcher(drafts ports.DraftRepository, clock Clock, logger *slog.Logger, notifiers ...ports.ReviewerNotifier) *NotificationDispatcher {
	return &NotificationDispatcher{
		notifiers: notifiers,
		drafts:    drafts,
		clock:     clock,
		logger:    componentLogger(logger, "notify"),
	}
}

// NotifyDraftReady never fails; a successful delivery stamps NotifiedAt.
func (n *NotificationDispatcher) NotifyDraftReady(ctx context.Context, draft domain.Draft, sym domain.Symbol, log *domain.RunLog) domain.Draft {
	if len(n.notifiers) == 0 {
		log.Add(StageNotifyReviewer, "Nenhum canal de notificação configurado")
		return draft
	}

	delivered := 0
	notice := ports.DraftReadyNotice{Draft: draft, Symbol: sym}
	for _, notifier := range n.notifiers {
		if err := notifier.NotifyDraftReady(ctx, notice); err != nil {
			n.logger.Warn("notification failed", "channel", notifier.Channel(), "draft_id", draft.ID, "error", err)
			log.Add(StageNotifyReviewer, "Aviso: falha ao notificar via %s", notifier.Channel())
			continue
		}
		delivered++
		log.Add(StageNotifyReviewer, "Revisor notificado via %s", notifier.Channel())
	}

	if delivered == 0 {
		return draft
	}

	now := n.clock.now()
	draft.NotifiedAt = &now
	if err := n.drafts.Update(ctx, draft); err != nil {
		n.logger.Warn("notified_at not saved", "draft_id", draft.ID, "error", err)
	}
	return draft
}
