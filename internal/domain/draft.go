package domain

import (
	"fmt"
	"strings"
	"time"
)

// DraftStatus is the persisted review lifecycle state of an article.
type DraftStatus string

const (
	DraftPendingReview DraftStatus = "pendente_revisao"
	DraftApproved      DraftStatus = "aprovado"
	DraftRejected      DraftStatus = "reprovado"
	DraftPublished     DraftStatus = "publicado"
	DraftArchived      DraftStatus = "arquivado"
)

var draftTransitions = map[DraftStatus][]DraftStatus{
	DraftPendingReview: {DraftApproved, DraftRejected},
	DraftApproved:      {DraftPublished},
	DraftRejected:      {DraftArchived},
}

// CanTransition reports whether from -> to is an allowed edge.
func CanTransition(from, to DraftStatus) bool {
	for _, next := range draftTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Draft content origins.
const (
	DraftSourceAI       = "ai"
	DraftSourceTemplate = "template"
	DraftSourceCache    = "cache"
)

// DraftMetadata records how and from what a draft was produced.
type DraftMetadata struct {
	GeneratedAt         time.Time `json:"generated_at"`
	Source              string    `json:"source"`
	Provider            string    `json:"provider,omitempty"`
	CorrelationID       string    `json:"correlation_id,omitempty"`
	SnapshotCollectedAt time.Time `json:"financial_data_collected_at"`
	ReportAnalyzedAt    time.Time `json:"sentiment_analyzed_at"`
}

// Draft is a generated article moving through human review.
type Draft struct {
	ID              int64         `json:"id"`
	SymbolID        int64         `json:"stock_symbol_id" validate:"required"`
	SnapshotID      int64         `json:"financial_data_id" validate:"required"`
	ReportID        int64         `json:"sentiment_analysis_id" validate:"required"`
	RunID           int64         `json:"analysis_id,omitempty"`
	Ticker          string        `json:"symbol" validate:"required"`
	Title           string        `json:"title" validate:"required,max=500"`
	Content         string        `json:"content" validate:"required"`
	Status          DraftStatus   `json:"status" validate:"required"`
	RejectionReason *string       `json:"motivo_reprovacao"`
	Recommendation  *string       `json:"recomendacao"`
	Metadata        DraftMetadata `json:"metadata"`
	NotifiedAt      *time.Time    `json:"notified_at"`
	ReviewedAt      *time.Time    `json:"reviewed_at"`
	PublishedAt     *time.Time    `json:"published_at"`
	ArchivedAt      *time.Time    `json:"archived_at"`
	CreatedAt       time.Time     `json:"created_at"`
}

// Approve applies the human approval, which publishes the draft in the same step.
func (d *Draft) Approve(now time.Time) error {
	if err := d.transition(DraftApproved); err != nil {
		return err
	}
	d.ReviewedAt = &now
	if err := d.transition(DraftPublished); err != nil {
		return err
	}
	d.PublishedAt = &now
	return nil
}

// Reject records the rejection; reason must be non-blank.
func (d *Draft) Reject(reason string, now time.Time) error {
	reason = strings.TrimSpace(reason)
	if d.Status != DraftPendingReview {
		return fmt.Errorf("draft %d is %s: %w", d.ID, d.Status, ErrInvalidTransition)
	}
	if reason == "" {
		return ErrReasonRequired
	}
	if err := d.transition(DraftRejected); err != nil {
		return err
	}
	d.RejectionReason = &reason
	d.ReviewedAt = &now
	return nil
}

// Archive closes a rejected draft once it has been written to the archive.
func (d *Draft) Archive(now time.Time) error {
	if err := d.transition(DraftArchived); err != nil {
		return err
	}
	d.ArchivedAt = &now
	return nil
}

func (d *Draft) transition(to DraftStatus) error {
	if !CanTransition(d.Status, to) {
		return fmt.Errorf("draft %d %s -> %s: %w", d.ID, d.Status, to, ErrInvalidTransition)
	}
	d.Status = to
	return nil
}
