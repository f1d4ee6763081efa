package usecase

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketNewsroom/internal/domain"
)

func runAcme(t *testing.T, h *harness) RunResult {
	t.Helper()

	res, err := h.pipeline.Run(context.Background(), "Acme Co", "", "tester", NewDirectStrategy(h.pipeline))
	require.NoError(t, err)
	require.NotNil(t, res.Draft)
	return res
}

func TestApprovePublishesAndCompletesRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(harnessOptions{oracle: acmeOracle(), news: positiveNews()})
	res := runAcme(t, h)

	draft, err := h.review.Decide(ctx, res.Draft.ID, "APPROVE", "", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DraftPublished, draft.Status)
	require.NotNil(t, draft.PublishedAt)
	require.NotNil(t, draft.ReviewedAt)

	run, err := h.store.Runs().Get(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.Status)
	require.NotNil(t, run.CompletedAt)
	assert.Equal(t, stageReview, run.Logs[len(run.Logs)-1].Stage)
}

func TestRejectArchivesAndBlocksApproval(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(harnessOptions{oracle: acmeOracle(), news: positiveNews()})
	res := runAcme(t, h)

	draft, err := h.review.Reject(ctx, res.Draft.ID, "dados desatualizados", nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DraftArchived, draft.Status)
	require.NotNil(t, draft.RejectionReason)
	assert.Equal(t, "dados desatualizados", *draft.RejectionReason)
	require.NotNil(t, draft.ArchivedAt)

	require.Len(t, h.archiver.records, 1)
	rec := h.archiver.records[0]
	assert.Equal(t, res.Draft.ID, rec.Draft.ID)
	assert.Equal(t, res.Snapshot.ID, rec.Snapshot.ID)
	assert.Equal(t, res.Report.ID, rec.Report.ID)

	stored, err := h.store.Drafts().Get(ctx, res.Draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DraftArchived, stored.Status)

	run, err := h.store.Runs().Get(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCompleted, run.Status)

	_, err = h.review.Approve(ctx, res.Draft.ID, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	_, err = h.review.Reject(ctx, res.Draft.ID, "de novo", nil)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRejectRequiresReason(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(harnessOptions{oracle: acmeOracle(), news: positiveNews()})
	res := runAcme(t, h)

	_, err := h.review.Decide(ctx, res.Draft.ID, DecisionReject, "  ", nil)
	assert.ErrorIs(t, err, domain.ErrReasonRequired)
	assert.True(t, domain.IsClientError(err))

	stored, err := h.store.Drafts().Get(ctx, res.Draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DraftPendingReview, stored.Status)
}

func TestRejectKeepsDraftRejectedWhenArchiveFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(harnessOptions{oracle: acmeOracle(), news: positiveNews()})
	h.archiver.err = errProviderDown
	res := runAcme(t, h)
	log := domain.NewRunLog(fixedClock)

	draft, err := h.review.Reject(ctx, res.Draft.ID, "sem fontes", log)
	require.NoError(t, err)
	assert.Equal(t, domain.DraftRejected, draft.Status)
	assert.Nil(t, draft.ArchivedAt)
	assert.Equal(t, 2, log.Len())

	stored, err := h.store.Drafts().Get(ctx, res.Draft.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.DraftRejected, stored.Status)
}

func TestDecideRejectsUnknownDecision(t *testing.T) {
	t.Parallel()

	h := newHarness(harnessOptions{})

	_, err := h.review.Decide(context.Background(), 1, "maybe", "", nil)
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = h.review.Approve(context.Background(), 42, nil)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
