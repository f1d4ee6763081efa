package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

// flakySnapshots fails Create a fixed number of times before delegating.
type flakySnapshots struct {
	ports.SnapshotRepository
	mu       sync.Mutex
	failures int
}

func (f *flakySnapshots) Create(ctx context.Context, snap domain.MarketSnapshot) (domain.MarketSnapshot, error) {
	f.mu.Lock()
	if f.failures != 0 {
		f.failures--
		f.mu.Unlock()
		return domain.MarketSnapshot{}, errors.New("connection reset")
	}
	f.mu.Unlock()
	return f.SnapshotRepository.Create(ctx, snap)
}

func withFlakySnapshots(h *harness, failures int) {
	h.collector.snapshots = &flakySnapshots{SnapshotRepository: h.store.Snapshots(), failures: failures}
}

// brokenCommits fails every Update that would move a run into status.
type brokenCommits struct {
	ports.RunRepository
	status domain.RunStatus
}

func (b *brokenCommits) Update(ctx context.Context, run domain.PipelineRun) error {
	if run.Status == b.status {
		return errors.New("disk full")
	}
	return b.RunRepository.Update(ctx, run)
}

func stagesLogged(run domain.PipelineRun) map[string]bool {
	seen := map[string]bool{}
	for _, e := range run.Logs {
		seen[e.Stage] = true
	}
	return seen
}

func TestDirectRunProducesPendingReviewDraft(t *testing.T) {
	t.Parallel()

	h := newHarness(harnessOptions{oracle: acmeOracle(), news: positiveNews()})

	res, err := h.pipeline.Run(context.Background(), "Acme Co", "", "tester", NewDirectStrategy(h.pipeline))
	require.NoError(t, err)

	run := res.Run
	assert.Equal(t, domain.RunPendingReview, run.Status)
	assert.NotEmpty(t, run.CorrelationID)
	assert.Equal(t, "tester", run.CreatedBy)
	assert.Equal(t, "ACME4", run.Ticker)
	require.NotNil(t, run.StartedAt)
	assert.Nil(t, run.CompletedAt)

	require.NotNil(t, res.Symbol)
	assert.Equal(t, "ACME4", res.Symbol.Ticker)

	require.NotNil(t, res.Snapshot)
	assert.InDelta(t, 0.50, domain.Value(res.Snapshot.Change), 1e-9)
	assert.Equal(t, res.Symbol.ID, res.Snapshot.SymbolID)

	require.NotNil(t, res.Report)
	assert.Equal(t, domain.SentimentPositive, res.Report.Sentiment)
	assert.Equal(t, 2, res.Report.NewsCount)

	require.NotNil(t, res.Draft)
	assert.Equal(t, domain.DraftPendingReview, res.Draft.Status)
	assert.Equal(t, run.ID, res.Draft.RunID)
	assert.Equal(t, res.Snapshot.ID, res.Draft.SnapshotID)
	assert.Equal(t, res.Report.ID, res.Draft.ReportID)
	assert.Equal(t, run.CorrelationID, res.Draft.Metadata.CorrelationID)
	require.NotNil(t, res.Draft.NotifiedAt)

	require.Len(t, h.mailer.notices, 1)
	assert.Equal(t, res.Draft.ID, h.mailer.notices[0].Draft.ID)

	seen := stagesLogged(run)
	for _, stage := range append([]string{stagePipeline}, Stages...) {
		assert.True(t, seen[stage], "missing log for %s", stage)
	}
	assert.Equal(t, run.Logs, res.Logs())
}

func TestDirectRunWithoutGeneratorUsesTemplate(t *testing.T) {
	t.Parallel()

	h := newHarness(harnessOptions{oracle: acmeOracle(), news: positiveNews()})
	res := runAcme(t, h)

	assert.Equal(t, domain.DraftSourceTemplate, res.Draft.Metadata.Source)
	assert.True(t, strings.HasPrefix(res.Draft.Title, "Análise ACME4: Mercado em alta"))
	assert.Contains(t, res.Draft.Content, "Este conteúdo foi gerado automaticamente")
}

func TestDirectRunWithoutNewsIsNeutral(t *testing.T) {
	t.Parallel()

	h := newHarness(harnessOptions{oracle: acmeOracle(), news: &fakeNews{}})
	res := runAcme(t, h)

	assert.Equal(t, domain.RunPendingReview, res.Run.Status)
	assert.Equal(t, domain.SentimentNeutral, res.Report.Sentiment)
	assert.Equal(t, 0, res.Report.NewsCount)
	assert.Contains(t, res.Draft.Content, "sinais mistos")
}

func TestDirectRunForNonLatinNameWithoutOracle(t *testing.T) {
	t.Parallel()

	h := newHarness(harnessOptions{news: &fakeNews{}})
	res, err := h.pipeline.Run(context.Background(), "日本電信電話", "", "tester", NewDirectStrategy(h.pipeline))
	require.NoError(t, err)

	assert.Equal(t, domain.RunPendingReview, res.Run.Status)
	require.NotNil(t, res.Draft)
	assert.Regexp(t, `^SYM[0-9A-F]{8}$`, res.Draft.Ticker)
	assert.Equal(t, domain.DraftPendingReview, res.Draft.Status)
}

func TestRunRejectsEmptyCompany(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(harnessOptions{})

	_, err := h.pipeline.Run(ctx, "   ", "", "tester", NewDirectStrategy(h.pipeline))
	assert.ErrorIs(t, err, domain.ErrEmptyCompanyName)

	runs, err := h.store.Runs().List(ctx, ports.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestDirectRunFailureMarksRunFailed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(harnessOptions{oracle: acmeOracle(), news: positiveNews()})
	withFlakySnapshots(h, -1)

	res, err := h.pipeline.Run(ctx, "Acme Co", "", "tester", NewDirectStrategy(h.pipeline))
	require.Error(t, err)

	assert.Equal(t, domain.RunFailed, res.Run.Status)
	assert.Contains(t, res.Run.ErrorMessage, "connection reset")
	require.NotNil(t, res.Run.CompletedAt)
	assert.Nil(t, res.Run.SnapshotID)
	assert.Nil(t, res.Draft)

	drafts, err := h.store.Drafts().List(ctx, ports.ListFilter{})
	require.NoError(t, err)
	assert.Empty(t, drafts)
}

func TestExecuteStageSkipsCommittedStage(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(harnessOptions{oracle: acmeOracle(), news: positiveNews()})
	res := runAcme(t, h)

	run, err := h.pipeline.ExecuteStage(ctx, res.Run.ID, StageFetchMarketData, false)
	require.NoError(t, err)
	assert.Equal(t, domain.RunPendingReview, run.Status)

	snaps, err := h.store.Snapshots().List(ctx, ports.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, snaps, 1)

	_, err = h.pipeline.ExecuteStage(ctx, res.Run.ID, "publish", false)
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestQueuedRunMatchesDirectRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(harnessOptions{oracle: acmeOracle(), news: positiveNews()})
	queue := &fakeQueue{}
	strategy := NewQueuedStrategy(h.pipeline, queue, 3, nil)

	res, err := h.pipeline.Run(ctx, "Acme Co", "", "tester", strategy)
	require.NoError(t, err)
	assert.Equal(t, domain.RunPending, res.Run.Status)
	assert.Nil(t, res.Draft)

	delivered := queue.drain(ctx, strategy.HandleTask)
	assert.Equal(t, len(Stages), delivered)

	final, err := h.pipeline.Result(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunPendingReview, final.Run.Status)
	require.NotNil(t, final.Draft)
	assert.Equal(t, domain.DraftPendingReview, final.Draft.Status)
	assert.Equal(t, "ACME4", final.Draft.Ticker)
	assert.Len(t, h.mailer.notices, 1)
}

func TestQueuedRunRetriesTransientFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(harnessOptions{oracle: acmeOracle(), news: positiveNews()})
	withFlakySnapshots(h, 1)
	queue := &fakeQueue{}
	strategy := NewQueuedStrategy(h.pipeline, queue, 3, nil)

	res, err := h.pipeline.Run(ctx, "Acme Co", "", "tester", strategy)
	require.NoError(t, err)

	delivered := queue.drain(ctx, strategy.HandleTask)
	assert.Equal(t, len(Stages)+1, delivered)

	final, err := h.pipeline.Result(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunPendingReview, final.Run.Status)
	assert.Empty(t, final.Run.ErrorMessage)

	var retried bool
	for _, e := range final.Run.Logs {
		if strings.HasPrefix(e.Message, "Falha temporária") {
			retried = true
		}
	}
	assert.True(t, retried)
}

func TestQueuedRunFailsAfterLastAttempt(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(harnessOptions{oracle: acmeOracle(), news: positiveNews()})
	withFlakySnapshots(h, -1)
	queue := &fakeQueue{}
	strategy := NewQueuedStrategy(h.pipeline, queue, 2, nil)

	res, err := h.pipeline.Run(ctx, "Acme Co", "", "tester", strategy)
	require.NoError(t, err)

	delivered := queue.drain(ctx, strategy.HandleTask)
	assert.Equal(t, 2, delivered)

	run, err := h.store.Runs().Get(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "connection reset")
}

func TestDirectRunFailsWhenStageCommitFails(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(harnessOptions{oracle: acmeOracle(), news: positiveNews()})
	h.pipeline.runs = &brokenCommits{RunRepository: h.store.Runs(), status: domain.RunDraftingArticle}

	res, err := h.pipeline.Run(ctx, "Acme Co", "", "tester", NewDirectStrategy(h.pipeline))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")

	run, err := h.store.Runs().Get(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "commit stage analyze_sentiment")
	require.NotNil(t, run.CompletedAt)
}

func TestQueuedCommitFailureOnLastAttemptFailsRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(harnessOptions{oracle: acmeOracle(), news: positiveNews()})
	h.pipeline.runs = &brokenCommits{RunRepository: h.store.Runs(), status: domain.RunDraftingArticle}
	queue := &fakeQueue{}
	strategy := NewQueuedStrategy(h.pipeline, queue, 2, nil)

	res, err := h.pipeline.Run(ctx, "Acme Co", "", "tester", strategy)
	require.NoError(t, err)

	// fetch, analyze, analyze again on the last attempt
	delivered := queue.drain(ctx, strategy.HandleTask)
	assert.Equal(t, 3, delivered)

	run, err := h.store.Runs().Get(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, run.Status)
	assert.Contains(t, run.ErrorMessage, "disk full")
}

func TestAbandonFailsRunStuckMidPipeline(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(harnessOptions{oracle: acmeOracle(), news: positiveNews()})
	strategy := NewQueuedStrategy(h.pipeline, &fakeQueue{}, 3, nil)

	run, err := h.pipeline.Start(ctx, "Acme Co", "", "tester")
	require.NoError(t, err)
	_, err = h.pipeline.ExecuteStage(ctx, run.ID, StageFetchMarketData, true)
	require.NoError(t, err)

	strategy.Abandon(ctx, ports.StageTask{RunID: run.ID, Stage: StageAnalyzeSentiment, Attempt: 3}, errProviderDown)

	got, err := h.store.Runs().Get(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "stage analyze_sentiment abandoned after 3 attempts")
	assert.Contains(t, got.ErrorMessage, "provider down")
	require.NotNil(t, got.CompletedAt)
}

func TestAbandonLeavesSettledRunsAlone(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(harnessOptions{oracle: acmeOracle(), news: positiveNews()})
	strategy := NewQueuedStrategy(h.pipeline, &fakeQueue{}, 3, nil)

	reviewed := runAcme(t, h)
	strategy.Abandon(ctx, ports.StageTask{RunID: reviewed.Run.ID, Stage: StageNotifyReviewer, Attempt: 3}, errProviderDown)
	got, err := h.store.Runs().Get(ctx, reviewed.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunPendingReview, got.Status)
	assert.Empty(t, got.ErrorMessage)

	pending, err := h.pipeline.Start(ctx, "Acme Co", "", "tester")
	require.NoError(t, err)
	_, err = h.pipeline.Cancel(ctx, pending.ID)
	require.NoError(t, err)
	strategy.Abandon(ctx, ports.StageTask{RunID: pending.ID, Stage: StageFetchMarketData, Attempt: 3}, errProviderDown)
	got, err = h.store.Runs().Get(ctx, pending.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCancelled, got.Status)

	strategy.Abandon(ctx, ports.StageTask{RunID: 9999, Stage: StageFetchMarketData, Attempt: 3}, errProviderDown)
}

func TestQueuedEnqueueFailureFailsRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(harnessOptions{})
	strategy := NewQueuedStrategy(h.pipeline, &fakeQueue{err: errProviderDown}, 3, nil)

	res, err := h.pipeline.Run(ctx, "Acme Co", "", "tester", strategy)
	assert.ErrorIs(t, err, errProviderDown)
	assert.Equal(t, domain.RunFailed, res.Run.Status)
	assert.Contains(t, res.Run.ErrorMessage, "provider down")
}

func TestCancelStopsQueuedRun(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness(harnessOptions{oracle: acmeOracle(), news: positiveNews()})
	queue := &fakeQueue{}
	strategy := NewQueuedStrategy(h.pipeline, queue, 3, nil)

	res, err := h.pipeline.Run(ctx, "Acme Co", "", "tester", strategy)
	require.NoError(t, err)

	cancelled, err := h.pipeline.Cancel(ctx, res.Run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.RunCancelled, cancelled.Status)
	require.NotNil(t, cancelled.CompletedAt)

	delivered := queue.drain(ctx, strategy.HandleTask)
	assert.Equal(t, 1, delivered)
	assert.Zero(t, h.oracle.Calls())

	_, err = h.pipeline.ExecuteStage(ctx, res.Run.ID, StageFetchMarketData, false)
	assert.ErrorIs(t, err, domain.ErrRunCancelled)

	_, err = h.pipeline.Cancel(ctx, res.Run.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestCancelRefusedOncePendingReview(t *testing.T) {
	t.Parallel()

	h := newHarness(harnessOptions{oracle: acmeOracle(), news: positiveNews()})
	res := runAcme(t, h)

	_, err := h.pipeline.Cancel(context.Background(), res.Run.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	assert.False(t, Retryable(nil))
	assert.True(t, Retryable(errors.New("timeout")))
	assert.True(t, Retryable(fmt.Errorf("persist: %w", domain.ErrConflict)))
	assert.False(t, Retryable(&domain.ValidationError{Stage: StageDraftArticle, Err: errors.New("title")}))
	assert.False(t, Retryable(fmt.Errorf("load: %w", domain.ErrNotFound)))
	assert.False(t, Retryable(domain.ErrRunCancelled))
	assert.False(t, Retryable(context.Canceled))
}

func TestNextStage(t *testing.T) {
	t.Parallel()

	next, ok := NextStage(StageFetchMarketData)
	assert.True(t, ok)
	assert.Equal(t, StageAnalyzeSentiment, next)

	_, ok = NextStage(StageNotifyReviewer)
	assert.False(t, ok)
}
