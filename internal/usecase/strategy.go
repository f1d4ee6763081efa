package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"MarketNewsroom/internal/domain"
	"MarketNewsroom/internal/ports"
)

// Strategy decides how the stages of a created run get executed.
type Strategy interface {
	Name() string
	Execute(ctx context.Context, run domain.PipelineRun) (RunResult, error)
}

// DirectStrategy runs every stage in the caller's goroutine.
type DirectStrategy struct {
	pipeline *Pipeline
}

// NewDirectStrategy wraps the pipeline for synchronous execution.
func NewDirectStrategy(pipeline *Pipeline) *DirectStrategy {
	return &DirectStrategy{pipeline: pipeline}
}

// Name identifies the strategy.
func (s *DirectStrategy) Name() string { return "direct" }

// Execute runs the stages in order and returns the result, including its log, on success and on failure.
func (s *DirectStrategy) Execute(ctx context.Context, run domain.PipelineRun) (RunResult, error) {
	var stageErr error
	for _, stage := range Stages {
		if _, stageErr = s.pipeline.ExecuteStage(ctx, run.ID, stage, false); stageErr != nil {
			break
		}
	}

	res, err := s.pipeline.Result(ctx, run.ID)
	if err != nil {
		return RunResult{Run: run}, errors.Join(stageErr, err)
	}
	return res, stageErr
}

// QueuedStrategy chains stages through a task queue: each committed stage enqueues the next.
type QueuedStrategy struct {
	pipeline    *Pipeline
	queue       ports.TaskQueue
	maxAttempts int
	logger      *slog.Logger
}

// NewQueuedStrategy wires the pipeline to a queue.
func NewQueuedStrategy(pipeline *Pipeline, queue ports.TaskQueue, maxAttempts int, logger *slog.Logger) *QueuedStrategy {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &QueuedStrategy{
		pipeline:    pipeline,
		queue:       queue,
		maxAttempts: maxAttempts,
		logger:      componentLogger(logger, "queue"),
	}
}

// Name identifies the strategy.
func (s *QueuedStrategy) Name() string { return "queued" }

// Execute enqueues the first stage and returns immediately.
func (s *QueuedStrategy) Execute(ctx context.Context, run domain.PipelineRun) (RunResult, error) {
	if err := s.queue.Enqueue(ctx, ports.StageTask{RunID: run.ID, Stage: Stages[0], Attempt: 1}); err != nil {
		failed, ferr := s.pipeline.failRun(ctx, run.ID, fmt.Errorf("enqueue %s: %w", Stages[0], err))
		if ferr != nil {
			return RunResult{Run: run}, errors.Join(err, ferr)
		}
		return RunResult{Run: failed}, err
	}
	return RunResult{Run: run}, nil
}

// HandleTask executes one queued stage and chains the next one.
// Returning an error asks the queue to redeliver the task.
func (s *QueuedStrategy) HandleTask(ctx context.Context, task ports.StageTask) error {
	mayRetry := task.Attempt < s.maxAttempts
	run, err := s.pipeline.ExecuteStage(ctx, task.RunID, task.Stage, mayRetry)
	if err != nil {
		if errors.Is(err, domain.ErrRunCancelled) {
			s.logger.Info("skipping task of cancelled run", "run_id", task.RunID, "stage", task.Stage)
			return nil
		}
		if mayRetry && Retryable(err) {
			return err
		}
		s.logger.Warn("stage task dropped", "run_id", task.RunID, "stage", task.Stage, "attempt", task.Attempt, "error", err)
		return nil
	}

	next, ok := NextStage(task.Stage)
	if !ok {
		s.logger.Info("run chain finished", "run_id", run.ID, "status", run.Status)
		return nil
	}
	if err := s.queue.Enqueue(ctx, ports.StageTask{RunID: run.ID, Stage: next, Attempt: 1}); err != nil {
		return fmt.Errorf("enqueue %s for run %d: %w", next, run.ID, err)
	}
	return nil
}

// Abandon fails the run of a task the queue will not deliver again.
// Runs that already reached review or a terminal status are left as they are.
func (s *QueuedStrategy) Abandon(ctx context.Context, task ports.StageTask, cause error) {
	run, err := s.pipeline.runs.Get(ctx, task.RunID)
	if err != nil {
		s.logger.Warn("load run of abandoned task", "run_id", task.RunID, "stage", task.Stage, "error", err)
		return
	}
	if run.Status.Terminal() || run.Status == domain.RunPendingReview {
		return
	}

	reason := fmt.Errorf("stage %s abandoned after %d attempts: %w", task.Stage, task.Attempt, cause)
	if _, err := s.pipeline.failRun(ctx, run.ID, reason); err != nil {
		s.logger.Error("fail abandoned run", "run_id", run.ID, "error", err)
		return
	}
	s.logger.Warn("run failed, task abandoned", "run_id", run.ID, "stage", task.Stage, "attempt", task.Attempt, "error", cause)
}
