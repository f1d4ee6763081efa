package queue

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"MarketNewsroom/internal/ports"
)

// TaskHandler runs one stage task. A non-nil error asks for redelivery.
type TaskHandler func(ctx context.Context, task ports.StageTask) error

// PoolConfig sizes the worker pool.
type PoolConfig struct {
	Workers      int
	PollInterval time.Duration
	RetryDelay   time.Duration
}

// WorkerPool polls the queue and hands tasks to the handler.
type WorkerPool struct {
	queue   *BadgerQueue
	handler TaskHandler
	cfg     PoolConfig
	logger  *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewWorkerPool builds a stopped pool.
func NewWorkerPool(queue *BadgerQueue, handler TaskHandler, cfg PoolConfig, logger *slog.Logger) *WorkerPool {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerPool{
		queue:   queue,
		handler: handler,
		cfg:     cfg,
		logger:  logger.With("component", "worker_pool"),
	}
}

// Start launches the workers; they run until Stop or ctx is done.
func (p *WorkerPool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.logger.Info("starting worker pool", "workers", p.cfg.Workers, "poll_interval", p.cfg.PollInterval)

	for i := 0; i < p.cfg.Workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

// Stop cancels the workers and waits for in-flight tasks.
func (p *WorkerPool) Stop() {
	p.mu.Lock()
	cancel := p.cancel
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	p.wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *WorkerPool) worker(ctx context.Context, id int) {
	defer p.wg.Done()

	stagger := (p.cfg.PollInterval / time.Duration(p.cfg.Workers)) * time.Duration(id)
	if stagger > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(stagger):
		}
	}

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for {
				processed, err := p.ProcessNext(ctx)
				if err != nil && ctx.Err() == nil {
					p.logger.Warn("error processing message", "worker_id", id, "error", err)
				}
				if !processed || ctx.Err() != nil {
					break
				}
			}
		}
	}
}

// ProcessNext handles at most one message. It reports whether a message was
// received; handler errors are absorbed into a redelivery.
func (p *WorkerPool) ProcessNext(ctx context.Context) (bool, error) {
	delivery, err := p.queue.Receive(ctx)
	if errors.Is(err, ErrNoMessage) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	log := p.logger.With("message_id", delivery.ID, "run_id", delivery.Task.RunID, "stage", delivery.Task.Stage, "attempt", delivery.Task.Attempt)
	started := time.Now()
	if handlerErr := p.handler(ctx, delivery.Task); handlerErr != nil {
		if delivery.Task.Attempt >= p.queue.MaxReceive() {
			log.Error("task failed on last attempt", "error", handlerErr)
			return true, p.queue.Discard(context.WithoutCancel(ctx), delivery.ID, delivery.Task, handlerErr)
		}
		log.Warn("task failed, scheduling redelivery", "error", handlerErr)
		return true, p.queue.Release(context.WithoutCancel(ctx), delivery.ID, p.cfg.RetryDelay)
	}

	log.Debug("task completed", "duration", time.Since(started))
	return true, p.queue.Delete(context.WithoutCancel(ctx), delivery.ID)
}

// Drain processes messages until none is visible.
func (p *WorkerPool) Drain(ctx context.Context) (int, error) {
	count := 0
	for {
		processed, err := p.ProcessNext(ctx)
		if err != nil {
			return count, err
		}
		if !processed {
			return count, nil
		}
		count++
	}
}
