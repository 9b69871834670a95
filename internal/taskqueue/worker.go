package taskqueue

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/linkwell/linkwell/internal/aierr"
)

// Handler executes one task's payload and returns its result.
type Handler interface {
	Handle(ctx context.Context, task *Task) (any, error)
}

// Worker drains a Queue by polling, one task at a time.
type Worker struct {
	queue   *Queue
	handler Handler
	poll    time.Duration
	logger  *slog.Logger
}

// NewWorker creates a Worker. If pollInterval is <= 0, it defaults to 500ms.
func NewWorker(queue *Queue, handler Handler, pollInterval time.Duration) *Worker {
	if pollInterval <= 0 {
		pollInterval = 500 * time.Millisecond
	}
	return &Worker{
		queue:   queue,
		handler: handler,
		poll:    pollInterval,
		logger:  slog.Default(),
	}
}

// Run polls for tasks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		done, err := w.RunOnce(ctx)
		if err != nil {
			w.logger.Error("worker iteration failed", "error", err)
		}
		if done {
			continue
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(w.poll):
		}
	}
}

// RunOnce dequeues and processes a single task. Returns true if a task
// was processed, regardless of its outcome.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	task := w.queue.Dequeue()
	if task == nil {
		return false, nil
	}

	if err := w.queue.MarkStarted(task.ID); err != nil {
		return true, err
	}

	result, err := w.handler.Handle(ctx, task)
	if err != nil {
		w.logger.Warn("task failed", "task_id", task.ID, "type", task.Type, "error", err)
		var ae *aierr.Error
		if !errors.As(err, &ae) {
			ae = aierr.Wrap(aierr.CodeRequestFailed, err, "task execution failed")
		}
		if markErr := w.queue.MarkFailed(task.ID, ae); markErr != nil {
			w.logger.Error("failed to mark task as failed", "task_id", task.ID, "error", markErr)
		}
		return true, nil
	}

	if err := w.queue.MarkCompleted(task.ID, result); err != nil {
		return true, err
	}
	return true, nil
}
