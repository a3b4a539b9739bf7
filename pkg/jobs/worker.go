package jobs

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/entrhq/quatro-rpa/pkg/logging"
)

// Dequeuer hands out queued tasks.
type Dequeuer interface {
	Dequeue(ctx context.Context, wait time.Duration) (*Task, error)
}

// Handler processes one RPA task.
type Handler interface {
	ProcessRPAJob(ctx context.Context, procesoID int64) error
}

// Default worker timings
const (
	DefaultDequeueWait  = 5 * time.Second
	DefaultErrorBackoff = 2 * time.Second
)

// Worker pulls tasks one at a time. Running jobs serially lets consecutive
// jobs reuse the same browser session.
type Worker struct {
	queue   Dequeuer
	handler Handler
	clock   clockwork.Clock
	log     *logging.Logger

	// Wait is how long one dequeue blocks
	Wait time.Duration
	// Backoff is the pause after a queue error
	Backoff time.Duration
}

// NewWorker creates a worker with default timings.
func NewWorker(queue Dequeuer, handler Handler, clock clockwork.Clock, log *logging.Logger) *Worker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if log == nil {
		log = logging.NewLogger("worker")
	}
	return &Worker{
		queue:   queue,
		handler: handler,
		clock:   clock,
		log:     log,
		Wait:    DefaultDequeueWait,
		Backoff: DefaultErrorBackoff,
	}
}

// Run processes tasks until ctx is cancelled. A task that already started
// runs to completion even if ctx is cancelled meanwhile.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Infof("Worker started")
	defer w.log.Infof("Worker stopped")

	for {
		if ctx.Err() != nil {
			return nil
		}

		task, err := w.queue.Dequeue(ctx, w.Wait)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			w.log.Errorf("Dequeue failed: %v", err)
			select {
			case <-ctx.Done():
				return nil
			case <-w.clock.After(w.Backoff):
			}
			continue
		}
		if task == nil {
			continue
		}

		w.handle(context.WithoutCancel(ctx), task)
	}
}

func (w *Worker) handle(ctx context.Context, t *Task) {
	if t.Kind != KindRPA {
		w.log.Warnf("Ignoring task %s of kind %q", t.ID, t.Kind)
		return
	}

	start := w.clock.Now()
	w.log.Infof("Processing task %s for proceso %d", t.ID, t.ProcesoID)
	if err := w.handler.ProcessRPAJob(ctx, t.ProcesoID); err != nil {
		w.log.Errorf("Task %s for proceso %d failed: %v", t.ID, t.ProcesoID, err)
		return
	}
	w.log.Infof("Task %s done in %s", t.ID, w.clock.Since(start).Round(time.Millisecond))
}
