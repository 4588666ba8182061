package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

// Task points a worker at one stored document.
type Task struct {
	DocumentID string
	Path       string
}

// ErrQueueFull is returned by Submit when the queue is at capacity, so
// uploads fail fast instead of blocking the request.
var ErrQueueFull = errors.New("ingestion queue full")

// Runner fans ingestion tasks out to a fixed pool of workers over a
// bounded queue.
type Runner struct {
	ingestor *Ingestor
	queue    chan Task
	workers  int
	log      *slog.Logger

	wg sync.WaitGroup
}

func NewRunner(ingestor *Ingestor, workers, queueSize int, log *slog.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	if queueSize <= 0 {
		queueSize = 1
	}
	if log == nil {
		log = slog.Default()
	}
	return &Runner{
		ingestor: ingestor,
		queue:    make(chan Task, queueSize),
		workers:  workers,
		log:      log,
	}
}

// Start launches worker goroutines. ctx bounds the work each task does;
// the workers themselves run until the queue is closed by Stop.
func (r *Runner) Start(ctx context.Context) {
	for range r.workers {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			for task := range r.queue {
				r.ingestor.Run(ctx, task)
			}
		}()
	}
	r.log.Info("pipeline started", "workers", r.workers, "queue_size", cap(r.queue))
}

// Submit queues a task without blocking.
func (r *Runner) Submit(task Task) error {
	select {
	case r.queue <- task:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop closes the queue and waits for queued and in-flight tasks to
// finish. The caller must stop accepting Submits first.
func (r *Runner) Stop() {
	close(r.queue)
	r.wg.Wait()
}

// QueueDepth returns the number of queued, unstarted tasks.
func (r *Runner) QueueDepth() int {
	return len(r.queue)
}
