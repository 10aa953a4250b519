package daemon

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"git.home.luguber.info/inful/docpages/internal/logfields"
	"git.home.luguber.info/inful/docpages/internal/pipeline"
)

// RunReason identifies what triggered a queued run.
type RunReason string

const (
	ReasonWebhook   RunReason = "webhook"
	ReasonScheduled RunReason = "scheduled"
	ReasonManual    RunReason = "manual"
)

// RunRequest is a queued request for a documentation run.
type RunRequest struct {
	ID         string    `json:"id"`
	Reason     RunReason `json:"reason"`
	Commit     string    `json:"commit,omitempty"` // empty = branch head
	Branch     string    `json:"branch,omitempty"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// Runner executes a documentation run for a commit.
type Runner interface {
	Run(ctx context.Context, commit string) (*pipeline.Result, error)
}

// RunnerFunc adapts a function to the Runner interface.
type RunnerFunc func(ctx context.Context, commit string) (*pipeline.Result, error)

func (f RunnerFunc) Run(ctx context.Context, commit string) (*pipeline.Result, error) {
	return f(ctx, commit)
}

// RunQueue serializes run requests through a fixed worker pool. Requests for
// the same repository never overlap when workers is 1 (the default), which
// keeps pages pushes free of forced updates.
type RunQueue struct {
	requests chan *RunRequest
	workers  int
	runner   Runner
	onResult func(*pipeline.Result)

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

// NewRunQueue creates a queue with the given buffer size and worker count.
func NewRunQueue(size, workers int, runner Runner) *RunQueue {
	if size <= 0 {
		size = 100
	}
	if workers <= 0 {
		workers = 1
	}
	return &RunQueue{
		requests: make(chan *RunRequest, size),
		workers:  workers,
		runner:   runner,
	}
}

// OnResult registers a callback invoked after every finished run (success or
// failure). Must be set before Start.
func (q *RunQueue) OnResult(fn func(*pipeline.Result)) { q.onResult = fn }

// Start launches the worker pool.
func (q *RunQueue) Start(ctx context.Context) {
	slog.Info("Starting run queue", slog.Int("workers", q.workers), slog.Int("size", cap(q.requests)))
	for i := 0; i < q.workers; i++ {
		q.wg.Add(1)
		go q.worker(ctx, fmt.Sprintf("worker-%d", i))
	}
}

// Stop closes the queue and waits for in-flight runs to finish. Enqueue
// returns an error after Stop.
func (q *RunQueue) Stop() {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.requests)
	}
	q.mu.Unlock()
	q.wg.Wait()
	slog.Info("Run queue stopped")
}

// Enqueue adds a request without blocking. A full queue is reported to the
// caller rather than applying backpressure to the webhook handler.
func (q *RunQueue) Enqueue(req *RunRequest) error {
	if req == nil || req.ID == "" {
		return fmt.Errorf("run request requires an ID")
	}
	if req.EnqueuedAt.IsZero() {
		req.EnqueuedAt = time.Now()
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("run queue is stopped")
	}
	select {
	case q.requests <- req:
		slog.Info("Run enqueued",
			slog.String("request_id", req.ID),
			slog.String("reason", string(req.Reason)),
			logfields.Commit(req.Commit))
		return nil
	default:
		return fmt.Errorf("run queue is full (%d pending)", cap(q.requests))
	}
}

// Depth reports the number of pending requests.
func (q *RunQueue) Depth() int { return len(q.requests) }

func (q *RunQueue) worker(ctx context.Context, name string) {
	defer q.wg.Done()
	for req := range q.requests {
		select {
		case <-ctx.Done():
			slog.Info("Worker stopping, dropping pending request",
				slog.String("worker", name), slog.String("request_id", req.ID))
			continue
		default:
		}

		slog.Info("Processing run request",
			slog.String("worker", name),
			slog.String("request_id", req.ID),
			slog.String("reason", string(req.Reason)))

		res, err := q.runner.Run(ctx, req.Commit)
		if err != nil {
			slog.Error("Run request failed", slog.String("request_id", req.ID), logfields.Error(err))
		}
		if res != nil && q.onResult != nil {
			q.onResult(res)
		}
	}
}
