package daemon

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/docpages/internal/pipeline"
)

type recordingRunner struct {
	mu      sync.Mutex
	commits []string
	block   chan struct{} // when set, Run waits on it
	result  *pipeline.Result
	err     error
}

func (r *recordingRunner) Run(_ context.Context, commit string) (*pipeline.Result, error) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	r.commits = append(r.commits, commit)
	r.mu.Unlock()
	return r.result, r.err
}

func (r *recordingRunner) seen() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commits...)
}

func TestQueueProcessesRequests(t *testing.T) {
	runner := &recordingRunner{result: &pipeline.Result{RunID: "r1", Outcome: pipeline.OutcomeSuccess}}
	q := NewRunQueue(10, 1, runner)

	results := make(chan *pipeline.Result, 1)
	q.OnResult(func(res *pipeline.Result) { results <- res })
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(&RunRequest{ID: "req-1", Reason: ReasonWebhook, Commit: "abc123"}))

	select {
	case res := <-results:
		assert.Equal(t, "r1", res.RunID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for run result")
	}
	q.Stop()

	assert.Equal(t, []string{"abc123"}, runner.seen())
}

func TestQueueRejectsWhenFull(t *testing.T) {
	runner := &recordingRunner{block: make(chan struct{})}
	q := NewRunQueue(1, 1, runner)
	q.Start(context.Background())
	defer func() {
		close(runner.block)
		q.Stop()
	}()

	// First request occupies the worker, second fills the buffer.
	require.NoError(t, q.Enqueue(&RunRequest{ID: "req-1", Reason: ReasonManual}))
	require.Eventually(t, func() bool {
		return q.Enqueue(&RunRequest{ID: "req-2", Reason: ReasonManual}) == nil
	}, time.Second, 10*time.Millisecond)

	err := q.Enqueue(&RunRequest{ID: "req-3", Reason: ReasonManual})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "full")
}

func TestQueueEnqueueAfterStop(t *testing.T) {
	q := NewRunQueue(1, 1, &recordingRunner{})
	q.Start(context.Background())
	q.Stop()

	err := q.Enqueue(&RunRequest{ID: "req-1", Reason: ReasonManual})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "stopped")
}

func TestQueueRequiresID(t *testing.T) {
	q := NewRunQueue(1, 1, &recordingRunner{})
	assert.Error(t, q.Enqueue(&RunRequest{}))
	assert.Error(t, q.Enqueue(nil))
}

func TestQueueStopWaitsForInflightRun(t *testing.T) {
	runner := &recordingRunner{block: make(chan struct{}), result: &pipeline.Result{RunID: "r1"}}
	q := NewRunQueue(5, 1, runner)
	q.Start(context.Background())

	require.NoError(t, q.Enqueue(&RunRequest{ID: "req-1", Reason: ReasonManual, Commit: "abc"}))

	stopped := make(chan struct{})
	go func() {
		q.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while a run was still in flight")
	case <-time.After(100 * time.Millisecond):
	}

	close(runner.block)
	select {
	case <-stopped:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not return after run finished")
	}
	assert.Equal(t, []string{"abc"}, runner.seen())
}
