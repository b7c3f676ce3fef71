// ABOUTME: Scenario tests for the worker loop: success, the retry-to-DLQ
// ABOUTME: trace, timeout handling, and graceful shutdown mid-execution.
package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/scarson/queuectl/internal/executor"
	"github.com/scarson/queuectl/internal/store"
	"github.com/scarson/queuectl/internal/testutil"
	"github.com/scarson/queuectl/internal/worker"
)

func newTestWorker(t *testing.T, s *store.Store) *worker.Worker {
	t.Helper()
	sink, err := executor.NewFileSink(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileSink: %v", err)
	}
	return worker.New(s, executor.NewRunner(sink), worker.Config{
		IdleSleep:  10 * time.Millisecond,
		BusyRetry:  10 * time.Millisecond,
		ErrorPause: 10 * time.Millisecond,
	})
}

func enqueue(t *testing.T, s *store.Store, p store.EnqueueParams) {
	t.Helper()
	if _, err := s.EnqueueJob(context.Background(), p); err != nil {
		t.Fatalf("EnqueueJob(%s): %v", p.ID, err)
	}
}

func getJob(t *testing.T, s *store.Store, id string) *store.Job {
	t.Helper()
	j, err := s.GetJob(context.Background(), id)
	if err != nil {
		t.Fatalf("GetJob(%s): %v", id, err)
	}
	if j == nil {
		t.Fatalf("GetJob(%s): missing", id)
	}
	return j
}

func TestRunOnceIdle(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	w := newTestWorker(t, s)

	processed, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if processed {
		t.Error("RunOnce processed a job on an empty queue")
	}
}

func TestRunOnceCompletesJob(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	w := newTestWorker(t, s)

	enqueue(t, s, store.EnqueueParams{ID: "ok", Command: "echo hello"})

	processed, err := w.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if !processed {
		t.Fatal("RunOnce did not process the eligible job")
	}

	j := getJob(t, s, "ok")
	if j.State != store.StateCompleted {
		t.Errorf("State = %q, want completed", j.State)
	}
	if j.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", j.Attempts)
	}
	if j.LastExitCode == nil || *j.LastExitCode != 0 {
		t.Errorf("LastExitCode = %v, want 0", j.LastExitCode)
	}
}

// TestFailureTraceToDLQ walks the full retry trace: with max_retries=2 a
// failing job runs three times, returning to pending with a backoff after
// the first two failures and going dead on the third.
func TestFailureTraceToDLQ(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	w := newTestWorker(t, s)

	// base 1 keeps the backoff at one second so the test can wait it out.
	if err := s.SetValue(ctx, store.KeyBackoffBase, "1"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	enqueue(t, s, store.EnqueueParams{ID: "f1", Command: "false", MaxRetries: intp(2)})

	for attempt := 1; attempt <= 2; attempt++ {
		processed, err := w.RunOnce(ctx)
		if err != nil || !processed {
			t.Fatalf("attempt %d: RunOnce = %v, %v", attempt, processed, err)
		}
		j := getJob(t, s, "f1")
		if j.State != store.StatePending {
			t.Fatalf("attempt %d: State = %q, want pending", attempt, j.State)
		}
		if j.Attempts != attempt {
			t.Errorf("attempt %d: Attempts = %d", attempt, j.Attempts)
		}
		if slack := j.NextRun - time.Now().Unix(); slack < 0 || slack > 2 {
			t.Errorf("attempt %d: NextRun %ds away, want ~1s backoff", attempt, slack)
		}
		time.Sleep(1100 * time.Millisecond) // let the backoff elapse
	}

	processed, err := w.RunOnce(ctx)
	if err != nil || !processed {
		t.Fatalf("final attempt: RunOnce = %v, %v", processed, err)
	}
	j := getJob(t, s, "f1")
	if j.State != store.StateDead {
		t.Errorf("State = %q, want dead after attempts > max_retries", j.State)
	}
	if j.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3 (first attempt plus two retries)", j.Attempts)
	}
	if j.LastExitCode == nil || *j.LastExitCode == 0 {
		t.Errorf("LastExitCode = %v, want non-zero", j.LastExitCode)
	}
}

func TestTimeoutFollowsFailurePath(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx := context.Background()
	w := newTestWorker(t, s)

	if err := s.SetValue(ctx, store.KeyJobTimeout, "1"); err != nil {
		t.Fatalf("SetValue: %v", err)
	}
	enqueue(t, s, store.EnqueueParams{ID: "slow", Command: "sleep 30", MaxRetries: intp(0)})

	processed, err := w.RunOnce(ctx)
	if err != nil || !processed {
		t.Fatalf("RunOnce = %v, %v", processed, err)
	}

	j := getJob(t, s, "slow")
	if j.State != store.StateDead {
		t.Errorf("State = %q, want dead (max_retries=0)", j.State)
	}
	if j.LastExitCode == nil || *j.LastExitCode != executor.TimeoutExitCode {
		t.Errorf("LastExitCode = %v, want timeout sentinel %d", j.LastExitCode, executor.TimeoutExitCode)
	}
}

// TestGracefulShutdown cancels the loop while a command is running: the
// worker must finish the command, persist its outcome, and exit without
// claiming the other pending job.
func TestGracefulShutdown(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := newTestWorker(t, s)

	enqueue(t, s, store.EnqueueParams{ID: "current", Command: "sleep 0.5", Priority: 1})
	enqueue(t, s, store.EnqueueParams{ID: "next", Command: "true"})

	done := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(done)
	}()

	// Let the worker claim and start executing "current", then request stop.
	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("worker did not exit after finishing the in-flight job")
	}

	if j := getJob(t, s, "current"); j.State != store.StateCompleted {
		t.Errorf("in-flight job State = %q, want completed (not killed by shutdown)", j.State)
	}
	if j := getJob(t, s, "next"); j.State != store.StatePending {
		t.Errorf("queued job State = %q, want pending (no claims after stop)", j.State)
	}
}

// errRunner simulates a runner fault, which must surface as a loop error
// rather than an execution outcome.
type errRunner struct{}

func (errRunner) Run(string, string, time.Duration) (executor.Result, error) {
	return executor.Result{}, errors.New("runner exploded")
}

func TestRunnerFaultLeavesJobProcessing(t *testing.T) {
	t.Parallel()
	s := testutil.NewTestDB(t)
	w := worker.New(s, errRunner{}, worker.Config{})

	enqueue(t, s, store.EnqueueParams{ID: "j1", Command: "true"})

	processed, err := w.RunOnce(context.Background())
	if !processed || err == nil {
		t.Fatalf("RunOnce = %v, %v; want processed with error", processed, err)
	}
	// Documented limitation: no lease recovery, the claim stands.
	if j := getJob(t, s, "j1"); j.State != store.StateProcessing {
		t.Errorf("State = %q, want processing", j.State)
	}
}

func intp(n int) *int { return &n }
