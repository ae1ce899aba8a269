package worker

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"prreview/internal/analyzer"
	"prreview/internal/apperr"
	"prreview/internal/codehost"
	"prreview/internal/models"
	"prreview/internal/queue"
	"prreview/internal/store"
	"prreview/internal/testsupport"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("opening in-memory store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func stubAnalyzeFile(ctx context.Context, prAnalysisID string, file codehost.FileChange, content string) (*analyzer.Result, error) {
	now := time.Now().UTC()
	return &analyzer.Result{
		FileAnalysis: &models.FileAnalysis{
			ID:              uuid.NewString(),
			PRAnalysisID:    prAnalysisID,
			FilePath:        file.Path,
			FileName:        file.Path,
			Language:        "go",
			LinesAnalyzed:   10,
			Maintainability: 80,
			Complexity:      5,
			AnalysisStatus:  models.AnalysisCompleted,
			CreatedAt:       now,
			UpdatedAt:       now,
		},
		QualityScore: 90,
	}, nil
}

// TestProcessTaskHappyPath drives one task through fetch→analyze→summarize→
// save→completed end to end against a real in-memory store and fakes for
// the code host and analyzer, the scenario spec.md §8 calls S1.
func TestProcessTaskHappyPath(t *testing.T) {
	// Registered before the store, so it runs after the store's cleanup has
	// closed the database and stopped its connection-opener goroutine.
	t.Cleanup(func() { goleak.VerifyNone(t) })

	st := newTestStore(t)
	task := testsupport.NewTask()
	if err := st.InsertTask(context.Background(), task); err != nil {
		t.Fatalf("insert task: %v", err)
	}

	ch := &testsupport.FakeCodeHost{
		GetPullRequestFunc: func(ctx context.Context, owner, name string, prNumber int) (*codehost.PRMeta, error) {
			return &codehost.PRMeta{Number: prNumber, HeadSHA: "deadbeef", BaseBranch: "main", HeadBranch: "feature"}, nil
		},
		GetPRFilesFunc: func(ctx context.Context, owner, name string, prNumber int) ([]codehost.FileChange, error) {
			return []codehost.FileChange{{Path: "main.go"}, {Path: "util.go"}}, nil
		},
		GetFileContentFunc: func(ctx context.Context, owner, name, path, ref string) (string, error) {
			return "package main\nfunc main() {}\n", nil
		},
	}
	az := &testsupport.FakeAnalyzer{AnalyzeFileFunc: stubAnalyzeFile}

	w := New(st, nil, ch, az, zap.NewNop(), Config{})

	outcome, err := w.processTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("processTask: %v", err)
	}
	if outcome != queue.OutcomeSuccess {
		t.Fatalf("expected success outcome, got %s", outcome)
	}

	got, err := st.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != models.TaskCompleted {
		t.Fatalf("expected task completed, got %s", got.Status)
	}
	if got.Progress != progressCompleted {
		t.Fatalf("expected progress 100, got %d", got.Progress)
	}

	pr, err := st.GetPRAnalysisByTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get pr_analysis: %v", err)
	}
	if pr.FilesAnalyzed != 2 {
		t.Fatalf("expected files_analyzed=2 (full file-list size), got %d", pr.FilesAnalyzed)
	}
}

// TestProcessTaskFetchFailureRetries checks that a fetch-stage error drives
// the task through the retry path regardless of the underlying apperr kind,
// per spec.md §4.7's fatal-fetch-triggers-retry rule.
func TestProcessTaskFetchFailureRetries(t *testing.T) {
	// Runs after the store's cleanup; see TestProcessTaskHappyPath.
	t.Cleanup(func() { goleak.VerifyNone(t) })

	st := newTestStore(t)
	task := testsupport.NewTask()
	task.MaxRetries = 3
	if err := st.InsertTask(context.Background(), task); err != nil {
		t.Fatalf("insert task: %v", err)
	}

	ch := &testsupport.FakeCodeHost{
		GetPullRequestFunc: func(ctx context.Context, owner, name string, prNumber int) (*codehost.PRMeta, error) {
			return nil, apperr.New(apperr.KindUnauthorized, "bad token")
		},
	}

	w := New(st, nil, ch, &testsupport.FakeAnalyzer{}, zap.NewNop(), Config{MaxRetries: 3})

	outcome, err := w.processTask(context.Background(), task.ID)
	if err == nil {
		t.Fatalf("expected an error from a failed fetch")
	}
	if outcome != queue.OutcomeRetry {
		t.Fatalf("expected retry outcome, got %s", outcome)
	}

	got, err := st.GetTask(context.Background(), task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Status != models.TaskRetry {
		t.Fatalf("expected task status=retry, got %s", got.Status)
	}
	if got.RetryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", got.RetryCount)
	}
}

// TestResolveIdempotencySkipsFreshInFlight covers scenario S6: a second
// delivery of a task whose PRAnalysis is still fresh in_progress must be
// skipped, never producing a second PRAnalysis row.
func TestResolveIdempotencySkipsFreshInFlight(t *testing.T) {
	st := newTestStore(t)
	task := testsupport.NewTask()
	if err := st.InsertTask(context.Background(), task); err != nil {
		t.Fatalf("insert task: %v", err)
	}

	now := time.Now().UTC()
	existing := &models.PRAnalysis{
		ID:        uuid.NewString(),
		TaskID:    task.ID,
		Status:    models.AnalysisInProgress,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := st.InsertPRAnalysis(context.Background(), existing); err != nil {
		t.Fatalf("insert pr_analysis: %v", err)
	}

	w := New(st, nil, &testsupport.FakeCodeHost{}, &testsupport.FakeAnalyzer{}, zap.NewNop(), Config{})

	_, _, skip, err := w.resolveIdempotency(context.Background(), task)
	if err != nil {
		t.Fatalf("resolveIdempotency: %v", err)
	}
	if !skip {
		t.Fatalf("expected a fresh in-flight PRAnalysis to be skipped")
	}
}

// TestResolveIdempotencyAdoptsStale covers the adoption path: an in_progress
// PRAnalysis past the heartbeat timeout is reset and re-driven.
func TestResolveIdempotencyAdoptsStale(t *testing.T) {
	st := newTestStore(t)
	task := testsupport.NewTask()
	if err := st.InsertTask(context.Background(), task); err != nil {
		t.Fatalf("insert task: %v", err)
	}

	stale := time.Now().UTC().Add(-staleHeartbeat - time.Minute)
	existing := &models.PRAnalysis{
		ID:            uuid.NewString(),
		TaskID:        task.ID,
		Status:        models.AnalysisInProgress,
		FilesAnalyzed: 7,
		CreatedAt:     stale,
		UpdatedAt:     stale,
	}
	if err := st.InsertPRAnalysis(context.Background(), existing); err != nil {
		t.Fatalf("insert pr_analysis: %v", err)
	}

	w := New(st, nil, &testsupport.FakeCodeHost{}, &testsupport.FakeAnalyzer{}, zap.NewNop(), Config{})

	refreshed, adopted, skip, err := w.resolveIdempotency(context.Background(), task)
	if err != nil {
		t.Fatalf("resolveIdempotency: %v", err)
	}
	if skip {
		t.Fatalf("expected a stale in-flight PRAnalysis to be adopted, not skipped")
	}
	if !adopted {
		t.Fatalf("expected adopted=true")
	}
	if refreshed.FilesAnalyzed != 0 {
		t.Fatalf("expected adoption to reset counters, got files_analyzed=%d", refreshed.FilesAnalyzed)
	}
}

// TestProcessTicketAcknowledgesQueue drives the full claim-then-acknowledge
// loop body, checking that processTicket reports the outcome back to the
// Task Queue exactly once per ticket regardless of success or failure.
func TestProcessTicketAcknowledgesQueue(t *testing.T) {
	st := newTestStore(t)
	task := testsupport.NewTask()
	if err := st.InsertTask(context.Background(), task); err != nil {
		t.Fatalf("insert task: %v", err)
	}

	ch := &testsupport.FakeCodeHost{
		GetPullRequestFunc: func(ctx context.Context, owner, name string, prNumber int) (*codehost.PRMeta, error) {
			return &codehost.PRMeta{Number: prNumber, HeadSHA: "cafe"}, nil
		},
		GetPRFilesFunc: func(ctx context.Context, owner, name string, prNumber int) ([]codehost.FileChange, error) {
			return nil, nil
		},
	}
	fq := testsupport.NewFakeQueue(&queue.Ticket{ID: "ticket-1", TaskID: task.ID, Priority: models.PriorityNormal})

	w := New(st, fq, ch, &testsupport.FakeAnalyzer{}, zap.NewNop(), Config{})
	w.processTicket(context.Background(), &queue.Ticket{ID: "ticket-1", TaskID: task.ID})

	if len(fq.Terminal) != 1 {
		t.Fatalf("expected exactly one MarkTerminal call, got %d", len(fq.Terminal))
	}
	if fq.Terminal[0].Outcome != queue.OutcomeSuccess {
		t.Fatalf("expected a zero-file PR to complete successfully, got outcome=%s", fq.Terminal[0].Outcome)
	}
}
