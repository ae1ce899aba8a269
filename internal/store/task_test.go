package store_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap"

	"prreview/internal/models"
	"prreview/internal/store"
	"prreview/internal/testsupport"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(":memory:", zap.NewNop())
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestUpdateTaskProgressIsMonotonic(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	task := testsupport.NewTask()
	if err := st.InsertTask(ctx, task); err != nil {
		t.Fatalf("insert task: %v", err)
	}

	if err := st.UpdateTaskProgress(ctx, task.ID, models.TaskProcessing, 50); err != nil {
		t.Fatalf("update progress to 50: %v", err)
	}
	if err := st.UpdateTaskProgress(ctx, task.ID, models.TaskProcessing, 20); err != nil {
		t.Fatalf("update progress to 20 (should no-op, not error): %v", err)
	}

	got, err := st.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.Progress != 50 {
		t.Fatalf("expected progress to stay at 50 after a lower update, got %d", got.Progress)
	}
}

func TestMarkTaskTerminalStampsCompletedAt(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	task := testsupport.NewTask()
	if err := st.InsertTask(ctx, task); err != nil {
		t.Fatalf("insert task: %v", err)
	}
	if err := st.MarkTaskTerminal(ctx, task.ID, models.TaskCompleted, 100, "", ""); err != nil {
		t.Fatalf("mark terminal: %v", err)
	}

	got, err := st.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.CompletedAt == nil {
		t.Fatalf("expected a terminal task to have completed_at set")
	}
	if got.Status != models.TaskCompleted {
		t.Fatalf("expected status=completed, got %s", got.Status)
	}
}

func TestMarkTaskTerminalRejectsNonTerminalStatus(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	task := testsupport.NewTask()
	if err := st.InsertTask(ctx, task); err != nil {
		t.Fatalf("insert task: %v", err)
	}
	if err := st.MarkTaskTerminal(ctx, task.ID, models.TaskProcessing, 50, "", ""); err == nil {
		t.Fatalf("expected an error marking a non-terminal status as terminal")
	}
}

func TestMarkTaskRetryIncrementsCount(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	task := testsupport.NewTask()
	if err := st.InsertTask(ctx, task); err != nil {
		t.Fatalf("insert task: %v", err)
	}
	if err := st.MarkTaskRetry(ctx, task.ID, "boom", ""); err != nil {
		t.Fatalf("mark task retry: %v", err)
	}
	if err := st.MarkTaskRetry(ctx, task.ID, "boom again", ""); err != nil {
		t.Fatalf("mark task retry again: %v", err)
	}

	got, err := st.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("get task: %v", err)
	}
	if got.RetryCount != 2 {
		t.Fatalf("expected retry_count=2, got %d", got.RetryCount)
	}
	if got.Status != models.TaskRetry {
		t.Fatalf("expected status=retry, got %s", got.Status)
	}
}

func TestIsCancelledReflectsStatus(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	task := testsupport.NewTask()
	if err := st.InsertTask(ctx, task); err != nil {
		t.Fatalf("insert task: %v", err)
	}

	cancelled, err := st.IsCancelled(ctx, task.ID)
	if err != nil {
		t.Fatalf("is cancelled: %v", err)
	}
	if cancelled {
		t.Fatalf("expected a freshly submitted task to not be cancelled")
	}

	if err := st.MarkTaskTerminal(ctx, task.ID, models.TaskCancelled, task.Progress, "", ""); err != nil {
		t.Fatalf("mark cancelled: %v", err)
	}
	cancelled, err = st.IsCancelled(ctx, task.ID)
	if err != nil {
		t.Fatalf("is cancelled after cancel: %v", err)
	}
	if !cancelled {
		t.Fatalf("expected a cancelled task to report cancelled=true")
	}
}

func TestGetTaskNotFound(t *testing.T) {
	st := openTestStore(t)
	_, err := st.GetTask(context.Background(), "does-not-exist")
	if err != store.ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestIssueInsertIsIdempotentUnderRedelivery(t *testing.T) {
	st := openTestStore(t)
	ctx := context.Background()

	task := testsupport.NewTask()
	if err := st.InsertTask(ctx, task); err != nil {
		t.Fatalf("insert task: %v", err)
	}
	now := time.Now().UTC()
	pr := &models.PRAnalysis{ID: "pr-1", TaskID: task.ID, Status: models.AnalysisInProgress, CreatedAt: now, UpdatedAt: now}
	if err := st.InsertPRAnalysis(ctx, pr); err != nil {
		t.Fatalf("insert pr_analysis: %v", err)
	}

	issue := &models.Issue{
		PRAnalysisID: pr.ID,
		IssueType:    models.IssueBug,
		Severity:     models.SeverityHigh,
		FilePath:     "main.go",
		Title:        "possible nil deref",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := st.InsertIssue(ctx, issue); err != nil {
		t.Fatalf("insert issue: %v", err)
	}
	// Simulate at-least-once re-delivery re-analyzing the same file and
	// producing the identical finding again.
	dup := *issue
	dup.ID = ""
	if err := st.InsertIssue(ctx, &dup); err != nil {
		t.Fatalf("insert duplicate issue: %v", err)
	}

	issues, err := st.ListIssuesByPR(ctx, pr.ID)
	if err != nil {
		t.Fatalf("list issues: %v", err)
	}
	if len(issues) != 1 {
		t.Fatalf("expected re-delivery to not duplicate the issue row, got %d rows", len(issues))
	}
}
