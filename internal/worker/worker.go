// Package worker implements the Task Worker (C7, spec.md §4.7): the
// orchestrator that claims a task, drives PR→files→per-file
// fan-out→aggregate→persist while emitting progress, honors retries, and
// guarantees terminal-state consistency.
package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"prreview/internal/logging"
	"prreview/internal/metrics"
	"prreview/internal/models"
	"prreview/internal/queue"
	"prreview/internal/store"
)

// Stage progress percentages, per spec.md §4.7's stage table.
const (
	progressInitializing = 0
	progressFetching     = 10
	progressAnalyzeStart = 30
	progressAnalyzeEnd   = 80
	progressSummary      = 85
	progressSaving       = 95
	progressCompleted    = 100
)

// staleHeartbeat is how long an in_progress PRAnalysis may go without
// update before a worker adopts it as abandoned, per spec.md §4.7's
// idempotency rule (default adoption timeout, SPEC_FULL.md §13).
const staleHeartbeat = 5 * time.Minute

// fanOutCap bounds per-file concurrency, per spec.md §5: min(8, file_count).
const fanOutCap = 8

// Config configures retry policy and timeouts, per spec.md §4.7/§5. The
// retry backoff delay itself lives on the Task Queue (it owns
// re-enqueueing), not here.
type Config struct {
	MaxRetries  int
	TaskTimeout time.Duration
}

// Worker drives one task at a time to completion, claiming tickets from
// the Task Queue.
type Worker struct {
	store    *store.Store
	queue    TaskQueue
	codehost CodeHostClient
	analyzer FileAnalyzer
	logger   *zap.Logger
	cfg      Config
}

// New builds a Worker from its collaborators. ch and az accept any
// implementation of CodeHostClient/FileAnalyzer — *codehost.Client and
// *analyzer.Analyzer in production, fakes from internal/testsupport in
// tests.
func New(st *store.Store, q TaskQueue, ch CodeHostClient, az FileAnalyzer, logger *zap.Logger, cfg Config) *Worker {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = 10 * time.Minute
	}
	return &Worker{store: st, queue: q, codehost: ch, analyzer: az, logger: logger, cfg: cfg}
}

// Run loops claiming tickets until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		ticket, err := w.queue.Claim(ctx, 5*time.Second)
		if err != nil {
			if err == queue.ErrNoTicket {
				continue
			}
			if err == queue.ErrQueueStopped || ctx.Err() != nil {
				return err
			}
			w.logger.Error("worker: claim failed", zap.Error(err))
			continue
		}

		w.processTicket(ctx, ticket)
	}
}

func (w *Worker) processTicket(ctx context.Context, ticket *queue.Ticket) {
	log := logging.Task(w.logger, ticket.TaskID)
	start := time.Now()
	outcome, err := w.processTask(ctx, ticket.TaskID)
	metrics.TasksProcessed.WithLabelValues(string(outcome)).Inc()
	metrics.TaskDuration.WithLabelValues(string(outcome)).Observe(time.Since(start).Seconds())

	info := ""
	if err != nil {
		info = err.Error()
		log.Warn("worker: task ended with error", zap.Error(err), zap.String("outcome", string(outcome)))
	}
	if ackErr := w.queue.MarkTerminal(ctx, ticket.ID, outcome, info); ackErr != nil {
		log.Error("worker: failed to acknowledge ticket", zap.Error(ackErr))
	}
}

// processTask drives one task through the full state machine and returns
// the queue outcome to acknowledge.
func (w *Worker) processTask(parentCtx context.Context, taskID string) (queue.Outcome, error) {
	ctx, cancel := context.WithTimeout(parentCtx, w.cfg.TaskTimeout)
	defer cancel()

	log := logging.Task(w.logger, taskID)

	task, err := w.store.GetTask(ctx, taskID)
	if err != nil {
		return queue.OutcomeFailure, fmt.Errorf("load task: %w", err)
	}

	prAnalysis, _, skip, err := w.resolveIdempotency(ctx, task)
	if err != nil {
		return queue.OutcomeFailure, err
	}
	if skip {
		log.Info("worker: task already terminal, skipping re-delivery")
		return queue.OutcomeSuccess, nil
	}

	if err := w.store.MarkTaskStarted(ctx, task.ID); err != nil {
		return queue.OutcomeFailure, err
	}

	if cancelled, _ := w.checkCancelled(ctx, task.ID); cancelled {
		return queue.OutcomeSuccess, nil
	}

	owner, name := task.Owner, task.Name

	// --- fetching_pr_data ---
	// No PRAnalysis row is opened yet: the original worker
	// (analyze_pr_task.py) only creates one once get_pull_request/
	// get_pr_files succeed, so a fetch failure here leaves nothing for a
	// retried delivery's resolveIdempotency to mistake for an in-flight
	// attempt and wrongly skip.
	if err := w.store.UpdateTaskProgress(ctx, task.ID, models.TaskProcessing, progressFetching); err != nil {
		return queue.OutcomeFailure, err
	}
	prMeta, err := w.codehost.GetPullRequest(ctx, owner, name, task.PRNumber)
	if err != nil {
		return w.retryOrFail(ctx, task, prAnalysis, fmt.Errorf("fetch pr metadata: %w", err))
	}
	files, err := w.codehost.GetPRFiles(ctx, owner, name, task.PRNumber)
	if err != nil {
		return w.retryOrFail(ctx, task, prAnalysis, fmt.Errorf("fetch pr files: %w", err))
	}

	if prAnalysis == nil {
		now := time.Now().UTC()
		prAnalysis = &models.PRAnalysis{
			ID:                uuid.NewString(),
			TaskID:            task.ID,
			Status:            models.AnalysisInProgress,
			AnalysisStartedAt: &now,
			CreatedAt:         now,
			UpdatedAt:         now,
		}
		if err := w.store.InsertPRAnalysis(ctx, prAnalysis); err != nil {
			return queue.OutcomeFailure, err
		}
		log.Debug("worker: opened new PRAnalysis", zap.String("pr_analysis_id", prAnalysis.ID))
	}

	prAnalysis.PRURL = prMeta.URL
	prAnalysis.BaseBranch = prMeta.BaseBranch
	prAnalysis.HeadBranch = prMeta.HeadBranch
	prAnalysis.BaseSHA = prMeta.BaseSHA
	prAnalysis.HeadSHA = prMeta.HeadSHA

	if cancelled, _ := w.checkCancelled(ctx, task.ID); cancelled {
		return queue.OutcomeSuccess, nil
	}

	// --- analyzing_files ---
	results := w.analyzeFiles(ctx, task.ID, prAnalysis, owner, name, files)

	if cancelled, _ := w.checkCancelled(ctx, task.ID); cancelled {
		return queue.OutcomeSuccess, nil
	}

	if err := w.store.UpdateTaskProgress(ctx, task.ID, models.TaskProcessing, progressSummary); err != nil {
		return queue.OutcomeFailure, err
	}

	// --- generating_summary ---
	summary := w.summarize(results, prMeta)

	// --- saving_results ---
	if err := w.store.UpdateTaskProgress(ctx, task.ID, models.TaskProcessing, progressSaving); err != nil {
		return queue.OutcomeFailure, err
	}
	w.applySummary(prAnalysis, results, len(files), summary)
	prAnalysis.Status = models.AnalysisCompleted
	if err := w.store.FinalizePRAnalysis(ctx, prAnalysis); err != nil {
		return w.retryOrFail(ctx, task, prAnalysis, fmt.Errorf("finalize pr_analysis: %w", err))
	}

	// --- completed ---
	if err := w.store.MarkTaskTerminal(ctx, task.ID, models.TaskCompleted, progressCompleted, "", ""); err != nil {
		return queue.OutcomeFailure, err
	}
	return queue.OutcomeSuccess, nil
}

// resolveIdempotency implements spec.md §4.7's re-delivery rule: a
// terminal PRAnalysis means the work is already done (skip); a stale
// in-progress one is adopted and reset; a fresh in-progress one (still
// within its heartbeat) is treated as a concurrent in-flight delivery and
// skipped so at-least-once redelivery never produces a second PRAnalysis
// row (spec.md §8, scenario S6). No PRAnalysis exists yet on a task's
// first delivery (or after a fetch-stage retry, which never opens one) —
// pr is nil in that case, and the caller opens the row itself once the PR
// fetch succeeds.
func (w *Worker) resolveIdempotency(ctx context.Context, task *models.Task) (pr *models.PRAnalysis, adopted bool, skip bool, err error) {
	existing, err := w.store.GetPRAnalysisByTask(ctx, task.ID)
	if err == store.ErrNotFound {
		return nil, false, false, nil
	}
	if err != nil {
		return nil, false, false, err
	}

	switch existing.Status {
	case models.AnalysisCompleted, models.AnalysisFailed:
		return existing, false, true, nil
	default:
		if time.Since(existing.UpdatedAt) > staleHeartbeat {
			if err := w.store.ResetPRAnalysisForAdoption(ctx, existing.ID); err != nil {
				return nil, false, false, err
			}
			refreshed, err := w.store.GetPRAnalysis(ctx, existing.ID)
			if err != nil {
				return nil, false, false, err
			}
			return refreshed, true, false, nil
		}
		return existing, false, true, nil
	}
}

func (w *Worker) checkCancelled(ctx context.Context, taskID string) (bool, error) {
	cancelled, err := w.store.IsCancelled(ctx, taskID)
	if err != nil {
		return false, err
	}
	return cancelled, nil
}

// retryOrFail implements spec.md §4.7's retry policy: up to MaxRetries
// attempts with a base backoff delay, then a terminal failed status. pr is
// whatever PRAnalysis this attempt had open (nil if the failure happened
// before the PR fetch succeeded). On a retry, an open pr is torn down so
// the next delivery's resolveIdempotency finds nothing and starts clean
// rather than mistaking this attempt's row for a concurrent in-flight one.
func (w *Worker) retryOrFail(ctx context.Context, task *models.Task, pr *models.PRAnalysis, cause error) (queue.Outcome, error) {
	if task.RetryCount < task.MaxRetries && task.RetryCount < w.cfg.MaxRetries {
		if pr != nil {
			if err := w.store.DeletePRAnalysis(ctx, pr.ID); err != nil {
				w.logger.Warn("worker: failed to clear pr_analysis before retry", zap.String("pr_analysis_id", pr.ID), zap.Error(err))
			}
		}
		if err := w.store.MarkTaskRetry(ctx, task.ID, cause.Error(), ""); err != nil {
			return queue.OutcomeFailure, err
		}
		return queue.OutcomeRetry, cause
	}
	return w.fail(ctx, task, pr, cause)
}

func (w *Worker) fail(ctx context.Context, task *models.Task, pr *models.PRAnalysis, cause error) (queue.Outcome, error) {
	if pr != nil {
		if err := w.store.MarkPRAnalysisFailed(ctx, pr.ID, cause.Error()); err != nil {
			w.logger.Warn("worker: failed to mark pr_analysis failed", zap.String("pr_analysis_id", pr.ID), zap.Error(err))
		}
	}
	if err := w.store.MarkTaskTerminal(ctx, task.ID, models.TaskFailed, task.Progress, cause.Error(), ""); err != nil {
		return queue.OutcomeFailure, err
	}
	return queue.OutcomeFailure, cause
}
