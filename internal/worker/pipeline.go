package worker

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"go.uber.org/zap"

	"prreview/internal/aggregator"
	"prreview/internal/analyzer"
	"prreview/internal/codehost"
	"prreview/internal/logging"
	"prreview/internal/metrics"
	"prreview/internal/models"
)

// analyzeFiles drives the analyzing_files stage: bounded concurrent
// fan-out over the changed-file list, per-file content fetch and
// analysis, and a skip-and-log tolerance for any single file's failure,
// per spec.md §4.7's partial-failure semantics. Each successfully
// analyzed file is persisted (its FileAnalysis, then each of its Issues, as
// separate inserts) before the next progress tick, and progress climbs linearly
// across the stage's 30–80 band.
func (w *Worker) analyzeFiles(ctx context.Context, taskID string, prAnalysis *models.PRAnalysis, owner, name string, files []codehost.FileChange) []*analyzer.Result {
	log := logging.Task(w.logger, taskID)

	workers := fanOutCap
	if len(files) < workers {
		workers = len(files)
	}
	if workers == 0 {
		return nil
	}

	sem := make(chan struct{}, workers)
	var mu sync.Mutex
	var results []*analyzer.Result
	var done int

	g, gctx := errgroup.WithContext(ctx)
	for _, f := range files {
		f := f
		sem <- struct{}{}
		g.Go(func() error {
			defer func() { <-sem }()

			content, err := w.codehost.GetFileContent(gctx, owner, name, f.Path, prAnalysis.HeadSHA)
			if err != nil {
				log.Warn("worker: skipping file, content fetch failed", zap.String("file", f.Path), zap.Error(err))
				metrics.FilesAnalyzed.WithLabelValues("skipped").Inc()
				w.tickProgress(ctx, taskID, &mu, &done, len(files))
				return nil
			}

			result, err := w.analyzer.AnalyzeFile(gctx, prAnalysis.ID, f, content)
			if err != nil {
				log.Warn("worker: skipping file, analysis failed", zap.String("file", f.Path), zap.Error(err))
				metrics.FilesAnalyzed.WithLabelValues("skipped").Inc()
				w.tickProgress(ctx, taskID, &mu, &done, len(files))
				return nil
			}

			if err := w.store.InsertFileAnalysis(ctx, result.FileAnalysis); err != nil {
				log.Error("worker: failed to persist file_analysis", zap.String("file", f.Path), zap.Error(err))
				metrics.FilesAnalyzed.WithLabelValues("skipped").Inc()
				w.tickProgress(ctx, taskID, &mu, &done, len(files))
				return nil
			}
			for _, iss := range result.Issues {
				if err := w.store.InsertIssue(ctx, iss); err != nil {
					log.Error("worker: failed to persist issue", zap.String("file", f.Path), zap.Error(err))
				}
			}

			mu.Lock()
			results = append(results, result)
			mu.Unlock()
			metrics.FilesAnalyzed.WithLabelValues("success").Inc()
			w.tickProgress(ctx, taskID, &mu, &done, len(files))
			return nil
		})
	}
	_ = g.Wait() // per-file failures are swallowed above; nothing to propagate

	return results
}

// tickProgress advances task progress linearly within the analyzing_files
// band as each file finishes, regardless of whether it succeeded.
func (w *Worker) tickProgress(ctx context.Context, taskID string, mu *sync.Mutex, done *int, total int) {
	mu.Lock()
	*done++
	n := *done
	mu.Unlock()

	span := progressAnalyzeEnd - progressAnalyzeStart
	pct := progressAnalyzeStart + (n*span)/total
	_ = w.store.UpdateTaskProgress(ctx, taskID, models.TaskProcessing, pct)
}

// summarize runs the PR Aggregator over the per-file results, falling
// back to the synthetic degraded summary spec.md §4.7 mandates if
// aggregation itself panics.
func (w *Worker) summarize(results []*analyzer.Result, pr *codehost.PRMeta) (summary aggregator.Summary) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("worker: summary generation panicked, degrading", zap.Any("recover", r))
			summary = aggregator.Degraded()
		}
	}()

	files := make([]aggregator.FileResult, 0, len(results))
	securityIssues := 0
	for _, res := range results {
		files = append(files, aggregator.FileResult{QualityScore: res.QualityScore, CriticalCount: res.FileAnalysis.CriticalIssuesCount})
		for _, iss := range res.Issues {
			if iss.IssueType == models.IssueSecurity {
				securityIssues++
			}
		}
	}
	return aggregator.Aggregate(files, securityIssues, pr)
}

// applySummary folds the per-file totals and the aggregate Summary onto
// the PRAnalysis row FinalizePRAnalysis will persist. totalFiles is the
// full changed-file count, not just the ones that survived analysis: per
// spec.md §4.7's documented weakening, files_analyzed reports PR size even
// though skipped files never get a FileAnalysis row.
func (w *Worker) applySummary(p *models.PRAnalysis, results []*analyzer.Result, totalFiles int, summary aggregator.Summary) {
	var lines int
	var maintSum, complexSum float64
	for _, res := range results {
		fa := res.FileAnalysis
		lines += fa.LinesAnalyzed
		maintSum += fa.Maintainability
		complexSum += fa.Complexity
		for _, iss := range res.Issues {
			p.IssuesFound++
			switch iss.Severity {
			case models.SeverityCritical:
				p.CriticalCount++
			case models.SeverityHigh:
				p.HighCount++
			case models.SeverityMedium:
				p.MediumCount++
			case models.SeverityLow:
				p.LowCount++
			case models.SeverityInfo:
				p.InfoCount++
			}
		}
	}

	p.FilesAnalyzed = totalFiles
	p.LinesAnalyzed = lines
	if n := len(results); n > 0 {
		maint := maintSum / float64(n)
		complexity := complexSum / float64(n)
		p.MaintainabilityScore = &maint
		p.ComplexityScore = &complexity
	}

	summary.ToModel(p)
}
