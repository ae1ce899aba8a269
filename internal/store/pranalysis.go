package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"prreview/internal/apperr"
	"prreview/internal/models"
)

// InsertPRAnalysis opens the analytical record for a Task. The worker calls
// it once the PR fetch has succeeded, before any file fan-out begins. Only
// identity, status, branch/SHA and timestamp fields are written here;
// counters and scores are written by FinalizePRAnalysis.
func (s *Store) InsertPRAnalysis(ctx context.Context, p *models.PRAnalysis) error {
	recs, err := json.Marshal(p.Recommendations)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "marshal recommendations", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pr_analyses (id, task_id, pr_url, base_branch, head_branch, base_sha, head_sha,
			status, analysis_started_at, summary, recommendations, error_message, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.TaskID, p.PRURL, p.BaseBranch, p.HeadBranch, p.BaseSHA, p.HeadSHA,
		string(p.Status), p.AnalysisStartedAt, p.Summary, string(recs), p.ErrorMessage, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "insert pr_analysis", err)
	}
	return nil
}

// GetPRAnalysisByTask looks up the PRAnalysis owned by a Task, used both by
// status readers and by the worker's idempotency check on start.
func (s *Store) GetPRAnalysisByTask(ctx context.Context, taskID string) (*models.PRAnalysis, error) {
	row := s.db.QueryRowContext(ctx, pranalysisSelect+` WHERE task_id = ?`, taskID)
	return scanPRAnalysis(row)
}

// GetPRAnalysis looks up a PRAnalysis by its own id.
func (s *Store) GetPRAnalysis(ctx context.Context, id string) (*models.PRAnalysis, error) {
	row := s.db.QueryRowContext(ctx, pranalysisSelect+` WHERE id = ?`, id)
	return scanPRAnalysis(row)
}

const pranalysisSelect = `
	SELECT id, task_id, pr_url, base_branch, head_branch, base_sha, head_sha, status,
		analysis_started_at, analysis_completed_at, files_analyzed, lines_analyzed, issues_found,
		critical_count, high_count, medium_count, low_count, info_count,
		quality_score, maintainability_score, complexity_score,
		summary, recommendations, error_message, created_at, updated_at
	FROM pr_analyses`

func scanPRAnalysis(row *sql.Row) (*models.PRAnalysis, error) {
	var p models.PRAnalysis
	var status, recs string
	var startedAt, completedAt sql.NullTime
	var quality, maint, complexity sql.NullFloat64
	err := row.Scan(&p.ID, &p.TaskID, &p.PRURL, &p.BaseBranch, &p.HeadBranch, &p.BaseSHA, &p.HeadSHA, &status,
		&startedAt, &completedAt, &p.FilesAnalyzed, &p.LinesAnalyzed, &p.IssuesFound,
		&p.CriticalCount, &p.HighCount, &p.MediumCount, &p.LowCount, &p.InfoCount,
		&quality, &maint, &complexity,
		&p.Summary, &recs, &p.ErrorMessage, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, "scan pr_analysis", err)
	}
	p.Status = models.AnalysisStatus(status)
	if startedAt.Valid {
		v := startedAt.Time
		p.AnalysisStartedAt = &v
	}
	if completedAt.Valid {
		v := completedAt.Time
		p.AnalysisCompletedAt = &v
	}
	if quality.Valid {
		v := quality.Float64
		p.QualityScore = &v
	}
	if maint.Valid {
		v := maint.Float64
		p.MaintainabilityScore = &v
	}
	if complexity.Valid {
		v := complexity.Float64
		p.ComplexityScore = &v
	}
	if recs != "" {
		_ = json.Unmarshal([]byte(recs), &p.Recommendations)
	}
	return &p, nil
}

// FinalizePRAnalysis writes the "saving_results" stage: counters, scores,
// summary, and recommendations, then marks the analysis completed or failed.
// All fields are updated in a single statement to uphold the "scores are
// either all set or all null" invariant from spec.md §3.
func (s *Store) FinalizePRAnalysis(ctx context.Context, p *models.PRAnalysis) error {
	recs, err := json.Marshal(p.Recommendations)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "marshal recommendations", err)
	}
	now := time.Now().UTC()
	_, err = s.db.ExecContext(ctx, `
		UPDATE pr_analyses SET
			status = ?, analysis_completed_at = ?,
			files_analyzed = ?, lines_analyzed = ?, issues_found = ?,
			critical_count = ?, high_count = ?, medium_count = ?, low_count = ?, info_count = ?,
			quality_score = ?, maintainability_score = ?, complexity_score = ?,
			summary = ?, recommendations = ?, error_message = ?, updated_at = ?
		WHERE id = ?`,
		string(p.Status), now,
		p.FilesAnalyzed, p.LinesAnalyzed, p.IssuesFound,
		p.CriticalCount, p.HighCount, p.MediumCount, p.LowCount, p.InfoCount,
		p.QualityScore, p.MaintainabilityScore, p.ComplexityScore,
		p.Summary, string(recs), p.ErrorMessage, now, p.ID)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "finalize pr_analysis", err)
	}
	return nil
}

// DeletePRAnalysis removes a PRAnalysis and its children (file_analyses and
// issues cascade via their own foreign keys). The Task Worker calls this on
// a retry so the row it opened this attempt never outlives the attempt:
// without it, the next delivery's idempotency check would find a fresh
// in_progress row and mistake it for a concurrent in-flight attempt,
// silently skipping instead of redoing the work.
func (s *Store) DeletePRAnalysis(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM pr_analyses WHERE id = ?`, id)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "delete pr_analysis", err)
	}
	return nil
}

// MarkPRAnalysisFailed stamps a terminal failed status and error message
// onto a PRAnalysis whose task has exhausted its retries, so a later
// getResults call can surface why analysis never completed instead of
// reporting NotCompleted forever.
func (s *Store) MarkPRAnalysisFailed(ctx context.Context, id, errMsg string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE pr_analyses SET status = 'failed', error_message = ?, updated_at = ? WHERE id = ?`,
		errMsg, time.Now().UTC(), id)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "mark pr_analysis failed", err)
	}
	return nil
}

// ResetPRAnalysisForAdoption clears counters and children in a transaction
// of its own, the overwrite step spec.md §4.7's idempotency rule requires
// when a worker adopts a stale in-progress analysis past its heartbeat
// timeout. Child Issue and FileAnalysis rows are deleted explicitly; the
// analysis' own row is kept and its counters reset.
func (s *Store) ResetPRAnalysisForAdoption(ctx context.Context, prAnalysisID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "begin adoption reset", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM issues WHERE pr_analysis_id = ?`, prAnalysisID); err != nil {
		return apperr.Wrap(apperr.KindDatabase, "reset issues", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM file_analyses WHERE pr_analysis_id = ?`, prAnalysisID); err != nil {
		return apperr.Wrap(apperr.KindDatabase, "reset file_analyses", err)
	}
	if _, err := tx.ExecContext(ctx, `
		UPDATE pr_analyses SET status = 'in_progress', files_analyzed = 0, lines_analyzed = 0,
			issues_found = 0, critical_count = 0, high_count = 0, medium_count = 0, low_count = 0,
			info_count = 0, quality_score = NULL, maintainability_score = NULL, complexity_score = NULL,
			updated_at = ? WHERE id = ?`, time.Now().UTC(), prAnalysisID); err != nil {
		return apperr.Wrap(apperr.KindDatabase, "reset pr_analysis", err)
	}
	return tx.Commit()
}
