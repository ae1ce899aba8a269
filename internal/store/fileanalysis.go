package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"prreview/internal/apperr"
	"prreview/internal/models"
)

// InsertFileAnalysis writes one FileAnalysis row, used by the
// analyzing_files stage for every file that analyzed successfully. Per
// spec.md §4.7's partial-failure semantics, files that fail analysis never
// reach this call.
func (s *Store) InsertFileAnalysis(ctx context.Context, f *models.FileAnalysis) error {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	recs, err := json.Marshal(f.Recommendations)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "marshal file recommendations", err)
	}
	tools, err := json.Marshal(f.ToolsRun)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "marshal tools_run", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO file_analyses (id, pr_analysis_id, file_path, file_name, file_extension, language,
			lines_total, lines_analyzed, lines_added, lines_removed, analysis_status,
			complexity, maintainability, issues_count, critical_issues_count,
			recommendations, raw_diff, tools_run, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.PRAnalysisID, f.FilePath, f.FileName, f.FileExtension, f.Language,
		f.LinesTotal, f.LinesAnalyzed, f.LinesAdded, f.LinesRemoved, string(f.AnalysisStatus),
		f.Complexity, f.Maintainability, f.IssuesCount, f.CriticalIssuesCount,
		string(recs), f.RawDiff, string(tools), f.CreatedAt, f.UpdatedAt)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "insert file_analysis", err)
	}
	return nil
}

// ListFileAnalyses returns every FileAnalysis for a PRAnalysis, the data
// C6's aggregator and the results API both read.
func (s *Store) ListFileAnalyses(ctx context.Context, prAnalysisID string) ([]*models.FileAnalysis, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, pr_analysis_id, file_path, file_name, file_extension, language,
			lines_total, lines_analyzed, lines_added, lines_removed, analysis_status,
			complexity, maintainability, issues_count, critical_issues_count,
			recommendations, raw_diff, tools_run, created_at, updated_at
		FROM file_analyses WHERE pr_analysis_id = ? ORDER BY file_path`, prAnalysisID)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, "list file_analyses", err)
	}
	defer rows.Close()

	var out []*models.FileAnalysis
	for rows.Next() {
		var f models.FileAnalysis
		var status, recs, tools string
		if err := rows.Scan(&f.ID, &f.PRAnalysisID, &f.FilePath, &f.FileName, &f.FileExtension, &f.Language,
			&f.LinesTotal, &f.LinesAnalyzed, &f.LinesAdded, &f.LinesRemoved, &status,
			&f.Complexity, &f.Maintainability, &f.IssuesCount, &f.CriticalIssuesCount,
			&recs, &f.RawDiff, &tools, &f.CreatedAt, &f.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabase, "scan file_analysis", err)
		}
		f.AnalysisStatus = models.AnalysisStatus(status)
		if recs != "" {
			_ = json.Unmarshal([]byte(recs), &f.Recommendations)
		}
		if tools != "" {
			_ = json.Unmarshal([]byte(tools), &f.ToolsRun)
		}
		out = append(out, &f)
	}
	return out, rows.Err()
}
