package store

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"

	"prreview/internal/apperr"
	"prreview/internal/models"
)

// InsertIssue writes one Issue, using INSERT OR IGNORE against the
// (pr_analysis_id, file_path, line, rule_id, title) unique index (a NULL
// line counts as one value there) so
// at-least-once re-delivery of the same task id never duplicates a finding,
// the property spec.md §8 names explicitly.
func (s *Store) InsertIssue(ctx context.Context, iss *models.Issue) error {
	if iss.ID == "" {
		iss.ID = uuid.NewString()
	}
	tags, err := json.Marshal(iss.Tags)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "marshal issue tags", err)
	}
	refs, err := json.Marshal(iss.ReferenceURLs)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "marshal issue reference_urls", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO issues (id, pr_analysis_id, file_analysis_id, issue_type, severity,
			file_path, line, column, title, description, code_snippet, suggestion,
			suggested_replacement, rule_id, tool_name, confidence, tags, reference_urls,
			created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		iss.ID, iss.PRAnalysisID, iss.FileAnalysisID, string(iss.IssueType), string(iss.Severity),
		iss.FilePath, iss.Line, iss.Column, iss.Title, iss.Description, iss.CodeSnippet, iss.Suggestion,
		iss.SuggestedReplacement, iss.RuleID, iss.ToolName, iss.Confidence, string(tags), string(refs),
		iss.CreatedAt, iss.UpdatedAt)
	if err != nil {
		return apperr.Wrap(apperr.KindDatabase, "insert issue", err)
	}
	return nil
}

// ListIssuesByPR returns every Issue attached to a PRAnalysis, whether or
// not it is also scoped to a FileAnalysis.
func (s *Store) ListIssuesByPR(ctx context.Context, prAnalysisID string) ([]*models.Issue, error) {
	return s.queryIssues(ctx, `WHERE pr_analysis_id = ? ORDER BY severity, file_path`, prAnalysisID)
}

// ListIssuesByFile returns the Issues scoped to one FileAnalysis.
func (s *Store) ListIssuesByFile(ctx context.Context, fileAnalysisID string) ([]*models.Issue, error) {
	return s.queryIssues(ctx, `WHERE file_analysis_id = ? ORDER BY severity`, fileAnalysisID)
}

const issueSelect = `
	SELECT id, pr_analysis_id, file_analysis_id, issue_type, severity, file_path, line, column,
		title, description, code_snippet, suggestion, suggested_replacement, rule_id, tool_name,
		confidence, tags, reference_urls, created_at, updated_at
	FROM issues`

func (s *Store) queryIssues(ctx context.Context, whereClause string, arg string) ([]*models.Issue, error) {
	rows, err := s.db.QueryContext(ctx, issueSelect+" "+whereClause, arg)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindDatabase, "list issues", err)
	}
	defer rows.Close()

	var out []*models.Issue
	for rows.Next() {
		var iss models.Issue
		var issueType, severity, tags, refs string
		var fileAnalysisID *string
		if err := rows.Scan(&iss.ID, &iss.PRAnalysisID, &fileAnalysisID, &issueType, &severity,
			&iss.FilePath, &iss.Line, &iss.Column, &iss.Title, &iss.Description, &iss.CodeSnippet,
			&iss.Suggestion, &iss.SuggestedReplacement, &iss.RuleID, &iss.ToolName, &iss.Confidence,
			&tags, &refs, &iss.CreatedAt, &iss.UpdatedAt); err != nil {
			return nil, apperr.Wrap(apperr.KindDatabase, "scan issue", err)
		}
		iss.IssueType = models.IssueType(issueType)
		iss.Severity = models.Severity(severity)
		iss.FileAnalysisID = fileAnalysisID
		if tags != "" {
			_ = json.Unmarshal([]byte(tags), &iss.Tags)
		}
		if refs != "" {
			_ = json.Unmarshal([]byte(refs), &iss.ReferenceURLs)
		}
		out = append(out, &iss)
	}
	return out, rows.Err()
}
