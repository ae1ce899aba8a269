package httpapi

import "time"

// submitRequest is the JSON body for POST /analyses, spec.md §6's
// submitAnalysis(repoURL, prNumber, token?, priority="normal", options?).
type submitRequest struct {
	RepoURL  string         `json:"repo_url" validate:"required"`
	PRNumber int            `json:"pr_number" validate:"required,gt=0"`
	Token    string         `json:"token,omitempty"`
	Priority string         `json:"priority,omitempty" validate:"omitempty,oneof=low normal high urgent"`
	Options  map[string]any `json:"options,omitempty"`
}

// submitResponse is returned 202 Accepted on a successful submission.
type submitResponse struct {
	TaskID string `json:"task_id"`
}

// statusResponse is getStatus's shape, spec.md §6.
type statusResponse struct {
	TaskID    string    `json:"task_id"`
	Status    string    `json:"status"`
	Progress  int       `json:"progress"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Stage     string    `json:"stage,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// resultsResponse is getResults's shape when the task has completed.
// When not yet completed it degrades to the statusResponse-equivalent
// fields only, the "NotCompleted" case spec.md §6 names.
type resultsResponse struct {
	TaskID     string          `json:"task_id"`
	Status     string          `json:"status"`
	PRMetadata *prMetadata     `json:"pr_metadata,omitempty"`
	Summary    *resultsSummary `json:"summary,omitempty"`
	Files      []fileResult    `json:"files,omitempty"`
	Metadata   map[string]any  `json:"metadata,omitempty"`
}

type prMetadata struct {
	URL        string `json:"url"`
	BaseBranch string `json:"base_branch"`
	HeadBranch string `json:"head_branch"`
	BaseSHA    string `json:"base_sha"`
	HeadSHA    string `json:"head_sha"`
}

type resultsSummary struct {
	QualityScore        *float64 `json:"quality_score"`
	MaintainabilityScore *float64 `json:"maintainability_score"`
	ComplexityScore      *float64 `json:"complexity_score"`
	FilesAnalyzed       int      `json:"files_analyzed"`
	LinesAnalyzed       int      `json:"lines_analyzed"`
	IssuesFound         int      `json:"issues_found"`
	CriticalCount       int      `json:"critical_count"`
	HighCount           int      `json:"high_count"`
	MediumCount         int      `json:"medium_count"`
	LowCount            int      `json:"low_count"`
	InfoCount           int      `json:"info_count"`
	Text                string   `json:"text"`
	Recommendations     []string `json:"recommendations"`
}

type fileResult struct {
	FilePath            string   `json:"file_path"`
	Language            string   `json:"language"`
	Complexity          float64  `json:"complexity"`
	Maintainability     float64  `json:"maintainability"`
	IssuesCount         int      `json:"issues_count"`
	CriticalIssuesCount int      `json:"critical_issues_count"`
	Recommendations     []string `json:"recommendations"`
	Issues              []issueView `json:"issues,omitempty"`
}

type issueView struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Line        *int   `json:"line,omitempty"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Suggestion  string `json:"suggestion,omitempty"`
}

// errorResponse is the {error_code, message, context} shape spec.md §7
// requires for every surfaced failure.
type errorResponse struct {
	ErrorCode string         `json:"error_code"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
}
