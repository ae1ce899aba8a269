// Package models holds the Task → PRAnalysis → FileAnalysis → Issue
// ownership chain from spec.md §3. Parents own children as collections or
// by id; there are no back-pointers, per spec.md §9's parent-owned-tree
// design note.
package models

import "time"

// Priority is advisory scheduling hint for the Task Queue (spec.md §4.1, §9).
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// TaskStatus is a node in the Task state machine (spec.md §4.7).
type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskProcessing TaskStatus = "processing"
	TaskCompleted  TaskStatus = "completed"
	TaskFailed     TaskStatus = "failed"
	TaskCancelled  TaskStatus = "cancelled"
	TaskRetry      TaskStatus = "retry"
)

// Terminal reports whether a status leaves no further transitions, spec.md
// §8's "status ∈ terminal ⇒ completed_at != null" invariant.
func (s TaskStatus) Terminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

// Task represents a client's request to analyze one PR (spec.md §3).
type Task struct {
	ID             string
	RepoURL        string
	Owner          string
	Name           string
	PRNumber       int
	Priority       Priority
	Status         TaskStatus
	Progress       int
	QueueTicketID  *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	StartedAt      *time.Time
	CompletedAt    *time.Time
	RetryCount     int
	MaxRetries     int
	Config         map[string]any
	ErrorMessage   string
	ErrorDetails   string
}

// AnalysisStatus is the lifecycle of a PRAnalysis (spec.md §3).
type AnalysisStatus string

const (
	AnalysisPending    AnalysisStatus = "pending"
	AnalysisInProgress AnalysisStatus = "in_progress"
	AnalysisCompleted  AnalysisStatus = "completed"
	AnalysisFailed     AnalysisStatus = "failed"
)

// PRAnalysis is the analytical record attached 1:1 to a Task (spec.md §3).
type PRAnalysis struct {
	ID                 string
	TaskID             string
	PRURL              string
	BaseBranch         string
	HeadBranch         string
	BaseSHA            string
	HeadSHA            string
	Status             AnalysisStatus
	AnalysisStartedAt  *time.Time
	AnalysisCompletedAt *time.Time

	FilesAnalyzed  int
	LinesAnalyzed  int
	IssuesFound    int
	CriticalCount  int
	HighCount      int
	MediumCount    int
	LowCount       int
	InfoCount      int

	QualityScore        *float64
	MaintainabilityScore *float64
	ComplexityScore      *float64

	Summary         string
	Recommendations []string
	ErrorMessage    string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// SeverityCounts returns the sum of the five per-severity counters, which
// must equal IssuesFound per spec.md §3's "issues_found == Σ per-severity
// counts" invariant.
func (p *PRAnalysis) SeverityCounts() int {
	return p.CriticalCount + p.HighCount + p.MediumCount + p.LowCount + p.InfoCount
}

// FileAnalysis is the record for one changed file (spec.md §3).
type FileAnalysis struct {
	ID              string
	PRAnalysisID    string
	FilePath        string
	FileName        string
	FileExtension   string
	Language        string
	LinesTotal      int
	LinesAnalyzed   int
	LinesAdded      int
	LinesRemoved    int
	AnalysisStatus  AnalysisStatus
	Complexity      float64
	Maintainability float64
	IssuesCount        int
	CriticalIssuesCount int
	Recommendations []string
	RawDiff         string
	ToolsRun        []string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// IssueType is the normalized finding category (spec.md §3, §4.5 step 5).
type IssueType string

const (
	IssueStyle         IssueType = "style"
	IssueBug           IssueType = "bug"
	IssuePerformance   IssueType = "performance"
	IssueSecurity      IssueType = "security"
	IssueBestPractice  IssueType = "best_practice"
	IssueComplexity    IssueType = "complexity"
	IssueMaintainability IssueType = "maintainability"
	IssueDocumentation IssueType = "documentation"
)

// Severity is the normalized severity level (spec.md §3, §4.5 step 5).
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Issue is one finding, always attached to a PRAnalysis and optionally also
// to a FileAnalysis (spec.md §3).
type Issue struct {
	ID                  string
	PRAnalysisID        string
	FileAnalysisID      *string
	IssueType           IssueType
	Severity            Severity
	FilePath            string
	Line                *int
	Column              *int
	Title               string
	Description         string
	CodeSnippet         string
	Suggestion          string
	SuggestedReplacement string
	RuleID              string
	ToolName            string
	Confidence          float64
	Tags                []string
	ReferenceURLs       []string

	CreatedAt time.Time
	UpdatedAt time.Time
}
