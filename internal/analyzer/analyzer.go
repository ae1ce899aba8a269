// Package analyzer implements the File Analyzer (spec.md §4.5, C5): for one
// changed file, run the LLM client and embeddings engine concurrently,
// normalize issue/severity taxonomies, and compute the quality and
// security scores. The concurrent fan-in follows errgroup, the dependency
// codeNERD's go.mod already commits to for bounded concurrent work.
package analyzer

import (
	"context"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"prreview/internal/codehost"
	"prreview/internal/embeddings"
	"prreview/internal/llmclient"
	"prreview/internal/models"
)

// Analyzer produces a FileAnalysis and its Issues for one changed file.
type Analyzer struct {
	llm   *llmclient.Client
	embed *embeddings.Detector
}

// New builds an Analyzer from the LLM client and embeddings detector a
// worker process constructs once at startup.
func New(llm *llmclient.Client, embed *embeddings.Detector) *Analyzer {
	return &Analyzer{llm: llm, embed: embed}
}

// Result is the per-file outcome: a FileAnalysis record, its Issues, and
// two derived scores; C6's aggregator consumes QualityScore (spec.md §4.5,
// §4.6).
type Result struct {
	FileAnalysis  *models.FileAnalysis
	Issues        []*models.Issue
	QualityScore  int
	SecurityScore int
}

// AnalyzeFile implements spec.md §4.5's algorithm. prAnalysisID scopes the
// produced rows to their owning PRAnalysis.
func (a *Analyzer) AnalyzeFile(ctx context.Context, prAnalysisID string, file codehost.FileChange, content string) (*Result, error) {
	language := DetectLanguage(file.Path)

	var quality llmclient.QualityResult
	var security []llmclient.IssueRecord
	var suggestions []llmclient.Suggestion
	var metrics embeddings.Metrics

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		quality = a.llm.AnalyzeQuality(gctx, content, file.Path, language)
		return nil
	})
	g.Go(func() error {
		security = a.llm.AnalyzeSecurity(gctx, content, file.Path, language)
		return nil
	})
	g.Go(func() error {
		suggestions = a.llm.GenerateSuggestions(gctx, content, file.Path, language)
		return nil
	})
	g.Go(func() error {
		metrics = a.embed.SimilarityMetrics(gctx, content)
		return nil
	})
	_ = g.Wait() // each goroutine degrades internally; none return an error

	// Splice embeddings-based similarity into the quality result, per
	// spec.md §4.5 step 3.
	quality.SemanticDuplicates = metrics.DuplicatesFound
	quality.DuplicationScore = metrics.DuplicationScore
	quality.CodeBlocksAnalyzed = metrics.TotalBlocks

	now := time.Now().UTC()
	fa := &models.FileAnalysis{
		ID:             uuid.NewString(),
		PRAnalysisID:   prAnalysisID,
		FilePath:       file.Path,
		FileName:       baseName(file.Path),
		FileExtension:  extension(file.Path),
		Language:       language,
		LinesTotal:     countLines(content),
		LinesAnalyzed:  countLines(content),
		LinesAdded:     file.Additions,
		LinesRemoved:   file.Deletions,
		AnalysisStatus: models.AnalysisCompleted,
		RawDiff:        file.Patch,
		ToolsRun:       []string{"llm_quality", "llm_security", "llm_suggestions", "embeddings"},
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	issues := mergeIssues(prAnalysisID, fa, quality.Issues, security, now)
	fa.Complexity = EstimateComplexity(content)
	fa.Maintainability = quality.Metrics.Maintainability * 10 // LLM reports 0-10; spec's formula expects 0-100

	counts := tallySeverities(issues)
	qualityScore := QualityScore(fa.Maintainability, counts, fa.Complexity, quality.DuplicationScore)
	// mergeIssues keeps quality issues first, so the tail is the security set.
	securityScore := SecurityScore(tallySeverities(issues[len(quality.Issues):]))

	fa.IssuesCount = len(issues)
	fa.CriticalIssuesCount = counts.critical
	fa.Recommendations = suggestionTitles(suggestions)

	return &Result{FileAnalysis: fa, Issues: issues, QualityScore: qualityScore, SecurityScore: securityScore}, nil
}

func mergeIssues(prAnalysisID string, fa *models.FileAnalysis, qualityIssues []llmclient.IssueRecord, securityIssues []llmclient.IssueRecord, now time.Time) []*models.Issue {
	all := make([]llmclient.IssueRecord, 0, len(qualityIssues)+len(securityIssues))
	all = append(all, qualityIssues...)
	all = append(all, securityIssues...)

	issues := make([]*models.Issue, 0, len(all))
	for _, raw := range all {
		issues = append(issues, &models.Issue{
			PRAnalysisID:   prAnalysisID,
			FileAnalysisID: &fa.ID,
			IssueType:      NormalizeIssueType(raw.Type),
			Severity:       NormalizeSeverity(raw.Severity),
			FilePath:       fa.FilePath,
			Line:           raw.Line,
			Title:          truncate(raw.Title, 200),
			Description:    raw.Description,
			Suggestion:     raw.Recommendation,
			ToolName:       "llm",
			Confidence:     0.7,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return issues
}

func tallySeverities(issues []*models.Issue) severityCounts {
	var c severityCounts
	for _, iss := range issues {
		switch iss.Severity {
		case models.SeverityCritical:
			c.critical++
		case models.SeverityHigh:
			c.high++
		case models.SeverityMedium:
			c.medium++
		}
	}
	return c
}

func suggestionTitles(suggestions []llmclient.Suggestion) []string {
	out := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		out = append(out, s.Title)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	n := 1
	for _, r := range content {
		if r == '\n' {
			n++
		}
	}
	return n
}

func baseName(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[i+1:]
		}
	}
	return path
}

func extension(path string) string {
	name := baseName(path)
	for i := len(name) - 1; i >= 0; i-- {
		if name[i] == '.' {
			return name[i:]
		}
	}
	return ""
}
