// Package aggregator implements the PR Aggregator (spec.md §4.6, C6):
// reduces per-file results into PR-level counters, an overall score, and
// templated recommendations.
package aggregator

import (
	"fmt"
	"math"
	"time"

	"prreview/internal/codehost"
	"prreview/internal/models"
)

// Quality classifies the overall PR quality, per spec.md §4.6.
type Quality string

const (
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualityFair      Quality = "fair"
	QualityNeedsWork Quality = "needs_work"
)

// FileResult is one file's contribution to the aggregate, carrying the
// per-severity counts the aggregator needs without re-deriving them from
// Issues.
type FileResult struct {
	QualityScore  int
	CriticalCount int
}

// Summary is C6's output shape (spec.md §4.6). Degraded returns the
// synthetic fallback (overall quality "unknown") used when aggregation
// itself fails (spec.md §4.7's degraded summary-generation semantics).
type Summary struct {
	OverallQuality Quality
	OverallScore   int
	TotalFiles     int
	CriticalIssues int
	SecurityIssues int
	Recommendations []string
	Timestamp      time.Time
	PRMetadata     *codehost.PRMeta
}

// defaultScore is the score assigned when no file has a quality score,
// e.g. a zero-file PR — spec.md §4.6 and the §8 boundary test for PRs
// with no changed files.
const defaultScore = 75

// Aggregate implements spec.md §4.6's rules exactly.
func Aggregate(files []FileResult, securityIssueCount int, pr *codehost.PRMeta) Summary {
	var sum int
	var n int
	critical := 0
	for _, f := range files {
		sum += f.QualityScore
		n++
		critical += f.CriticalCount
	}

	score := defaultScore
	if n > 0 {
		score = int(math.Round(float64(sum) / float64(n)))
	}

	quality := classify(score, critical)

	return Summary{
		OverallQuality:  quality,
		OverallScore:    score,
		TotalFiles:      len(files),
		CriticalIssues:  critical,
		SecurityIssues:  securityIssueCount,
		Recommendations: recommendations(critical, score, len(files)),
		Timestamp:       time.Now().UTC(),
		PRMetadata:      pr,
	}
}

func classify(score, criticalIssues int) Quality {
	switch {
	case criticalIssues > 0:
		return QualityNeedsWork
	case score >= 85:
		return QualityExcellent
	case score >= 75:
		return QualityGood
	default:
		return QualityFair
	}
}

// recommendations applies the fixed templates gated by observed
// conditions, per spec.md §4.6, falling back to a positive note when none
// apply.
func recommendations(critical, score, fileCount int) []string {
	var out []string
	if critical >= 1 {
		out = append(out, fmt.Sprintf("Address %d critical security issues immediately", critical))
	}
	if score < 70 {
		out = append(out, "Consider refactoring to improve code quality and maintainability")
	}
	if fileCount > 20 {
		out = append(out, "Large PR - consider breaking into smaller changes")
	}
	if len(out) == 0 {
		out = append(out, "Code looks good! Consider adding tests if not present")
	}
	return out
}

// Degraded returns the synthetic summary spec.md §4.7 mandates when
// aggregation itself fails: the PRAnalysis still closes as completed.
func Degraded() Summary {
	return Summary{
		OverallQuality:  "unknown",
		OverallScore:    0,
		Recommendations: []string{"Analysis summary generation failed"},
		CriticalIssues:  0,
		Timestamp:       time.Now().UTC(),
	}
}

// ToModel maps a Summary onto the PRAnalysis fields it finalizes, keeping
// the mapping colocated with the rules that produce it.
func (s Summary) ToModel(p *models.PRAnalysis) {
	score := float64(s.OverallScore)
	p.QualityScore = &score
	p.Summary = string(s.OverallQuality)
	p.Recommendations = s.Recommendations
}
