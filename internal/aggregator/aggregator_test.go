package aggregator

import "testing"

func TestAggregateZeroFilesUsesDefaultScore(t *testing.T) {
	summary := Aggregate(nil, 0, nil)
	if summary.OverallScore != defaultScore {
		t.Fatalf("expected default score %d for zero files, got %d", defaultScore, summary.OverallScore)
	}
	if summary.TotalFiles != 0 {
		t.Fatalf("expected total_files=0, got %d", summary.TotalFiles)
	}
}

func TestAggregateMeanScore(t *testing.T) {
	files := []FileResult{{QualityScore: 90}, {QualityScore: 70}}
	summary := Aggregate(files, 0, nil)
	if summary.OverallScore != 80 {
		t.Fatalf("expected average score 80, got %d", summary.OverallScore)
	}
}

func TestAggregateCriticalIssuesForceNeedsWork(t *testing.T) {
	files := []FileResult{{QualityScore: 95, CriticalCount: 1}}
	summary := Aggregate(files, 0, nil)
	if summary.OverallQuality != QualityNeedsWork {
		t.Fatalf("expected needs_work quality when a critical issue exists, got %s", summary.OverallQuality)
	}
	found := false
	for _, r := range summary.Recommendations {
		if r == "Address 1 critical security issues immediately" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the critical-issues recommendation template, got %v", summary.Recommendations)
	}
}

func TestAggregateLargePRRecommendation(t *testing.T) {
	files := make([]FileResult, 21)
	for i := range files {
		files[i] = FileResult{QualityScore: 95}
	}
	summary := Aggregate(files, 0, nil)
	found := false
	for _, r := range summary.Recommendations {
		if r == "Large PR - consider breaking into smaller changes" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the large-PR recommendation for >20 files, got %v", summary.Recommendations)
	}
}

func TestAggregateCleanPRPositiveNote(t *testing.T) {
	files := []FileResult{{QualityScore: 95}}
	summary := Aggregate(files, 0, nil)
	if len(summary.Recommendations) != 1 || summary.Recommendations[0] != "Code looks good! Consider adding tests if not present" {
		t.Fatalf("expected the positive fallback recommendation, got %v", summary.Recommendations)
	}
}

func TestDegradedSummary(t *testing.T) {
	summary := Degraded()
	if summary.OverallQuality != "unknown" {
		t.Fatalf("expected degraded quality=unknown, got %s", summary.OverallQuality)
	}
	if summary.OverallScore != 0 {
		t.Fatalf("expected degraded score=0, got %d", summary.OverallScore)
	}
}
