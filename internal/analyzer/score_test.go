package analyzer

import "testing"

func TestQualityScoreClampsToZero(t *testing.T) {
	counts := severityCounts{critical: 10, high: 10, medium: 10}
	got := QualityScore(50, counts, 5, 0)
	if got != 0 {
		t.Fatalf("expected quality score clamped to 0, got %d", got)
	}
}

func TestQualityScoreNoIssuesReturnsMaintainability(t *testing.T) {
	got := QualityScore(88, severityCounts{}, 5, 0)
	if got != 88 {
		t.Fatalf("expected clean file's score to equal maintainability, got %d", got)
	}
}

func TestQualityScorePenalizesHighComplexity(t *testing.T) {
	low := QualityScore(90, severityCounts{}, 10, 0)
	high := QualityScore(90, severityCounts{}, 25, 0)
	if high >= low {
		t.Fatalf("expected complexity above 15 to penalize the score: low=%d high=%d", low, high)
	}
}

func TestSecurityScoreNoIssuesReturnsPerfect(t *testing.T) {
	if got := SecurityScore(severityCounts{}); got != 100 {
		t.Fatalf("expected perfect security score with no issues, got %d", got)
	}
}

func TestSecurityScoreClampsToZero(t *testing.T) {
	got := SecurityScore(severityCounts{critical: 5, high: 5, medium: 5})
	if got != 0 {
		t.Fatalf("expected security score clamped to 0, got %d", got)
	}
}

func TestEstimateComplexityBaseline(t *testing.T) {
	if got := EstimateComplexity(""); got != 1 {
		t.Fatalf("expected baseline complexity of 1 for empty content, got %v", got)
	}
}

func TestEstimateComplexityCountsBranches(t *testing.T) {
	content := "if x { } else if y { } for i := 0; i < 10; i++ { }"
	got := EstimateComplexity(content)
	if got <= 1 {
		t.Fatalf("expected branch tokens to raise complexity above baseline, got %v", got)
	}
}

func TestNormalizeIssueTypeAliases(t *testing.T) {
	if got := NormalizeIssueType("warning"); got != "best_practice" {
		t.Fatalf("expected warning to alias to best_practice, got %s", got)
	}
	if got := NormalizeIssueType("totally-unknown"); got != "bug" {
		t.Fatalf("expected unrecognized type to default to bug, got %s", got)
	}
}

func TestNormalizeSeverityAliases(t *testing.T) {
	if got := NormalizeSeverity("error"); got != "high" {
		t.Fatalf("expected error to alias to high, got %s", got)
	}
	if got := NormalizeSeverity("totally-unknown"); got != "low" {
		t.Fatalf("expected unrecognized severity to default to low, got %s", got)
	}
}
