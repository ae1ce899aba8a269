package analyzer

import "prreview/internal/models"

var validIssueTypes = map[string]models.IssueType{
	string(models.IssueStyle):          models.IssueStyle,
	string(models.IssueBug):            models.IssueBug,
	string(models.IssuePerformance):    models.IssuePerformance,
	string(models.IssueSecurity):       models.IssueSecurity,
	string(models.IssueBestPractice):   models.IssueBestPractice,
	string(models.IssueComplexity):     models.IssueComplexity,
	string(models.IssueMaintainability): models.IssueMaintainability,
	string(models.IssueDocumentation):  models.IssueDocumentation,
}

// typeAliases maps incoming non-enum type strings to the Issue.type enum,
// per spec.md §4.5 step 5's normalization rule.
var typeAliases = map[string]models.IssueType{
	"error":   models.IssueBug,
	"warning": models.IssueBestPractice,
	"info":    models.IssueStyle,
	"quality": models.IssueMaintainability,
}

// NormalizeIssueType maps any incoming type string into the Issue.type
// enum. Unrecognized values default to "bug".
func NormalizeIssueType(raw string) models.IssueType {
	if t, ok := validIssueTypes[raw]; ok {
		return t
	}
	if t, ok := typeAliases[raw]; ok {
		return t
	}
	return models.IssueBug
}

var validSeverities = map[string]models.Severity{
	string(models.SeverityInfo):     models.SeverityInfo,
	string(models.SeverityLow):      models.SeverityLow,
	string(models.SeverityMedium):   models.SeverityMedium,
	string(models.SeverityHigh):     models.SeverityHigh,
	string(models.SeverityCritical): models.SeverityCritical,
}

var severityAliases = map[string]models.Severity{
	"error":   models.SeverityHigh,
	"warning": models.SeverityMedium,
	"info":    models.SeverityLow,
}

// NormalizeSeverity maps any incoming severity string into the Severity
// enum, per spec.md §4.5 step 5. Unrecognized values default to "low".
func NormalizeSeverity(raw string) models.Severity {
	if sev, ok := validSeverities[raw]; ok {
		return sev
	}
	if sev, ok := severityAliases[raw]; ok {
		return sev
	}
	return models.SeverityLow
}
