package analyzer

import "strings"

// branchTokens are control-flow keywords/operators counted toward the
// structural complexity estimate used by the quality-score formula's
// "complexity > 15" branch (spec.md §4.5). This is a simple McCabe-style
// approximation — one unit of complexity per decision point — not the
// language model's 0-10 subjective complexity rubric score, since the
// formula's threshold only makes sense against an unbounded structural
// count.
var branchTokens = []string{" if ", " for ", " while ", " case ", " catch ", "&&", "||", "?"}

// EstimateComplexity counts decision points in content, starting from a
// baseline of 1 the way cyclomatic complexity is conventionally computed.
func EstimateComplexity(content string) float64 {
	count := 1
	for _, tok := range branchTokens {
		count += strings.Count(content, tok)
	}
	return float64(count)
}
