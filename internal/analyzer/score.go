package analyzer

import "math"

// severityCounts tallies the per-severity counts the score formulas in
// spec.md §4.5 consume.
type severityCounts struct {
	critical int
	high     int
	medium   int
}

// QualityScore implements spec.md §4.5's quality score formula: an integer
// in [0,100], clamped.
func QualityScore(maintainability float64, counts severityCounts, complexity, duplicationScore float64) int {
	base := maintainability
	base -= 20 * float64(counts.critical+counts.high)
	base -= 10 * float64(counts.high) // high counted twice by design
	base -= 5 * float64(counts.medium)
	if complexity > 15 {
		base -= 2 * (complexity - 15)
	}
	base -= math.Round(duplicationScore * 30)
	return clamp(int(math.Round(base)), 0, 100)
}

// SecurityScore implements spec.md §4.5's security score formula: starts at
// 100, subtracts per-severity penalties, clamped. A file with no security
// issues returns 100 untouched.
func SecurityScore(counts severityCounts) int {
	if counts.critical == 0 && counts.high == 0 && counts.medium == 0 {
		return 100
	}
	score := 100
	score -= 40 * (counts.critical + counts.high)
	score -= 25 * counts.high // high double-counted by design
	score -= 10 * counts.medium
	return clamp(score, 0, 100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
