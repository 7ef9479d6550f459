package audit

// Score applies the deduction model: start at 100, subtract a fixed amount
// per finding by severity, floor at 0.
func Score(findings []ReconciledFinding, pol Policy) int {
	score := 100
	for _, f := range findings {
		score -= pol.Deduction(f.Severity)
	}
	if score < 0 {
		score = 0
	}
	return score
}

// RiskLevel derives the tier from the score using the fixed thresholds.
// It is monotonic in the score.
func RiskLevel(score int, pol Policy) string {
	switch {
	case score >= pol.RiskLowMin:
		return "low"
	case score >= pol.RiskMediumMin:
		return "medium"
	case score >= pol.RiskHighMin:
		return "high"
	}
	return "critical"
}
