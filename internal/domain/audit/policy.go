package audit

// Policy holds the scoring and reconciliation knobs. They are explicit,
// testable constants with config overrides, never derived from the
// generative model.
type Policy struct {
	// Reconciliation
	ConfidenceThreshold float64 // minimum confidence for an unconfirmed verifier finding
	StaticConfidence    float64 // confidence assigned to static-only findings
	OverlapWindow       int     // line distance counted as the same location

	// Scoring
	DeductCritical int
	DeductHigh     int
	DeductMedium   int
	DeductLow      int
	RiskLowMin     int // score >= RiskLowMin    -> "low"
	RiskMediumMin  int // score >= RiskMediumMin -> "medium"
	RiskHighMin    int // score >= RiskHighMin   -> "high", below -> "critical"

	// Assembly
	MaxRecommendations int

	// Input bounds
	MaxCodeBytes int
}

// DefaultPolicy returns the stock policy values.
func DefaultPolicy() Policy {
	return Policy{
		ConfidenceThreshold: 0.6,
		StaticConfidence:    0.5,
		OverlapWindow:       1,
		DeductCritical:      20,
		DeductHigh:          10,
		DeductMedium:        5,
		DeductLow:           2,
		RiskLowMin:          90,
		RiskMediumMin:       70,
		RiskHighMin:         40,
		MaxRecommendations:  10,
		MaxCodeBytes:        100_000,
	}
}

// Deduction returns the score deduction for one finding of the given severity.
func (p Policy) Deduction(s Severity) int {
	switch s {
	case SeverityCritical:
		return p.DeductCritical
	case SeverityHigh:
		return p.DeductHigh
	case SeverityMedium:
		return p.DeductMedium
	case SeverityLow:
		return p.DeductLow
	}
	return 0
}
