package audit

import "time"

// ReportID identifier type
type ReportID string

// ScanRequest is the caller-facing input for one code audit.
type ScanRequest struct {
	Code     string `json:"code"`
	Language string `json:"language,omitempty"`
	FileName string `json:"file_name,omitempty"`
}

// SecurityReport is the single output of one scan. It is assembled once
// and never mutated afterwards.
type SecurityReport struct {
	ID                  ReportID            `json:"id"`
	FileName            string              `json:"file_name,omitempty"`
	Language            string              `json:"language"`
	SecurityScore       int                 `json:"security_score"`
	RiskLevel           string              `json:"risk_level"`
	Findings            []ReconciledFinding `json:"findings"`
	Strengths           []string            `json:"strengths"`
	Recommendations     []string            `json:"recommendations"`
	EvidenceIDs         []string            `json:"evidence_ids"`
	StaticFindingsCount int                 `json:"static_findings_count"`
	AIEnhanced          bool                `json:"ai_enhanced"`
	Summary             string              `json:"summary,omitempty"`
	Counts              SeverityCounts      `json:"counts"`
	CreatedAt           time.Time           `json:"created_at"`
	DurationMS          int64               `json:"duration_ms"`
}

// SeverityCounts value object
type SeverityCounts struct {
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Total    int `json:"total"`
}

// CountBySeverity tallies reconciled findings by severity.
func CountBySeverity(findings []ReconciledFinding) SeverityCounts {
	var c SeverityCounts
	for _, f := range findings {
		switch f.Severity {
		case SeverityCritical:
			c.Critical++
		case SeverityHigh:
			c.High++
		case SeverityMedium:
			c.Medium++
		case SeverityLow:
			c.Low++
		}
		c.Total++
	}
	return c
}
