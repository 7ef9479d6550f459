package audit

// Severity enum
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Valid reports whether s is one of the four known levels.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Rank orders severities for sorting: critical first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	}
	return 4
}

// Category enum
type Category string

const (
	CategoryInjection        Category = "injection"
	CategoryAccessControl    Category = "access-control"
	CategoryCrypto           Category = "crypto"
	CategoryDeserialization  Category = "deserialization"
	CategoryMisconfiguration Category = "misconfiguration"
	CategorySSRF             Category = "ssrf"
	CategoryCSRF             Category = "csrf"
	CategoryPathTraversal    Category = "path-traversal"
	CategoryDataExposure     Category = "data-exposure"
)

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	switch c {
	case CategoryInjection, CategoryAccessControl, CategoryCrypto,
		CategoryDeserialization, CategoryMisconfiguration, CategorySSRF,
		CategoryCSRF, CategoryPathTraversal, CategoryDataExposure:
		return true
	}
	return false
}

// Origin tells where a reconciled finding came from.
type Origin string

const (
	OriginStaticOnly  Origin = "static-only"
	OriginAIConfirmed Origin = "ai-confirmed"
	OriginAIOnly      Origin = "ai-only"
)

// StaticFinding is produced by the pattern matcher. It is never mutated
// after creation; the reconciler references it by PatternID as evidence.
type StaticFinding struct {
	PatternID   string   `json:"pattern_id"`
	Category    Category `json:"category"`
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Remediation string   `json:"remediation"`
	CWEID       string   `json:"cwe_id,omitempty"`
	OWASP       string   `json:"owasp_category,omitempty"`
	LineNumbers []int    `json:"line_numbers"`
	MatchedText string   `json:"matched_text"`
}

// RetrievedContext is a knowledge-base snippet returned by the retriever.
// It lives only for the duration of one scan.
type RetrievedContext struct {
	EntryID string  `json:"entry_id"`
	Text    string  `json:"text"`
	Score   float64 `json:"similarity_score"`
}

// VerifierFinding is a candidate finding parsed out of the generative
// verifier's response. Fields come from an untrusted source; the openai
// adapter drops anything that fails schema validation before this type
// is ever constructed.
type VerifierFinding struct {
	Title       string   `json:"title"`
	Severity    Severity `json:"severity"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	LineNumbers []int    `json:"line_numbers"`
	CWEID       string   `json:"cwe_id,omitempty"`
	OWASP       string   `json:"owasp_category,omitempty"`
	Remediation string   `json:"remediation"`
	Confidence  float64  `json:"confidence"`
}

// ReconciledFinding is the unit that appears in the final report.
type ReconciledFinding struct {
	Title       string   `json:"title"`
	Severity    Severity `json:"severity"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	LineNumbers []int    `json:"line_numbers"`
	CWEID       string   `json:"cwe_id,omitempty"`
	OWASP       string   `json:"owasp_category,omitempty"`
	Remediation string   `json:"remediation"`
	Confidence  float64  `json:"confidence"`
	Origin      Origin   `json:"origin"`
	EvidenceIDs []string `json:"evidence_ids,omitempty"`
}

// FirstLine returns the smallest line number, or 0 when none are known.
func (f ReconciledFinding) FirstLine() int {
	first := 0
	for _, n := range f.LineNumbers {
		if first == 0 || n < first {
			first = n
		}
	}
	return first
}
