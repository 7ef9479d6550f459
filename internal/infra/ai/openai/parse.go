package openai

import (
	"encoding/json"
	"strings"

	domain "github.com/bryanwahyu/codeguardian/internal/domain/audit"
)

// defaultConfidence is assigned when the verifier omits the field.
const defaultConfidence = 0.7

// wireResult mirrors whatever the model actually sent. Findings stay raw
// so one malformed element drops alone instead of failing the array.
type wireResult struct {
	Findings        []json.RawMessage `json:"findings"`
	Vulnerabilities []json.RawMessage `json:"vulnerabilities"` // legacy field name
	Strengths       []string          `json:"strengths"`
	Recommendations []string          `json:"recommendations"`
	Summary         string            `json:"summary"`
}

type wireFinding struct {
	Title       string    `json:"title"`
	Issue       string    `json:"issue"` // legacy alias for title
	Severity    string    `json:"severity"`
	Category    string    `json:"category"`
	Description string    `json:"description"`
	Explanation string    `json:"explanation"` // legacy alias
	LineNumbers []float64 `json:"line_numbers"`
	CWEID       string    `json:"cwe_id"`
	OWASP       string    `json:"owasp_category"`
	Remediation string    `json:"remediation"`
	Fix         string    `json:"fix_suggestion"` // legacy alias
	Confidence  *float64  `json:"confidence"`
}

// ParseResult turns the raw model output into a schema-validated result.
// It never fails: a response that is not JSON (even after stripping
// fences) parses to zero findings, and each finding that violates the
// schema is dropped on its own.
func ParseResult(raw string) domain.VerifierResult {
	data := extractJSON(raw)
	if data == nil {
		return domain.VerifierResult{}
	}

	var wire wireResult
	if err := json.Unmarshal(data, &wire); err != nil {
		return domain.VerifierResult{}
	}

	rawFindings := wire.Findings
	if len(rawFindings) == 0 {
		rawFindings = wire.Vulnerabilities
	}

	result := domain.VerifierResult{
		Strengths:       cleanStrings(wire.Strengths),
		Recommendations: cleanStrings(wire.Recommendations),
		Summary:         strings.TrimSpace(wire.Summary),
	}
	for _, msg := range rawFindings {
		if f, ok := validateFinding(msg); ok {
			result.Findings = append(result.Findings, f)
		}
	}
	return result
}

// validateFinding enforces the VerifierFinding schema on one element.
func validateFinding(msg json.RawMessage) (domain.VerifierFinding, bool) {
	var w wireFinding
	if err := json.Unmarshal(msg, &w); err != nil {
		return domain.VerifierFinding{}, false
	}

	title := strings.TrimSpace(w.Title)
	if title == "" {
		title = strings.TrimSpace(w.Issue)
	}
	if title == "" {
		return domain.VerifierFinding{}, false
	}

	sev := domain.Severity(strings.ToLower(strings.TrimSpace(w.Severity)))
	if !sev.Valid() {
		return domain.VerifierFinding{}, false
	}

	cat := domain.Category(strings.ToLower(strings.TrimSpace(w.Category)))
	if !cat.Valid() {
		cat = categoryFromTitle(title)
	}
	if !cat.Valid() {
		return domain.VerifierFinding{}, false
	}

	confidence := defaultConfidence
	if w.Confidence != nil {
		confidence = *w.Confidence
	}
	if confidence < 0 || confidence > 1 {
		return domain.VerifierFinding{}, false
	}

	var lines []int
	for _, n := range w.LineNumbers {
		if v := int(n); v > 0 {
			lines = append(lines, v)
		}
	}

	return domain.VerifierFinding{
		Title:       title,
		Severity:    sev,
		Category:    cat,
		Description: firstTrimmed(w.Description, w.Explanation),
		LineNumbers: lines,
		CWEID:       strings.TrimSpace(w.CWEID),
		OWASP:       strings.TrimSpace(w.OWASP),
		Remediation: firstTrimmed(w.Remediation, w.Fix),
		Confidence:  confidence,
	}, true
}

// categoryFromTitle maps free-form issue names onto the category enum,
// mirroring how analysts label these classes.
func categoryFromTitle(title string) domain.Category {
	s := strings.ToLower(title)
	switch {
	case strings.Contains(s, "sql"), strings.Contains(s, "xss"),
		strings.Contains(s, "command"), strings.Contains(s, "eval"),
		strings.Contains(s, "code execution"), strings.Contains(s, "inject"):
		return domain.CategoryInjection
	case strings.Contains(s, "idor"), strings.Contains(s, "access control"),
		strings.Contains(s, "authorization"):
		return domain.CategoryAccessControl
	case strings.Contains(s, "crypt"), strings.Contains(s, "md5"), strings.Contains(s, "sha1"):
		return domain.CategoryCrypto
	case strings.Contains(s, "deserial"), strings.Contains(s, "pickle"):
		return domain.CategoryDeserialization
	case strings.Contains(s, "debug"), strings.Contains(s, "misconfig"):
		return domain.CategoryMisconfiguration
	case strings.Contains(s, "csrf"), strings.Contains(s, "cross-site request forgery"):
		return domain.CategoryCSRF
	case strings.Contains(s, "ssrf"), strings.Contains(s, "request forgery"):
		return domain.CategorySSRF
	case strings.Contains(s, "path traversal"), strings.Contains(s, "traversal"):
		return domain.CategoryPathTraversal
	case strings.Contains(s, "secret"), strings.Contains(s, "hardcod"),
		strings.Contains(s, "credential"), strings.Contains(s, "sensitive"),
		strings.Contains(s, "exposure"), strings.Contains(s, "logging"):
		return domain.CategoryDataExposure
	}
	return ""
}

// extractJSON strips markdown fences and leading/trailing prose, returning
// the outermost JSON object or nil.
func extractJSON(raw string) []byte {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		if i := strings.LastIndex(s, "```"); i >= 0 {
			s = s[:i]
		}
		s = strings.TrimSpace(s)
	}
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return nil
	}
	return []byte(s[start : end+1])
}

func cleanStrings(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func firstTrimmed(a, b string) string {
	if s := strings.TrimSpace(a); s != "" {
		return s
	}
	return strings.TrimSpace(b)
}
