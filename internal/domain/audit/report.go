package audit

import (
	"regexp"
	"sort"
	"strings"
	"time"
)

// strengthIndicator marks a positive idiom. It only counts when the code
// matches it and its category produced zero findings.
type strengthIndicator struct {
	category Category
	re       *regexp.Regexp
	text     string
}

var strengthIndicators = []strengthIndicator{
	{CategoryInjection, regexp.MustCompile(`(?i)(executemany|execute\s*\([^)\n]*%s[^)\n]*,\s*\(|prepared?\s*statement|\.prepare\s*\(|\?\s*,\s*\[)`), "Parameterized queries are used for database access"},
	{CategoryInjection, regexp.MustCompile(`subprocess\.(run|call)\s*\(\s*\[`), "Shell commands are executed with argument lists instead of a shell"},
	{CategoryInjection, regexp.MustCompile(`(?i)(\.textContent\s*=|escapeHtml|sanitize)`), "Output is escaped before rendering"},
	{CategoryCrypto, regexp.MustCompile(`(?i)(bcrypt|argon2|scrypt|sha-?256)`), "Strong cryptographic algorithms are in use"},
	{CategoryCSRF, regexp.MustCompile(`(?i)csrf`), "CSRF protection is present"},
	{CategoryDataExposure, regexp.MustCompile(`(?i)(os\.environ|os\.getenv|process\.env)`), "Secrets are sourced from the environment, not hardcoded"},
	{CategorySSRF, regexp.MustCompile(`(?i)(allowlist|whitelist)`), "Outbound destinations are checked against an allowlist"},
}

// AssembleInput carries everything the assembler needs for one report.
type AssembleInput struct {
	ID         ReportID
	FileName   string
	Language   string
	Code       string
	Findings   []ReconciledFinding
	Static     []StaticFinding
	Contexts   []RetrievedContext
	Verifier   VerifierResult
	AIEnhanced bool
	CreatedAt  time.Time
	DurationMS int64
}

// Assemble sorts, scores and serializes the final report. The report is
// immutable once returned.
func Assemble(in AssembleInput, pol Policy) *SecurityReport {
	findings := make([]ReconciledFinding, len(in.Findings))
	copy(findings, in.Findings)
	sort.SliceStable(findings, func(i, j int) bool {
		if findings[i].Severity.Rank() != findings[j].Severity.Rank() {
			return findings[i].Severity.Rank() < findings[j].Severity.Rank()
		}
		return findings[i].FirstLine() < findings[j].FirstLine()
	})

	score := Score(findings, pol)

	return &SecurityReport{
		ID:                  in.ID,
		FileName:            in.FileName,
		Language:            in.Language,
		SecurityScore:       score,
		RiskLevel:           RiskLevel(score, pol),
		Findings:            findings,
		Strengths:           buildStrengths(in.Code, findings, in.Verifier.Strengths),
		Recommendations:     buildRecommendations(findings, in.Verifier.Recommendations, pol.MaxRecommendations),
		EvidenceIDs:         contextIDs(in.Contexts),
		StaticFindingsCount: len(in.Static),
		AIEnhanced:          in.AIEnhanced,
		Summary:             in.Verifier.Summary,
		Counts:              CountBySeverity(findings),
		CreatedAt:           in.CreatedAt,
		DurationMS:          in.DurationMS,
	}
}

// buildStrengths collects positive indicators for categories with zero
// findings, then appends whatever the verifier reported, deduplicated.
func buildStrengths(code string, findings []ReconciledFinding, verifier []string) []string {
	flagged := make(map[Category]bool)
	for _, f := range findings {
		flagged[f.Category] = true
	}

	seen := make(map[string]bool)
	out := []string{}
	for _, ind := range strengthIndicators {
		if flagged[ind.category] || !ind.re.MatchString(code) {
			continue
		}
		if !seen[ind.text] {
			seen[ind.text] = true
			out = append(out, ind.text)
		}
	}
	for _, s := range verifier {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

// buildRecommendations deduplicates remediation text across findings plus
// verifier suggestions, capped at max.
func buildRecommendations(findings []ReconciledFinding, verifier []string, max int) []string {
	seen := make(map[string]bool)
	out := []string{}
	add := func(s string) {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] || len(out) >= max {
			return
		}
		seen[s] = true
		out = append(out, s)
	}
	for _, f := range findings {
		add(f.Remediation)
	}
	for _, s := range verifier {
		add(s)
	}
	return out
}

func contextIDs(contexts []RetrievedContext) []string {
	ids := make([]string, 0, len(contexts))
	for _, c := range contexts {
		ids = append(ids, c.EntryID)
	}
	return ids
}
