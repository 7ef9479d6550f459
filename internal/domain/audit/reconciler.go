package audit

import (
	"sort"
	"strings"
)

// Reconcile merges the deterministic static findings with the verifier's
// candidates into one deduplicated, confidence-annotated set.
//
// A verifier finding that lands on a static finding (same category, any
// line within the overlap window) confirms it: the merged finding keeps the
// verifier's richer prose where present and falls back to the pattern
// template otherwise. A verifier finding with no static anchor survives
// only above the confidence threshold. Static findings the verifier never
// mentioned stay in with a fixed conservative confidence, so a dead
// verifier degrades the result instead of erasing it.
//
// Post-condition: no two results share a category with overlapping line
// ranges. Given fixed inputs the output is fully deterministic.
func Reconcile(static []StaticFinding, verifier []VerifierFinding, contexts []RetrievedContext, pol Policy) []ReconciledFinding {
	var out []ReconciledFinding
	confirmed := make(map[int]int) // static index -> out index

	for _, vf := range verifier {
		matches := matchStatic(static, confirmed, vf, pol.OverlapWindow)
		if len(matches) > 0 {
			oi := -1
			for _, si := range matches {
				if prev, done := confirmed[si]; done {
					// another verifier finding for an already-confirmed
					// location: fold into it, first one wins the text
					oi = prev
					break
				}
			}
			if oi < 0 {
				oi = len(out)
				out = append(out, mergeConfirmed(static[matches[0]], vf, contexts, pol))
			} else {
				out[oi].LineNumbers = unionLines(out[oi].LineNumbers, vf.LineNumbers)
			}
			// a verifier finding spanning several static hits of the same
			// category confirms all of them, otherwise the leftovers would
			// resurface as overlapping static-only duplicates
			for _, si := range matches {
				if _, done := confirmed[si]; done {
					continue
				}
				confirmed[si] = oi
				foldStatic(&out[oi], static[si])
			}
			continue
		}

		if vf.Confidence < pol.ConfidenceThreshold {
			continue // unanchored and weak: drop silently
		}
		if oi := overlapInOutput(out, vf.Category, vf.LineNumbers, pol.OverlapWindow); oi >= 0 {
			out[oi].LineNumbers = unionLines(out[oi].LineNumbers, vf.LineNumbers)
			continue
		}
		out = append(out, ReconciledFinding{
			Title:       vf.Title,
			Severity:    vf.Severity,
			Category:    vf.Category,
			Description: vf.Description,
			LineNumbers: sortedCopy(vf.LineNumbers),
			CWEID:       vf.CWEID,
			OWASP:       vf.OWASP,
			Remediation: vf.Remediation,
			Confidence:  vf.Confidence,
			Origin:      OriginAIOnly,
			EvidenceIDs: contextEvidence(vf.Category, contexts),
		})
	}

	for i, sf := range static {
		if _, done := confirmed[i]; done {
			continue
		}
		out = append(out, ReconciledFinding{
			Title:       sf.Title,
			Severity:    sf.Severity,
			Category:    sf.Category,
			Description: sf.Description,
			LineNumbers: sortedCopy(sf.LineNumbers),
			CWEID:       sf.CWEID,
			OWASP:       sf.OWASP,
			Remediation: sf.Remediation,
			Confidence:  pol.StaticConfidence,
			Origin:      OriginStaticOnly,
			EvidenceIDs: []string{sf.PatternID},
		})
	}
	return out
}

// matchStatic finds every static finding the verifier finding confirms:
// same category and at least one line pair within the window. A verifier
// finding without line numbers anchors to the first unconfirmed static
// finding of its category.
func matchStatic(static []StaticFinding, confirmed map[int]int, vf VerifierFinding, window int) []int {
	var matches []int
	for i, sf := range static {
		if sf.Category != vf.Category {
			continue
		}
		if len(vf.LineNumbers) == 0 {
			if _, done := confirmed[i]; !done {
				return []int{i}
			}
			continue
		}
		if linesWithin(sf.LineNumbers, vf.LineNumbers, window) {
			matches = append(matches, i)
		}
	}
	return matches
}

// foldStatic absorbs an additional confirmed static hit into an already
// merged finding: union the lines, keep the harsher severity, record the
// extra pattern as evidence.
func foldStatic(f *ReconciledFinding, sf StaticFinding) {
	f.LineNumbers = unionLines(f.LineNumbers, sf.LineNumbers)
	if sf.Severity.Rank() < f.Severity.Rank() {
		f.Severity = sf.Severity
	}
	for _, id := range f.EvidenceIDs {
		if id == sf.PatternID {
			return
		}
	}
	f.EvidenceIDs = append(f.EvidenceIDs, sf.PatternID)
}

func mergeConfirmed(sf StaticFinding, vf VerifierFinding, contexts []RetrievedContext, pol Policy) ReconciledFinding {
	f := ReconciledFinding{
		Title:       firstNonEmpty(vf.Title, sf.Title),
		Category:    sf.Category,
		Description: firstNonEmpty(vf.Description, sf.Description),
		Remediation: firstNonEmpty(vf.Remediation, sf.Remediation),
		CWEID:       firstNonEmpty(vf.CWEID, sf.CWEID),
		OWASP:       firstNonEmpty(vf.OWASP, sf.OWASP),
		LineNumbers: unionLines(sf.LineNumbers, vf.LineNumbers),
		Confidence:  vf.Confidence,
		Origin:      OriginAIConfirmed,
		EvidenceIDs: append([]string{sf.PatternID}, contextEvidence(sf.Category, contexts)...),
	}
	// no-confirmation weakens a finding, refutation never negates it:
	// keep the harsher of the two severities
	f.Severity = sf.Severity
	if vf.Severity.Rank() < sf.Severity.Rank() {
		f.Severity = vf.Severity
	}
	if f.Confidence < pol.StaticConfidence {
		f.Confidence = pol.StaticConfidence
	}
	return f
}

func overlapInOutput(out []ReconciledFinding, cat Category, lines []int, window int) int {
	for i, f := range out {
		if f.Category == cat && linesWithin(f.LineNumbers, lines, window) {
			return i
		}
	}
	return -1
}

// linesWithin reports whether any pair of lines from the two sets is at
// most window apart.
func linesWithin(a, b []int, window int) bool {
	for _, x := range a {
		for _, y := range b {
			d := x - y
			if d < 0 {
				d = -d
			}
			if d <= window {
				return true
			}
		}
	}
	return false
}

// categoryKeywords ties retrieved knowledge snippets to finding categories
// for evidence provenance.
var categoryKeywords = map[Category][]string{
	CategoryInjection:        {"injection", "sql", "xss", "eval", "exec", "command"},
	CategoryAccessControl:    {"access control", "authorization", "idor"},
	CategoryCrypto:           {"crypto", "md5", "sha1", "hash", "bcrypt"},
	CategoryDeserialization:  {"deserial", "pickle"},
	CategoryMisconfiguration: {"debug", "misconfig", "configuration"},
	CategorySSRF:             {"ssrf", "request forgery"},
	CategoryCSRF:             {"csrf"},
	CategoryPathTraversal:    {"path", "traversal", "file"},
	CategoryDataExposure:     {"secret", "password", "token", "credential", "exposure", "logging"},
}

func contextEvidence(cat Category, contexts []RetrievedContext) []string {
	var ids []string
	for _, ctx := range contexts {
		text := strings.ToLower(ctx.EntryID + " " + ctx.Text)
		for _, kw := range categoryKeywords[cat] {
			if strings.Contains(text, kw) {
				ids = append(ids, ctx.EntryID)
				break
			}
		}
	}
	return ids
}

func firstNonEmpty(a, b string) string {
	if strings.TrimSpace(a) != "" {
		return a
	}
	return b
}

func sortedCopy(lines []int) []int {
	return unionLines(lines, nil)
}

func unionLines(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	var out []int
	for _, n := range a {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	for _, n := range b {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	sort.Ints(out)
	return out
}
