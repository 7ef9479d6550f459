package catalog

import (
	"sort"
	"strings"

	"github.com/bryanwahyu/codeguardian/internal/domain/audit"
)

// Match runs every applicable signature against the code, line by line.
// It is a pure function of the code and the catalog: no side effects, no
// mutation of shared state, deterministic output.
//
// Findings under the same category whose line blocks overlap or touch
// collapse into one StaticFinding. The first matching pattern wins the
// metadata and matched text; line numbers are unioned. Output follows
// catalog order, not line order.
func (c *Catalog) Match(code, language string) []audit.StaticFinding {
	lines := strings.Split(code, "\n")

	var findings []audit.StaticFinding
	for _, p := range c.patterns {
		if !p.AppliesTo(language) {
			continue
		}
		if suppressed(p, code) {
			continue
		}

		matched, text := matchLines(p, lines)
		if len(matched) == 0 {
			continue
		}

		if i := overlappingFinding(findings, p.Category, matched); i >= 0 {
			findings[i].LineNumbers = unionLines(findings[i].LineNumbers, matched)
			continue
		}

		findings = append(findings, audit.StaticFinding{
			PatternID:   p.ID,
			Category:    p.Category,
			Severity:    p.Severity,
			Title:       p.Title,
			Description: p.Description,
			Remediation: p.Remediation,
			CWEID:       p.CWEID,
			OWASP:       p.OWASP,
			LineNumbers: matched,
			MatchedText: text,
		})
	}
	return findings
}

func suppressed(p *Pattern, code string) bool {
	for _, re := range p.Unless {
		if re.MatchString(code) {
			return true
		}
	}
	return false
}

// matchLines returns the sorted line numbers (1-based) touched by any of
// the pattern's regexes, plus the first matched text, trimmed.
func matchLines(p *Pattern, lines []string) ([]int, string) {
	seen := make(map[int]bool)
	var nums []int
	var text string
	for _, re := range p.Regexes {
		for i, line := range lines {
			m := re.FindString(line)
			if m == "" {
				continue
			}
			if text == "" {
				text = strings.TrimSpace(m)
			}
			if !seen[i+1] {
				seen[i+1] = true
				nums = append(nums, i+1)
			}
		}
	}
	sort.Ints(nums)
	return nums, text
}

// overlappingFinding returns the index of an existing finding in the same
// category whose line block overlaps or is adjacent to lines, or -1.
func overlappingFinding(findings []audit.StaticFinding, cat audit.Category, lines []int) int {
	for i, f := range findings {
		if f.Category != cat {
			continue
		}
		if linesTouch(f.LineNumbers, lines) {
			return i
		}
	}
	return -1
}

// linesTouch reports whether two sorted line sets share a line or sit on
// adjacent lines.
func linesTouch(a, b []int) bool {
	for _, x := range a {
		for _, y := range b {
			d := x - y
			if d < 0 {
				d = -d
			}
			if d <= 1 {
				return true
			}
		}
	}
	return false
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
