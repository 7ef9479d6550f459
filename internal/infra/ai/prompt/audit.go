package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	domain "github.com/bryanwahyu/codeguardian/internal/domain/audit"
)

// maxCodeChars bounds how much of the fragment goes into the prompt so a
// large file cannot blow up token cost.
const maxCodeChars = 5000

// GetSystemPrompt provides strict directions and schema for JSON output.
func GetSystemPrompt() string {
	return `You are a senior application security auditor performing a code review. You must produce one valid JSON object only (no markdown, no commentary, no code fences).

Your task:
- Confirm, refute, or extend each static analysis finding you are given.
- Surface vulnerabilities the static analysis missed.
- List genuine strengths of the code.
- Propose remediation recommendations.
- Only report vulnerabilities that actually exist in the provided code. Do not make assumptions.

Requirements:
- Output must be a single JSON object.
- Use lowercase severity values: critical, high, medium, low.
- Use these category values: injection, access-control, crypto, deserialization, misconfiguration, ssrf, csrf, path-traversal, data-exposure.
- line_numbers must reference actual lines in the provided code.
- confidence is your certainty from 0.0 to 1.0.

Schema (example with empty values):
{
  "findings": [
    {
      "title": "<string>",
      "severity": "<critical|high|medium|low>",
      "category": "<category>",
      "description": "<string>",
      "line_numbers": [1],
      "cwe_id": "<CWE-###>",
      "owasp_category": "<string>",
      "remediation": "<string>",
      "confidence": 0.0
    }
  ],
  "strengths": ["<string>"],
  "recommendations": ["<string>"],
  "summary": "<string>"
}`
}

// GetUserPrompt composes the structured request: the code under analysis,
// the static findings to confirm or refute, and the retrieved knowledge
// context as tie-break evidence.
func GetUserPrompt(p domain.VerifyPayload) string {
	var b strings.Builder

	code := p.Code
	truncated := 0
	if len(code) > maxCodeChars {
		truncated = len(code) - maxCodeChars
		code = code[:maxCodeChars]
	}

	fmt.Fprintf(&b, "=== CODE UNDER ANALYSIS ===\nLanguage: %s\nTotal length: %d characters\n\n```\n%s\n```\n", p.Language, len(p.Code), code)
	if truncated > 0 {
		fmt.Fprintf(&b, "... (%d more characters truncated)\n", truncated)
	}

	b.WriteString("\n=== STATIC ANALYSIS RESULTS ===\n")
	if len(p.StaticFindings) == 0 {
		b.WriteString("No static vulnerabilities detected\n")
	} else {
		enc, err := json.MarshalIndent(p.StaticFindings, "", "  ")
		if err == nil {
			b.Write(enc)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n=== SECURITY KNOWLEDGE BASE ===\n")
	for _, ctx := range p.Context {
		fmt.Fprintf(&b, "ID:%s\n%s\n\n", ctx.EntryID, ctx.Text)
	}

	b.WriteString("\nRespond with the JSON per schema.")
	return b.String()
}
