package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAssembleOrdersFindings(t *testing.T) {
	pol := DefaultPolicy()
	in := AssembleInput{
		ID: "r-1",
		Findings: []ReconciledFinding{
			{Title: "med late", Severity: SeverityMedium, LineNumbers: []int{50}},
			{Title: "crit", Severity: SeverityCritical, LineNumbers: []int{30}},
			{Title: "med early", Severity: SeverityMedium, LineNumbers: []int{5}},
			{Title: "high", Severity: SeverityHigh, LineNumbers: []int{2}},
		},
		CreatedAt: time.Now(),
	}

	rep := Assemble(in, pol)
	titles := make([]string, len(rep.Findings))
	for i, f := range rep.Findings {
		titles[i] = f.Title
	}
	assert.Equal(t, []string{"crit", "high", "med early", "med late"}, titles)
}

func TestAssembleSafeCodeReport(t *testing.T) {
	pol := DefaultPolicy()
	code := `import os
API_KEY = os.environ["API_KEY"]
cursor.execute("SELECT * FROM users WHERE id = %s", (user_id,))
`
	rep := Assemble(AssembleInput{ID: "r-2", Language: "python", Code: code}, pol)

	assert.Equal(t, 100, rep.SecurityScore)
	assert.GreaterOrEqual(t, rep.SecurityScore, 90)
	assert.Equal(t, "low", rep.RiskLevel)
	require.NotEmpty(t, rep.Strengths)
	assert.Contains(t, rep.Strengths, "Parameterized queries are used for database access")
	assert.Contains(t, rep.Strengths, "Secrets are sourced from the environment, not hardcoded")
	assert.Empty(t, rep.Findings)
}

func TestAssembleStrengthSuppressedByFinding(t *testing.T) {
	pol := DefaultPolicy()
	// parameterized query present, but an injection finding exists: the
	// injection strength must not be claimed
	code := `cursor.execute("SELECT * FROM users WHERE id = %s", (uid,))`
	in := AssembleInput{
		ID:   "r-3",
		Code: code,
		Findings: []ReconciledFinding{{
			Title: "sqli elsewhere", Severity: SeverityCritical,
			Category: CategoryInjection, LineNumbers: []int{9},
		}},
	}

	rep := Assemble(in, pol)
	assert.NotContains(t, rep.Strengths, "Parameterized queries are used for database access")
}

func TestAssembleRecommendationsDedupAndCap(t *testing.T) {
	pol := DefaultPolicy()
	pol.MaxRecommendations = 3

	var fs []ReconciledFinding
	for i := 0; i < 5; i++ {
		fs = append(fs, ReconciledFinding{
			Severity:    SeverityLow,
			Remediation: "Use prepared statements.",
		})
	}
	in := AssembleInput{
		ID:       "r-4",
		Findings: fs,
		Verifier: VerifierResult{Recommendations: []string{
			"Use prepared statements.", // duplicate
			"Rotate exposed keys.",
			"Add CSRF tokens.",
			"Enable rate limiting.",
		}},
	}

	rep := Assemble(in, pol)
	assert.Equal(t, []string{
		"Use prepared statements.",
		"Rotate exposed keys.",
		"Add CSRF tokens.",
	}, rep.Recommendations)
}

func TestAssembleVerifierStrengthsAppended(t *testing.T) {
	pol := DefaultPolicy()
	in := AssembleInput{
		ID:       "r-5",
		Code:     "print('hello')",
		Verifier: VerifierResult{Strengths: []string{"Input length is validated", "Input length is validated", "  "}},
	}

	rep := Assemble(in, pol)
	assert.Equal(t, []string{"Input length is validated"}, rep.Strengths)
}

func TestAssembleCounts(t *testing.T) {
	pol := DefaultPolicy()
	in := AssembleInput{
		ID: "r-6",
		Findings: findingsOf(SeverityCritical, SeverityCritical, SeverityHigh,
			SeverityMedium, SeverityLow),
		Static:     []StaticFinding{{PatternID: "x"}},
		AIEnhanced: true,
	}

	rep := Assemble(in, pol)
	assert.Equal(t, SeverityCounts{Critical: 2, High: 1, Medium: 1, Low: 1, Total: 5}, rep.Counts)
	assert.Equal(t, 1, rep.StaticFindingsCount)
	assert.True(t, rep.AIEnhanced)
	assert.Equal(t, 100-20-20-10-5-2, rep.SecurityScore)
}

func TestAssembleEvidenceIDs(t *testing.T) {
	pol := DefaultPolicy()
	in := AssembleInput{
		ID: "r-7",
		Contexts: []RetrievedContext{
			{EntryID: "sql_injection"},
			{EntryID: "xss"},
		},
	}

	rep := Assemble(in, pol)
	assert.Equal(t, []string{"sql_injection", "xss"}, rep.EvidenceIDs)
}
