package knowledge

import (
	"context"
	"sort"
	"strings"

	domain "github.com/bryanwahyu/codeguardian/internal/domain/audit"
)

// Entry is one seeded knowledge-base document.
type Entry struct {
	ID   string
	Text string
}

// DefaultEntries returns the built-in security knowledge base.
func DefaultEntries() []Entry {
	return []Entry{
		{"sql_injection", "SQL Injection occurs when user input is concatenated into SQL queries. Fix by using parameterized queries, ORM bindings, or prepared statements."},
		{"xss", "Cross Site Scripting (XSS) appears when unescaped user input is rendered in HTML. Fix by sanitizing output, using HTML escaping libraries, and Content Security Policy."},
		{"hardcoded_secrets", "Never hardcode secrets, API keys, tokens, passwords. Use environment variables or secret managers."},
		{"eval_code_execution", "Dangerous functions: eval(), exec(), child_process.exec() in Node, os.system() in Python. Fix by avoiding dynamic execution."},
		{"weak_crypto", "Weak cryptography includes MD5, SHA1, hardcoded salts, insecure random generators. Use bcrypt/argon2 or strong cryptography algorithms."},
		{"insecure_file_handling", "Path traversal (../) and unsafe file writes. Validate paths and use secure file APIs."},
		{"insecure_deserialization", "Deserializing untrusted data with pickle or native object streams can execute arbitrary code. Use safe formats such as JSON."},
		{"ssrf", "Server-Side Request Forgery happens when a server fetches attacker-controlled URLs. Validate and allowlist remote destinations."},
		{"csrf", "Cross-Site Request Forgery abuses authenticated sessions for state-changing requests. Use CSRF tokens and same-site cookies."},
		{"debug_mode", "Debug mode in production exposes stack traces and internals. Disable debug flags outside local development."},
	}
}

// MemoryRetriever ranks seeded entries by lexical overlap with the query.
// It is the default retriever when no external retrieval service is
// configured, and it is fully deterministic.
type MemoryRetriever struct {
	entries []Entry
	tokens  []map[string]bool
}

func NewMemoryRetriever(entries []Entry) *MemoryRetriever {
	r := &MemoryRetriever{entries: entries}
	for _, e := range entries {
		r.tokens = append(r.tokens, tokenize(e.ID+" "+e.Text))
	}
	return r
}

// Retrieve implements the Retriever port. Entries with zero overlap are
// omitted; ties keep seed order.
func (r *MemoryRetriever) Retrieve(_ context.Context, text string, topK int) ([]domain.RetrievedContext, error) {
	query := tokenize(text)

	type ranked struct {
		idx   int
		score float64
	}
	var matches []ranked
	for i, entryTokens := range r.tokens {
		overlap := 0
		for tok := range entryTokens {
			if query[tok] {
				overlap++
			}
		}
		if overlap == 0 {
			continue
		}
		matches = append(matches, ranked{i, float64(overlap) / float64(len(entryTokens))})
	}

	sort.SliceStable(matches, func(i, j int) bool { return matches[i].score > matches[j].score })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}

	out := make([]domain.RetrievedContext, 0, len(matches))
	for _, m := range matches {
		out = append(out, domain.RetrievedContext{
			EntryID: r.entries[m.idx].ID,
			Text:    r.entries[m.idx].Text,
			Score:   m.score,
		})
	}
	return out, nil
}

func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !('a' <= r && r <= 'z' || '0' <= r && r <= '9')
	}) {
		if len(tok) >= 3 {
			tokens[tok] = true
		}
	}
	return tokens
}
