package catalog

import (
	_ "embed"
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/bryanwahyu/codeguardian/internal/domain/audit"
)

//go:embed default.yaml
var defaultCatalogYAML []byte

// PatternSpec is the YAML shape of one vulnerability signature.
type PatternSpec struct {
	ID          string   `yaml:"id"`
	Title       string   `yaml:"title"`
	Category    string   `yaml:"category"`
	Severity    string   `yaml:"severity"`
	Patterns    []string `yaml:"patterns"`
	Unless      []string `yaml:"unless,omitempty"`
	Languages   []string `yaml:"languages,omitempty"`
	CWEID       string   `yaml:"cwe_id,omitempty"`
	OWASP       string   `yaml:"owasp_category,omitempty"`
	Description string   `yaml:"description"`
	Remediation string   `yaml:"remediation"`
}

// Pattern is a compiled, immutable vulnerability signature.
type Pattern struct {
	ID          string
	Title       string
	Category    audit.Category
	Severity    audit.Severity
	Regexes     []*regexp.Regexp
	Unless      []*regexp.Regexp // suppress the pattern when any of these match the code
	Languages   map[string]bool  // empty map = language-agnostic
	CWEID       string
	OWASP       string
	Description string
	Remediation string
}

// AppliesTo reports whether the pattern should run for the given language.
func (p *Pattern) AppliesTo(lang string) bool {
	if len(p.Languages) == 0 {
		return true
	}
	return p.Languages[strings.ToLower(lang)]
}

// Catalog holds the full ordered pattern set. It is loaded once at process
// start and never mutated; concurrent scans share it read-only.
type Catalog struct {
	patterns []*Pattern
	byID     map[string]*Pattern
}

// Patterns returns the signatures in catalog order.
func (c *Catalog) Patterns() []*Pattern { return c.patterns }

// Lookup returns the pattern with the given id, or nil.
func (c *Catalog) Lookup(id string) *Pattern { return c.byID[id] }

// Len returns the number of signatures.
func (c *Catalog) Len() int { return len(c.patterns) }

type catalogFile struct {
	Patterns []PatternSpec `yaml:"patterns"`
}

// Parse builds a catalog from YAML. Any invalid entry (unknown category or
// severity, empty regex set, malformed regex, duplicate id) is a
// configuration error; callers treat it as startup-fatal.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("catalog yaml: %w", err)
	}
	if len(file.Patterns) == 0 {
		return nil, fmt.Errorf("catalog has no patterns")
	}

	c := &Catalog{byID: make(map[string]*Pattern, len(file.Patterns))}
	for _, spec := range file.Patterns {
		p, err := compile(spec)
		if err != nil {
			return nil, err
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("catalog pattern %q: duplicate id", p.ID)
		}
		c.patterns = append(c.patterns, p)
		c.byID[p.ID] = p
	}
	return c, nil
}

func compile(spec PatternSpec) (*Pattern, error) {
	if strings.TrimSpace(spec.ID) == "" {
		return nil, fmt.Errorf("catalog pattern with empty id")
	}
	cat := audit.Category(strings.ToLower(spec.Category))
	if !cat.Valid() {
		return nil, fmt.Errorf("catalog pattern %q: unknown category %q", spec.ID, spec.Category)
	}
	sev := audit.Severity(strings.ToLower(spec.Severity))
	if !sev.Valid() {
		return nil, fmt.Errorf("catalog pattern %q: unknown severity %q", spec.ID, spec.Severity)
	}
	if len(spec.Patterns) == 0 {
		return nil, fmt.Errorf("catalog pattern %q: no regexes", spec.ID)
	}

	p := &Pattern{
		ID:          spec.ID,
		Title:       spec.Title,
		Category:    cat,
		Severity:    sev,
		CWEID:       spec.CWEID,
		OWASP:       spec.OWASP,
		Description: spec.Description,
		Remediation: spec.Remediation,
		Languages:   make(map[string]bool, len(spec.Languages)),
	}
	if p.Title == "" {
		p.Title = spec.ID
	}
	for _, lang := range spec.Languages {
		p.Languages[strings.ToLower(lang)] = true
	}
	for _, expr := range spec.Patterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("catalog pattern %q: bad regex %q: %w", spec.ID, expr, err)
		}
		p.Regexes = append(p.Regexes, re)
	}
	for _, expr := range spec.Unless {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("catalog pattern %q: bad unless regex %q: %w", spec.ID, expr, err)
		}
		p.Unless = append(p.Unless, re)
	}
	return p, nil
}

// Default returns the embedded catalog. The embedded YAML is part of the
// build, so a parse failure here is a programming error.
func Default() *Catalog {
	c, err := Parse(defaultCatalogYAML)
	if err != nil {
		panic(fmt.Sprintf("embedded catalog invalid: %v", err))
	}
	return c
}
