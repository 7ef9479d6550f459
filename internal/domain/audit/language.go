package audit

import (
	"regexp"
	"strings"
)

// Languages covered by the pattern catalog. "auto" (or empty) asks the
// service to guess from the code itself.
var supportedLanguages = map[string]bool{
	"auto":       true,
	"python":     true,
	"javascript": true,
	"typescript": true,
	"go":         true,
	"java":       true,
	"php":        true,
	"ruby":       true,
}

// LanguageSupported reports whether lang can be audited. Empty means auto.
func LanguageSupported(lang string) bool {
	if lang == "" {
		return true
	}
	return supportedLanguages[strings.ToLower(lang)]
}

var (
	rePython = regexp.MustCompile(`(?m)^\s*(def |import |from \w+ import|class \w+.*:)`)
	reGo     = regexp.MustCompile(`(?m)^\s*(package \w+|func \w+.*\{|func \(\w+ \*?\w+\))`)
	reJava   = regexp.MustCompile(`(?m)(public\s+(class|static|void)|System\.out\.println)`)
	rePHP    = regexp.MustCompile(`(?m)(<\?php|\$\w+\s*=)`)
	reJS     = regexp.MustCompile(`(?m)(function\s*\w*\s*\(|=>|const \w+\s*=|require\(|console\.log)`)
)

// DetectLanguage guesses the language of a code fragment. The guess feeds
// pattern applicability only, so a wrong guess widens or narrows matching
// but never crashes the pipeline.
func DetectLanguage(code string) string {
	switch {
	case rePython.MatchString(code):
		return "python"
	case reGo.MatchString(code):
		return "go"
	case rePHP.MatchString(code):
		return "php"
	case reJava.MatchString(code):
		return "java"
	case reJS.MatchString(code):
		return "javascript"
	}
	return "generic"
}
