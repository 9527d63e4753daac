package orchestrator

import (
	"strings"
	"unicode"
)

// QueryProfile is the feature set derived from a raw query
type QueryProfile struct {
	Complexity         Complexity `json:"complexity"`
	Domains            []string   `json:"domains"`
	RequiresResearch   bool       `json:"requires_research"`
	RequiresAnalysis   bool       `json:"requires_analysis"`
	RequiresCreativity bool       `json:"requires_creativity"`
	RequiresTechnical  bool       `json:"requires_technical"`
}

// QueryProfiler derives a QueryProfile from text. Implementations must be
// deterministic and must not perform I/O.
type QueryProfiler interface {
	Profile(query string) QueryProfile
}

const (
	mediumLength  = 50
	complexLength = 200
)

var complexKeywords = []string{"comprehensive", "detailed", "in-depth", "analyze", "analysis", "compare"}

var mediumKeywords = []string{"explain", "how", "why", "describe"}

// domain tags in the order they are reported
var domainKeywords = []struct {
	domain   string
	keywords []string
}{
	{"research", []string{"research", "study", "investigat", "sources", "evidence"}},
	{"analysis", []string{"analy", "compar", "evaluat", "assess", "statistic"}},
	{"technical", []string{"code", "debug", "program", "api", "software", "technical", "algorithm"}},
	{"creative", []string{"creative", "write", "story", "poem", "design", "imagine"}},
	{"science", []string{"science", "scientific", "biology", "chemistry", "physics", "medical", "health"}},
}

var (
	researchFlags  = []string{"research"}
	analysisFlags  = []string{"analy", "compare", "evaluate"}
	creativeFlags  = []string{"creative", "write", "story", "poem"}
	technicalFlags = []string{"code", "debug", "program", "technical", "api"}
)

// KeywordProfiler classifies queries with length thresholds and keyword lists
type KeywordProfiler struct{}

var _ QueryProfiler = KeywordProfiler{}

// Profile implements QueryProfiler
func (KeywordProfiler) Profile(query string) QueryProfile {
	text := strings.ToLower(strings.TrimSpace(query))
	words := tokenize(text)

	p := QueryProfile{Complexity: ComplexitySimple, Domains: []string{}}
	switch {
	case len(text) > complexLength || hasWord(words, complexKeywords):
		p.Complexity = ComplexityComplex
	case len(text) > mediumLength || hasWord(words, mediumKeywords):
		p.Complexity = ComplexityMedium
	}

	for _, d := range domainKeywords {
		if hasPrefix(words, d.keywords) {
			p.Domains = append(p.Domains, d.domain)
		}
	}

	p.RequiresResearch = containsAny(text, researchFlags)
	p.RequiresAnalysis = containsAny(text, analysisFlags)
	p.RequiresCreativity = containsAny(text, creativeFlags)
	p.RequiresTechnical = containsAny(text, technicalFlags)
	return p
}

func tokenize(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
}

func hasWord(words, keywords []string) bool {
	for _, w := range words {
		for _, k := range keywords {
			if w == k {
				return true
			}
		}
	}
	return false
}

func hasPrefix(words, prefixes []string) bool {
	for _, w := range words {
		for _, p := range prefixes {
			if strings.HasPrefix(w, p) {
				return true
			}
		}
	}
	return false
}

func containsAny(text string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(text, n) {
			return true
		}
	}
	return false
}
