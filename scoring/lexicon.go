package scoring

import (
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"

	"gopkg.in/yaml.v3"
)

// AntonymPair is a pair of words treated as mutually contradicting.
// Matching is symmetric: either word may appear in either text.
type AntonymPair struct {
	A string `yaml:"a"`
	B string `yaml:"b"`
}

// Lexicon holds the word lists driving contradiction detection. All
// matching is case-insensitive and whole-word.
type Lexicon struct {
	Negations []string      `yaml:"negations"`
	Antonyms  []AntonymPair `yaml:"antonyms"`
	Positive  []string      `yaml:"positive"`
	Negative  []string      `yaml:"negative"`
}

// DefaultLexicon returns the built-in English word lists.
func DefaultLexicon() *Lexicon {
	return &Lexicon{
		Negations: []string{
			"not", "no", "never", "none", "neither", "nor",
			"cannot", "without", "lacks", "lacking", "absent",
		},
		Antonyms: []AntonymPair{
			{A: "increase", B: "decrease"},
			{A: "increases", B: "decreases"},
			{A: "increased", B: "decreased"},
			{A: "improve", B: "worsen"},
			{A: "improves", B: "worsens"},
			{A: "improved", B: "worsened"},
			{A: "higher", B: "lower"},
			{A: "positive", B: "negative"},
			{A: "significant", B: "insignificant"},
			{A: "effective", B: "ineffective"},
			{A: "supports", B: "refutes"},
			{A: "confirms", B: "contradicts"},
			{A: "presence", B: "absence"},
			{A: "upregulated", B: "downregulated"},
			{A: "gain", B: "loss"},
		},
		Positive: []string{
			"improves", "improved", "effective", "beneficial",
			"significant", "robust", "successful", "supports",
			"enhances", "accurate", "consistent",
		},
		Negative: []string{
			"worsens", "worsened", "ineffective", "harmful",
			"insignificant", "fragile", "failed", "refutes",
			"degrades", "inaccurate", "inconsistent",
		},
	}
}

// LoadLexicon decodes a YAML lexicon. Empty lists stay empty; callers
// wanting the defaults for an omitted list should start from
// DefaultLexicon and overwrite.
func LoadLexicon(r io.Reader) (*Lexicon, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	var l Lexicon
	if err := yaml.Unmarshal(data, &l); err != nil {
		return nil, fmt.Errorf("decoding lexicon: %w", err)
	}
	return &l, nil
}

// LexiconFromFile loads a YAML lexicon from path.
func LexiconFromFile(path string) (*Lexicon, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadLexicon(f)
}

// matcher is a Lexicon compiled into lookup sets.
type matcher struct {
	negations map[string]struct{}
	antonyms  map[string]map[string]struct{}
	positive  map[string]struct{}
	negative  map[string]struct{}
}

func compileLexicon(l *Lexicon) *matcher {
	m := &matcher{
		negations: toSet(l.Negations),
		antonyms:  make(map[string]map[string]struct{}),
		positive:  toSet(l.Positive),
		negative:  toSet(l.Negative),
	}
	for _, p := range l.Antonyms {
		a, b := strings.ToLower(p.A), strings.ToLower(p.B)
		if a == "" || b == "" {
			continue
		}
		addPair(m.antonyms, a, b)
		addPair(m.antonyms, b, a)
	}
	return m
}

func addPair(antonyms map[string]map[string]struct{}, from, to string) {
	if antonyms[from] == nil {
		antonyms[from] = make(map[string]struct{})
	}
	antonyms[from][to] = struct{}{}
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		if w = strings.ToLower(strings.TrimSpace(w)); w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

// contradicts reports whether the two token sets oppose each other, and
// whether the opposition was found via the sentiment lists rather than
// negation or antonyms.
func (m *matcher) contradicts(a, b map[string]struct{}) (contradiction, sentiment bool) {
	if m.negated(a) != m.negated(b) {
		return true, false
	}

	for word := range a {
		opposites, ok := m.antonyms[word]
		if !ok {
			continue
		}
		for opposite := range opposites {
			if _, hit := b[opposite]; hit {
				return true, false
			}
		}
	}

	if sa, sb := m.sentiment(a), m.sentiment(b); sa*sb < 0 {
		return true, true
	}
	return false, false
}

func (m *matcher) negated(tokens map[string]struct{}) bool {
	for word := range m.negations {
		if _, ok := tokens[word]; ok {
			return true
		}
	}
	return false
}

func (m *matcher) sentiment(tokens map[string]struct{}) int {
	score := 0
	for word := range tokens {
		if _, ok := m.positive[word]; ok {
			score++
		}
		if _, ok := m.negative[word]; ok {
			score--
		}
	}
	return score
}

// tokenize lowercases text and splits it into a set of whole words.
func tokenize(text string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		set[f] = struct{}{}
	}
	return set
}
