package rules

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// File is the on-disk phrase rules document.
//
//	punctuation: true
//	substitutions:
//	  - from: pull request
//	    to: PR
//	  - pattern: '\bdeep\s*gram\b'
//	    to: Deepgram
//	    global: true
type File struct {
	Punctuation   *bool          `yaml:"punctuation"`
	Substitutions []Substitution `yaml:"substitutions"`
}

// Substitution is either a case-insensitive literal (From) or a regular
// expression (Pattern). Regex rules replace only the first match unless Global.
type Substitution struct {
	From    string `yaml:"from"`
	Pattern string `yaml:"pattern"`
	To      string `yaml:"to"`
	Global  bool   `yaml:"global"`
}

type compiledRule interface {
	Apply(input string) (output string, changed bool)
}

// Engine rewrites finalized dictation text before it is inserted.
type Engine struct {
	rules     []compiledRule
	loopLimit int
}

// spokenPunctuation maps spoken words to the mark they stand for. The
// preceding whitespace is consumed so "hello comma world" becomes "hello, world".
var spokenPunctuation = []struct {
	phrase string
	mark   string
}{
	{"question mark", "?"},
	{"exclamation mark", "!"},
	{"exclamation point", "!"},
	{"full stop", "."},
	{"period", "."},
	{"comma", ","},
	{"colon", ":"},
	{"semicolon", ";"},
	{"new line", "\n"},
}

// NewEngine loads rules from a YAML file. A missing file yields an engine with
// only the built-in spoken punctuation.
func NewEngine(path string, loopLimit int) (*Engine, error) {
	if loopLimit <= 0 {
		loopLimit = 30
	}

	doc := File{}
	if strings.TrimSpace(path) != "" {
		contents, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("failed to read rules file %q: %w", path, err)
		default:
			if err := yaml.Unmarshal(contents, &doc); err != nil {
				return nil, fmt.Errorf("failed to parse rules file %q: %w", path, err)
			}
		}
	}

	return Compile(doc, loopLimit)
}

// Compile builds an engine from an in-memory document.
func Compile(doc File, loopLimit int) (*Engine, error) {
	if loopLimit <= 0 {
		loopLimit = 30
	}

	var compiled []compiledRule
	if doc.Punctuation == nil || *doc.Punctuation {
		for _, p := range spokenPunctuation {
			re := regexp.MustCompile(`(?i)[ \t]*\b` + strings.ReplaceAll(regexp.QuoteMeta(p.phrase), " ", `\s+`) + `\b`)
			compiled = append(compiled, literalRule{re: re, replacement: p.mark})
		}
	}

	for index, sub := range doc.Substitutions {
		rule, err := compileSubstitution(sub)
		if err != nil {
			return nil, fmt.Errorf("substitution %d: %w", index+1, err)
		}
		compiled = append(compiled, rule)
	}

	return &Engine{rules: compiled, loopLimit: loopLimit}, nil
}

// Apply transforms text until no rule changes it or the loop limit is hit.
func (e *Engine) Apply(text string) (string, error) {
	if len(e.rules) == 0 {
		return text, nil
	}

	result := text
	for i := 0; i < e.loopLimit; i++ {
		changed := false
		for _, rule := range e.rules {
			next, ruleChanged := rule.Apply(result)
			if ruleChanged {
				result = next
				changed = true
			}
		}
		if !changed {
			return result, nil
		}
	}

	return result, nil
}

func compileSubstitution(sub Substitution) (compiledRule, error) {
	from := strings.TrimSpace(sub.From)
	pattern := strings.TrimSpace(sub.Pattern)

	switch {
	case from != "" && pattern != "":
		return nil, errors.New("set either from or pattern, not both")
	case from != "":
		re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(from))
		if err != nil {
			return nil, fmt.Errorf("invalid literal source: %w", err)
		}
		return literalRule{re: re, replacement: sub.To}, nil
	case pattern != "":
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid regex: %w", err)
		}
		return regexRule{re: re, replacement: sub.To, global: sub.Global}, nil
	default:
		return nil, errors.New("substitution source cannot be empty")
	}
}

type literalRule struct {
	replacement string
	re          *regexp.Regexp
}

func (r literalRule) Apply(input string) (string, bool) {
	output := r.re.ReplaceAllLiteralString(input, r.replacement)
	return output, output != input
}

type regexRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
}

func (r regexRule) Apply(input string) (string, bool) {
	if r.global {
		output := r.re.ReplaceAllString(input, r.replacement)
		return output, output != input
	}

	loc := r.re.FindStringSubmatchIndex(input)
	if loc == nil {
		return input, false
	}

	expanded := r.re.ExpandString(nil, r.replacement, input, loc)
	output := input[:loc[0]] + string(expanded) + input[loc[1]:]
	return output, output != input
}
