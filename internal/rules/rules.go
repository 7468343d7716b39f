// Package rules rewrites transcripts with user-defined substitutions.
//
// A rules file holds one rule per line:
//
//	# comment
//	pull request => PR
//	s/\bdeep\s*gram\b/Deepgram/g
//
// Literal rules match case-insensitively. Regex rules use sed syntax with any
// non-alphanumeric delimiter and the flags g, i, m and s; matching is
// case-insensitive unless the I flag is given. Rules are applied in order,
// repeatedly, until the text stops changing or the iteration limit is hit.
package rules

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("rules")

const DefaultIterationLimit = 30

// Rule rewrites text, reporting whether anything changed.
type Rule interface {
	Rewrite(text string) (string, bool)
}

// Syntax recognises and compiles one kind of rule line.
type Syntax interface {
	Match(line string) bool
	Compile(line string) (Rule, error)
}

// DefaultSyntaxes are tried in order; regex first so "s/a/b/" is not read
// as a literal.
func DefaultSyntaxes() []Syntax {
	return []Syntax{sedSyntax{}, arrowSyntax{}}
}

// Engine applies an ordered rule set.
type Engine struct {
	rules []Rule
	limit int
}

// Load reads a rules file. A missing file or empty path yields an engine
// that leaves text unchanged.
func Load(path string, limit int, syntaxes ...Syntax) (*Engine, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return New(nil, limit), nil
	}
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand rules path %q: %w", path, err)
	}

	f, err := os.Open(expanded)
	if errors.Is(err, os.ErrNotExist) {
		log.Debugf("no rules file at %s", expanded)
		return New(nil, limit), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	rules, err := Parse(f, syntaxes...)
	if err != nil {
		return nil, fmt.Errorf("rules file %s: %w", expanded, err)
	}
	log.Debugf("loaded %d rules from %s", len(rules), expanded)
	return New(rules, limit), nil
}

func New(rules []Rule, limit int) *Engine {
	if limit <= 0 {
		limit = DefaultIterationLimit
	}
	return &Engine{rules: rules, limit: limit}
}

// Parse compiles every non-blank, non-comment line of r.
func Parse(r io.Reader, syntaxes ...Syntax) ([]Rule, error) {
	if len(syntaxes) == 0 {
		syntaxes = DefaultSyntaxes()
	}

	var rules []Rule
	scanner := bufio.NewScanner(r)
	for lineNo := 1; scanner.Scan(); lineNo++ {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		rule, err := compileLine(line, syntaxes)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		rules = append(rules, rule)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rules, nil
}

func compileLine(line string, syntaxes []Syntax) (Rule, error) {
	for _, syntax := range syntaxes {
		if syntax.Match(line) {
			return syntax.Compile(line)
		}
	}
	return nil, fmt.Errorf("unrecognised rule %q", line)
}

// Len is the number of loaded rules.
func (e *Engine) Len() int {
	return len(e.rules)
}

// Apply runs every rule in order until a full pass changes nothing. If the
// limit is reached first the last result is returned.
func (e *Engine) Apply(text string) (string, error) {
	if len(e.rules) == 0 {
		return text, nil
	}
	for pass := 0; pass < e.limit; pass++ {
		dirty := false
		for _, rule := range e.rules {
			if next, changed := rule.Rewrite(text); changed {
				text = next
				dirty = true
			}
		}
		if !dirty {
			return text, nil
		}
	}
	log.Warningf("rules still changing text after %d passes; check for cycles", e.limit)
	return text, nil
}
