package rules

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

type arrowSyntax struct{}

func (arrowSyntax) Match(line string) bool {
	return strings.Contains(line, "=>")
}

func (arrowSyntax) Compile(line string) (Rule, error) {
	from, to, _ := strings.Cut(line, "=>")
	from = strings.TrimSpace(from)
	if from == "" {
		return nil, errors.New("literal rule needs text before =>")
	}
	re := regexp.MustCompile("(?i)" + regexp.QuoteMeta(from))
	return patternRule{re: re, replacement: strings.TrimSpace(to), literal: true, global: true}, nil
}

type sedSyntax struct{}

// Match accepts "s" followed by a punctuation delimiter.
func (sedSyntax) Match(line string) bool {
	if !strings.HasPrefix(line, "s") {
		return false
	}
	delim, size := utf8.DecodeRuneInString(line[1:])
	return size > 0 && isDelimiter(delim)
}

func (sedSyntax) Compile(line string) (Rule, error) {
	delim, size := utf8.DecodeRuneInString(line[1:])
	fields, rest, err := splitDelimited(line[1+size:], delim, 2)
	if err != nil {
		return nil, err
	}

	rule := patternRule{replacement: fields[1]}
	caseless := true
	var inline string
	for _, flag := range strings.TrimSpace(rest) {
		switch flag {
		case 'g':
			rule.global = true
		case 'i':
			caseless = true
		case 'I':
			caseless = false
		case 'm', 's':
			inline += string(flag)
		default:
			return nil, fmt.Errorf("unknown regex flag %q", flag)
		}
	}
	if caseless {
		inline = "i" + inline
	}

	pattern := fields[0]
	if inline != "" {
		pattern = "(?" + inline + ")" + pattern
	}
	rule.re, err = regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("bad pattern: %w", err)
	}
	return rule, nil
}

func isDelimiter(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) && r != '\\'
}

// splitDelimited reads n fields terminated by delim. A backslash escapes the
// delimiter; other escapes are kept for the regex engine.
func splitDelimited(input string, delim rune, n int) ([]string, string, error) {
	fields := make([]string, 0, n)
	var field strings.Builder
	escaped := false
	for i, r := range input {
		switch {
		case escaped:
			if r != delim {
				field.WriteRune('\\')
			}
			field.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == delim:
			fields = append(fields, field.String())
			field.Reset()
			if len(fields) == n {
				return fields, input[i+utf8.RuneLen(r):], nil
			}
		default:
			field.WriteRune(r)
		}
	}
	return nil, "", fmt.Errorf("expected %d %q-terminated fields", n, delim)
}

// patternRule replaces the first match, or every match when global.
type patternRule struct {
	re          *regexp.Regexp
	replacement string
	global      bool
	literal     bool
}

func (r patternRule) Rewrite(text string) (string, bool) {
	var out string
	switch {
	case r.global && r.literal:
		out = r.re.ReplaceAllLiteralString(text, r.replacement)
	case r.global:
		out = r.re.ReplaceAllString(text, r.replacement)
	default:
		loc := r.re.FindStringSubmatchIndex(text)
		if loc == nil {
			return text, false
		}
		expanded := r.re.ExpandString(nil, r.replacement, text, loc)
		out = text[:loc[0]] + string(expanded) + text[loc[1]:]
	}
	return out, out != text
}
