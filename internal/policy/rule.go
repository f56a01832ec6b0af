// Package policy classifies chat text against a set of prohibited literals and
// obfuscation patterns.
package policy

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"golang.org/x/text/cases"
)

// RuleKind distinguishes literal terms from regular-expression rules.
type RuleKind int

const (
	// Literal rules match as case-insensitive substrings.
	Literal RuleKind = iota
	// Pattern rules are case-insensitive regular expressions aimed at
	// obfuscated spellings (look-alike symbols, injected whitespace).
	Pattern
)

func (k RuleKind) String() string {
	switch k {
	case Literal:
		return "literal"
	case Pattern:
		return "pattern"
	default:
		return fmt.Sprintf("RuleKind(%d)", int(k))
	}
}

var (
	// ErrInvalidPattern is returned when a pattern rule does not compile or
	// would match empty input.
	ErrInvalidPattern = errors.New("invalid pattern")
	// ErrEmptyLiteral is returned for blank literal rules.
	ErrEmptyLiteral = errors.New("empty literal")
)

// Rule is one unit of prohibited content.
type Rule struct {
	Kind RuleKind
	// Text is the folded literal for Literal rules and the source expression
	// for Pattern rules.
	Text string

	re *regexp.Regexp
}

// NewLiteral builds a literal rule. The term is case-folded once here so
// evaluation only folds the message.
func NewLiteral(term string) (Rule, error) {
	if strings.TrimSpace(term) == "" {
		return Rule{}, ErrEmptyLiteral
	}
	return Rule{Kind: Literal, Text: fold(term)}, nil
}

// NewPattern compiles a pattern rule case-insensitively.
func NewPattern(expr string) (Rule, error) {
	re, err := regexp.Compile("(?i)" + expr)
	if err != nil {
		return Rule{}, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, expr, err)
	}
	if re.MatchString("") {
		return Rule{}, fmt.Errorf("%w: %q matches empty text", ErrInvalidPattern, expr)
	}
	return Rule{Kind: Pattern, Text: expr, re: re}, nil
}

// MustLiteral is like NewLiteral but panics on error. Intended for
// package-level rule tables.
func MustLiteral(term string) Rule {
	r, err := NewLiteral(term)
	if err != nil {
		panic(err)
	}
	return r
}

// MustPattern is like NewPattern but panics on error.
func MustPattern(expr string) Rule {
	r, err := NewPattern(expr)
	if err != nil {
		panic(err)
	}
	return r
}

// fold applies Unicode case folding. A Caser carries state, so one is built
// per call instead of being shared between goroutines.
func fold(s string) string {
	return cases.Fold().String(s)
}
