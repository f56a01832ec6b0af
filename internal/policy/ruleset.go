package policy

import (
	"regexp"
	"sort"
	"strings"
)

// RuleSet is an immutable collection of rules. Methods that extend it return
// a new value and leave the receiver untouched, so a RuleSet can be shared by
// any number of concurrent evaluators.
type RuleSet struct {
	literals []string
	patterns []*regexp.Regexp
}

// NewRuleSet builds a RuleSet from rules. Duplicate literals and duplicate
// pattern expressions are collapsed.
func NewRuleSet(rules ...Rule) *RuleSet {
	return (&RuleSet{}).With(rules...)
}

// With returns a copy of rs extended with rules.
func (rs *RuleSet) With(rules ...Rule) *RuleSet {
	next := &RuleSet{}
	if rs != nil {
		next.literals = append([]string(nil), rs.literals...)
		next.patterns = append([]*regexp.Regexp(nil), rs.patterns...)
	}

	seenLit := make(map[string]struct{}, len(next.literals))
	for _, l := range next.literals {
		seenLit[l] = struct{}{}
	}
	seenPat := make(map[string]struct{}, len(next.patterns))
	for _, p := range next.patterns {
		seenPat[p.String()] = struct{}{}
	}

	for _, r := range rules {
		switch r.Kind {
		case Literal:
			if r.Text == "" {
				continue
			}
			if _, ok := seenLit[r.Text]; ok {
				continue
			}
			seenLit[r.Text] = struct{}{}
			next.literals = append(next.literals, r.Text)
		case Pattern:
			if r.re == nil {
				continue
			}
			if _, ok := seenPat[r.re.String()]; ok {
				continue
			}
			seenPat[r.re.String()] = struct{}{}
			next.patterns = append(next.patterns, r.re)
		}
	}

	sort.Strings(next.literals)
	return next
}

// LiteralCount returns the number of distinct literal rules.
func (rs *RuleSet) LiteralCount() int {
	if rs == nil {
		return 0
	}
	return len(rs.literals)
}

// Literals returns a copy of the folded literal terms, sorted.
func (rs *RuleSet) Literals() []string {
	if rs == nil {
		return nil
	}
	return append([]string(nil), rs.literals...)
}

// Patterns returns the source expressions of the pattern rules without the
// case-insensitivity flag, in registration order.
func (rs *RuleSet) Patterns() []string {
	if rs == nil {
		return nil
	}
	out := make([]string, 0, len(rs.patterns))
	for _, p := range rs.patterns {
		out = append(out, strings.TrimPrefix(p.String(), "(?i)"))
	}
	return out
}

func (rs *RuleSet) containsViolation(text string) bool {
	folded := fold(text)
	for _, l := range rs.literals {
		if strings.Contains(folded, l) {
			return true
		}
	}
	for _, p := range rs.patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func (rs *RuleSet) findMatches(text string) []string {
	found := make(map[string]struct{})

	folded := fold(text)
	for _, l := range rs.literals {
		if strings.Contains(folded, l) {
			found[l] = struct{}{}
		}
	}
	for _, p := range rs.patterns {
		for _, m := range p.FindAllString(text, -1) {
			found[m] = struct{}{}
		}
	}

	out := make([]string, 0, len(found))
	for term := range found {
		out = append(out, term)
	}
	sort.Strings(out)
	return out
}
