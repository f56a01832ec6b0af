package policy

import (
	"sync/atomic"
)

// Verdict is the classification result for one message.
type Verdict struct {
	Violates     bool     `json:"violates"`
	MatchedTerms []string `json:"matched_terms"`
}

// Matcher evaluates text against the current RuleSet. Evaluation is lock-free;
// mutations build a new RuleSet and swap it in, so a call that already loaded
// the previous set finishes against it.
type Matcher struct {
	rules atomic.Pointer[RuleSet]
}

// NewMatcher returns a Matcher over the baseline rules plus extra.
func NewMatcher(extra ...Rule) *Matcher {
	return NewMatcherWithRules(Baseline().With(extra...))
}

// NewMatcherWithRules returns a Matcher over exactly rs.
func NewMatcherWithRules(rs *RuleSet) *Matcher {
	if rs == nil {
		rs = NewRuleSet()
	}
	m := &Matcher{}
	m.rules.Store(rs)
	return m
}

// Rules returns the RuleSet currently in effect.
func (m *Matcher) Rules() *RuleSet {
	return m.rules.Load()
}

// Replace swaps in rs as the current RuleSet.
func (m *Matcher) Replace(rs *RuleSet) {
	if rs == nil {
		rs = NewRuleSet()
	}
	m.rules.Store(rs)
}

// ContainsViolation reports whether text triggers any rule. Empty text is
// always clean.
func (m *Matcher) ContainsViolation(text string) bool {
	if text == "" {
		return false
	}
	return m.rules.Load().containsViolation(text)
}

// FindMatches returns every literal and pattern hit in text, deduplicated and
// sorted. Literal hits are reported as the folded literal, pattern hits as the
// matched substring of text. The result is non-empty exactly when
// ContainsViolation(text) is true.
func (m *Matcher) FindMatches(text string) []string {
	if text == "" {
		return []string{}
	}
	return m.rules.Load().findMatches(text)
}

// Evaluate classifies text and explains the decision.
func (m *Matcher) Evaluate(text string) Verdict {
	terms := m.FindMatches(text)
	return Verdict{Violates: len(terms) > 0, MatchedTerms: terms}
}

// AddRule extends the current RuleSet with r for all subsequent calls.
func (m *Matcher) AddRule(r Rule) {
	for {
		cur := m.rules.Load()
		if m.rules.CompareAndSwap(cur, cur.With(r)) {
			return
		}
	}
}

// AddWord registers a literal rule.
func (m *Matcher) AddWord(word string) error {
	r, err := NewLiteral(word)
	if err != nil {
		return err
	}
	m.AddRule(r)
	return nil
}

// AddPattern compiles and registers a pattern rule. A malformed expression is
// rejected here and leaves the RuleSet unchanged.
func (m *Matcher) AddPattern(expr string) error {
	r, err := NewPattern(expr)
	if err != nil {
		return err
	}
	m.AddRule(r)
	return nil
}
