package policy

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the on-disk shape of an extra rules file:
//
//	words:
//	  - spam
//	patterns:
//	  - 'с\s*п\s*а\s*м'
type File struct {
	Words    []string `yaml:"words"`
	Patterns []string `yaml:"patterns"`
}

// ParseRules decodes a rules document and validates every entry. The whole
// document is rejected on the first invalid rule.
func ParseRules(r io.Reader) ([]Rule, error) {
	var f File
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decode rules: %w", err)
	}

	rules := make([]Rule, 0, len(f.Words)+len(f.Patterns))
	for i, w := range f.Words {
		rule, err := NewLiteral(w)
		if err != nil {
			return nil, fmt.Errorf("words[%d]: %w", i, err)
		}
		rules = append(rules, rule)
	}
	for i, p := range f.Patterns {
		rule, err := NewPattern(p)
		if err != nil {
			return nil, fmt.Errorf("patterns[%d]: %w", i, err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

// LoadFile reads extra rules from path. An empty path yields no rules.
func LoadFile(path string) ([]Rule, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	return ParseRules(f)
}
