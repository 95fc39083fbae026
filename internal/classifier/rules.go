// Package classifier maps POS lines onto a fixed vocabulary of report
// categories using a prioritised rule set: PLU codes first, then name
// patterns in declaration order.
package classifier

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/chrisdamba/salescount/internal/models"
	"github.com/hashicorp/go-multierror"
)

var ErrInvalidRuleSet = errors.New("invalid rule set")

// Unclassified is returned alongside ok=false when no rule matches.
const Unclassified = ""

const (
	MatchContains = "contains"
	MatchRegex    = "regex"

	AppliesToItem     = "item"
	AppliesToModifier = "modifier"
	AppliesToAny      = "any"
)

type CodeMapping struct {
	Category string   `mapstructure:"category" json:"category"`
	Codes    []string `mapstructure:"codes" json:"codes"`
}

type PatternSpec struct {
	Category      string `mapstructure:"category" json:"category"`
	Match         string `mapstructure:"match" json:"match"`
	Pattern       string `mapstructure:"pattern" json:"pattern"`
	ParentPattern string `mapstructure:"parent_pattern" json:"parent_pattern,omitempty"`
	AppliesTo     string `mapstructure:"applies_to" json:"applies_to"`
}

// Spec is the data form of a rule set, as loaded from a file, a mapping
// sheet or a remote endpoint.
type Spec struct {
	Categories []string      `mapstructure:"categories" json:"categories"`
	Codes      []CodeMapping `mapstructure:"codes" json:"codes"`
	Patterns   []PatternSpec `mapstructure:"patterns" json:"patterns"`
}

type matcher interface {
	MatchString(s string) bool
}

type containsMatcher string

func (c containsMatcher) MatchString(s string) bool {
	return strings.Contains(strings.ToLower(s), string(c))
}

type patternRule struct {
	category  string
	name      matcher
	parent    matcher
	appliesTo string
}

// RuleSet is immutable once built and safe to share between goroutines.
type RuleSet struct {
	categories []string
	codes      map[string]string
	patterns   []patternRule
}

// New validates spec and compiles it. Every problem found is reported in
// the returned error, which wraps ErrInvalidRuleSet.
func New(spec Spec) (*RuleSet, error) {
	var result *multierror.Error

	rs := &RuleSet{codes: make(map[string]string)}
	known := make(map[string]bool)
	for _, c := range spec.Categories {
		c = strings.TrimSpace(c)
		switch {
		case c == "":
			result = multierror.Append(result, errors.New("empty category name"))
			continue
		case known[c]:
			result = multierror.Append(result, fmt.Errorf("duplicate category %q", c))
			continue
		}
		known[c] = true
		rs.categories = append(rs.categories, c)
	}
	if len(rs.categories) == 0 {
		result = multierror.Append(result, errors.New("no categories defined"))
	}

	for _, m := range spec.Codes {
		category := strings.TrimSpace(m.Category)
		if !known[category] {
			result = multierror.Append(result, fmt.Errorf("code mapping references unknown category %q", m.Category))
			continue
		}
		for _, code := range m.Codes {
			code = strings.TrimSpace(code)
			if code == "" {
				continue
			}
			if prev, ok := rs.codes[code]; ok && prev != category {
				result = multierror.Append(result, fmt.Errorf("code %s mapped to both %q and %q", code, prev, category))
				continue
			}
			rs.codes[code] = category
		}
	}

	for i, p := range spec.Patterns {
		rule, err := compilePattern(p, known)
		if err != nil {
			result = multierror.Append(result, fmt.Errorf("pattern %d: %w", i+1, err))
			continue
		}
		rs.patterns = append(rs.patterns, rule)
	}

	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRuleSet, err)
	}
	return rs, nil
}

func compilePattern(p PatternSpec, known map[string]bool) (patternRule, error) {
	category := strings.TrimSpace(p.Category)
	if !known[category] {
		return patternRule{}, fmt.Errorf("unknown category %q", p.Category)
	}
	if strings.TrimSpace(p.Pattern) == "" {
		return patternRule{}, errors.New("empty pattern")
	}

	appliesTo := strings.ToLower(strings.TrimSpace(p.AppliesTo))
	switch appliesTo {
	case "":
		appliesTo = AppliesToAny
	case AppliesToItem, AppliesToModifier, AppliesToAny:
	default:
		return patternRule{}, fmt.Errorf("unknown applies_to %q", p.AppliesTo)
	}

	name, err := compileMatcher(p.Match, p.Pattern)
	if err != nil {
		return patternRule{}, err
	}
	rule := patternRule{category: category, name: name, appliesTo: appliesTo}
	if strings.TrimSpace(p.ParentPattern) != "" {
		if rule.parent, err = compileMatcher(p.Match, p.ParentPattern); err != nil {
			return patternRule{}, err
		}
	}
	return rule, nil
}

func compileMatcher(kind, pattern string) (matcher, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "", MatchContains:
		return containsMatcher(strings.ToLower(pattern)), nil
	case MatchRegex:
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("bad regex %q: %w", pattern, err)
		}
		return re, nil
	}
	return nil, fmt.Errorf("unknown match type %q", kind)
}

// Categories returns the category vocabulary in report column order.
func (rs *RuleSet) Categories() []string {
	out := make([]string, len(rs.categories))
	copy(out, rs.categories)
	return out
}

// Classify returns the category of line, or Unclassified and false.
// Callers filter voided lines before classifying.
func (rs *RuleSet) Classify(line models.RawLine, kind models.LineKind) (string, bool) {
	if code := strings.TrimSpace(line.Code); code != "" {
		if category, ok := rs.codes[code]; ok {
			return category, true
		}
	}

	for _, rule := range rs.patterns {
		if !rule.applies(kind) {
			continue
		}
		if !rule.name.MatchString(line.DisplayName) {
			continue
		}
		if rule.parent != nil && !rule.parent.MatchString(line.ParentName) {
			continue
		}
		return rule.category, true
	}
	return Unclassified, false
}

func (r patternRule) applies(kind models.LineKind) bool {
	switch r.appliesTo {
	case AppliesToItem:
		return kind == models.LineKindItem
	case AppliesToModifier:
		return kind == models.LineKindModifier
	}
	return true
}
