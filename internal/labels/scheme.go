// Package labels assigns category labels to track nodes from an ordered list
// of rules over the classifier's short label and track info.
package labels

import (
	"errors"
	"fmt"
	"strings"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
)

// Precedence decides which rule wins when several match one node.
type Precedence string

const (
	// LastMatch lets later rules override earlier ones.
	LastMatch Precedence = "last-match"
	// FirstMatch stops at the first rule that matches.
	FirstMatch Precedence = "first-match"
)

// Field names a node attribute a Condition tests.
type Field string

const (
	FieldShortLabel Field = "short_label"
	FieldTrackInfo  Field = "track_info"
)

// Condition is a single string test against one node field. Exactly one of
// Equals, Contains or ContainsAny is set.
type Condition struct {
	Field       Field    `yaml:"field"`
	Equals      string   `yaml:"equals,omitempty"`
	Contains    string   `yaml:"contains,omitempty"`
	ContainsAny []string `yaml:"contains_any,omitempty"`
}

// Rule assigns Label to nodes that satisfy every condition in When.
type Rule struct {
	Label string      `yaml:"label"`
	When  []Condition `yaml:"when"`
}

// Scheme is a complete label configuration: the label set, the rules that
// select among them, and how rule conflicts resolve.
type Scheme struct {
	Precedence Precedence     `yaml:"precedence"`
	Background domain.Label   `yaml:"background"`
	Default    domain.Label   `yaml:"default"`
	Labels     []domain.Label `yaml:"labels"`
	Rules      []Rule         `yaml:"rules"`
}

// DefaultScheme returns the standard LPS tagging scheme: tropical cyclones,
// monsoonal systems, subtropical storms and polar lows, with every other
// paired node tagged "other".
func DefaultScheme() Scheme {
	return Scheme{
		Precedence: LastMatch,
		Background: domain.Label{Name: "background", Code: 0},
		Default:    domain.Label{Name: "other", Code: 5},
		Labels: []domain.Label{
			{Name: "TC", Code: 1},
			{Name: "MS", Code: 2},
			{Name: "SS", Code: 3},
			{Name: "PL", Code: 4},
		},
		Rules: []Rule{
			{Label: "TC", When: []Condition{
				{Field: FieldShortLabel, Equals: "TC"},
				{Field: FieldTrackInfo, Contains: "TC"},
			}},
			{Label: "MS", When: []Condition{
				{Field: FieldShortLabel, ContainsAny: []string{"TLO", "TD"}},
				{Field: FieldTrackInfo, Contains: "MS"},
			}},
			{Label: "SS", When: []Condition{
				{Field: FieldShortLabel, Equals: "SS(STLC)"},
				{Field: FieldTrackInfo, Contains: "SS"},
			}},
			{Label: "PL", When: []Condition{
				{Field: FieldShortLabel, Equals: "PL(PTLC)"},
				{Field: FieldTrackInfo, Contains: "PL"},
			}},
		},
	}
}

// Set returns every label a blob can carry: background, the declared
// labels in order, then the default.
func (s Scheme) Set() []domain.Label {
	out := make([]domain.Label, 0, len(s.Labels)+2)
	out = append(out, s.Background)
	out = append(out, s.Labels...)
	out = append(out, s.Default)
	return out
}

// Validate checks that label names and codes are unique across the whole set
// and that every rule is well formed.
func (s Scheme) Validate() error {
	switch s.Precedence {
	case LastMatch, FirstMatch:
	default:
		return fmt.Errorf("unknown label precedence %q", s.Precedence)
	}

	names := make(map[string]bool)
	codes := make(map[int32]string)
	for _, l := range s.Set() {
		if l.Name == "" {
			return fmt.Errorf("label with code %d has no name", l.Code)
		}
		if names[l.Name] {
			return fmt.Errorf("duplicate label name %q", l.Name)
		}
		if other, ok := codes[l.Code]; ok {
			return fmt.Errorf("labels %q and %q share code %d", other, l.Name, l.Code)
		}
		names[l.Name] = true
		codes[l.Code] = l.Name
	}

	var errs []error
	for i, r := range s.Rules {
		if r.Label == s.Background.Name {
			errs = append(errs, fmt.Errorf("rule %d: background label cannot be assigned by a rule", i))
		} else if !names[r.Label] {
			errs = append(errs, fmt.Errorf("rule %d: unknown label %q", i, r.Label))
		}
		if len(r.When) == 0 {
			errs = append(errs, fmt.Errorf("rule %d (%s): no conditions", i, r.Label))
		}
		for j, c := range r.When {
			if err := c.validate(); err != nil {
				errs = append(errs, fmt.Errorf("rule %d (%s) condition %d: %w", i, r.Label, j, err))
			}
		}
	}
	return errors.Join(errs...)
}

func (c Condition) validate() error {
	switch c.Field {
	case FieldShortLabel, FieldTrackInfo:
	default:
		return fmt.Errorf("unknown field %q", c.Field)
	}
	set := 0
	if c.Equals != "" {
		set++
	}
	if c.Contains != "" {
		set++
	}
	if len(c.ContainsAny) > 0 {
		set++
	}
	if set != 1 {
		return errors.New("exactly one of equals, contains, contains_any must be set")
	}
	return nil
}

func (c Condition) matches(n domain.TrackNode) bool {
	v := n.ShortLabel
	if c.Field == FieldTrackInfo {
		v = n.TrackInfo
	}
	switch {
	case c.Equals != "":
		return v == c.Equals
	case c.Contains != "":
		return strings.Contains(v, c.Contains)
	default:
		for _, s := range c.ContainsAny {
			if strings.Contains(v, s) {
				return true
			}
		}
		return false
	}
}
