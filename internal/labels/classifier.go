package labels

import (
	"fmt"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
)

type compiledRule struct {
	label domain.Label
	when  []Condition
}

// Classifier maps nodes to labels under a validated Scheme.
type Classifier struct {
	scheme Scheme
	rules  []compiledRule
}

// NewClassifier validates s and resolves its rules.
func NewClassifier(s Scheme) (*Classifier, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("label scheme: %w", err)
	}
	byName := make(map[string]domain.Label)
	for _, l := range s.Set() {
		byName[l.Name] = l
	}
	c := &Classifier{scheme: s, rules: make([]compiledRule, len(s.Rules))}
	for i, r := range s.Rules {
		c.rules[i] = compiledRule{label: byName[r.Label], when: r.When}
	}
	return c, nil
}

// Scheme returns the scheme the classifier was built from.
func (c *Classifier) Scheme() Scheme {
	return c.scheme
}

// Background is the label carried by unpaired blobs.
func (c *Classifier) Background() domain.Label {
	return c.scheme.Background
}

// Label returns the label for one node. Nodes no rule matches get the
// scheme's default label.
func (c *Classifier) Label(n domain.TrackNode) domain.Label {
	out := c.scheme.Default
	for _, r := range c.rules {
		if !r.matches(n) {
			continue
		}
		out = r.label
		if c.scheme.Precedence == FirstMatch {
			break
		}
	}
	return out
}

// Classify labels every node; the result is indexed like nodes.
func (c *Classifier) Classify(nodes []domain.TrackNode) []domain.Label {
	out := make([]domain.Label, len(nodes))
	for i := range nodes {
		out[i] = c.Label(nodes[i])
	}
	return out
}

func (r compiledRule) matches(n domain.TrackNode) bool {
	for _, cond := range r.when {
		if !cond.matches(n) {
			return false
		}
	}
	return true
}
