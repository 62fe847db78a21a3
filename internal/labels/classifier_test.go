package labels_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
	"github.com/couchcryptid/storm-data-blobtag/internal/labels"
)

func nodeWith(short, info string) domain.TrackNode {
	return domain.TrackNode{ShortLabel: short, TrackInfo: info}
}

func TestClassifier_DefaultScheme(t *testing.T) {
	c, err := labels.NewClassifier(labels.DefaultScheme())
	require.NoError(t, err)

	tests := []struct {
		name  string
		node  domain.TrackNode
		label string
		code  int32
	}{
		{"tropical cyclone", nodeWith("TC", "TC"), "TC", 1},
		{"TC short label without TC track", nodeWith("TC", "EX"), "other", 5},
		{"tropical low in monsoon track", nodeWith("TLO", "MS"), "MS", 2},
		{"tropical depression in monsoon track", nodeWith("TD", "TC;MS"), "MS", 2},
		{"subtropical storm", nodeWith("SS(STLC)", "SS"), "SS", 3},
		{"polar low", nodeWith("PL(PTLC)", "PL"), "PL", 4},
		{"extratropical cyclone", nodeWith("EX", "EX"), "other", 5},
		{"empty fields", nodeWith("", ""), "other", 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Label(tt.node)
			assert.Equal(t, tt.label, got.Name)
			assert.Equal(t, tt.code, got.Code)
		})
	}
}

func TestClassifier_Precedence(t *testing.T) {
	// An extra leading rule makes TD/MS nodes match both TC and MS.
	s := labels.DefaultScheme()
	s.Rules = append([]labels.Rule{{
		Label: "TC",
		When:  []labels.Condition{{Field: labels.FieldShortLabel, Equals: "TD"}},
	}}, s.Rules...)
	n := nodeWith("TD", "MS")

	last, err := labels.NewClassifier(s)
	require.NoError(t, err)
	assert.Equal(t, "MS", last.Label(n).Name)

	s.Precedence = labels.FirstMatch
	first, err := labels.NewClassifier(s)
	require.NoError(t, err)
	assert.Equal(t, "TC", first.Label(n).Name)
}

func TestClassifier_Classify(t *testing.T) {
	c, err := labels.NewClassifier(labels.DefaultScheme())
	require.NoError(t, err)

	got := c.Classify([]domain.TrackNode{nodeWith("TC", "TC"), nodeWith("EX", "")})
	require.Len(t, got, 2)
	assert.Equal(t, int32(1), got[0].Code)
	assert.Equal(t, int32(5), got[1].Code)
	assert.Equal(t, "background", c.Background().Name)
}

func TestScheme_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*labels.Scheme)
		wantErr string
	}{
		{"default is valid", func(*labels.Scheme) {}, ""},
		{"unknown precedence", func(s *labels.Scheme) { s.Precedence = "random" }, "unknown label precedence"},
		{"duplicate code", func(s *labels.Scheme) { s.Labels[1].Code = 1 }, "share code 1"},
		{"background code collides", func(s *labels.Scheme) { s.Background.Code = 5 }, "share code 5"},
		{"duplicate name", func(s *labels.Scheme) { s.Default.Name = "TC" }, "duplicate label name"},
		{"unknown rule label", func(s *labels.Scheme) { s.Rules[0].Label = "XX" }, "unknown label \"XX\""},
		{"rule assigns background", func(s *labels.Scheme) { s.Rules[0].Label = "background" }, "background label"},
		{"rule without conditions", func(s *labels.Scheme) { s.Rules[0].When = nil }, "no conditions"},
		{"condition with two tests", func(s *labels.Scheme) { s.Rules[0].When[0].Contains = "T" }, "exactly one"},
		{"unknown field", func(s *labels.Scheme) { s.Rules[0].When[0].Field = "basin" }, "unknown field"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := labels.DefaultScheme()
			tt.mutate(&s)
			err := s.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestScheme_Set(t *testing.T) {
	set := labels.DefaultScheme().Set()
	codes := make([]int32, len(set))
	for i, l := range set {
		codes[i] = l.Code
	}
	assert.Equal(t, []int32{0, 1, 2, 3, 4, 5}, codes)
}

func TestScheme_YAML(t *testing.T) {
	doc := `
precedence: first-match
background: {name: none, code: 0}
default: {name: other, code: 9}
labels:
  - {name: TC, code: 1}
rules:
  - label: TC
    when:
      - {field: short_label, contains_any: [TC, TD]}
`
	var s labels.Scheme
	require.NoError(t, yaml.Unmarshal([]byte(doc), &s))
	c, err := labels.NewClassifier(s)
	require.NoError(t, err)

	assert.Equal(t, "TC", c.Label(nodeWith("TD", "")).Name)
	assert.Equal(t, int32(9), c.Label(nodeWith("EX", "")).Code)
}
