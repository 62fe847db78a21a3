package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTimestep(t *testing.T) {
	want := TimestepOf(time.Date(2020, time.January, 1, 6, 0, 0, 0, time.UTC))

	cases := []struct {
		name  string
		input string
	}{
		{"iso with space", "2020-01-01 06:00:00"},
		{"iso with T", "2020-01-01T06:00:00"},
		{"rfc3339", "2020-01-01T06:00:00Z"},
		{"rfc3339 offset", "2020-01-01T08:00:00+02:00"},
		{"minutes only", "2020-01-01 06:00"},
		{"tempest seconds of day", "2020-01-01-21600"},
		{"surrounding whitespace", "  2020-01-01 06:00:00\t"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParseTimestep(tc.input)
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestParseTimestep_Invalid(t *testing.T) {
	for _, input := range []string{"", "yesterday", "2020-01-01-99999", "2020-13-01 00:00:00"} {
		_, err := ParseTimestep(input)
		assert.Error(t, err, input)
	}
}

func TestTimestep_String(t *testing.T) {
	ts := TimestepOf(time.Date(1999, time.December, 31, 18, 0, 0, 0, time.UTC))
	assert.Equal(t, "1999-12-31 18:00:00", ts.String())
	assert.Equal(t, 1999, ts.Time().Year())
}
