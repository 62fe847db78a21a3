package netcdf

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCFUnits(t *testing.T) {
	tests := []struct {
		units string
		value float64
		want  string
	}{
		{"hours since 1900-01-01 00:00:00.0", 1054920, "2020-05-06 00:00:00"},
		{"hours since 1970-01-01", 6, "1970-01-01 06:00:00"},
		{"days since 2000-01-01 00:00:00", 1.25, "2000-01-02 06:00:00"},
		{"seconds since 2020-01-01T00:00:00Z", 21600, "2020-01-01 06:00:00"},
		{"minutes since 1979-1-1 00:00:00", 90, "1979-01-01 01:30:00"},
		{"days since 0001-01-01 00:00:00", 737424, "2020-01-01 00:00:00"},
		{"hours since 1800-01-01", 1937712, "2021-01-20 00:00:00"},
	}
	for _, tt := range tests {
		t.Run(tt.units, func(t *testing.T) {
			cf, err := parseCFUnits(tt.units, "gregorian")
			require.NoError(t, err)
			ts, err := cf.decode(tt.value)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ts.String())
			assert.InDelta(t, tt.value, cf.encode(ts), 1e-9)
		})
	}
}

func TestParseCFUnits_Invalid(t *testing.T) {
	tests := []struct {
		name     string
		units    string
		calendar string
	}{
		{"no since", "hours", ""},
		{"bad unit", "fortnights since 2000-01-01", ""},
		{"bad epoch", "hours since yesterday", ""},
		{"noleap calendar", "hours since 2000-01-01", "noleap"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseCFUnits(tt.units, tt.calendar)
			assert.Error(t, err)
		})
	}
}

func TestDecode_NonFinite(t *testing.T) {
	cf, err := parseCFUnits("hours since 1970-01-01", "")
	require.NoError(t, err)
	_, err = cf.decode(math.NaN())
	assert.Error(t, err)
}

func TestDecode_OutOfRange(t *testing.T) {
	cf, err := parseCFUnits("days since 1970-01-01", "")
	require.NoError(t, err)
	_, err = cf.decode(1e300)
	assert.Error(t, err)
}
