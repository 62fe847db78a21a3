package netcdf

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
)

var cfUnits = map[string]time.Duration{
	"seconds": time.Second,
	"second":  time.Second,
	"secs":    time.Second,
	"s":       time.Second,
	"minutes": time.Minute,
	"minute":  time.Minute,
	"mins":    time.Minute,
	"hours":   time.Hour,
	"hour":    time.Hour,
	"hrs":     time.Hour,
	"h":       time.Hour,
	"days":    24 * time.Hour,
	"day":     24 * time.Hour,
	"d":       24 * time.Hour,
}

var cfEpochLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02T15:04:05Z",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006-1-2 15:04:05",
	"2006-1-2 15:04",
	"2006-1-2",
}

// cfTime decodes offsets expressed in CF "<unit> since <epoch>" units.
type cfTime struct {
	step  time.Duration
	epoch time.Time
}

func parseCFUnits(units, calendar string) (cfTime, error) {
	switch strings.ToLower(calendar) {
	case "", "standard", "gregorian", "proleptic_gregorian":
	default:
		return cfTime{}, fmt.Errorf("unsupported calendar %q", calendar)
	}

	unit, since, ok := strings.Cut(strings.TrimSpace(units), " since ")
	if !ok {
		return cfTime{}, fmt.Errorf("time units %q: want \"<unit> since <date>\"", units)
	}
	step, ok := cfUnits[strings.ToLower(strings.TrimSpace(unit))]
	if !ok {
		return cfTime{}, fmt.Errorf("time units %q: unknown unit %q", units, unit)
	}

	since = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(since), "UTC"))
	// Some writers append a fractional second: "1900-01-01 00:00:00.0".
	if i := strings.LastIndex(since, "."); i > strings.LastIndex(since, ":") && i > 0 {
		since = since[:i]
	}
	for _, layout := range cfEpochLayouts {
		if t, err := time.ParseInLocation(layout, since, time.UTC); err == nil {
			return cfTime{step: step, epoch: t}, nil
		}
	}
	return cfTime{}, fmt.Errorf("time units %q: unparseable epoch %q", units, since)
}

// maxCFSeconds bounds decoded offsets to roughly ±292 billion years, well
// inside int64 seconds.
const maxCFSeconds = 1 << 62

// Offsets are computed in whole seconds; a time.Duration would overflow for
// epochs more than about 292 years from the data.
func (c cfTime) decode(v float64) (domain.Timestep, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("non-finite time value %v", v)
	}
	secs := math.Round(v * c.step.Seconds())
	if math.Abs(secs) >= maxCFSeconds {
		return 0, fmt.Errorf("time value %v out of range", v)
	}
	return domain.Timestep(c.epoch.Unix() + int64(secs)), nil
}

func (c cfTime) encode(ts domain.Timestep) float64 {
	return float64(int64(ts)-c.epoch.Unix()) / c.step.Seconds()
}
