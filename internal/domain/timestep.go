package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Timestep identifies one analysis time as UTC unix seconds.
type Timestep int64

// timestepLayouts are tried in order by ParseTimestep.
var timestepLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02",
}

// TimestepOf truncates t to whole seconds in UTC.
func TimestepOf(t time.Time) Timestep {
	return Timestep(t.UTC().Unix())
}

// Time returns the timestep as a UTC time.
func (t Timestep) Time() time.Time {
	return time.Unix(int64(t), 0).UTC()
}

func (t Timestep) String() string {
	return t.Time().Format("2006-01-02 15:04:05")
}

// ParseTimestep parses an ISO timestamp or a TempestExtremes
// "YYYY-MM-DD-SSSSS" timestamp.
func ParseTimestep(s string) (Timestep, error) {
	s = strings.TrimSpace(s)
	if ts, ok := parseTempestTime(s); ok {
		return ts, nil
	}
	for _, layout := range timestepLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return TimestepOf(t), nil
		}
	}
	return 0, fmt.Errorf("parse timestep %q: unrecognized format", s)
}

// parseTempestTime handles "2020-01-01-21600" (date plus seconds of day).
func parseTempestTime(s string) (Timestep, bool) {
	if len(s) != 16 || s[10] != '-' {
		return 0, false
	}
	day, err := time.ParseInLocation("2006-01-02", s[:10], time.UTC)
	if err != nil {
		return 0, false
	}
	secs, err := strconv.Atoi(s[11:])
	if err != nil || secs < 0 || secs >= 86400 {
		return 0, false
	}
	return TimestepOf(day.Add(time.Duration(secs) * time.Second)), true
}
