package domain

import (
	"errors"
	"fmt"
)

// ErrAmbiguousRemap is returned when one raster value is claimed by two
// label groups with different codes.
var ErrAmbiguousRemap = errors.New("raster value claimed by more than one label")

// MissingColumnError reports a required column absent from an input table.
type MissingColumnError struct {
	Table  string
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("%s: missing required column %q", e.Table, e.Column)
}

// TimestepError wraps a failure while matching a single timestep.
type TimestepError struct {
	Timestep Timestep
	Err      error
}

func (e *TimestepError) Error() string {
	return fmt.Sprintf("timestep %s: %v", e.Timestep, e.Err)
}

func (e *TimestepError) Unwrap() error {
	return e.Err
}

// CoverageError reports a positive raster value that no label group covers.
type CoverageError struct {
	File     string
	Timestep Timestep
	Value    int32
}

func (e *CoverageError) Error() string {
	return fmt.Sprintf("%s at %s: raster value %d is not covered by any label group", e.File, e.Timestep, e.Value)
}
