package raster

import (
	"fmt"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
)

// Partitioner assigns a time slice to an output partition key.
type Partitioner func(domain.Timestep) string

// ByYear writes one output per calendar year.
func ByYear(ts domain.Timestep) string {
	return ts.Time().Format("2006")
}

// ByMonth writes one output per calendar month.
func ByMonth(ts domain.Timestep) string {
	return ts.Time().Format("2006-01")
}

// Single writes every slice to one output.
func Single(domain.Timestep) string {
	return "all"
}

// ParsePartitioner resolves "year", "month" or "all".
func ParsePartitioner(name string) (Partitioner, error) {
	switch name {
	case "year", "":
		return ByYear, nil
	case "month":
		return ByMonth, nil
	case "all":
		return Single, nil
	default:
		return nil, fmt.Errorf("unknown partition %q (want year, month or all)", name)
	}
}
