package catalog

import (
	"fmt"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
)

// NodeColumns maps node catalog columns to TrackNode fields. TrackID is
// optional.
type NodeColumns struct {
	Time       string `yaml:"time"`
	Lat        string `yaml:"lat"`
	Lon        string `yaml:"lon"`
	Pressure   string `yaml:"pressure"`
	ShortLabel string `yaml:"short_label"`
	TrackInfo  string `yaml:"track_info"`
	TrackID    string `yaml:"track_id"`
}

// DefaultNodeColumns matches the classified LPS catalog.
func DefaultNodeColumns() NodeColumns {
	return NodeColumns{
		Time:       "ISOTIME",
		Lat:        "LAT",
		Lon:        "LON",
		Pressure:   "MSLP",
		ShortLabel: "Short_Label",
		TrackInfo:  "Track_Info",
		TrackID:    "TID",
	}
}

// withDefaults fills unset names from DefaultNodeColumns.
func (c NodeColumns) withDefaults() NodeColumns {
	d := DefaultNodeColumns()
	fill(&c.Time, d.Time)
	fill(&c.Lat, d.Lat)
	fill(&c.Lon, d.Lon)
	fill(&c.Pressure, d.Pressure)
	fill(&c.ShortLabel, d.ShortLabel)
	fill(&c.TrackInfo, d.TrackInfo)
	fill(&c.TrackID, d.TrackID)
	return c
}

// LoadNodes converts a node catalog frame. Missing required columns fail
// with *domain.MissingColumnError before any row is read.
func LoadNodes(f *Frame, cols NodeColumns) ([]domain.TrackNode, error) {
	cols = cols.withDefaults()
	if err := f.Require(cols.Time, cols.Lat, cols.Lon, cols.Pressure, cols.ShortLabel, cols.TrackInfo); err != nil {
		return nil, err
	}

	nodes := make([]domain.TrackNode, f.Len())
	for i := range nodes {
		ts, err := f.Timestep(i, cols.Time)
		if err != nil {
			return nil, err
		}
		lat, err := f.Float(i, cols.Lat)
		if err != nil {
			return nil, err
		}
		lon, err := f.Float(i, cols.Lon)
		if err != nil {
			return nil, err
		}
		p, err := f.Float(i, cols.Pressure)
		if err != nil {
			return nil, err
		}
		nodes[i] = domain.TrackNode{
			ID:         i,
			TrackID:    f.String(i, cols.TrackID),
			Timestep:   ts,
			Lat:        lat,
			Lon:        lon,
			Pressure:   p,
			ShortLabel: f.String(i, cols.ShortLabel),
			TrackInfo:  f.String(i, cols.TrackInfo),
		}
	}
	return nodes, nil
}

func fill(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func checkRange(name string, row int, v, lo, hi float64) error {
	if v < lo || v > hi {
		return fmt.Errorf("%s row %d: %g outside [%g, %g]", name, row, v, lo, hi)
	}
	return nil
}
