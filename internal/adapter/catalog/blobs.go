package catalog

import (
	"math"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
)

// BlobColumns maps blob statistics columns to BlobRecord fields. Paired is
// only read for pre-paired sets.
type BlobColumns struct {
	BlobID  string `yaml:"blob_id"`
	Time    string `yaml:"time"`
	CentLon string `yaml:"cent_lon"`
	CentLat string `yaml:"cent_lat"`
	MinLat  string `yaml:"min_lat"`
	MaxLat  string `yaml:"max_lat"`
	MinLon  string `yaml:"min_lon"`
	MaxLon  string `yaml:"max_lon"`
	Paired  string `yaml:"paired_node"`
}

// DefaultBlobColumns matches BlobStats output after renaming.
func DefaultBlobColumns() BlobColumns {
	return BlobColumns{
		BlobID:  "blobid",
		Time:    "time",
		CentLon: "centlon",
		CentLat: "centlat",
		MinLat:  "minlat",
		MaxLat:  "maxlat",
		MinLon:  "minlon",
		MaxLon:  "maxlon",
		Paired:  "paired_node",
	}
}

// BlobStatsColumns is the field layout of a headerless BlobStats file: blob
// id, an unused time index, then time, centroid and extent.
var BlobStatsColumns = []string{"blobid", "_", "time", "centlon", "centlat", "minlat", "maxlat", "minlon", "maxlon"}

func (c BlobColumns) withDefaults() BlobColumns {
	d := DefaultBlobColumns()
	fill(&c.BlobID, d.BlobID)
	fill(&c.Time, d.Time)
	fill(&c.CentLon, d.CentLon)
	fill(&c.CentLat, d.CentLat)
	fill(&c.MinLat, d.MinLat)
	fill(&c.MaxLat, d.MaxLat)
	fill(&c.MinLon, d.MinLon)
	fill(&c.MaxLon, d.MaxLon)
	fill(&c.Paired, d.Paired)
	return c
}

// LoadBlobs converts a blob statistics frame. When prepaired is set the
// paired node column is required and copied; otherwise every blob starts
// unpaired.
func LoadBlobs(f *Frame, cols BlobColumns, prepaired bool) ([]domain.BlobRecord, error) {
	cols = cols.withDefaults()
	required := []string{cols.BlobID, cols.Time, cols.CentLon, cols.CentLat, cols.MinLat, cols.MaxLat, cols.MinLon, cols.MaxLon}
	if prepaired {
		required = append(required, cols.Paired)
	}
	if err := f.Require(required...); err != nil {
		return nil, err
	}

	blobs := make([]domain.BlobRecord, f.Len())
	for i := range blobs {
		id, err := f.Int(i, cols.BlobID)
		if err != nil {
			return nil, err
		}
		if id > math.MaxInt32 || id < math.MinInt32 {
			return nil, f.cellError(i, cols.BlobID, errOutOfRange)
		}
		ts, err := f.Timestep(i, cols.Time)
		if err != nil {
			return nil, err
		}
		var v [6]float64
		for j, c := range []string{cols.CentLat, cols.CentLon, cols.MinLat, cols.MaxLat, cols.MinLon, cols.MaxLon} {
			if v[j], err = f.Float(i, c); err != nil {
				return nil, err
			}
		}
		if err := checkRange(f.Name, i, v[0], -90, 90); err != nil {
			return nil, err
		}

		b := domain.BlobRecord{
			BlobID:     int32(id),
			Timestep:   ts,
			CentLat:    v[0],
			CentLon:    v[1],
			MinLat:     v[2],
			MaxLat:     v[3],
			MinLon:     v[4],
			MaxLon:     v[5],
			PairedNode: domain.Unpaired,
			PairMethod: domain.PairUnpaired,
		}
		if prepaired {
			n, err := f.Int(i, cols.Paired)
			if err != nil {
				return nil, err
			}
			if n >= 0 {
				b.PairedNode = int(n)
				b.PairMethod = domain.PairPreassigned
			}
		}
		blobs[i] = b
	}
	return blobs, nil
}
