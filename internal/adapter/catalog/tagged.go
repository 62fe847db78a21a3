package catalog

import (
	"fmt"
	"os"
	"time"

	"github.com/parquet-go/parquet-go"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
)

// TaggedBlobRow is one row of the tagged blob table.
type TaggedBlobRow struct {
	BlobID     int32     `parquet:"blobid"`
	Time       time.Time `parquet:"time,timestamp"`
	CentLon    float64   `parquet:"centlon"`
	CentLat    float64   `parquet:"centlat"`
	MinLat     float64   `parquet:"minlat"`
	MaxLat     float64   `parquet:"maxlat"`
	MinLon     float64   `parquet:"minlon"`
	MaxLon     float64   `parquet:"maxlon"`
	PairedNode int64     `parquet:"paired_node"`
	PairMethod string    `parquet:"pair_method,dict"`
	BlobTag    int32     `parquet:"blobtag"`
	Label      string    `parquet:"label,dict"`
	TrackID    string    `parquet:"track_id,optional"`
}

// NewTaggedBlobRows builds the table rows for tagged blobs. nodes resolves
// track ids for paired blobs.
func NewTaggedBlobRows(blobs []domain.BlobRecord, nodes []domain.TrackNode) []TaggedBlobRow {
	rows := make([]TaggedBlobRow, len(blobs))
	for i, b := range blobs {
		r := TaggedBlobRow{
			BlobID:     b.BlobID,
			Time:       b.Timestep.Time(),
			CentLon:    b.CentLon,
			CentLat:    b.CentLat,
			MinLat:     b.MinLat,
			MaxLat:     b.MaxLat,
			MinLon:     b.MinLon,
			MaxLon:     b.MaxLon,
			PairedNode: int64(b.PairedNode),
			PairMethod: b.PairMethod.String(),
			BlobTag:    b.Label.Code,
			Label:      b.Label.Name,
		}
		if b.Paired() && b.PairedNode < len(nodes) {
			r.TrackID = nodes[b.PairedNode].TrackID
		}
		rows[i] = r
	}
	return rows
}

// WriteTagged writes rows to path through a temporary file so readers
// never observe a partial table.
func WriteTagged(path string, rows []TaggedBlobRow) error {
	tmp := path + ".partial"
	if err := parquet.WriteFile(tmp, rows); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

// ReadTagged loads a tagged blob table written by WriteTagged.
func ReadTagged(path string) ([]TaggedBlobRow, error) {
	rows, err := parquet.ReadFile[TaggedBlobRow](path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return rows, nil
}
