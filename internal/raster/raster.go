// Package raster relabels blob-id masks. A Plan collects value remapping
// operations against a Dataset and applies them only when written to a Sink,
// one time slice at a time.
package raster

import (
	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
)

// Grid is the latitude/longitude grid shared by every slice of a dataset.
type Grid struct {
	Lat []float64
	Lon []float64
}

// Cells returns the number of cells in one slice.
func (g Grid) Cells() int {
	return len(g.Lat) * len(g.Lon)
}

// SliceRef locates one time slice of a mask dataset.
type SliceRef struct {
	File     string
	Index    int // record index within File
	Timestep domain.Timestep
}

// Chunk is one time slice of mask values in row-major (lat, lon) order.
type Chunk struct {
	Ref    SliceRef
	Values []int32
}

// Dataset is a read-only collection of mask slices on a common grid.
// Read must be safe for concurrent use.
type Dataset interface {
	Grid() Grid
	Slices() []SliceRef
	Read(ref SliceRef) (Chunk, error)
}

// Sink creates one output per partition. slices is the number of chunks the
// partition will receive.
type Sink interface {
	Create(key string, grid Grid, slices int) (PartitionWriter, error)
}

// PartitionWriter receives the slices of one partition in time order. Nothing
// is visible at the final location until Commit; Abort discards the output.
type PartitionWriter interface {
	Write(c Chunk) error
	Commit() error
	Abort() error
}
