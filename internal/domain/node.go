package domain

// TrackNode is one timestamped point of a stitched LPS track.
// Nodes are immutable once loaded.
type TrackNode struct {
	ID         int // row index in the node catalog
	TrackID    string
	Timestep   Timestep
	Lat        float64
	Lon        float64
	Pressure   float64 // central sea-level pressure; lower wins tie-breaks
	ShortLabel string  // classifier short label, e.g. "TC", "SS(STLC)"
	TrackInfo  string  // track-level membership tags, e.g. "TC;MS"
}

// Label is one category from a finite, ordered label set. Code is the value
// written into relabeled raster masks.
type Label struct {
	Name string `yaml:"name" json:"name"`
	Code int32  `yaml:"code" json:"code"`
}

func (l Label) String() string {
	return l.Name
}
