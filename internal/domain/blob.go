package domain

import "time"

// Unpaired is the node index carried by blobs with no paired node.
const Unpaired = -1

// PairMethod records how a blob was paired.
type PairMethod uint8

const (
	PairUnpaired PairMethod = iota
	PairRadius
	PairBoundingBox
	PairPreassigned
)

func (m PairMethod) String() string {
	switch m {
	case PairRadius:
		return "radius"
	case PairBoundingBox:
		return "bbox"
	case PairPreassigned:
		return "preassigned"
	default:
		return "unpaired"
	}
}

// BlobRecord is one row of blob statistics. PairedNode and Label are filled
// in place by pairing and propagation.
type BlobRecord struct {
	BlobID   int32
	Timestep Timestep
	CentLat  float64
	CentLon  float64
	MinLat   float64
	MaxLat   float64
	MinLon   float64
	MaxLon   float64

	PairedNode int // index into the node catalog, or Unpaired
	PairMethod PairMethod
	Label      Label
}

// Paired reports whether the blob has a paired node.
func (b BlobRecord) Paired() bool {
	return b.PairedNode != Unpaired
}

// Pairing is the outcome of matching one blob, keyed by the blob's row index.
type Pairing struct {
	Blob   int
	Node   int
	Method PairMethod
}

// TaggedBlob is the event published for every tagged blob.
type TaggedBlob struct {
	Set        string    `json:"set"`
	BlobID     int32     `json:"blob_id"`
	Time       time.Time `json:"time"`
	CentLat    float64   `json:"cent_lat"`
	CentLon    float64   `json:"cent_lon"`
	PairedNode int       `json:"paired_node"`
	TrackID    string    `json:"track_id,omitempty"`
	PairMethod string    `json:"pair_method"`
	Label      string    `json:"label"`
	Code       int32     `json:"code"`
	TaggedAt   time.Time `json:"tagged_at"`
}
