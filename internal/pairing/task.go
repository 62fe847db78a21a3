package pairing

import (
	"github.com/golang/geo/s2"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
	"github.com/couchcryptid/storm-data-blobtag/internal/sphere"
)

// NodeSnapshot is the read-only view of a node a matching task needs.
type NodeSnapshot struct {
	Index    int // row in the node catalog
	Lat      float64
	Lon      float64
	Pressure float64
	Point    s2.Point
}

// BlobSnapshot is the read-only view of a blob a matching task needs.
type BlobSnapshot struct {
	Index    int // row in the blob catalog
	CentLat  float64
	CentLon  float64
	Centroid s2.Point
	Box      sphere.Box
}

// Task is one timestep's matching problem. It owns copies of exactly the rows
// it needs and shares nothing mutable with other tasks.
type Task struct {
	Timestep domain.Timestep
	Nodes    []NodeSnapshot
	Blobs    []BlobSnapshot
}

// Result holds one pairing per blob of the task.
type Result struct {
	Timestep domain.Timestep
	Pairs    []domain.Pairing
}

// NewTask snapshots the rows of g.
func NewTask(g Group, nodes []domain.TrackNode, blobs []domain.BlobRecord) Task {
	t := Task{
		Timestep: g.Timestep,
		Nodes:    make([]NodeSnapshot, len(g.Nodes)),
		Blobs:    make([]BlobSnapshot, len(g.Blobs)),
	}
	for i, idx := range g.Nodes {
		n := nodes[idx]
		t.Nodes[i] = NodeSnapshot{
			Index:    idx,
			Lat:      n.Lat,
			Lon:      n.Lon,
			Pressure: n.Pressure,
			Point:    sphere.Project(n.Lat, n.Lon),
		}
	}
	for i, idx := range g.Blobs {
		b := blobs[idx]
		t.Blobs[i] = BlobSnapshot{
			Index:    idx,
			CentLat:  b.CentLat,
			CentLon:  b.CentLon,
			Centroid: sphere.Project(b.CentLat, b.CentLon),
			Box:      sphere.Box{MinLat: b.MinLat, MaxLat: b.MaxLat, MinLon: b.MinLon, MaxLon: b.MaxLon},
		}
	}
	return t
}
