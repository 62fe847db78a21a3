package pairing

import (
	"github.com/golang/geo/s2"
	"gonum.org/v1/gonum/spatial/kdtree"
)

// nodePoint is a kd-tree entry in the 3-D unit-sphere embedding. slot indexes
// the owning task's Nodes; queries use slot -1.
type nodePoint struct {
	s2.Point
	slot int
}

func (p nodePoint) coord(d kdtree.Dim) float64 {
	switch d {
	case 0:
		return p.X
	case 1:
		return p.Y
	default:
		return p.Z
	}
}

// Compare returns the signed distance of p from the plane through c
// perpendicular to dimension d.
func (p nodePoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	return p.coord(d) - c.(nodePoint).coord(d)
}

func (p nodePoint) Dims() int { return 3 }

// Distance is the squared chord length, the metric kdtree expects.
func (p nodePoint) Distance(c kdtree.Comparable) float64 {
	return float64(s2.ChordAngleBetweenPoints(p.Point, c.(nodePoint).Point))
}

type nodePoints []nodePoint

func (p nodePoints) Index(i int) kdtree.Comparable { return p[i] }
func (p nodePoints) Len() int                      { return len(p) }
func (p nodePoints) Pivot(d kdtree.Dim) int        { return nodePlane{nodePoints: p, Dim: d}.Pivot() }
func (p nodePoints) Slice(start, end int) kdtree.Interface {
	return p[start:end]
}

// nodePlane sorts nodePoints along one dimension for median partitioning.
type nodePlane struct {
	nodePoints
	kdtree.Dim
}

func (p nodePlane) Less(i, j int) bool {
	return p.nodePoints[i].coord(p.Dim) < p.nodePoints[j].coord(p.Dim)
}
func (p nodePlane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }
func (p nodePlane) Slice(start, end int) kdtree.SortSlicer {
	p.nodePoints = p.nodePoints[start:end]
	return p
}
func (p nodePlane) Swap(i, j int) {
	p.nodePoints[i], p.nodePoints[j] = p.nodePoints[j], p.nodePoints[i]
}

// newNodeTree indexes the task's nodes. The tree reorders its own copy.
func newNodeTree(nodes []NodeSnapshot) *kdtree.Tree {
	pts := make(nodePoints, len(nodes))
	for i, n := range nodes {
		pts[i] = nodePoint{Point: n.Point, slot: i}
	}
	return kdtree.New(pts, false)
}
