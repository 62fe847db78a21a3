package pairing

import (
	"fmt"
	"math"

	"github.com/golang/geo/s1"
	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
	"github.com/couchcryptid/storm-data-blobtag/internal/sphere"
)

// Matcher pairs the blobs of one timestep with that timestep's nodes.
type Matcher struct {
	radius        s1.ChordAngle
	spanThreshold float64
}

// NewMatcher creates a Matcher that searches radiusDeg of great-circle
// separation around each blob centroid and treats bounding boxes wider than
// spanThresholdDeg of longitude as wrapping.
func NewMatcher(radiusDeg, spanThresholdDeg float64) *Matcher {
	return &Matcher{
		radius:        sphere.ChordRadius(radiusDeg),
		spanThreshold: spanThresholdDeg,
	}
}

// Match pairs every blob of the task. Each blob takes the lowest-pressure node
// within the search radius; failing that, the lowest-pressure node inside its
// bounding box; failing that, it stays unpaired. Equal pressures go to the
// earlier catalog row. A task with no nodes yields all-unpaired results.
func (m *Matcher) Match(task Task) (Result, error) {
	if err := validateTask(task); err != nil {
		return Result{}, err
	}

	res := Result{Timestep: task.Timestep, Pairs: make([]domain.Pairing, len(task.Blobs))}
	if len(task.Nodes) == 0 {
		for i, b := range task.Blobs {
			res.Pairs[i] = domain.Pairing{Blob: b.Index, Node: domain.Unpaired, Method: domain.PairUnpaired}
		}
		return res, nil
	}

	tree := newNodeTree(task.Nodes)
	for i, b := range task.Blobs {
		pair := domain.Pairing{Blob: b.Index, Node: domain.Unpaired, Method: domain.PairUnpaired}
		if slot := m.withinRadius(tree, task.Nodes, b); slot >= 0 {
			pair.Node, pair.Method = task.Nodes[slot].Index, domain.PairRadius
		} else if slot := m.withinBox(task.Nodes, b); slot >= 0 {
			pair.Node, pair.Method = task.Nodes[slot].Index, domain.PairBoundingBox
		}
		res.Pairs[i] = pair
	}
	return res, nil
}

func (m *Matcher) withinRadius(tree *kdtree.Tree, nodes []NodeSnapshot, b BlobSnapshot) int {
	keeper := kdtree.NewDistKeeper(float64(m.radius))
	tree.NearestSet(keeper, nodePoint{Point: b.Centroid, slot: -1})

	best := -1
	for _, c := range keeper.Heap {
		// The keeper is seeded with a sentinel that carries no point.
		if c.Comparable == nil || c.Dist > float64(m.radius) {
			continue
		}
		slot := c.Comparable.(nodePoint).slot
		if best < 0 || deeper(nodes[slot], nodes[best]) {
			best = slot
		}
	}
	return best
}

func (m *Matcher) withinBox(nodes []NodeSnapshot, b BlobSnapshot) int {
	rect := b.Box.Rect(m.spanThreshold)
	best := -1
	for slot, n := range nodes {
		if !sphere.Contains(rect, n.Lat, n.Lon) {
			continue
		}
		if best < 0 || deeper(n, nodes[best]) {
			best = slot
		}
	}
	return best
}

// deeper reports whether a outranks b: lower pressure first, then lower
// catalog row. Missing pressures rank last.
func deeper(a, b NodeSnapshot) bool {
	pa, pb := pressureKey(a.Pressure), pressureKey(b.Pressure)
	if pa != pb {
		return pa < pb
	}
	return a.Index < b.Index
}

func pressureKey(p float64) float64 {
	if math.IsNaN(p) {
		return math.Inf(1)
	}
	return p
}

func validateTask(task Task) error {
	for _, n := range task.Nodes {
		if !validLatLon(n.Lat, n.Lon) {
			return &domain.TimestepError{
				Timestep: task.Timestep,
				Err:      fmt.Errorf("node %d has invalid position (%g, %g)", n.Index, n.Lat, n.Lon),
			}
		}
	}
	for _, b := range task.Blobs {
		if !validLatLon(b.CentLat, b.CentLon) {
			return &domain.TimestepError{
				Timestep: task.Timestep,
				Err:      fmt.Errorf("blob row %d has invalid centroid (%g, %g)", b.Index, b.CentLat, b.CentLon),
			}
		}
	}
	return nil
}

func validLatLon(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lon) || math.IsInf(lat, 0) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90
}
