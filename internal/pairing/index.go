// Package pairing matches blobs to track nodes one timestep at a time.
package pairing

import (
	"sort"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
)

// Group lists the node and blob row indices active at one timestep, in
// original row order.
type Group struct {
	Timestep domain.Timestep
	Nodes    []int
	Blobs    []int
}

// IndexByTimestep groups both catalogs by timestep. Every timestep present in
// either catalog gets a group; the side with no rows is left empty. Groups are
// returned in ascending timestep order.
func IndexByTimestep(nodes []domain.TrackNode, blobs []domain.BlobRecord) []Group {
	byTime := make(map[domain.Timestep]*Group)
	get := func(ts domain.Timestep) *Group {
		g, ok := byTime[ts]
		if !ok {
			g = &Group{Timestep: ts}
			byTime[ts] = g
		}
		return g
	}

	for i := range nodes {
		g := get(nodes[i].Timestep)
		g.Nodes = append(g.Nodes, i)
	}
	for i := range blobs {
		g := get(blobs[i].Timestep)
		g.Blobs = append(g.Blobs, i)
	}

	groups := make([]Group, 0, len(byTime))
	for _, g := range byTime {
		groups = append(groups, *g)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Timestep < groups[j].Timestep })
	return groups
}
