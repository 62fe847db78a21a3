// Package propagate copies node labels onto paired blobs and groups the blob
// ids of every label by timestep for raster relabeling.
package propagate

import (
	"fmt"
	"sort"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
)

// Group lists, per timestep, the blob ids that carry Label.
type Group struct {
	Label      domain.Label
	ByTimestep map[domain.Timestep][]int32
}

// Len returns the number of blobs in the group.
func (g Group) Len() int {
	n := 0
	for _, ids := range g.ByTimestep {
		n += len(ids)
	}
	return n
}

// Groups holds one Group per label of the set, in set order. Labels that no
// blob carries still have an (empty) group.
type Groups []Group

// Lookup returns the group for the label with the given code.
func (gs Groups) Lookup(code int32) (Group, bool) {
	for _, g := range gs {
		if g.Label.Code == code {
			return g, true
		}
	}
	return Group{}, false
}

// Table sets the label of every blob in place and returns the label groups.
// Paired blobs take their node's label from nodeLabels; unpaired blobs take
// the background label, which must be the first entry of set. A blob id that
// appears twice within one timestep is an error, as is a label outside set.
func Table(blobs []domain.BlobRecord, nodeLabels []domain.Label, set []domain.Label) (Groups, error) {
	if len(set) == 0 {
		return nil, fmt.Errorf("empty label set")
	}
	background := set[0]

	groups := make(Groups, len(set))
	slot := make(map[int32]int, len(set))
	for i, l := range set {
		groups[i] = Group{Label: l, ByTimestep: make(map[domain.Timestep][]int32)}
		slot[l.Code] = i
	}

	seen := make(map[domain.Timestep]map[int32]bool)
	for i := range blobs {
		b := &blobs[i]

		ids := seen[b.Timestep]
		if ids == nil {
			ids = make(map[int32]bool)
			seen[b.Timestep] = ids
		}
		if ids[b.BlobID] {
			return nil, fmt.Errorf("blob id %d appears twice at %s", b.BlobID, b.Timestep)
		}
		ids[b.BlobID] = true

		label := background
		if b.Paired() {
			if b.PairedNode < 0 || b.PairedNode >= len(nodeLabels) {
				return nil, fmt.Errorf("blob %d at %s: paired node %d out of range", b.BlobID, b.Timestep, b.PairedNode)
			}
			label = nodeLabels[b.PairedNode]
		}
		g, ok := slot[label.Code]
		if !ok {
			return nil, fmt.Errorf("blob %d at %s: label %s (code %d) is not in the label set", b.BlobID, b.Timestep, label.Name, label.Code)
		}
		b.Label = label
		groups[g].ByTimestep[b.Timestep] = append(groups[g].ByTimestep[b.Timestep], b.BlobID)
	}

	for _, g := range groups {
		for _, ids := range g.ByTimestep {
			sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		}
	}
	return groups, nil
}
