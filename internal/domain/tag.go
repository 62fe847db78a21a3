package domain

// NewTaggedBlob builds the published event for a propagated blob. node is
// nil for unpaired blobs.
func NewTaggedBlob(set string, blob BlobRecord, node *TrackNode) TaggedBlob {
	ev := TaggedBlob{
		Set:        set,
		BlobID:     blob.BlobID,
		Time:       blob.Timestep.Time(),
		CentLat:    blob.CentLat,
		CentLon:    blob.CentLon,
		PairedNode: blob.PairedNode,
		PairMethod: blob.PairMethod.String(),
		Label:      blob.Label.Name,
		Code:       blob.Label.Code,
		TaggedAt:   clock.Now().UTC(),
	}
	if node != nil {
		ev.TrackID = node.TrackID
	}
	return ev
}
