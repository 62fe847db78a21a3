package propagate_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
	"github.com/couchcryptid/storm-data-blobtag/internal/labels"
	"github.com/couchcryptid/storm-data-blobtag/internal/propagate"
)

var (
	set = labels.DefaultScheme().Set()
	tc  = set[1]
	ms  = set[2]
	bg  = set[0]
)

func TestTable(t *testing.T) {
	nodeLabels := []domain.Label{tc, ms}
	blobs := []domain.BlobRecord{
		{BlobID: 2, Timestep: 100, PairedNode: 0},
		{BlobID: 1, Timestep: 100, PairedNode: 1},
		{BlobID: 3, Timestep: 100, PairedNode: domain.Unpaired},
		{BlobID: 1, Timestep: 200, PairedNode: 0},
	}

	groups, err := propagate.Table(blobs, nodeLabels, set)
	require.NoError(t, err)
	require.Len(t, groups, len(set))

	assert.Equal(t, tc, blobs[0].Label)
	assert.Equal(t, ms, blobs[1].Label)
	assert.Equal(t, bg, blobs[2].Label)

	got, ok := groups.Lookup(tc.Code)
	require.True(t, ok)
	want := map[domain.Timestep][]int32{100: {2}, 200: {1}}
	if diff := cmp.Diff(want, got.ByTimestep); diff != "" {
		t.Errorf("TC group mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 2, got.Len())

	back, _ := groups.Lookup(bg.Code)
	assert.Equal(t, []int32{3}, back.ByTimestep[100])
}

func TestTable_EmptyGroupsPresent(t *testing.T) {
	groups, err := propagate.Table(nil, nil, set)
	require.NoError(t, err)
	require.Len(t, groups, len(set))
	for _, g := range groups {
		assert.Zero(t, g.Len(), g.Label.Name)
	}
}

func TestTable_AllUnpaired(t *testing.T) {
	blobs := []domain.BlobRecord{
		{BlobID: 1, Timestep: 100, PairedNode: domain.Unpaired},
		{BlobID: 2, Timestep: 100, PairedNode: domain.Unpaired},
	}
	groups, err := propagate.Table(blobs, nil, set)
	require.NoError(t, err)
	for _, b := range blobs {
		assert.Equal(t, bg, b.Label)
	}
	back, _ := groups.Lookup(bg.Code)
	assert.Equal(t, 2, back.Len())
}

func TestTable_Errors(t *testing.T) {
	tests := []struct {
		name       string
		blobs      []domain.BlobRecord
		nodeLabels []domain.Label
		set        []domain.Label
		wantErr    string
	}{
		{
			name: "duplicate id in timestep",
			blobs: []domain.BlobRecord{
				{BlobID: 1, Timestep: 100, PairedNode: domain.Unpaired},
				{BlobID: 1, Timestep: 100, PairedNode: domain.Unpaired},
			},
			set:     set,
			wantErr: "appears twice",
		},
		{
			name:    "node out of range",
			blobs:   []domain.BlobRecord{{BlobID: 1, Timestep: 100, PairedNode: 4}},
			set:     set,
			wantErr: "out of range",
		},
		{
			name:       "label outside set",
			blobs:      []domain.BlobRecord{{BlobID: 1, Timestep: 100, PairedNode: 0}},
			nodeLabels: []domain.Label{{Name: "XX", Code: 42}},
			set:        set,
			wantErr:    "not in the label set",
		},
		{
			name:    "empty set",
			wantErr: "empty label set",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := propagate.Table(tt.blobs, tt.nodeLabels, tt.set)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
