package pipeline

import (
	"os"
	"path/filepath"

	"github.com/couchcryptid/storm-data-blobtag/internal/adapter/catalog"
	"github.com/couchcryptid/storm-data-blobtag/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-data-blobtag/internal/config"
	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
	"github.com/couchcryptid/storm-data-blobtag/internal/raster"
)

// FileStore is the Store backed by catalog files and netCDF masks.
type FileStore struct{}

func (FileStore) LoadNodes(src config.NodeSource) ([]domain.TrackNode, error) {
	f, err := catalog.Read(src.Path, src.Format)
	if err != nil {
		return nil, err
	}
	return catalog.LoadNodes(f, src.Fields)
}

func (FileStore) LoadBlobs(set config.BlobSet) ([]domain.BlobRecord, error) {
	f, err := catalog.Read(set.Stats, set.Format)
	if err != nil {
		return nil, err
	}
	return catalog.LoadBlobs(f, set.Fields, set.Prepaired)
}

func (FileStore) OpenMasks(set config.BlobSet) (MaskDataset, error) {
	ds, err := netcdf.Open(set.Masks, set.Variable)
	if err != nil {
		return nil, err
	}
	return ds, nil
}

func (FileStore) MaskSink(set config.BlobSet, labels []domain.Label) raster.Sink {
	return &netcdf.Sink{Dir: set.MaskOutput, Prefix: set.MaskPrefix, Variable: set.Variable, Labels: labels}
}

func (FileStore) WriteTagged(set config.BlobSet, blobs []domain.BlobRecord, nodes []domain.TrackNode) error {
	if err := os.MkdirAll(filepath.Dir(set.TaggedOutput), 0o755); err != nil {
		return err
	}
	return catalog.WriteTagged(set.TaggedOutput, catalog.NewTaggedBlobRows(blobs, nodes))
}
