// Package domain models the low-pressure-system (LPS) track nodes and the
// per-timestep blob regions that are paired with them.
//
// # Data Source
//
// Both catalogs are flat files produced by the TempestExtremes toolchain and
// the LPS classifier that runs after it:
//
//	DetectNodes -> StitchNodes -> classifier   node catalog (one row per track node)
//	DetectBlobs -> StitchBlobs -> BlobStats    blob statistics (one row per blob)
//	StitchBlobs                                raster masks (object_id per grid cell)
//
// The toolchain itself is external; this package only describes the rows it
// writes.
//
// # TempestExtremes Conventions
//
// Time format:
//
//	BlobStats with --out_fulltime writes "YYYY-MM-DD-SSSSS", where SSSSS is the
//	number of seconds since midnight, e.g. "2020-01-01-21600" = 06:00 UTC.
//	Classifier catalogs use ISO strings such as "2020-01-01 06:00:00".
//	Both are normalized to a [Timestep] (UTC unix seconds). See [ParseTimestep].
//
// Coordinates:
//
//	Longitudes are usually reported in [0, 360). A blob whose bounding box
//	straddles the prime meridian is reported with min_lon near 0 and max_lon
//	near 360; the extent that actually holds the blob is the wrapped band
//	[max_lon, 360) ∪ [0, min_lon].
//
// Blob identifiers:
//
//	Blob ids are 1-based and local to one timestep's raster slice. The value 0
//	marks cells that belong to no blob.
//
// # Pairing
//
// A blob is paired with at most one node from its own timestep. Unpaired blobs
// carry [Unpaired] as their node index and receive the background label.
package domain
