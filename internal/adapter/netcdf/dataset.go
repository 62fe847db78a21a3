// Package netcdf reads and writes blob-id masks stored as netCDF classic
// files with (time, lat, lon) dimensions.
package netcdf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"

	"github.com/ctessum/cdf"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
	"github.com/couchcryptid/storm-data-blobtag/internal/raster"
)

// DefaultVariable is the mask variable StitchBlobs writes.
const DefaultVariable = "object_id"

var (
	timeNames = []string{"time"}
	latNames  = []string{"lat", "latitude"}
	lonNames  = []string{"lon", "longitude"}
)

type maskFile struct {
	path string
	fh   *os.File
	cdf  *cdf.File
}

// Dataset is a set of mask files opened header-only. Slice data is read on
// demand by Read, which is safe for concurrent use.
type Dataset struct {
	variable string
	grid     raster.Grid
	files    map[string]*maskFile
	slices   []raster.SliceRef
}

// Open opens every file matching pattern and indexes its time slices. All
// files must share one grid.
func Open(pattern, variable string) (*Dataset, error) {
	if variable == "" {
		variable = DefaultVariable
	}
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no mask files match %q", pattern)
	}
	sort.Strings(paths)

	ds := &Dataset{variable: variable, files: make(map[string]*maskFile, len(paths))}
	for _, p := range paths {
		if err := ds.add(p); err != nil {
			ds.Close()
			return nil, err
		}
	}
	sort.SliceStable(ds.slices, func(i, j int) bool {
		return ds.slices[i].Timestep < ds.slices[j].Timestep
	})
	return ds, nil
}

func (d *Dataset) add(path string) error {
	fh, err := os.Open(path)
	if err != nil {
		return err
	}
	f, err := cdf.Open(readOnly{fh})
	if err != nil {
		fh.Close()
		return fmt.Errorf("open %s: %w", path, err)
	}
	mf := &maskFile{path: path, fh: fh, cdf: f}
	d.files[path] = mf

	dims := f.Header.Dimensions(d.variable)
	if len(dims) != 3 {
		return fmt.Errorf("%s: variable %q has dimensions %v, want (time, lat, lon)", path, d.variable, dims)
	}

	lat, err := readAxis(f, latNames)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	lon, err := readAxis(f, lonNames)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	lengths := f.Header.Lengths(d.variable)
	if lengths[1] != len(lat) || lengths[2] != len(lon) {
		return fmt.Errorf("%s: %q is %v but grid is %dx%d", path, d.variable, lengths, len(lat), len(lon))
	}
	if d.grid.Cells() == 0 {
		d.grid = raster.Grid{Lat: lat, Lon: lon}
	} else if !slices.Equal(d.grid.Lat, lat) || !slices.Equal(d.grid.Lon, lon) {
		return fmt.Errorf("%s: grid differs from earlier mask files", path)
	}

	times, err := readTimes(f)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if len(times) != lengths[0] {
		return fmt.Errorf("%s: %d time values for %d slices", path, len(times), lengths[0])
	}
	for i, ts := range times {
		d.slices = append(d.slices, raster.SliceRef{File: path, Index: i, Timestep: ts})
	}
	return nil
}

// Grid returns the shared grid.
func (d *Dataset) Grid() raster.Grid {
	return d.grid
}

// Slices returns every slice in time order.
func (d *Dataset) Slices() []raster.SliceRef {
	return append([]raster.SliceRef(nil), d.slices...)
}

// Read loads one slice of the mask variable as int32.
func (d *Dataset) Read(ref raster.SliceRef) (raster.Chunk, error) {
	mf, ok := d.files[ref.File]
	if !ok {
		return raster.Chunk{}, fmt.Errorf("unknown mask file %s", ref.File)
	}
	nlat, nlon := len(d.grid.Lat), len(d.grid.Lon)
	r := mf.cdf.Reader(d.variable, []int{ref.Index, 0, 0}, []int{ref.Index + 1, nlat, nlon})
	buf := r.Zero(nlat * nlon)
	if _, err := r.Read(buf); err != nil {
		return raster.Chunk{}, fmt.Errorf("read %s[%d]: %w", ref.File, ref.Index, err)
	}
	vals, err := toInt32(buf)
	if err != nil {
		return raster.Chunk{}, fmt.Errorf("%s: %w", ref.File, err)
	}
	return raster.Chunk{Ref: ref, Values: vals}, nil
}

// Close releases every open file.
func (d *Dataset) Close() error {
	var errs []error
	for _, mf := range d.files {
		errs = append(errs, mf.fh.Close())
	}
	return errors.Join(errs...)
}

// readOnly satisfies cdf.ReaderWriterAt for files opened for reading.
type readOnly struct {
	*os.File
}

func (readOnly) WriteAt([]byte, int64) (int, error) {
	return 0, errors.New("mask dataset is read-only")
}

func findVar(f *cdf.File, names []string) (string, bool) {
	vars := f.Header.Variables()
	for _, want := range names {
		for _, v := range vars {
			if v == want {
				return v, true
			}
		}
	}
	return "", false
}

func readAxis(f *cdf.File, names []string) ([]float64, error) {
	v, ok := findVar(f, names)
	if !ok {
		return nil, fmt.Errorf("no coordinate variable among %v", names)
	}
	return readFloat64(f, v)
}

func readTimes(f *cdf.File) ([]domain.Timestep, error) {
	v, ok := findVar(f, timeNames)
	if !ok {
		return nil, errors.New("no time variable")
	}
	units, _ := f.Header.GetAttribute(v, "units").(string)
	calendar, _ := f.Header.GetAttribute(v, "calendar").(string)
	cf, err := parseCFUnits(units, calendar)
	if err != nil {
		return nil, err
	}
	raw, err := readFloat64(f, v)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Timestep, len(raw))
	for i, x := range raw {
		if out[i], err = cf.decode(x); err != nil {
			return nil, fmt.Errorf("time[%d]: %w", i, err)
		}
	}
	return out, nil
}

func readFloat64(f *cdf.File, v string) ([]float64, error) {
	n := 1
	for _, l := range f.Header.Lengths(v) {
		n *= l
	}
	r := f.Reader(v, nil, nil)
	buf := r.Zero(n)
	if _, err := r.Read(buf); err != nil {
		return nil, fmt.Errorf("read %s: %w", v, err)
	}
	switch x := buf.(type) {
	case []float64:
		return x, nil
	case []float32:
		return widen(x), nil
	case []int32:
		return widen(x), nil
	case []int16:
		return widen(x), nil
	case []int8:
		return widen(x), nil
	default:
		return nil, fmt.Errorf("%s: unsupported type %T", v, buf)
	}
}

func toInt32(buf any) ([]int32, error) {
	switch x := buf.(type) {
	case []int32:
		return x, nil
	case []int16:
		return narrow(x), nil
	case []int8:
		return narrow(x), nil
	case []float32:
		return narrow(x), nil
	case []float64:
		return narrow(x), nil
	default:
		return nil, fmt.Errorf("unsupported mask type %T", buf)
	}
}

type number interface {
	~int8 | ~int16 | ~int32 | ~float32 | ~float64
}

func widen[T number](in []T) []float64 {
	out := make([]float64, len(in))
	for i, v := range in {
		out[i] = float64(v)
	}
	return out
}

func narrow[T number](in []T) []int32 {
	out := make([]int32, len(in))
	for i, v := range in {
		out[i] = int32(v)
	}
	return out
}
