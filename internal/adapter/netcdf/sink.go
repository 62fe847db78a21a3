package netcdf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ctessum/cdf"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
	"github.com/couchcryptid/storm-data-blobtag/internal/raster"
)

const outputTimeUnits = "hours since 1970-01-01 00:00:00"

var outputUnits = mustUnits()

// Sink writes one relabeled mask file per partition to Dir, named
// "<Prefix>_<key>.nc". Files are staged with a ".partial" suffix and renamed
// into place on commit.
type Sink struct {
	Dir      string
	Prefix   string
	Variable string
	Labels   []domain.Label
}

// Create starts the output for one partition.
func (s *Sink) Create(key string, grid raster.Grid, slices int) (raster.PartitionWriter, error) {
	variable := s.Variable
	if variable == "" {
		variable = DefaultVariable
	}
	final := filepath.Join(s.Dir, fmt.Sprintf("%s_%s.nc", s.Prefix, key))
	tmp := final + ".partial"

	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return nil, err
	}
	fh, err := os.Create(tmp)
	if err != nil {
		return nil, err
	}

	h := cdf.NewHeader([]string{"time", "lat", "lon"}, []int{slices, len(grid.Lat), len(grid.Lon)})
	h.AddAttribute("", "title", "tagged blob mask")
	h.AddAttribute("", "history", domain.Now().UTC().Format(time.RFC3339)+" relabeled by blobtag")

	h.AddVariable("time", []string{"time"}, []float64{0})
	h.AddAttribute("time", "units", outputTimeUnits)
	h.AddAttribute("time", "calendar", "standard")
	h.AddVariable("lat", []string{"lat"}, []float64{0})
	h.AddAttribute("lat", "units", "degrees_north")
	h.AddVariable("lon", []string{"lon"}, []float64{0})
	h.AddAttribute("lon", "units", "degrees_east")

	h.AddVariable(variable, []string{"time", "lat", "lon"}, []int32{0})
	h.AddAttribute(variable, "long_name", "blob category")
	codes, names := flags(s.Labels)
	h.AddAttribute(variable, "flag_values", codes)
	h.AddAttribute(variable, "flag_meanings", names)
	h.Define()

	f, err := cdf.Create(fh, h)
	if err != nil {
		fh.Close()
		os.Remove(tmp)
		return nil, fmt.Errorf("create %s: %w", tmp, err)
	}
	w := &partitionWriter{
		fh: fh, f: f, tmp: tmp, final: final, variable: variable,
		grid: grid, slices: slices, units: outputUnits,
	}
	if err := w.writeAxis("lat", grid.Lat); err != nil {
		_ = w.Abort()
		return nil, err
	}
	if err := w.writeAxis("lon", grid.Lon); err != nil {
		_ = w.Abort()
		return nil, err
	}
	return w, nil
}

type partitionWriter struct {
	fh       *os.File
	f        *cdf.File
	tmp      string
	final    string
	variable string
	grid     raster.Grid
	slices   int
	next     int
	units    cfTime
}

func (w *partitionWriter) Write(c raster.Chunk) error {
	if w.next >= w.slices {
		return fmt.Errorf("%s: more than %d slices", w.final, w.slices)
	}
	if len(c.Values) != w.grid.Cells() {
		return fmt.Errorf("%s: chunk has %d cells, grid has %d", w.final, len(c.Values), w.grid.Cells())
	}
	i := w.next
	tw := w.f.Writer("time", []int{i}, []int{i + 1})
	if _, err := tw.Write([]float64{w.units.encode(c.Ref.Timestep)}); err != nil {
		return fmt.Errorf("write time[%d]: %w", i, err)
	}
	vw := w.f.Writer(w.variable, []int{i, 0, 0}, []int{i + 1, len(w.grid.Lat), len(w.grid.Lon)})
	if _, err := vw.Write(c.Values); err != nil {
		return fmt.Errorf("write %s[%d]: %w", w.variable, i, err)
	}
	w.next++
	return nil
}

func (w *partitionWriter) Commit() error {
	if w.next != w.slices {
		_ = w.Abort()
		return fmt.Errorf("%s: wrote %d of %d slices", w.final, w.next, w.slices)
	}
	if err := w.fh.Sync(); err != nil {
		_ = w.Abort()
		return err
	}
	if err := w.fh.Close(); err != nil {
		os.Remove(w.tmp)
		return err
	}
	return os.Rename(w.tmp, w.final)
}

func (w *partitionWriter) Abort() error {
	w.fh.Close()
	if err := os.Remove(w.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

func (w *partitionWriter) writeAxis(name string, vals []float64) error {
	end := w.f.Header.Lengths(name)
	aw := w.f.Writer(name, make([]int, len(end)), end)
	if _, err := aw.Write(vals); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}

func flags(set []domain.Label) ([]int32, string) {
	codes := make([]int32, len(set))
	names := make([]string, len(set))
	for i, l := range set {
		codes[i] = l.Code
		names[i] = strings.ReplaceAll(l.Name, " ", "_")
	}
	return codes, strings.Join(names, " ")
}

func mustUnits() cfTime {
	u, err := parseCFUnits(outputTimeUnits, "standard")
	if err != nil {
		panic(err)
	}
	return u
}
