package catalog

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
)

// DetectNodesTimeColumn is the time column of frames read from DetectNodes
// output.
const DetectNodesTimeColumn = "ISOTIME"

// ReadDetectNodes reads DetectNodes text output. Each timestep starts with a
// "year month day count hour" line followed by count data lines of
// whitespace separated numbers. columns names the data fields; when empty
// they are named var1..varN after the first data line.
func ReadDetectNodes(paths []string, columns []string) (*Frame, error) {
	var f *Frame
	for _, path := range paths {
		fh, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		f, err = scanDetectNodes(fh, path, columns, f)
		fh.Close()
		if err != nil {
			return nil, err
		}
		columns = f.columns[1:]
	}
	if f == nil {
		return nil, fmt.Errorf("no DetectNodes files given")
	}
	return f, nil
}

func scanDetectNodes(r io.Reader, path string, columns []string, f *Frame) (*Frame, error) {
	sc := bufio.NewScanner(r)
	var (
		ts        domain.Timestep
		remaining = -1
		line      int
	)
	for sc.Scan() {
		line++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if remaining <= 0 {
			var err error
			ts, remaining, err = parseNodeHeader(fields)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: %w", path, line, err)
			}
			continue
		}
		remaining--

		if f == nil || (f.Len() == 0 && len(f.columns) == 1) {
			if len(columns) == 0 {
				columns = make([]string, len(fields))
				for i := range fields {
					columns[i] = "var" + strconv.Itoa(i+1)
				}
			}
			f = newFrame("detectnodes", append([]string{DetectNodesTimeColumn}, columns...))
		}
		if len(fields) != len(f.columns)-1 {
			return nil, fmt.Errorf("%s:%d: line has %d fields, want %d", path, line, len(fields), len(f.columns)-1)
		}
		row := make([]any, len(f.columns))
		row[0] = ts.String()
		for i, s := range fields {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				return nil, fmt.Errorf("%s:%d: field %d: %w", path, line, i+1, err)
			}
			row[i+1] = v
		}
		f.append(row)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if remaining > 0 {
		return nil, fmt.Errorf("%s: %d data lines missing at %s", path, remaining, ts)
	}
	if f == nil {
		f = newFrame("detectnodes", append([]string{DetectNodesTimeColumn}, columns...))
	}
	return f, nil
}

func parseNodeHeader(fields []string) (domain.Timestep, int, error) {
	if len(fields) != 5 {
		return 0, 0, fmt.Errorf("expected header \"year month day count hour\", got %d fields", len(fields))
	}
	var n [5]int
	for i, s := range fields {
		v, err := strconv.Atoi(s)
		if err != nil {
			return 0, 0, fmt.Errorf("header field %d: %w", i+1, err)
		}
		n[i] = v
	}
	if n[3] < 0 {
		return 0, 0, fmt.Errorf("negative node count %d", n[3])
	}
	t := time.Date(n[0], time.Month(n[1]), n[2], n[4], 0, 0, 0, time.UTC)
	return domain.TimestepOf(t), n[3], nil
}

// WriteCSV writes the frame with a header line. Numbers use the shortest
// representation that round-trips.
func (f *Frame) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(f.columns); err != nil {
		return err
	}
	rec := make([]string, len(f.columns))
	for r := range f.rows {
		for i, c := range f.columns {
			switch v := f.rows[r][i].(type) {
			case float64:
				rec[i] = strconv.FormatFloat(v, 'g', -1, 64)
			default:
				rec[i] = f.String(r, c)
			}
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// detectNodesPaths expands a glob for the "detectnodes" layout.
func detectNodesPaths(pattern string) ([]string, error) {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files match %s", pattern)
	}
	return paths, nil
}
