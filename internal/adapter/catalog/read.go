package catalog

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/format"
)

// ReadOptions controls how a table file is parsed.
type ReadOptions struct {
	// Columns names the fields of a headerless text file in order. Entries
	// that are empty or "_" are read but not addressable. When unset the
	// first line is the header.
	Columns []string `yaml:"columns,omitempty"`
	// Delimiter overrides the separator implied by the extension.
	Delimiter string `yaml:"delimiter,omitempty"`
	// Layout names a known headerless layout: "blobstats" selects
	// BlobStatsColumns; "detectnodes" reads DetectNodes output files
	// matching the path as a glob, with Columns naming the data fields.
	Layout string `yaml:"layout,omitempty"`
}

// Read loads a table, choosing the format from the file extension: .parquet
// is Parquet, .csv is comma separated, anything else is tab separated.
func Read(path string, opts ReadOptions) (*Frame, error) {
	switch opts.Layout {
	case "", "blobstats":
	case "detectnodes":
		paths, err := detectNodesPaths(path)
		if err != nil {
			return nil, err
		}
		return ReadDetectNodes(paths, opts.Columns)
	default:
		return nil, fmt.Errorf("unknown table layout %q", opts.Layout)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".parquet", ".pq":
		return readParquet(path)
	case ".csv":
		return readText(path, ',', opts)
	default:
		return readText(path, '\t', opts)
	}
}

func readText(path string, comma rune, opts ReadOptions) (*Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	if opts.Delimiter != "" {
		comma = []rune(opts.Delimiter)[0]
	}
	r := csv.NewReader(fh)
	r.Comma = comma
	r.Comment = '#'
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	columns := opts.Columns
	if len(columns) == 0 && opts.Layout == "blobstats" {
		columns = BlobStatsColumns
	}
	if len(columns) == 0 {
		header, err := r.Read()
		if err != nil {
			return nil, fmt.Errorf("%s: read header: %w", path, err)
		}
		columns = make([]string, len(header))
		for i, h := range header {
			columns[i] = strings.TrimSpace(h)
		}
	}

	f := newFrame(filepath.Base(path), columns)
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		if len(rec) < len(columns) {
			return nil, fmt.Errorf("%s: line has %d fields, want %d", path, len(rec), len(columns))
		}
		row := make([]any, len(columns))
		for i := range columns {
			row[i] = strings.TrimSpace(rec[i])
		}
		f.append(row)
	}
	return f, nil
}

func readParquet(path string) (*Frame, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()
	st, err := fh.Stat()
	if err != nil {
		return nil, err
	}
	pf, err := parquet.OpenFile(fh, st.Size())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	schema := pf.Schema()
	paths := schema.Columns()
	columns := make([]string, len(paths))
	decoders := make([]func(parquet.Value) (any, error), len(paths))
	for i, p := range paths {
		columns[i] = strings.Join(p, ".")
		leaf, _ := schema.Lookup(p...)
		decoders[i] = decoderFor(leaf.Node.Type().LogicalType())
	}

	f := newFrame(filepath.Base(path), columns)
	buf := make([]parquet.Row, 512)
	for _, rg := range pf.RowGroups() {
		rows := rg.Rows()
		for {
			n, err := rows.ReadRows(buf)
			for _, pr := range buf[:n] {
				row := make([]any, len(columns))
				for _, v := range pr {
					c := v.Column()
					if c < 0 || c >= len(row) {
						continue
					}
					cell, derr := decoders[c](v)
					if derr != nil {
						rows.Close()
						return nil, fmt.Errorf("%s column %q: %w", path, columns[c], derr)
					}
					row[c] = cell
				}
				f.append(row)
			}
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				rows.Close()
				return nil, fmt.Errorf("%s: %w", path, err)
			}
		}
		rows.Close()
	}
	return f, nil
}

func decoderFor(lt *format.LogicalType) func(parquet.Value) (any, error) {
	if lt != nil && lt.Timestamp != nil {
		unit := time.Nanosecond
		switch {
		case lt.Timestamp.Unit.Millis != nil:
			unit = time.Millisecond
		case lt.Timestamp.Unit.Micros != nil:
			unit = time.Microsecond
		}
		return func(v parquet.Value) (any, error) {
			if v.IsNull() {
				return nil, nil
			}
			return time.Unix(0, v.Int64()*int64(unit)).UTC(), nil
		}
	}
	return decodeValue
}

func decodeValue(v parquet.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	switch v.Kind() {
	case parquet.Boolean:
		return v.Boolean(), nil
	case parquet.Int32:
		return int64(v.Int32()), nil
	case parquet.Int64:
		return v.Int64(), nil
	case parquet.Float:
		return float64(v.Float()), nil
	case parquet.Double:
		return v.Double(), nil
	case parquet.ByteArray, parquet.FixedLenByteArray:
		return string(v.ByteArray()), nil
	default:
		return nil, fmt.Errorf("unsupported parquet kind %s", v.Kind())
	}
}
