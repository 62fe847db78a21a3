// Package catalog reads node catalogs and blob statistics from CSV, TSV and
// Parquet files and writes tagged blob tables as Parquet.
package catalog

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
)

var errOutOfRange = errors.New("value out of range")

// Frame is a table loaded from disk. Cells hold string, int64, float64,
// bool, time.Time or nil for nulls.
type Frame struct {
	Name    string
	columns []string
	index   map[string]int
	rows    [][]any
}

func newFrame(name string, columns []string) *Frame {
	f := &Frame{Name: name, columns: columns, index: make(map[string]int, len(columns))}
	for i, c := range columns {
		if c == "" || c == "_" {
			continue
		}
		f.index[c] = i
	}
	return f
}

func (f *Frame) append(row []any) {
	f.rows = append(f.rows, row)
}

// Len returns the number of rows.
func (f *Frame) Len() int {
	return len(f.rows)
}

// Columns returns the column names in file order.
func (f *Frame) Columns() []string {
	return append([]string(nil), f.columns...)
}

// Has reports whether the frame has column c.
func (f *Frame) Has(c string) bool {
	_, ok := f.index[c]
	return ok
}

// Require fails with a *domain.MissingColumnError for the first absent column.
func (f *Frame) Require(cols ...string) error {
	for _, c := range cols {
		if !f.Has(c) {
			return &domain.MissingColumnError{Table: f.Name, Column: c}
		}
	}
	return nil
}

// Value returns the raw cell, or nil for an absent column.
func (f *Frame) Value(row int, col string) any {
	i, ok := f.index[col]
	if !ok || i >= len(f.rows[row]) {
		return nil
	}
	return f.rows[row][i]
}

// Float returns the cell as float64. Nulls and empty strings read as NaN.
func (f *Frame) Float(row int, col string) (float64, error) {
	switch v := f.Value(row, col).(type) {
	case nil:
		return math.NaN(), nil
	case float64:
		return v, nil
	case int64:
		return float64(v), nil
	case string:
		s := strings.TrimSpace(v)
		if s == "" || strings.EqualFold(s, "nan") {
			return math.NaN(), nil
		}
		x, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, f.cellError(row, col, err)
		}
		return x, nil
	default:
		return 0, f.cellError(row, col, fmt.Errorf("cannot read %T as a number", v))
	}
}

// Int returns the cell as int64. Nulls are an error.
func (f *Frame) Int(row int, col string) (int64, error) {
	switch v := f.Value(row, col).(type) {
	case int64:
		return v, nil
	case float64:
		if v != math.Trunc(v) || math.IsNaN(v) {
			return 0, f.cellError(row, col, fmt.Errorf("%v is not an integer", v))
		}
		return int64(v), nil
	case string:
		s := strings.TrimSpace(v)
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			// Integer columns holding nulls are often written as floats.
			x, ferr := strconv.ParseFloat(s, 64)
			if ferr != nil || x != math.Trunc(x) {
				return 0, f.cellError(row, col, err)
			}
			n = int64(x)
		}
		return n, nil
	default:
		return 0, f.cellError(row, col, fmt.Errorf("cannot read %T as an integer", v))
	}
}

// String returns the cell formatted as text; nulls read as "".
func (f *Frame) String(row int, col string) string {
	switch v := f.Value(row, col).(type) {
	case nil:
		return ""
	case string:
		return v
	case time.Time:
		return domain.TimestepOf(v).String()
	default:
		return fmt.Sprint(v)
	}
}

// Timestep returns the cell as a timestep, accepting timestamps and the
// string formats domain.ParseTimestep understands.
func (f *Frame) Timestep(row int, col string) (domain.Timestep, error) {
	switch v := f.Value(row, col).(type) {
	case time.Time:
		return domain.TimestepOf(v), nil
	case string:
		ts, err := domain.ParseTimestep(v)
		if err != nil {
			return 0, f.cellError(row, col, err)
		}
		return ts, nil
	default:
		return 0, f.cellError(row, col, fmt.Errorf("cannot read %T as a time", v))
	}
}

func (f *Frame) cellError(row int, col string, err error) error {
	return fmt.Errorf("%s row %d column %q: %w", f.Name, row, col, err)
}
