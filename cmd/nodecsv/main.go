// Command nodecsv converts DetectNodes text output into one CSV file with an
// ISOTIME column followed by the named data columns.
//
// Usage:
//
//	go run ./cmd/nodecsv -in 'detectnodes/*.txt' -columns i,j,LON,LAT,MSLP -out nodes.csv
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/couchcryptid/storm-data-blobtag/internal/adapter/catalog"
)

func main() {
	in := flag.String("in", "", "glob matching DetectNodes output files")
	out := flag.String("out", "nodes.csv", "CSV file to write")
	columns := flag.String("columns", "", "comma-separated names of the data columns (default var1..varN)")
	flag.Parse()

	if *in == "" {
		flag.Usage()
		os.Exit(1)
	}
	if err := run(*in, *out, splitColumns(*columns)); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}

func run(pattern, out string, columns []string) error {
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no files match %s", pattern)
	}
	sort.Strings(paths)

	f, err := catalog.ReadDetectNodes(paths, columns)
	if err != nil {
		return err
	}

	tmp := out + ".partial"
	fh, err := os.Create(tmp)
	if err != nil {
		return err
	}
	if err := f.WriteCSV(fh); err != nil {
		fh.Close()
		os.Remove(tmp)
		return err
	}
	if err := fh.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, out); err != nil {
		return err
	}
	fmt.Printf("Saved %d rows from %d files to %s\n", f.Len(), len(paths), out)
	return nil
}

func splitColumns(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}
