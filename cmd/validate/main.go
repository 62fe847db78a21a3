// Command validate re-checks the outputs of a tagging job: the tagged blob
// tables and the relabeled masks of every set in the job file. Each set is
// checked in phases and a pass/fail report is printed.
//
// Usage:
//
//	go run ./cmd/validate -job jobs/era5.yaml
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/couchcryptid/storm-data-blobtag/internal/adapter/catalog"
	"github.com/couchcryptid/storm-data-blobtag/internal/adapter/netcdf"
	"github.com/couchcryptid/storm-data-blobtag/internal/config"
	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
	"github.com/couchcryptid/storm-data-blobtag/internal/raster"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// maxErrors caps the detail printed per phase.
const maxErrors = 20

func main() {
	jobFile := flag.String("job", "", "path to the job file whose outputs are validated")
	flag.Parse()

	if *jobFile == "" {
		flag.Usage()
		os.Exit(1)
	}
	os.Exit(run(*jobFile))
}

func run(jobFile string) int {
	job, err := config.LoadJob(jobFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		return 1
	}
	set := job.Labels.Set()

	fmt.Println("=== Blob Tagging Output Validation ===")

	var phases []*phase
	for _, s := range job.Sets {
		rows, err := catalog.ReadTagged(s.TaggedOutput)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: set %s: %v\n", s.Name, err)
			return 1
		}
		phases = append(phases, validateTable(s.Name, rows, set))

		if s.Masks == "" {
			continue
		}
		src, err := netcdf.Open(s.Masks, s.Variable)
		if err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: set %s: source masks: %v\n", s.Name, err)
			return 1
		}
		out, err := netcdf.Open(filepath.Join(s.MaskOutput, s.MaskPrefix+"_*.nc"), s.Variable)
		if err != nil {
			src.Close()
			fmt.Fprintf(os.Stderr, "FATAL: set %s: relabeled masks: %v\n", s.Name, err)
			return 1
		}
		phases = append(phases, validateMasks(s.Name, src, out, rows, set))
		src.Close()
		out.Close()
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i == maxErrors {
				fmt.Printf("  ... %d more\n", len(p.errors)-maxErrors)
				break
			}
			fmt.Printf("  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Println("\nAll validations passed.")
		return 0
	}
	fmt.Println("\nValidation FAILED.")
	return 1
}

type blobKey struct {
	ts domain.Timestep
	id int32
}

// ── Tagged table ──
// Every row carries exactly one label from the set; unpaired rows carry the
// background label; (time, blobid) is unique.

func validateTable(name string, rows []catalog.TaggedBlobRow, set []domain.Label) *phase {
	p := &phase{name: fmt.Sprintf("%s: tagged table (%d rows)", name, len(rows))}

	byCode := make(map[int32]string, len(set))
	for _, l := range set {
		byCode[l.Code] = l.Name
	}
	background := set[0]

	seen := make(map[blobKey]bool, len(rows))
	for i, r := range rows {
		k := blobKey{domain.TimestepOf(r.Time), r.BlobID}
		if seen[k] {
			p.errorf("row %d: blob %d at %s appears twice", i, r.BlobID, k.ts)
		}
		seen[k] = true

		want, ok := byCode[r.BlobTag]
		switch {
		case !ok:
			p.errorf("row %d: code %d is not in the label set", i, r.BlobTag)
		case want != r.Label:
			p.errorf("row %d: code %d is labeled %q, want %q", i, r.BlobTag, r.Label, want)
		}

		unpaired := r.PairedNode == domain.Unpaired
		if unpaired != (r.PairMethod == domain.PairUnpaired.String()) {
			p.errorf("row %d: paired_node %d disagrees with pair_method %q", i, r.PairedNode, r.PairMethod)
		}
		if unpaired && r.BlobTag != background.Code {
			p.errorf("row %d: unpaired blob %d carries %q", i, r.BlobID, r.Label)
		}
	}
	return p
}

// ── Relabeled masks ──
// Output slices match the source slices one for one; every positive source
// cell becomes its blob's code; every other cell is unchanged.

func validateMasks(name string, src, out raster.Dataset, rows []catalog.TaggedBlobRow, set []domain.Label) *phase {
	p := &phase{name: fmt.Sprintf("%s: relabeled masks", name)}

	codes := make(map[blobKey]int32, len(rows))
	for _, r := range rows {
		codes[blobKey{domain.TimestepOf(r.Time), r.BlobID}] = r.BlobTag
	}
	valid := make(map[int32]bool, len(set))
	for _, l := range set {
		valid[l.Code] = true
	}

	if src.Grid().Cells() != out.Grid().Cells() {
		p.errorf("grid has %d cells, source has %d", out.Grid().Cells(), src.Grid().Cells())
		return p
	}
	srcRefs, outRefs := src.Slices(), out.Slices()
	if len(srcRefs) != len(outRefs) {
		p.errorf("%d slices written, source has %d", len(outRefs), len(srcRefs))
		return p
	}

	for i := range srcRefs {
		if srcRefs[i].Timestep != outRefs[i].Timestep {
			p.errorf("slice %d: timestep %s, source has %s", i, outRefs[i].Timestep, srcRefs[i].Timestep)
			continue
		}
		sc, err := src.Read(srcRefs[i])
		if err != nil {
			p.errorf("slice %d: %v", i, err)
			continue
		}
		oc, err := out.Read(outRefs[i])
		if err != nil {
			p.errorf("slice %d: %v", i, err)
			continue
		}
		ts := srcRefs[i].Timestep
		for j, v := range sc.Values {
			got := oc.Values[j]
			if v <= 0 {
				if got != v {
					p.errorf("%s cell %d: non-blob value %d became %d", ts, j, v, got)
				}
				continue
			}
			want, ok := codes[blobKey{ts, v}]
			switch {
			case !ok:
				p.errorf("%s cell %d: blob %d has no tagged row", ts, j, v)
			case got != want:
				p.errorf("%s cell %d: blob %d written as %d, want %d", ts, j, v, got, want)
			case !valid[got]:
				p.errorf("%s cell %d: code %d is not in the label set", ts, j, got)
			}
		}
	}
	return p
}
