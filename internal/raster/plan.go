package raster

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
)

// Plan is a deferred relabeling of a Dataset. Building a plan reads nothing;
// Write streams every slice through the ops exactly once.
type Plan struct {
	src Dataset
	ops []Op
}

// From starts a plan over ds.
func From(ds Dataset) Plan {
	return Plan{src: ds}
}

// Where returns a plan with ops appended. The receiver is not modified.
func (p Plan) Where(ops ...Op) Plan {
	next := make([]Op, 0, len(p.ops)+len(ops))
	next = append(next, p.ops...)
	next = append(next, ops...)
	return Plan{src: p.src, ops: next}
}

// Ops returns the plan's operations.
func (p Plan) Ops() []Op {
	return append([]Op(nil), p.ops...)
}

// Apply relabels one chunk into a fresh buffer. Values <= 0 pass through. A
// positive value claimed by ops with different codes fails with
// domain.ErrAmbiguousRemap; one claimed by none fails with a
// *domain.CoverageError.
func (p Plan) Apply(c Chunk) (Chunk, error) {
	out := Chunk{Ref: c.Ref, Values: make([]int32, len(c.Values))}
	resolved := make(map[int32]int32)
	for i, v := range c.Values {
		if v <= 0 {
			out.Values[i] = v
			continue
		}
		code, ok := resolved[v]
		if !ok {
			var err error
			if code, err = p.resolve(c.Ref, v); err != nil {
				return Chunk{}, err
			}
			resolved[v] = code
		}
		out.Values[i] = code
	}
	return out, nil
}

func (p Plan) resolve(ref SliceRef, v int32) (int32, error) {
	var code int32
	hit := false
	for _, op := range p.ops {
		if !op.match(ref.Timestep, v) {
			continue
		}
		if hit && op.code != code {
			return 0, fmt.Errorf("%s at %s: value %d maps to %d and %d: %w",
				ref.File, ref.Timestep, v, code, op.code, domain.ErrAmbiguousRemap)
		}
		code, hit = op.code, true
	}
	if !hit {
		return 0, &domain.CoverageError{File: ref.File, Timestep: ref.Timestep, Value: v}
	}
	return code, nil
}

// WriteStats summarizes a completed Write.
type WriteStats struct {
	Partitions []string
	Slices     int
}

// Write materializes the plan. Slices are grouped by part and each partition
// is written by one worker, at most workers at a time, holding one chunk in
// memory. Partitions are committed in order only after every partition has
// been written. A write failure aborts all of them; a commit failure aborts
// the partitions not yet committed, leaving earlier ones in place.
func (p Plan) Write(ctx context.Context, sink Sink, part Partitioner, workers int) (WriteStats, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var keys []string
	byKey := make(map[string][]SliceRef)
	for _, ref := range p.src.Slices() {
		k := part(ref.Timestep)
		if _, ok := byKey[k]; !ok {
			keys = append(keys, k)
		}
		byKey[k] = append(byKey[k], ref)
	}

	grid := p.src.Grid()
	writers := make([]PartitionWriter, len(keys))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, key := range keys {
		g.Go(func() error {
			w, err := sink.Create(key, grid, len(byKey[key]))
			if err != nil {
				return fmt.Errorf("create partition %s: %w", key, err)
			}
			writers[i] = w
			for _, ref := range byKey[key] {
				if err := gctx.Err(); err != nil {
					return err
				}
				in, err := p.src.Read(ref)
				if err != nil {
					return fmt.Errorf("read %s[%d]: %w", ref.File, ref.Index, err)
				}
				out, err := p.Apply(in)
				if err != nil {
					return err
				}
				if err := w.Write(out); err != nil {
					return fmt.Errorf("write partition %s: %w", key, err)
				}
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		abortAll(writers)
		return WriteStats{}, err
	}
	stats := WriteStats{Partitions: keys}
	for i, w := range writers {
		if err := w.Commit(); err != nil {
			abortAll(writers[i+1:])
			return WriteStats{}, fmt.Errorf("commit partition %s: %w", keys[i], err)
		}
		stats.Slices += len(byKey[keys[i]])
	}
	return stats, nil
}

func abortAll(ws []PartitionWriter) {
	for _, w := range ws {
		if w != nil {
			_ = w.Abort()
		}
	}
}
