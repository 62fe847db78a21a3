package pairing

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
	"github.com/couchcryptid/storm-data-blobtag/internal/observability"
)

// TimestepMatcher solves one timestep's matching problem.
type TimestepMatcher interface {
	Match(task Task) (Result, error)
}

// Assignment is the merged outcome of a pairing stage. Pairs is indexed by
// blob row.
type Assignment struct {
	Pairs  []domain.Pairing
	Counts map[domain.PairMethod]int
}

// Scheduler runs a TimestepMatcher for every timestep on a bounded pool.
type Scheduler struct {
	matcher TimestepMatcher
	workers int
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewScheduler creates a Scheduler with at most workers concurrent tasks.
// A non-positive worker count uses GOMAXPROCS.
func NewScheduler(m TimestepMatcher, workers int, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Scheduler{matcher: m, workers: workers, logger: logger, metrics: metrics}
}

// Run pairs every blob with at most one node of its own timestep. Tasks are
// independent; the first failing task cancels the rest and Run returns its
// error with no partial assignment.
func (s *Scheduler) Run(ctx context.Context, nodes []domain.TrackNode, blobs []domain.BlobRecord) (Assignment, error) {
	start := time.Now()
	groups := IndexByTimestep(nodes, blobs)

	results := make([]Result, len(groups))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, grp := range groups {
		if len(grp.Blobs) == 0 {
			continue
		}
		// Snapshot before dispatch so tasks never touch the shared catalogs.
		task := NewTask(grp, nodes, blobs)
		g.Go(func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					err = &domain.TimestepError{Timestep: task.Timestep, Err: fmt.Errorf("matcher panic: %v", r)}
				}
			}()
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := s.matcher.Match(task)
			if err != nil {
				return err
			}
			results[i] = res
			s.metrics.TimestepsMatched.Inc()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.metrics.MatchFailures.Inc()
		return Assignment{}, fmt.Errorf("pairing aborted: %w", err)
	}

	asg, err := merge(results, len(blobs))
	if err != nil {
		return Assignment{}, err
	}
	for method, n := range asg.Counts {
		s.metrics.Pairings.WithLabelValues(method.String()).Add(float64(n))
	}
	s.metrics.StageDuration.WithLabelValues("match").Observe(time.Since(start).Seconds())
	s.logger.Info("pairing complete",
		"timesteps", len(groups),
		"blobs", len(blobs),
		"radius", asg.Counts[domain.PairRadius],
		"bbox", asg.Counts[domain.PairBoundingBox],
		"unpaired", asg.Counts[domain.PairUnpaired],
		"workers", s.workers,
	)
	return asg, nil
}

// merge places each task's pairs at their blob row, independent of the order
// tasks finished in, and checks that every blob received exactly one pairing.
func merge(results []Result, nBlobs int) (Assignment, error) {
	asg := Assignment{
		Pairs:  make([]domain.Pairing, nBlobs),
		Counts: make(map[domain.PairMethod]int),
	}
	seen := make([]bool, nBlobs)
	for _, res := range results {
		for _, p := range res.Pairs {
			if p.Blob < 0 || p.Blob >= nBlobs {
				return Assignment{}, fmt.Errorf("timestep %s: pairing for unknown blob row %d", res.Timestep, p.Blob)
			}
			if seen[p.Blob] {
				return Assignment{}, fmt.Errorf("timestep %s: blob row %d paired twice", res.Timestep, p.Blob)
			}
			seen[p.Blob] = true
			asg.Pairs[p.Blob] = p
			asg.Counts[p.Method]++
		}
	}
	for i, ok := range seen {
		if !ok {
			return Assignment{}, fmt.Errorf("blob row %d received no pairing", i)
		}
	}
	return asg, nil
}

// Apply writes the assignment into the blob records.
func (a Assignment) Apply(blobs []domain.BlobRecord) {
	for _, p := range a.Pairs {
		blobs[p.Blob].PairedNode = p.Node
		blobs[p.Blob].PairMethod = p.Method
	}
}
