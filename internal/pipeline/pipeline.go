package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/storm-data-blobtag/internal/config"
	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
	"github.com/couchcryptid/storm-data-blobtag/internal/labels"
	"github.com/couchcryptid/storm-data-blobtag/internal/observability"
	"github.com/couchcryptid/storm-data-blobtag/internal/pairing"
	"github.com/couchcryptid/storm-data-blobtag/internal/propagate"
	"github.com/couchcryptid/storm-data-blobtag/internal/raster"
)

// Store reads job inputs and writes job outputs.
type Store interface {
	LoadNodes(src config.NodeSource) ([]domain.TrackNode, error)
	LoadBlobs(set config.BlobSet) ([]domain.BlobRecord, error)
	OpenMasks(set config.BlobSet) (MaskDataset, error)
	MaskSink(set config.BlobSet, labels []domain.Label) raster.Sink
	WriteTagged(set config.BlobSet, blobs []domain.BlobRecord, nodes []domain.TrackNode) error
}

// MaskDataset is a raster dataset holding open files.
type MaskDataset interface {
	raster.Dataset
	Close() error
}

// Pairer assigns nodes to blobs.
type Pairer interface {
	Run(ctx context.Context, nodes []domain.TrackNode, blobs []domain.BlobRecord) (pairing.Assignment, error)
}

// EventPublisher publishes tagged-blob events. Optional.
type EventPublisher interface {
	Publish(ctx context.Context, events []domain.TaggedBlob) error
}

// RunLedger records run provenance. Optional.
type RunLedger interface {
	StartRun(ctx context.Context, jobFile string, radiusDeg float64) (string, error)
	RecordSet(ctx context.Context, runID string, s domain.SetSummary) error
	FinishRun(ctx context.Context, runID string, runErr error) error
}

// Options tune a Pipeline.
type Options struct {
	Workers   int
	Partition raster.Partitioner
	RadiusDeg float64
	Publisher EventPublisher
	Ledger    RunLedger
}

// Pipeline runs one tagging job: load, match, classify, propagate, persist.
type Pipeline struct {
	job     *config.Job
	store   Store
	pairer  Pairer
	opts    Options
	logger  *slog.Logger
	metrics *observability.Metrics
	ready   atomic.Bool
	last    atomic.Pointer[[]domain.SetSummary]
}

// New creates a Pipeline for job.
func New(job *config.Job, store Store, pairer Pairer, opts Options, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	if opts.Partition == nil {
		opts.Partition = raster.ByYear
	}
	return &Pipeline{
		job:     job,
		store:   store,
		pairer:  pairer,
		opts:    opts,
		logger:  logger,
		metrics: metrics,
	}
}

// CheckReadiness returns nil once a job has completed successfully.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if !p.ready.Load() {
		return errors.New("no tagging job has completed yet")
	}
	return nil
}

// Summaries returns the per-set summaries of the last successful run.
func (p *Pipeline) Summaries() []domain.SetSummary {
	if s := p.last.Load(); s != nil {
		return *s
	}
	return nil
}

// Run executes the job once and returns a summary per blob set. Any error
// aborts the job; outputs already committed for earlier sets remain.
func (p *Pipeline) Run(ctx context.Context) (summaries []domain.SetSummary, err error) {
	p.metrics.JobRunning.Set(1)
	defer p.metrics.JobRunning.Set(0)

	runID := ""
	if p.opts.Ledger != nil {
		if runID, err = p.opts.Ledger.StartRun(ctx, p.job.Path(), p.opts.RadiusDeg); err != nil {
			return nil, err
		}
		defer func() {
			// Record the outcome even when ctx was cancelled.
			if ferr := p.opts.Ledger.FinishRun(context.WithoutCancel(ctx), runID, err); ferr != nil {
				p.logger.Error("ledger finish failed", "run", runID, "error", ferr)
			}
		}()
	}
	p.logger.Info("job started", "job", p.job.Path(), "sets", len(p.job.Sets), "run", runID)

	classifier, err := labels.NewClassifier(*p.job.Labels)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	nodes, err := p.store.LoadNodes(p.job.Nodes)
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}
	// Every table is loaded before matching starts so a missing column
	// aborts the job with no outputs written.
	blobs := make([][]domain.BlobRecord, len(p.job.Sets))
	for i, set := range p.job.Sets {
		if blobs[i], err = p.store.LoadBlobs(set); err != nil {
			return nil, fmt.Errorf("set %s: load blobs: %w", set.Name, err)
		}
	}
	p.metrics.StageDuration.WithLabelValues("load").Observe(time.Since(start).Seconds())

	start = time.Now()
	nodeLabels := classifier.Classify(nodes)
	p.metrics.StageDuration.WithLabelValues("classify").Observe(time.Since(start).Seconds())
	p.logger.Info("nodes classified", "nodes", len(nodes), "precedence", string(classifier.Scheme().Precedence))

	for i, set := range p.job.Sets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		s, err := p.runSet(ctx, set, nodes, blobs[i], nodeLabels, classifier.Scheme().Set())
		if err != nil {
			return nil, fmt.Errorf("set %s: %w", set.Name, err)
		}
		if p.opts.Ledger != nil {
			if err := p.opts.Ledger.RecordSet(ctx, runID, s); err != nil {
				return nil, err
			}
		}
		summaries = append(summaries, s)
	}

	p.last.Store(&summaries)
	p.ready.Store(true)
	p.logger.Info("job complete", "sets", len(summaries), "run", runID)
	return summaries, nil
}

func (p *Pipeline) runSet(ctx context.Context, set config.BlobSet, nodes []domain.TrackNode, blobs []domain.BlobRecord, nodeLabels, labelSet []domain.Label) (domain.SetSummary, error) {
	log := p.logger.With("set", set.Name)

	var err error
	summary := domain.SetSummary{Set: set.Name, Blobs: len(blobs)}
	if set.Prepaired {
		if summary.Pairings, err = checkPrepaired(nodes, blobs); err != nil {
			return domain.SetSummary{}, err
		}
		for method, n := range summary.Pairings {
			p.metrics.Pairings.WithLabelValues(method.String()).Add(float64(n))
		}
	} else {
		asg, err := p.pairer.Run(ctx, nodes, blobs)
		if err != nil {
			return domain.SetSummary{}, err
		}
		asg.Apply(blobs)
		summary.Pairings = asg.Counts
	}
	log.Info("blobs paired",
		"blobs", len(blobs),
		"radius", summary.Pairings[domain.PairRadius],
		"bbox", summary.Pairings[domain.PairBoundingBox],
		"preassigned", summary.Pairings[domain.PairPreassigned],
		"unpaired", summary.Pairings[domain.PairUnpaired],
	)

	start := time.Now()
	groups, err := propagate.Table(blobs, nodeLabels, labelSet)
	if err != nil {
		return domain.SetSummary{}, err
	}
	p.metrics.StageDuration.WithLabelValues("table").Observe(time.Since(start).Seconds())
	for _, g := range groups {
		n := g.Len()
		summary.Labels = append(summary.Labels, domain.LabelCount{Label: g.Label, Blobs: n})
		p.metrics.LabelsAssigned.WithLabelValues(g.Label.Name).Add(float64(n))
		log.Info("label group", "label", g.Label.Name, "code", g.Label.Code, "blobs", n, "timesteps", len(g.ByTimestep))
	}

	if set.Masks != "" {
		if err := p.relabelMasks(ctx, set, groups, labelSet, &summary); err != nil {
			return domain.SetSummary{}, err
		}
	}

	if err := p.store.WriteTagged(set, blobs, nodes); err != nil {
		return domain.SetSummary{}, fmt.Errorf("write tagged table: %w", err)
	}

	if p.opts.Publisher != nil {
		start = time.Now()
		events := make([]domain.TaggedBlob, len(blobs))
		for i, b := range blobs {
			var node *domain.TrackNode
			if b.Paired() {
				node = &nodes[b.PairedNode]
			}
			events[i] = domain.NewTaggedBlob(set.Name, b, node)
		}
		if err := p.opts.Publisher.Publish(ctx, events); err != nil {
			return domain.SetSummary{}, fmt.Errorf("publish: %w", err)
		}
		p.metrics.EventsPublished.Add(float64(len(events)))
		p.metrics.StageDuration.WithLabelValues("publish").Observe(time.Since(start).Seconds())
	}
	return summary, nil
}

func (p *Pipeline) relabelMasks(ctx context.Context, set config.BlobSet, groups propagate.Groups, labelSet []domain.Label, summary *domain.SetSummary) error {
	start := time.Now()
	ds, err := p.store.OpenMasks(set)
	if err != nil {
		return fmt.Errorf("open masks: %w", err)
	}
	defer ds.Close()

	plan := raster.From(ds)
	for _, g := range groups {
		plan = plan.Where(raster.Replace(g.Label.Code, g.ByTimestep))
	}

	stats, err := plan.Write(ctx, p.store.MaskSink(set, labelSet), p.opts.Partition, p.opts.Workers)
	if err != nil {
		var cov *domain.CoverageError
		if errors.As(err, &cov) {
			p.metrics.CoverageErrors.Inc()
		}
		return fmt.Errorf("relabel masks: %w", err)
	}
	p.metrics.SlicesWritten.Add(float64(stats.Slices))
	p.metrics.StageDuration.WithLabelValues("raster").Observe(time.Since(start).Seconds())
	summary.Slices = stats.Slices
	summary.Partitions = stats.Partitions
	p.logger.Info("masks relabeled", "set", set.Name, "slices", stats.Slices, "partitions", len(stats.Partitions))
	return nil
}

// checkPrepaired validates pairings carried by the input and counts them.
func checkPrepaired(nodes []domain.TrackNode, blobs []domain.BlobRecord) (map[domain.PairMethod]int, error) {
	counts := make(map[domain.PairMethod]int)
	for _, b := range blobs {
		if !b.Paired() {
			counts[domain.PairUnpaired]++
			continue
		}
		if b.PairedNode < 0 || b.PairedNode >= len(nodes) {
			return nil, fmt.Errorf("blob %d at %s: paired node %d out of range", b.BlobID, b.Timestep, b.PairedNode)
		}
		if nodes[b.PairedNode].Timestep != b.Timestep {
			return nil, fmt.Errorf("blob %d at %s: paired node %d is at %s", b.BlobID, b.Timestep, b.PairedNode, nodes[b.PairedNode].Timestep)
		}
		counts[b.PairMethod]++
	}
	return counts, nil
}
