package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/storm-data-blobtag/internal/config"
	"github.com/couchcryptid/storm-data-blobtag/internal/domain"
	"github.com/couchcryptid/storm-data-blobtag/internal/labels"
	"github.com/couchcryptid/storm-data-blobtag/internal/observability"
	"github.com/couchcryptid/storm-data-blobtag/internal/pairing"
	"github.com/couchcryptid/storm-data-blobtag/internal/pipeline"
	"github.com/couchcryptid/storm-data-blobtag/internal/raster"
)

// --- mocks ---

type memMasks struct {
	grid   raster.Grid
	chunks []raster.Chunk
	closed bool
}

func (m *memMasks) Grid() raster.Grid { return m.grid }

func (m *memMasks) Slices() []raster.SliceRef {
	refs := make([]raster.SliceRef, len(m.chunks))
	for i, c := range m.chunks {
		refs[i] = c.Ref
	}
	return refs
}

func (m *memMasks) Read(ref raster.SliceRef) (raster.Chunk, error) {
	return m.chunks[ref.Index], nil
}

func (m *memMasks) Close() error {
	m.closed = true
	return nil
}

type memSink struct {
	mu        sync.Mutex
	committed map[string][]raster.Chunk
}

func (s *memSink) Create(key string, _ raster.Grid, _ int) (raster.PartitionWriter, error) {
	return &memWriter{sink: s, key: key}, nil
}

type memWriter struct {
	sink   *memSink
	key    string
	chunks []raster.Chunk
}

func (w *memWriter) Write(c raster.Chunk) error {
	w.chunks = append(w.chunks, c)
	return nil
}

func (w *memWriter) Commit() error {
	w.sink.mu.Lock()
	defer w.sink.mu.Unlock()
	w.sink.committed[w.key] = w.chunks
	return nil
}

func (w *memWriter) Abort() error { return nil }

type mockStore struct {
	nodes  []domain.TrackNode
	blobs  map[string][]domain.BlobRecord
	masks  map[string]*memMasks
	sinks  map[string]*memSink
	tagged map[string][]domain.BlobRecord
}

func (m *mockStore) LoadNodes(config.NodeSource) ([]domain.TrackNode, error) {
	return m.nodes, nil
}

func (m *mockStore) LoadBlobs(set config.BlobSet) ([]domain.BlobRecord, error) {
	blobs, ok := m.blobs[set.Name]
	if !ok {
		return nil, errors.New("no such stats file")
	}
	return append([]domain.BlobRecord(nil), blobs...), nil
}

func (m *mockStore) OpenMasks(set config.BlobSet) (pipeline.MaskDataset, error) {
	return m.masks[set.Name], nil
}

func (m *mockStore) MaskSink(set config.BlobSet, _ []domain.Label) raster.Sink {
	s := &memSink{committed: make(map[string][]raster.Chunk)}
	m.sinks[set.Name] = s
	return s
}

func (m *mockStore) WriteTagged(set config.BlobSet, blobs []domain.BlobRecord, _ []domain.TrackNode) error {
	m.tagged[set.Name] = blobs
	return nil
}

type mockPairer struct {
	err error
}

func (m *mockPairer) Run(context.Context, []domain.TrackNode, []domain.BlobRecord) (pairing.Assignment, error) {
	if m.err != nil {
		return pairing.Assignment{}, m.err
	}
	return pairing.Assignment{}, errors.New("pairer must not be called")
}

type mockPublisher struct {
	events []domain.TaggedBlob
	err    error
}

func (m *mockPublisher) Publish(_ context.Context, events []domain.TaggedBlob) error {
	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, events...)
	return nil
}

type mockLedger struct {
	started  bool
	sets     []domain.SetSummary
	finished bool
	runErr   error
}

func (m *mockLedger) StartRun(context.Context, string, float64) (string, error) {
	m.started = true
	return "run-1", nil
}

func (m *mockLedger) RecordSet(_ context.Context, _ string, s domain.SetSummary) error {
	m.sets = append(m.sets, s)
	return nil
}

func (m *mockLedger) FinishRun(_ context.Context, _ string, err error) error {
	m.finished = true
	m.runErr = err
	return nil
}

// --- fixtures ---

var (
	ts1 = domain.TimestepOf(time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC))
	ts2 = domain.TimestepOf(time.Date(2020, 1, 1, 6, 0, 0, 0, time.UTC))
)

func testNodes() []domain.TrackNode {
	return []domain.TrackNode{
		{ID: 0, TrackID: "t1", Timestep: ts1, Lat: 10, Lon: 100, Pressure: 990, ShortLabel: "TC", TrackInfo: "TC"},
		{ID: 1, TrackID: "t2", Timestep: ts1, Lat: 40, Lon: 200, Pressure: 1000, ShortLabel: "PL(PTLC)", TrackInfo: "PL"},
		{ID: 2, TrackID: "t3", Timestep: ts2, Lat: 10, Lon: 102, Pressure: 1005, ShortLabel: "TD", TrackInfo: "MS"},
	}
}

func blob(id int32, ts domain.Timestep, lat, lon float64) domain.BlobRecord {
	return domain.BlobRecord{
		BlobID: id, Timestep: ts,
		CentLat: lat, CentLon: lon,
		MinLat: lat - 1, MaxLat: lat + 1, MinLon: lon - 1, MaxLon: lon + 1,
		PairedNode: domain.Unpaired,
	}
}

func testBlobs() []domain.BlobRecord {
	return []domain.BlobRecord{
		blob(1, ts1, 10.5, 100.5),
		blob(2, ts1, 40, 201),
		blob(3, ts1, -50, 2),
		blob(1, ts2, 10, 102),
	}
}

func testMasks() *memMasks {
	return &memMasks{
		grid: raster.Grid{Lat: []float64{0, 1}, Lon: []float64{0, 1}},
		chunks: []raster.Chunk{
			{Ref: raster.SliceRef{File: "m.nc", Index: 0, Timestep: ts1}, Values: []int32{1, 2, 3, 0}},
			{Ref: raster.SliceRef{File: "m.nc", Index: 1, Timestep: ts2}, Values: []int32{1, 0, 0, -1}},
		},
	}
}

func newTestStore() *mockStore {
	return &mockStore{
		nodes:  testNodes(),
		blobs:  map[string][]domain.BlobRecord{"precip": testBlobs()},
		masks:  map[string]*memMasks{"precip": testMasks()},
		sinks:  make(map[string]*memSink),
		tagged: make(map[string][]domain.BlobRecord),
	}
}

func newTestJob(sets ...config.BlobSet) *config.Job {
	scheme := labels.DefaultScheme()
	if len(sets) == 0 {
		sets = []config.BlobSet{{Name: "precip", Masks: "masks/*.nc"}}
	}
	return &config.Job{Sets: sets, Labels: &scheme}
}

func newTestPipeline(job *config.Job, store pipeline.Store, opts pipeline.Options) (*pipeline.Pipeline, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	sched := pairing.NewScheduler(pairing.NewMatcher(5, 180), 2, slog.Default(), metrics)
	return pipeline.New(job, store, sched, opts, slog.Default(), metrics), metrics
}

func labelsOf(blobs []domain.BlobRecord) []string {
	out := make([]string, len(blobs))
	for i, b := range blobs {
		out[i] = b.Label.Name
	}
	return out
}

// --- tests ---

func TestPipeline_Run_HappyPath(t *testing.T) {
	store := newTestStore()
	pub := &mockPublisher{}
	ledger := &mockLedger{}
	p, metrics := newTestPipeline(newTestJob(), store, pipeline.Options{Workers: 2, Publisher: pub, Ledger: ledger})

	require.Error(t, p.CheckReadiness(context.Background()))

	summaries, err := p.Run(context.Background())
	require.NoError(t, err)
	require.NoError(t, p.CheckReadiness(context.Background()))
	assert.Equal(t, summaries, p.Summaries())

	tagged := store.tagged["precip"]
	assert.Equal(t, []string{"TC", "PL", "background", "MS"}, labelsOf(tagged))
	assert.Equal(t, []int{0, 1, domain.Unpaired, 2}, []int{tagged[0].PairedNode, tagged[1].PairedNode, tagged[2].PairedNode, tagged[3].PairedNode})

	sink := store.sinks["precip"]
	require.Contains(t, sink.committed, "2020")
	out := sink.committed["2020"]
	require.Len(t, out, 2)
	assert.Equal(t, []int32{1, 4, 0, 0}, out[0].Values)
	assert.Equal(t, []int32{2, 0, 0, -1}, out[1].Values)
	assert.True(t, store.masks["precip"].closed)

	require.Len(t, summaries, 1)
	want := domain.SetSummary{
		Set:   "precip",
		Blobs: 4,
		Pairings: map[domain.PairMethod]int{
			domain.PairRadius:   3,
			domain.PairUnpaired: 1,
		},
		Labels: []domain.LabelCount{
			{Label: domain.Label{Name: "background", Code: 0}, Blobs: 1},
			{Label: domain.Label{Name: "TC", Code: 1}, Blobs: 1},
			{Label: domain.Label{Name: "MS", Code: 2}, Blobs: 1},
			{Label: domain.Label{Name: "SS", Code: 3}, Blobs: 0},
			{Label: domain.Label{Name: "PL", Code: 4}, Blobs: 1},
			{Label: domain.Label{Name: "other", Code: 5}, Blobs: 0},
		},
		Slices:     2,
		Partitions: []string{"2020"},
	}
	if diff := cmp.Diff(want, summaries[0]); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}

	require.Len(t, pub.events, 4)
	assert.Equal(t, "t1", pub.events[0].TrackID)
	assert.Empty(t, pub.events[2].TrackID)
	assert.Equal(t, "MS", pub.events[3].Label)

	assert.True(t, ledger.started)
	assert.True(t, ledger.finished)
	require.NoError(t, ledger.runErr)
	assert.Len(t, ledger.sets, 1)

	assert.InDelta(t, 0, testutil.ToFloat64(metrics.JobRunning), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.LabelsAssigned.WithLabelValues("TC")), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.SlicesWritten), 0)
	assert.InDelta(t, 4, testutil.ToFloat64(metrics.EventsPublished), 0)
}

func TestPipeline_Run_WithoutMasks(t *testing.T) {
	store := newTestStore()
	p, _ := newTestPipeline(newTestJob(config.BlobSet{Name: "precip"}), store, pipeline.Options{})

	summaries, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, store.sinks)
	assert.Zero(t, summaries[0].Slices)
	assert.Len(t, store.tagged["precip"], 4)
}

func TestPipeline_Run_Prepaired(t *testing.T) {
	store := newTestStore()
	blobs := testBlobs()
	blobs[0].PairedNode, blobs[0].PairMethod = 1, domain.PairPreassigned
	blobs[3].PairedNode, blobs[3].PairMethod = 2, domain.PairPreassigned
	store.blobs["size"] = blobs

	metrics := observability.NewMetricsForTesting()
	job := newTestJob(config.BlobSet{Name: "size", Prepaired: true})
	p := pipeline.New(job, store, &mockPairer{}, pipeline.Options{}, slog.Default(), metrics)

	summaries, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"PL", "background", "background", "MS"}, labelsOf(store.tagged["size"]))
	assert.Equal(t, map[domain.PairMethod]int{
		domain.PairPreassigned: 2,
		domain.PairUnpaired:    2,
	}, summaries[0].Pairings)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.Pairings.WithLabelValues("preassigned")), 0)
}

func TestPipeline_Run_PrepairedAcrossTimesteps(t *testing.T) {
	store := newTestStore()
	blobs := testBlobs()
	blobs[3].PairedNode, blobs[3].PairMethod = 0, domain.PairPreassigned
	store.blobs["size"] = blobs

	job := newTestJob(config.BlobSet{Name: "size", Prepaired: true})
	p := pipeline.New(job, store, &mockPairer{}, pipeline.Options{}, slog.Default(), observability.NewMetricsForTesting())

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "paired node 0")
	assert.Empty(t, store.tagged)
}

func TestPipeline_Run_CoverageError(t *testing.T) {
	store := newTestStore()
	store.masks["precip"].chunks[1].Values = []int32{1, 7, 0, 0}
	ledger := &mockLedger{}
	p, metrics := newTestPipeline(newTestJob(), store, pipeline.Options{Ledger: ledger})

	_, err := p.Run(context.Background())
	var cov *domain.CoverageError
	require.ErrorAs(t, err, &cov)
	assert.Equal(t, int32(7), cov.Value)
	assert.Equal(t, ts2, cov.Timestep)

	assert.Empty(t, store.sinks["precip"].committed)
	assert.Empty(t, store.tagged)
	require.Error(t, p.CheckReadiness(context.Background()))
	assert.Nil(t, p.Summaries())
	assert.ErrorAs(t, ledger.runErr, &cov)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.CoverageErrors), 0)
}

func TestPipeline_Run_PairingErrorAbortsJob(t *testing.T) {
	store := newTestStore()
	ledger := &mockLedger{}
	boom := errors.New("boom")
	job := newTestJob()
	p := pipeline.New(job, store, &mockPairer{err: boom}, pipeline.Options{Ledger: ledger}, slog.Default(), observability.NewMetricsForTesting())

	_, err := p.Run(context.Background())
	require.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "set precip")
	assert.Empty(t, store.tagged)
	assert.Empty(t, ledger.sets)
	assert.ErrorIs(t, ledger.runErr, boom)
}

func TestPipeline_Run_PublishError(t *testing.T) {
	store := newTestStore()
	pub := &mockPublisher{err: errors.New("broker down")}
	p, _ := newTestPipeline(newTestJob(), store, pipeline.Options{Publisher: pub})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "publish")
	require.Error(t, p.CheckReadiness(context.Background()))
}

func TestPipeline_Run_MissingStats(t *testing.T) {
	store := newTestStore()
	p, _ := newTestPipeline(newTestJob(config.BlobSet{Name: "size"}), store, pipeline.Options{})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load blobs")
}

func TestPipeline_Run_LoadFailsBeforeMatching(t *testing.T) {
	store := newTestStore()
	job := newTestJob(
		config.BlobSet{Name: "precip", Masks: "precip/*.nc"},
		config.BlobSet{Name: "size"},
	)
	p, metrics := newTestPipeline(job, store, pipeline.Options{})

	_, err := p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "set size")
	assert.Empty(t, store.tagged)
	assert.Empty(t, store.sinks)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.TimestepsMatched), 0)
}

func TestPipeline_Run_ContextCancellation(t *testing.T) {
	store := newTestStore()
	ledger := &mockLedger{}
	p, metrics := newTestPipeline(newTestJob(), store, pipeline.Options{Ledger: ledger})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, store.tagged)
	assert.True(t, ledger.finished)
	assert.InDelta(t, 0, testutil.ToFloat64(metrics.JobRunning), 0)
}

func TestPipeline_Run_MultipleSets(t *testing.T) {
	store := newTestStore()
	store.blobs["size"] = testBlobs()[:2]
	ledger := &mockLedger{}
	job := newTestJob(
		config.BlobSet{Name: "precip", Masks: "precip/*.nc"},
		config.BlobSet{Name: "size"},
	)
	p, _ := newTestPipeline(job, store, pipeline.Options{Ledger: ledger, Partition: raster.Single})

	summaries, err := p.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, "size", summaries[1].Set)
	assert.Equal(t, 2, summaries[1].Blobs)
	assert.Contains(t, store.sinks["precip"].committed, "all")
	assert.Len(t, ledger.sets, 2)
}
