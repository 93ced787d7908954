package workspace

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/georag/georag/internal/build"
	"github.com/georag/georag/internal/embed"
	"github.com/georag/georag/internal/errs"
	"github.com/georag/georag/internal/retrieval"
	"github.com/georag/georag/internal/store"
	"github.com/georag/georag/internal/telemetry"
	"github.com/georag/georag/internal/text"
)

// Coordinator owns one workspace's concurrency invariants (spec §4.9): a
// workspace-scoped exclusive lock for builds, a shared lock for queries,
// and fine-grained per-dataset locks for ingestion so concurrent ingestion
// of different datasets never blocks on each other.
type Coordinator struct {
	ws store.Workspace

	spatial  store.SpatialStore
	document store.DocumentStore
	vector   store.VectorStore
	build    store.BuildStore
	embedder embed.Embedder

	builder  *build.Builder
	pipeline *retrieval.Pipeline

	// buildMu serializes builds against queries: Build takes the write
	// side, Query takes the read side (spec §5 "queries acquire read...
	// build acquires write on the workspace").
	buildMu sync.RWMutex

	datasetLocksMu sync.Mutex
	datasetLocks   map[string]*sync.Mutex

	settingsMu sync.RWMutex
	settings   Settings

	watcher *configWatcher
}

// Stores bundles the storage ports a Coordinator needs to answer Status,
// run builds, and run queries.
type Stores struct {
	Spatial  store.SpatialStore
	Document store.DocumentStore
	Vector   store.VectorStore
	Build    store.BuildStore
}

// New constructs a Coordinator for ws bound to stores and embedder, with
// settings at their defaults until WatchConfig (or LoadSettings) overrides
// them.
func New(ws store.Workspace, stores Stores, embedder embed.Embedder, chunker text.ChunkerOptions) *Coordinator {
	buildStores := build.Stores{
		Spatial:  stores.Spatial,
		Document: stores.Document,
		Vector:   stores.Vector,
		Build:    stores.Build,
	}
	return &Coordinator{
		ws:           ws,
		spatial:      stores.Spatial,
		document:     stores.Document,
		vector:       stores.Vector,
		build:        stores.Build,
		embedder:     embedder,
		builder:      build.New(buildStores, embedder, chunker),
		pipeline:     retrieval.New(stores.Spatial, stores.Document, stores.Vector, stores.Build, embedder),
		datasetLocks: make(map[string]*sync.Mutex),
		settings:     DefaultSettings(),
	}
}

// WithMetrics wires m's histograms into the Coordinator's Builder and
// Pipeline via the telemetry.BuildRecorder/QueryRecorder adapters, so every
// build stage transition and retrieval pipeline stage records its duration.
// Returns c for chaining after New.
func (c *Coordinator) WithMetrics(m *telemetry.Metrics) *Coordinator {
	c.builder.Recorder = telemetry.BuildRecorder{Metrics: m}
	c.pipeline.Recorder = telemetry.QueryRecorder{Metrics: m}
	return c
}

// datasetLock returns (creating if necessary) the per-dataset ingestion
// lock for datasetID (spec §4.9 "(added)": fine-grained, not workspace-wide).
func (c *Coordinator) datasetLock(datasetID string) *sync.Mutex {
	c.datasetLocksMu.Lock()
	defer c.datasetLocksMu.Unlock()
	l, ok := c.datasetLocks[datasetID]
	if !ok {
		l = &sync.Mutex{}
		c.datasetLocks[datasetID] = l
	}
	return l
}

// IngestDataset runs ingest under that dataset's own lock, independent of
// every other dataset's ingestion and of any in-flight query (spec §5:
// "ingestion acquires write only on the affected dataset row").
func (c *Coordinator) IngestDataset(ctx context.Context, datasetID string, ingest func(ctx context.Context) error) error {
	lock := c.datasetLock(datasetID)
	lock.Lock()
	defer lock.Unlock()
	return ingest(ctx)
}

// IngestDatasets runs one ingest function per dataset concurrently via
// errgroup (spec §4.9 "(added)"), each still serialized against other
// ingestions of the *same* dataset by IngestDataset's own locking. The
// first error cancels ctx for the rest of the group.
func (c *Coordinator) IngestDatasets(ctx context.Context, jobs map[string]func(ctx context.Context) error) error {
	g, gctx := errgroup.WithContext(ctx)
	for datasetID, ingest := range jobs {
		datasetID, ingest := datasetID, ingest
		g.Go(func() error {
			return c.IngestDataset(gctx, datasetID, ingest)
		})
	}
	return g.Wait()
}

// Build runs one index build for the workspace, holding the write side of
// buildMu so no query observes a half-built index and no concurrent build
// can run (the Builder's own TryLock additionally refuses concurrent Run
// calls on itself, but Coordinator's lock is what keeps queries out too).
func (c *Coordinator) Build(ctx context.Context) (*store.IndexBuild, error) {
	c.buildMu.Lock()
	defer c.buildMu.Unlock()
	return c.builder.Run(ctx, c.ws)
}

// Query runs one retrieval against the current index, holding the read
// side of buildMu so it can run concurrently with other queries but never
// overlaps a Build.
func (c *Coordinator) Query(ctx context.Context, plan retrieval.Plan) ([]retrieval.Result, retrieval.Explanation, error) {
	c.buildMu.RLock()
	defer c.buildMu.RUnlock()
	return c.pipeline.Run(ctx, c.ws, plan)
}

// Settings returns the Coordinator's current hot-reloadable settings.
func (c *Coordinator) Settings() Settings {
	c.settingsMu.RLock()
	defer c.settingsMu.RUnlock()
	return c.settings
}

// LoadSettings replaces the Coordinator's settings from a YAML file,
// without touching anything structural (no rebuild triggered).
func (c *Coordinator) LoadSettings(path string) error {
	s, err := loadSettings(path)
	if err != nil {
		return errs.Wrap(errs.Io, err)
	}
	c.settingsMu.Lock()
	c.settings = s
	c.settingsMu.Unlock()
	return nil
}

// Close stops any running config watcher. Safe to call on a Coordinator
// that never started one.
func (c *Coordinator) Close() error {
	if c.watcher == nil {
		return nil
	}
	return c.watcher.stop()
}
