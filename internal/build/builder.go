package build

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/georag/georag/internal/embed"
	"github.com/georag/georag/internal/errs"
	"github.com/georag/georag/internal/geo"
	"github.com/georag/georag/internal/store"
	"github.com/georag/georag/internal/text"
)

// EmbedBatchSize is the default number of chunks embedded per Embedder
// call (spec §4.7); cancellation is checked at every batch boundary.
const EmbedBatchSize = 64

// parallelThreshold is the chunk count above which the embedding stage
// fans out onto a bounded worker pool instead of running batches inline
// (spec §9 design note).
const parallelThreshold = 1000

// Stores bundles the four storage ports a build reads from and writes to.
type Stores struct {
	Spatial  store.SpatialStore
	Document store.DocumentStore
	Vector   store.VectorStore
	Build    store.BuildStore
}

// Builder runs the Index Builder's state machine for exactly one
// workspace. Run enforces single-build-per-workspace exclusion itself via
// TryLock; callers (the Workspace Coordinator) layer their own
// build-vs-query lock on top.
type Builder struct {
	stores   Stores
	embedder embed.Embedder
	chunker  text.ChunkerOptions

	// Recorder observes per-stage duration (internal/telemetry wires this
	// to an OTel histogram); defaults to a no-op.
	Recorder StageRecorder

	mu sync.Mutex
}

// New constructs a Builder bound to one workspace's storage ports and
// embedder.
func New(stores Stores, embedder embed.Embedder, chunker text.ChunkerOptions) *Builder {
	if chunker.WindowSize <= 0 {
		chunker = text.DefaultChunkerOptions()
	}
	return &Builder{stores: stores, embedder: embedder, chunker: chunker, Recorder: noopRecorder{}}
}

// run holds one Build invocation's mutable state as it advances through
// Idle -> ... -> Ready (or Failed).
type run struct {
	ws    store.Workspace
	state State

	recorder   StageRecorder
	stageStart time.Time
}

// Run executes one full build for ws: Normalize, Validate, Chunk, Embed,
// Finalize. It fails fast with Conflict if another build is already
// running for this Builder.
func (b *Builder) Run(ctx context.Context, ws store.Workspace) (*store.IndexBuild, error) {
	if !b.mu.TryLock() {
		return nil, errs.New(errs.Conflict, "a build is already running for this workspace", nil).
			WithDetail("workspace_id", ws.ID)
	}
	defer b.mu.Unlock()

	recorder := b.Recorder
	if recorder == nil {
		recorder = noopRecorder{}
	}
	r := &run{ws: ws, state: Idle, recorder: recorder, stageStart: time.Now()}
	build, err := b.runStages(ctx, r)
	if err != nil {
		_ = r.transition(Failed)
		return nil, err
	}
	return build, nil
}

// datasetWork is the per-dataset working set carried across the Normalize,
// Validate, and Chunk stages.
type datasetWork struct {
	dataset  store.Dataset
	features []store.Feature
	// normalized holds each feature's workspace-CRS, validity-repaired
	// geometry, keyed by Feature.ID; the persisted Feature geometry is
	// left untouched (spec §9 design note (b)).
	normalized map[string]geo.Geometry
}

func (b *Builder) runStages(ctx context.Context, r *run) (*store.IndexBuild, error) {
	datasets, err := b.stores.Spatial.ListDatasets(ctx, r.ws.ID)
	if err != nil {
		return nil, err
	}
	if len(datasets) == 0 {
		return nil, errs.New(errs.InvalidInput, "workspace has no datasets to build", nil).
			WithDetail("workspace_id", r.ws.ID)
	}

	// --- Normalize ---
	if err := r.transition(Normalizing); err != nil {
		return nil, err
	}
	work, err := b.normalize(ctx, r.ws, datasets)
	if err != nil {
		return nil, err
	}

	// --- Validate ---
	if err := r.transition(Validating); err != nil {
		return nil, err
	}
	if err := b.validate(r.ws, work); err != nil {
		return nil, err
	}

	// --- Chunk ---
	if err := r.transition(Chunking); err != nil {
		return nil, err
	}
	records, err := b.chunkAll(ctx, work)
	if err != nil {
		return nil, err
	}
	orderChunks(records)

	// --- Embed ---
	if err := r.transition(Embedding); err != nil {
		return nil, err
	}
	if err := b.resolvePersistedIDs(ctx, datasets, records); err != nil {
		return nil, err
	}
	if err := b.embedAll(ctx, records); err != nil {
		return nil, err
	}

	// --- Finalize ---
	if err := r.transition(Finalizing); err != nil {
		return nil, err
	}
	result, err := b.finalize(ctx, r.ws, records)
	if err != nil {
		return nil, err
	}

	if err := r.transition(Ready); err != nil {
		return nil, err
	}
	return result, nil
}

func (b *Builder) normalize(ctx context.Context, ws store.Workspace, datasets []store.Dataset) ([]*datasetWork, error) {
	work := make([]*datasetWork, 0, len(datasets))
	for _, ds := range datasets {
		if err := ctx.Err(); err != nil {
			return nil, errs.Wrap(errs.Cancelled, err)
		}
		features, err := b.stores.Spatial.ListFeatures(ctx, ds.ID)
		if err != nil {
			return nil, err
		}
		w := &datasetWork{dataset: ds, features: features, normalized: make(map[string]geo.Geometry, len(features))}
		for _, f := range features {
			g := f.Geometry
			if f.Geometry.CRS != ws.CRS {
				reprojected, err := geo.Reproject(f.Geometry, ws.CRS)
				if err != nil {
					return nil, err
				}
				g = reprojected
			}
			w.normalized[f.ID] = g
		}
		work = append(work, w)
	}
	return work, nil
}

func (b *Builder) validate(ws store.Workspace, work []*datasetWork) error {
	for _, w := range work {
		total := geo.Repairs{}
		for id, g := range w.normalized {
			repaired, repairs, err := geo.Validate(g, ws.GeometryValidity)
			if err != nil {
				return err
			}
			w.normalized[id] = repaired
			total.ClosedRings += repairs.ClosedRings
			total.FixedWinding += repairs.FixedWinding
			total.DroppedEmpty += repairs.DroppedEmpty
			total.SplitSelfIsect += repairs.SplitSelfIsect
		}
		if total.Total() > 0 {
			slog.Info("build_repairs", slog.String("workspace_id", ws.ID), slog.String("dataset", w.dataset.Name),
				slog.Int("closed_rings", total.ClosedRings), slog.Int("fixed_winding", total.FixedWinding),
				slog.Int("dropped_empty", total.DroppedEmpty), slog.Int("split_self_isect", total.SplitSelfIsect))
		}
	}
	return nil
}

func (b *Builder) chunkAll(ctx context.Context, work []*datasetWork) ([]chunkRecord, error) {
	var records []chunkRecord
	for _, w := range work {
		for _, f := range w.features {
			if err := ctx.Err(); err != nil {
				return nil, errs.Wrap(errs.Cancelled, err)
			}
			rec, err := b.putFeatureChunk(ctx, w.dataset, f, w.normalized[f.ID])
			if err != nil {
				return nil, err
			}
			records = append(records, rec)
		}

		docs, err := b.stores.Document.ListDocuments(ctx, w.dataset.ID)
		if err != nil {
			return nil, err
		}
		for _, doc := range docs {
			if err := ctx.Err(); err != nil {
				return nil, errs.Wrap(errs.Cancelled, err)
			}
			rec, err := b.putDocumentChunks(ctx, w.dataset, doc)
			if err != nil {
				return nil, err
			}
			records = append(records, rec...)
		}
	}
	return records, nil
}

// putFeatureChunk persists the feature's one property chunk (spec §4.3).
// Every Chunk belongs to a Document (spec §3); a Feature with no Document
// of its own is given a synthetic one-chunk Document so the ownership
// invariant holds, without the feature ever surfacing a document name in
// the fingerprint (chunkRecord.DocumentName stays nil for these).
func (b *Builder) putFeatureChunk(ctx context.Context, ds store.Dataset, f store.Feature, normalized geo.Geometry) (chunkRecord, error) {
	syntheticDoc, err := b.stores.Document.PutDocument(ctx, nil, store.Document{
		ID:        syntheticDocumentID(f.ID),
		DatasetID: ds.ID,
		Name:      fmt.Sprintf("%s.properties", f.FeatureID),
		Format:    "properties",
	})
	if err != nil {
		return chunkRecord{}, err
	}

	chunk := text.PropertyChunk(f.Properties)
	featurePK := f.ID
	if err := b.stores.Document.PutChunks(ctx, nil, []store.Chunk{{
		DocumentID:  syntheticDoc.ID,
		ChunkIndex:  chunk.Index,
		Content:     chunk.Content,
		StartOffset: chunk.StartOffset,
		EndOffset:   chunk.EndOffset,
		Geometry:    &normalized,
		FeatureID:   &featurePK,
	}}); err != nil {
		return chunkRecord{}, err
	}

	featureTag := f.FeatureID
	return chunkRecord{
		DatasetName: ds.Name,
		FeatureTag:  &featureTag,
		ChunkIndex:  chunk.Index,
		Content:     chunk.Content,
		StartOffset: chunk.StartOffset,
		EndOffset:   chunk.EndOffset,
		Geometry:    &normalized,
		datasetID:   ds.ID,
		documentID:  syntheticDoc.ID,
		featurePK:   &featurePK,
	}, nil
}

// syntheticDocumentID derives a stable id from the owning feature's own id
// so rebuilds upsert the same synthetic Document instead of accumulating
// one per run.
func syntheticDocumentID(featurePK string) string {
	return "feature-props:" + featurePK
}

func (b *Builder) putDocumentChunks(ctx context.Context, ds store.Dataset, doc store.Document) ([]chunkRecord, error) {
	chunks := text.ChunkDocument(doc.RawText, b.chunker, doc.Geometry)
	if len(chunks) == 0 {
		return nil, nil
	}

	storeChunks := make([]store.Chunk, len(chunks))
	records := make([]chunkRecord, len(chunks))
	docName := doc.Name
	for i, c := range chunks {
		storeChunks[i] = store.Chunk{
			DocumentID:  doc.ID,
			ChunkIndex:  c.Index,
			Content:     c.Content,
			StartOffset: c.StartOffset,
			EndOffset:   c.EndOffset,
			Geometry:    c.Geometry,
			FeatureID:   c.FeatureID,
		}
		records[i] = chunkRecord{
			DatasetName:  ds.Name,
			DocumentName: &docName,
			ChunkIndex:   c.Index,
			Content:      c.Content,
			StartOffset:  c.StartOffset,
			EndOffset:    c.EndOffset,
			Geometry:     c.Geometry,
			datasetID:    ds.ID,
			documentID:   doc.ID,
		}
	}
	if err := b.stores.Document.PutChunks(ctx, nil, storeChunks); err != nil {
		return nil, err
	}
	return records, nil
}

// resolvePersistedIDs fills in each record's authoritative chunk id.
// PutChunks upserts by (document_id, chunk_index) rather than by the id
// the builder proposes, so the id actually stored is read back once per
// dataset rather than assumed.
func (b *Builder) resolvePersistedIDs(ctx context.Context, datasets []store.Dataset, records []chunkRecord) error {
	byDataset := make(map[string][]int, len(datasets)) // dataset id -> record indexes
	for i, r := range records {
		byDataset[r.datasetID] = append(byDataset[r.datasetID], i)
	}

	for datasetID := range byDataset {
		persisted, err := b.stores.Document.ListChunksByDataset(ctx, datasetID)
		if err != nil {
			return err
		}
		ids := make(map[string]string, len(persisted)) // (document_id, chunk_index) -> chunk id
		for _, c := range persisted {
			ids[chunkKey(c.DocumentID, c.ChunkIndex)] = c.ID
		}
		for _, idx := range byDataset[datasetID] {
			records[idx].resolvedID = ids[chunkKey(records[idx].documentID, records[idx].ChunkIndex)]
		}
	}
	return nil
}

func chunkKey(documentID string, chunkIndex int) string {
	return documentID + "#" + fmt.Sprint(chunkIndex)
}

// embedAll embeds and upserts every record in batches of EmbedBatchSize,
// checking ctx at every batch boundary (spec §5). Batches run inline for
// the common case, or on a bounded worker pool above parallelThreshold
// (spec §9 design note).
func (b *Builder) embedAll(ctx context.Context, records []chunkRecord) error {
	batches := batchRecords(records, EmbedBatchSize)

	embedBatch := func(batch []chunkRecord) error {
		texts := make([]string, len(batch))
		for i, r := range batch {
			texts[i] = r.Content
		}
		vectors, err := b.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return errs.Wrap(errs.EmbedderUnavailable, err).WithDetail("model", b.embedder.ModelName())
		}
		if len(vectors) != len(batch) {
			return errs.New(errs.DimensionMismatch, "embedder returned a different batch size than requested", nil)
		}
		embeddings := make([]store.Embedding, len(batch))
		for i, r := range batch {
			embeddings[i] = store.Embedding{
				ChunkID:    r.resolvedID,
				Model:      b.embedder.ModelName(),
				Dimensions: b.embedder.Dimensions(),
				Vector:     vectors[i],
			}
		}
		return b.stores.Vector.UpsertEmbeddings(ctx, nil, embeddings)
	}

	if len(records) > parallelThreshold {
		return parallelBatches(ctx, batches, embedBatch)
	}
	for _, batch := range batches {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(errs.Cancelled, err)
		}
		if err := embedBatch(batch); err != nil {
			return err
		}
	}
	return nil
}

func batchRecords(records []chunkRecord, size int) [][]chunkRecord {
	var batches [][]chunkRecord
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}

// parallelBatches runs batches concurrently, bounded to GOMAXPROCS
// workers, for the >1000-element case (spec §9 design note).
func parallelBatches(ctx context.Context, batches [][]chunkRecord, fn func([]chunkRecord) error) error {
	sem := semaphore.NewWeighted(int64(runtime.GOMAXPROCS(0)))
	g, gctx := errgroup.WithContext(ctx)
	for _, batch := range batches {
		batch := batch
		if err := sem.Acquire(gctx, 1); err != nil {
			return err
		}
		g.Go(func() error {
			defer sem.Release(1)
			return fn(batch)
		})
	}
	return g.Wait()
}

func (b *Builder) finalize(ctx context.Context, ws store.Workspace, records []chunkRecord) (*store.IndexBuild, error) {
	hash, err := fingerprint(ws, b.embedder.ModelName(), b.embedder.Dimensions(), records)
	if err != nil {
		return nil, err
	}

	prior, err := b.stores.Build.CurrentBuild(ctx, ws.ID)
	if err != nil {
		return nil, err
	}

	result := store.IndexBuild{
		WorkspaceID:   ws.ID,
		Hash:          hash,
		EmbedderModel: b.embedder.ModelName(),
		EmbeddingDim:  b.embedder.Dimensions(),
		ChunkCount:    len(records),
		BuiltAt:       time.Now().UTC(),
	}
	if err := b.stores.Build.PutBuild(ctx, nil, result); err != nil {
		return nil, err
	}

	// Tear down the superseded build's embeddings only now that the new
	// build has committed successfully (spec §4.7: rebuild atomicity).
	if prior != nil && prior.EmbedderModel != result.EmbedderModel {
		if err := b.stores.Vector.PurgeModel(ctx, nil, ws.ID, prior.EmbedderModel); err != nil {
			return nil, err
		}
	}
	return &result, nil
}
