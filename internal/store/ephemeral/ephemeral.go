// Package ephemeral implements the in-process storage adapter (spec §4.6):
// sync.RWMutex-guarded maps keyed by ID, with a copy-on-write Tx that
// clones the affected maps on Begin, mutates the clones, and swaps them
// into the live Store on Commit (or discards them on Rollback). Persisted
// form is a flock-guarded JSON snapshot written to the workspace directory
// (spec §6), handled by snapshot.go.
package ephemeral

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/georag/georag/internal/errs"
	"github.com/georag/georag/internal/geo"
	"github.com/georag/georag/internal/spatial"
	"github.com/georag/georag/internal/store"
	"github.com/georag/georag/internal/vector"
)

// Store is the ephemeral adapter: one instance per workspace.
type Store struct {
	mu sync.RWMutex

	workspaceID string

	datasets map[string]store.Dataset            // id -> dataset
	byName   map[string]string                    // dataset name -> id
	features map[string]map[string]store.Feature  // dataset id -> feature id -> Feature
	docs     map[string]store.Document            // id -> document
	chunks   map[string]store.Chunk               // id -> chunk
	embeds   map[string]map[string]store.Embedding // chunk id -> model -> Embedding
	builds   []store.IndexBuild
}

var (
	_ store.SpatialStore  = (*Store)(nil)
	_ store.VectorStore   = (*Store)(nil)
	_ store.DocumentStore = (*Store)(nil)
	_ store.BuildStore    = (*Store)(nil)
)

// New creates an empty ephemeral store for one workspace.
func New(workspaceID string) *Store {
	return &Store{
		workspaceID: workspaceID,
		datasets:    make(map[string]store.Dataset),
		byName:      make(map[string]string),
		features:    make(map[string]map[string]store.Feature),
		docs:        make(map[string]store.Document),
		chunks:      make(map[string]store.Chunk),
		embeds:      make(map[string]map[string]store.Embedding),
	}
}

// tx is a copy-on-write snapshot: the maps it holds are clones taken at
// Begin, mutated in place by writes issued against the owning Store, and
// published into the live Store only on Commit.
type tx struct {
	s    *Store
	open bool

	datasets map[string]store.Dataset
	byName   map[string]string
	features map[string]map[string]store.Feature
	docs     map[string]store.Document
	chunks   map[string]store.Chunk
	embeds   map[string]map[string]store.Embedding
	builds   []store.IndexBuild
}

func (s *Store) BeginTx(ctx context.Context) (store.Tx, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t := &tx{
		s:        s,
		open:     true,
		datasets: cloneDatasets(s.datasets),
		byName:   cloneStrings(s.byName),
		features: cloneFeatureSets(s.features),
		docs:     cloneDocs(s.docs),
		chunks:   cloneChunks(s.chunks),
		embeds:   cloneEmbedSets(s.embeds),
		builds:   append([]store.IndexBuild(nil), s.builds...),
	}
	return t, nil
}

func (t *tx) Commit(ctx context.Context) error {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	if !t.open {
		return errs.New(errs.Internal, "transaction already closed", nil)
	}
	t.s.datasets = t.datasets
	t.s.byName = t.byName
	t.s.features = t.features
	t.s.docs = t.docs
	t.s.chunks = t.chunks
	t.s.embeds = t.embeds
	t.s.builds = t.builds
	t.open = false
	return nil
}

func (t *tx) Rollback(ctx context.Context) error {
	t.open = false
	return nil
}

// asTx resolves the store.Tx a caller passed in, falling back to an
// implicit single-write transaction when nil (convenience for callers that
// don't need multi-write atomicity).
func (s *Store) asTx(provided store.Tx) (*tx, bool, error) {
	if provided != nil {
		t, ok := provided.(*tx)
		if !ok || t.s != s {
			return nil, false, errs.New(errs.Internal, "transaction not issued by this store", nil)
		}
		return t, false, nil
	}
	t, err := s.BeginTx(context.Background())
	if err != nil {
		return nil, false, err
	}
	return t.(*tx), true, nil
}

func (s *Store) PutDataset(ctx context.Context, provided store.Tx, ds store.Dataset) (store.Dataset, error) {
	t, implicit, err := s.asTx(provided)
	if err != nil {
		return store.Dataset{}, err
	}
	if ds.ID == "" {
		ds.ID = uuid.NewString()
	}
	if ds.CreatedAt.IsZero() {
		ds.CreatedAt = time.Time{}
	}
	if existing, ok := t.byName[ds.Name]; ok && existing != ds.ID {
		return store.Dataset{}, errs.New(errs.Conflict, "dataset name already exists in workspace", nil).WithDetail("name", ds.Name)
	}
	t.datasets[ds.ID] = ds
	t.byName[ds.Name] = ds.ID
	if _, ok := t.features[ds.ID]; !ok {
		t.features[ds.ID] = make(map[string]store.Feature)
	}
	if implicit {
		if err := t.Commit(ctx); err != nil {
			return store.Dataset{}, err
		}
	}
	return ds, nil
}

func (s *Store) GetDataset(ctx context.Context, workspaceID, name string) (store.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[name]
	if !ok {
		return store.Dataset{}, errs.New(errs.NotFound, "dataset not found", nil).WithDetail("name", name)
	}
	return s.datasets[id], nil
}

func (s *Store) ListDatasets(ctx context.Context, workspaceID string) ([]store.Dataset, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Dataset, 0, len(s.datasets))
	for _, ds := range s.datasets {
		out = append(out, ds)
	}
	return out, nil
}

func (s *Store) DeleteDataset(ctx context.Context, provided store.Tx, datasetID string) error {
	t, implicit, err := s.asTx(provided)
	if err != nil {
		return err
	}
	if ds, ok := t.datasets[datasetID]; ok {
		delete(t.byName, ds.Name)
	}
	delete(t.datasets, datasetID)
	delete(t.features, datasetID)
	if implicit {
		return t.Commit(ctx)
	}
	return nil
}

func (s *Store) PutFeatures(ctx context.Context, provided store.Tx, datasetID string, features []store.Feature) error {
	t, implicit, err := s.asTx(provided)
	if err != nil {
		return err
	}
	set, ok := t.features[datasetID]
	if !ok {
		set = make(map[string]store.Feature)
		t.features[datasetID] = set
	}
	for _, f := range features {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		f.DatasetID = datasetID
		set[f.FeatureID] = f
	}
	if implicit {
		return t.Commit(ctx)
	}
	return nil
}

func (s *Store) GetFeature(ctx context.Context, datasetID, featureID string) (store.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set, ok := s.features[datasetID]
	if !ok {
		return store.Feature{}, errs.New(errs.NotFound, "dataset has no features", nil)
	}
	f, ok := set[featureID]
	if !ok {
		return store.Feature{}, errs.New(errs.NotFound, "feature not found", nil).WithDetail("feature_id", featureID)
	}
	return f, nil
}

func (s *Store) ListFeatures(ctx context.Context, datasetID string) ([]store.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.features[datasetID]
	out := make([]store.Feature, 0, len(set))
	for _, f := range set {
		out = append(out, f)
	}
	return out, nil
}

func (s *Store) QueryBbox(ctx context.Context, datasetID string, bbox geo.Geometry) ([]store.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	set := s.features[datasetID]
	out := make([]store.Feature, 0)
	for _, f := range set {
		if geo.BBoxIntersects(f.Geometry, bbox) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (s *Store) QueryPredicate(ctx context.Context, workspaceID string, predicate string, query geo.Geometry, distanceMeters float64) ([]store.Feature, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]spatial.Entry, 0)
	lookup := make(map[string]store.Feature)
	for dsID, set := range s.features {
		ds := s.datasets[dsID]
		for _, f := range set {
			key := ds.Name + "\x00" + f.FeatureID
			entries = append(entries, spatial.Entry{DatasetName: ds.Name, FeatureID: f.FeatureID, Geometry: f.Geometry})
			lookup[key] = f
		}
	}
	idx := spatial.Build(entries)

	var pred spatial.Predicate
	switch predicate {
	case "within":
		pred = spatial.PredicateWithin
	case "intersects":
		pred = spatial.PredicateIntersects
	case "contains":
		pred = spatial.PredicateContains
	case "dwithin":
		pred = spatial.PredicateDWithin
	default:
		return nil, errs.New(errs.InvalidInput, "unknown spatial predicate", nil).WithDetail("predicate", predicate)
	}

	matches, err := idx.Query(pred, query, distanceMeters)
	if err != nil {
		return nil, err
	}
	out := make([]store.Feature, 0, len(matches))
	for _, m := range matches {
		key := m.DatasetName + "\x00" + m.FeatureID
		out = append(out, lookup[key])
	}
	return out, nil
}

func (s *Store) UpsertEmbeddings(ctx context.Context, provided store.Tx, embeddings []store.Embedding) error {
	t, implicit, err := s.asTx(provided)
	if err != nil {
		return err
	}
	for _, e := range embeddings {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		set, ok := t.embeds[e.ChunkID]
		if !ok {
			set = make(map[string]store.Embedding)
			t.embeds[e.ChunkID] = set
		}
		set[e.Model] = e
	}
	if implicit {
		return t.Commit(ctx)
	}
	return nil
}

func (s *Store) TopK(ctx context.Context, model string, query []float32, k int, candidateChunkIDs map[string]bool) ([]store.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]vector.Entry, 0, len(s.embeds))
	for chunkID, set := range s.embeds {
		e, ok := set[model]
		if !ok {
			continue
		}
		entries = append(entries, vector.Entry{ChunkID: chunkID, Vector: e.Vector})
	}
	idx := vector.Build(entries)
	matches := idx.TopK(query, k, candidateChunkIDs)

	out := make([]store.ScoredChunk, len(matches))
	for i, m := range matches {
		out[i] = store.ScoredChunk{ChunkID: m.ChunkID, Score: m.Score}
	}
	return out, nil
}

func (s *Store) PurgeModel(ctx context.Context, provided store.Tx, workspaceID, model string) error {
	t, implicit, err := s.asTx(provided)
	if err != nil {
		return err
	}
	for chunkID, set := range t.embeds {
		delete(set, model)
		if len(set) == 0 {
			delete(t.embeds, chunkID)
		}
	}
	if implicit {
		return t.Commit(ctx)
	}
	return nil
}

func (s *Store) PutDocument(ctx context.Context, provided store.Tx, doc store.Document) (store.Document, error) {
	t, implicit, err := s.asTx(provided)
	if err != nil {
		return store.Document{}, err
	}
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	t.docs[doc.ID] = doc
	if implicit {
		if err := t.Commit(ctx); err != nil {
			return store.Document{}, err
		}
	}
	return doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, datasetID string) ([]store.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.Document, 0)
	for _, d := range s.docs {
		if d.DatasetID == datasetID {
			out = append(out, d)
		}
	}
	return out, nil
}

// PutChunks upserts on (DocumentID, ChunkIndex), matching the postgres
// adapter's UNIQUE constraint: a rebuild that re-derives the same
// document/index pairs replaces their fields in place instead of
// accumulating duplicates.
func (s *Store) PutChunks(ctx context.Context, provided store.Tx, chunks []store.Chunk) error {
	t, implicit, err := s.asTx(provided)
	if err != nil {
		return err
	}
	for _, c := range chunks {
		if existingID := t.findChunkID(c.DocumentID, c.ChunkIndex); existingID != "" {
			c.ID = existingID
		} else if c.ID == "" {
			c.ID = uuid.NewString()
		}
		t.chunks[c.ID] = c
	}
	if implicit {
		return t.Commit(ctx)
	}
	return nil
}

func (t *tx) findChunkID(documentID string, chunkIndex int) string {
	for id, c := range t.chunks {
		if c.DocumentID == documentID && c.ChunkIndex == chunkIndex {
			return id
		}
	}
	return ""
}

func (s *Store) ListChunksByDataset(ctx context.Context, datasetID string) ([]store.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	docIDs := make(map[string]bool)
	for id, d := range s.docs {
		if d.DatasetID == datasetID {
			docIDs[id] = true
		}
	}
	out := make([]store.Chunk, 0)
	for _, c := range s.chunks {
		if docIDs[c.DocumentID] {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *Store) GetChunk(ctx context.Context, chunkID string) (store.Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chunks[chunkID]
	if !ok {
		return store.Chunk{}, errs.New(errs.NotFound, "chunk not found", nil).WithDetail("chunk_id", chunkID)
	}
	return c, nil
}

func (s *Store) PutBuild(ctx context.Context, provided store.Tx, build store.IndexBuild) error {
	t, implicit, err := s.asTx(provided)
	if err != nil {
		return err
	}
	if build.ID == "" {
		build.ID = uuid.NewString()
	}
	t.builds = append(t.builds, build)
	if implicit {
		return t.Commit(ctx)
	}
	return nil
}

func (s *Store) CurrentBuild(ctx context.Context, workspaceID string) (*store.IndexBuild, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.builds) == 0 {
		return nil, nil
	}
	latest := s.builds[len(s.builds)-1]
	return &latest, nil
}

func cloneDatasets(m map[string]store.Dataset) map[string]store.Dataset {
	out := make(map[string]store.Dataset, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneStrings(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneFeatureSets(m map[string]map[string]store.Feature) map[string]map[string]store.Feature {
	out := make(map[string]map[string]store.Feature, len(m))
	for k, set := range m {
		inner := make(map[string]store.Feature, len(set))
		for fk, fv := range set {
			inner[fk] = fv
		}
		out[k] = inner
	}
	return out
}

func cloneDocs(m map[string]store.Document) map[string]store.Document {
	out := make(map[string]store.Document, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneChunks(m map[string]store.Chunk) map[string]store.Chunk {
	out := make(map[string]store.Chunk, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneEmbedSets(m map[string]map[string]store.Embedding) map[string]map[string]store.Embedding {
	out := make(map[string]map[string]store.Embedding, len(m))
	for k, set := range m {
		inner := make(map[string]store.Embedding, len(set))
		for fk, fv := range set {
			inner[fk] = fv
		}
		out[k] = inner
	}
	return out
}
