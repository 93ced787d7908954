// Package store defines the storage ports (spec §4.6): SpatialStore,
// VectorStore, DocumentStore, and a Tx abstraction, plus the entity types
// they persist. Two adapters implement these ports: internal/store/ephemeral
// (in-memory, copy-on-write transactions, JSON snapshot persistence) and
// internal/store/postgres (PostGIS + pgvector).
package store

import (
	"context"
	"time"

	"github.com/georag/georag/internal/geo"
)

// Workspace is the top-level container (spec §3): unique name, configured
// CRS, distance unit, and geometry validity policy. Deletion cascades to
// every entity below.
type Workspace struct {
	ID               string
	Name             string
	CRS              geo.CRS
	DistanceUnit     geo.Unit
	GeometryValidity geo.Validity
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// Dataset belongs to one workspace; immutable after ingestion except for
// bbox recompute on repair.
type Dataset struct {
	ID           string
	WorkspaceID  string
	Name         string
	Format       string
	CRS          geo.CRS
	GeometryKind geo.Kind
	FeatureCount int
	Bbox         *geo.Geometry // always stored in EPSG:4326
	Properties   map[string]string
	CreatedAt    time.Time
}

// Feature belongs to one dataset; FeatureID is caller-supplied and unique
// within the dataset.
type Feature struct {
	ID         string
	DatasetID  string
	FeatureID  string
	Geometry   geo.Geometry // always persisted in EPSG:4326
	Properties map[string]string
	CreatedAt  time.Time
}

// Document belongs to one dataset; represents a PDF/DOCX/KML text
// container, optionally spatially anchored. RawText is the parser's
// extracted text, retained so the Index Builder can re-derive Chunks
// deterministically on every build without re-parsing the source.
type Document struct {
	ID        string
	DatasetID string
	Name      string
	Format    string
	Geometry  *geo.Geometry
	RawText   string
	CreatedAt time.Time
}

// Chunk belongs to one document; ChunkIndex is unique within the document.
// FeatureID is a weak back-reference: if the Feature is deleted, the Chunk
// survives with the reference cleared.
type Chunk struct {
	ID          string
	DocumentID  string
	ChunkIndex  int
	Content     string
	StartOffset int
	EndOffset   int
	Geometry    *geo.Geometry
	FeatureID   *string
	CreatedAt   time.Time
}

// Embedding belongs to one chunk; unique per (chunk, model).
type Embedding struct {
	ID         string
	ChunkID    string
	Model      string
	Dimensions int
	Vector     []float32
	CreatedAt  time.Time
}

// IndexBuild records a completed build (spec §3, §4.7). At most one build
// per workspace is "current".
type IndexBuild struct {
	ID           string
	WorkspaceID  string
	Hash         string
	EmbedderModel string
	EmbeddingDim int
	ChunkCount   int
	BuiltAt      time.Time
}

// Tx is a unit-of-work boundary: ingestion and a full index build each
// occur in exactly one transaction per dataset (spec §4.6), with
// read-committed isolation.
type Tx interface {
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// SpatialStore is the CRUD + spatial-query port for Dataset and Feature.
type SpatialStore interface {
	BeginTx(ctx context.Context) (Tx, error)

	PutDataset(ctx context.Context, tx Tx, ds Dataset) (Dataset, error)
	GetDataset(ctx context.Context, workspaceID, name string) (Dataset, error)
	ListDatasets(ctx context.Context, workspaceID string) ([]Dataset, error)
	DeleteDataset(ctx context.Context, tx Tx, datasetID string) error

	PutFeatures(ctx context.Context, tx Tx, datasetID string, features []Feature) error
	GetFeature(ctx context.Context, datasetID, featureID string) (Feature, error)
	ListFeatures(ctx context.Context, datasetID string) ([]Feature, error)

	// QueryBbox returns features whose envelope intersects bbox (spec §4.2).
	QueryBbox(ctx context.Context, datasetID string, bbox geo.Geometry) ([]Feature, error)

	// QueryPredicate evaluates within/intersects/contains/dwithin against
	// query across every dataset in the workspace (delegates to the
	// Spatial Index component).
	QueryPredicate(ctx context.Context, workspaceID string, predicate string, query geo.Geometry, distanceMeters float64) ([]Feature, error)
}

// VectorStore is the insert/upsert/top-K/purge port for Embedding.
type VectorStore interface {
	UpsertEmbeddings(ctx context.Context, tx Tx, embeddings []Embedding) error

	// TopK scores query against embeddings for model, restricted to
	// candidateChunkIDs when non-nil.
	TopK(ctx context.Context, model string, query []float32, k int, candidateChunkIDs map[string]bool) ([]ScoredChunk, error)

	// PurgeModel deletes every embedding for model, used when the build's
	// embedder model changes (spec §3 Embedding lifecycle).
	PurgeModel(ctx context.Context, tx Tx, workspaceID, model string) error
}

// ScoredChunk is a VectorStore.TopK result.
type ScoredChunk struct {
	ChunkID string
	Score   float64
}

// DocumentStore is the CRUD port for Document and Chunk.
type DocumentStore interface {
	PutDocument(ctx context.Context, tx Tx, doc Document) (Document, error)
	ListDocuments(ctx context.Context, datasetID string) ([]Document, error)
	PutChunks(ctx context.Context, tx Tx, chunks []Chunk) error
	ListChunksByDataset(ctx context.Context, datasetID string) ([]Chunk, error)
	GetChunk(ctx context.Context, chunkID string) (Chunk, error)
}

// BuildStore records and retrieves IndexBuild history.
type BuildStore interface {
	PutBuild(ctx context.Context, tx Tx, build IndexBuild) error
	CurrentBuild(ctx context.Context, workspaceID string) (*IndexBuild, error)
}
