// Package postgres implements the durable storage adapter (spec §4.6): a
// PostGIS + pgvector-backed relational schema mirroring §3's entities
// one-to-one, behind the same SpatialStore/VectorStore/DocumentStore/
// BuildStore ports the ephemeral adapter implements.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ddl is the bit-exact schema named in spec §4.6: cascade deletes enforce
// the ownership hierarchy (Workspace owns Dataset owns Feature/Document
// owns Chunk owns Embedding), GIST indexes sit on every geometry column,
// and the embedding column's dimension is baked in at migrate time (the
// chunks table's spatial_ref has ON DELETE SET NULL, matching the weak
// Chunk->Feature back-reference in spec §3).
func ddl(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS postgis;
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS workspaces (
    id                 TEXT        PRIMARY KEY,
    name               TEXT        NOT NULL UNIQUE,
    crs                INTEGER     NOT NULL,
    distance_unit      TEXT        NOT NULL,
    geometry_validity  TEXT        NOT NULL,
    created_at         TIMESTAMPTZ NOT NULL DEFAULT now(),
    updated_at         TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS datasets (
    id            TEXT        PRIMARY KEY,
    workspace_id  TEXT        NOT NULL REFERENCES workspaces (id) ON DELETE CASCADE,
    name          TEXT        NOT NULL,
    format        TEXT        NOT NULL,
    crs           INTEGER     NOT NULL,
    geometry_type TEXT        NOT NULL DEFAULT '',
    feature_count INTEGER     NOT NULL DEFAULT 0,
    bbox          GEOMETRY(Polygon, 4326),
    properties    JSONB       NOT NULL DEFAULT '{}',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (workspace_id, name)
);

CREATE INDEX IF NOT EXISTS idx_datasets_workspace ON datasets (workspace_id);
CREATE INDEX IF NOT EXISTS idx_datasets_bbox ON datasets USING GIST (bbox);

CREATE TABLE IF NOT EXISTS features (
    id          TEXT        PRIMARY KEY,
    dataset_id  TEXT        NOT NULL REFERENCES datasets (id) ON DELETE CASCADE,
    feature_id  TEXT        NOT NULL,
    geometry    GEOMETRY(Geometry, 4326) NOT NULL,
    properties  JSONB       NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (dataset_id, feature_id)
);

CREATE INDEX IF NOT EXISTS idx_features_dataset ON features (dataset_id);
CREATE INDEX IF NOT EXISTS idx_features_geometry ON features USING GIST (geometry);

CREATE TABLE IF NOT EXISTS documents (
    id          TEXT        PRIMARY KEY,
    dataset_id  TEXT        NOT NULL REFERENCES datasets (id) ON DELETE CASCADE,
    name        TEXT        NOT NULL,
    format      TEXT        NOT NULL,
    geometry    GEOMETRY(Geometry, 4326),
    raw_text    TEXT        NOT NULL DEFAULT '',
    metadata    JSONB       NOT NULL DEFAULT '{}',
    created_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_documents_dataset ON documents (dataset_id);
CREATE INDEX IF NOT EXISTS idx_documents_geometry ON documents USING GIST (geometry);

CREATE TABLE IF NOT EXISTS chunks (
    id            TEXT        PRIMARY KEY,
    document_id   TEXT        NOT NULL REFERENCES documents (id) ON DELETE CASCADE,
    chunk_index   INTEGER     NOT NULL,
    content       TEXT        NOT NULL,
    start_offset  INTEGER     NOT NULL,
    end_offset    INTEGER     NOT NULL,
    geometry      GEOMETRY(Geometry, 4326),
    spatial_ref   TEXT        REFERENCES features (id) ON DELETE SET NULL,
    created_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (document_id, chunk_index)
);

CREATE INDEX IF NOT EXISTS idx_chunks_document ON chunks (document_id);
CREATE INDEX IF NOT EXISTS idx_chunks_spatial_ref ON chunks (spatial_ref);
CREATE INDEX IF NOT EXISTS idx_chunks_geometry ON chunks USING GIST (geometry);

CREATE TABLE IF NOT EXISTS embeddings (
    id          TEXT         PRIMARY KEY,
    chunk_id    TEXT         NOT NULL REFERENCES chunks (id) ON DELETE CASCADE,
    model       TEXT         NOT NULL,
    dimensions  INTEGER      NOT NULL,
    vector      vector(%d)   NOT NULL,
    created_at  TIMESTAMPTZ  NOT NULL DEFAULT now(),
    UNIQUE (chunk_id, model)
);

CREATE INDEX IF NOT EXISTS idx_embeddings_model_hnsw
    ON embeddings USING hnsw (vector vector_cosine_ops);

CREATE TABLE IF NOT EXISTS index_builds (
    id                   TEXT        PRIMARY KEY,
    workspace_id         TEXT        NOT NULL REFERENCES workspaces (id) ON DELETE CASCADE,
    hash                 TEXT        NOT NULL,
    embedder_model       TEXT        NOT NULL,
    embedding_dimensions INTEGER     NOT NULL,
    chunk_count          INTEGER     NOT NULL,
    built_at             TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_index_builds_workspace ON index_builds (workspace_id, built_at DESC);
`, embeddingDimensions)
}

// Migrate creates every table, extension, and index if not already present.
// It is idempotent and safe to call on every process start. embeddingDimensions
// must match the configured embedder's dimension (spec §4.4); changing it
// after the first migration requires a manual column-type change.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	if _, err := pool.Exec(ctx, ddl(embeddingDimensions)); err != nil {
		return fmt.Errorf("postgres migrate: %w", err)
	}
	return nil
}
