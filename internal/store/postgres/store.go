package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/georag/georag/internal/errs"
	"github.com/georag/georag/internal/geo"
	"github.com/georag/georag/internal/store"
)

// Store is the durable storage adapter over a pgxpool.Pool. One Store
// instance is shared across the ports (spec §4.6).
type Store struct {
	pool *pgxpool.Pool
}

var (
	_ store.SpatialStore  = (*Store)(nil)
	_ store.VectorStore   = (*Store)(nil)
	_ store.DocumentStore = (*Store)(nil)
	_ store.BuildStore    = (*Store)(nil)
)

// New wraps an already-connected pool. Call Migrate separately (spec §4.6)
// before first use.
func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// tx wraps a pgx.Tx to satisfy store.Tx.
type tx struct {
	pgtx pgx.Tx
}

func (t *tx) Commit(ctx context.Context) error   { return t.pgtx.Commit(ctx) }
func (t *tx) Rollback(ctx context.Context) error { return t.pgtx.Rollback(ctx) }

func (s *Store) BeginTx(ctx context.Context) (store.Tx, error) {
	pgtx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return nil, errs.New(errs.Io, "beginning transaction", err)
	}
	return &tx{pgtx: pgtx}, nil
}

func (s *Store) exec(ctx context.Context, provided store.Tx, sql string, args ...any) error {
	if t, ok := provided.(*tx); ok {
		_, err := t.pgtx.Exec(ctx, sql, args...)
		return err
	}
	_, err := s.pool.Exec(ctx, sql, args...)
	return err
}

func (s *Store) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	return s.pool.Query(ctx, sql, args...)
}

func (s *Store) PutDataset(ctx context.Context, provided store.Tx, ds store.Dataset) (store.Dataset, error) {
	if ds.ID == "" {
		ds.ID = uuid.NewString()
	}
	props, err := json.Marshal(ds.Properties)
	if err != nil {
		return store.Dataset{}, errs.New(errs.Internal, "marshaling dataset properties", err)
	}

	var bboxWKB []byte
	if ds.Bbox != nil {
		bboxWKB, err = wkb.Marshal(ds.Bbox.Geom)
		if err != nil {
			return store.Dataset{}, errs.Wrap(errs.GeometryError, err)
		}
	}

	const q = `
		INSERT INTO datasets (id, workspace_id, name, format, crs, geometry_type, feature_count, bbox, properties)
		VALUES ($1, $2, $3, $4, $5, $6, $7, ST_GeomFromWKB($8, 4326), $9)
		ON CONFLICT (workspace_id, name) DO UPDATE SET
		    feature_count = EXCLUDED.feature_count,
		    bbox          = EXCLUDED.bbox,
		    properties    = EXCLUDED.properties`

	if err := s.exec(ctx, provided, q, ds.ID, ds.WorkspaceID, ds.Name, ds.Format, int(ds.CRS), string(ds.GeometryKind), ds.FeatureCount, bboxWKB, props); err != nil {
		return store.Dataset{}, errs.New(errs.Conflict, "upserting dataset", err).WithDetail("name", ds.Name)
	}
	return ds, nil
}

func (s *Store) GetDataset(ctx context.Context, workspaceID, name string) (store.Dataset, error) {
	const q = `
		SELECT id, workspace_id, name, format, crs, geometry_type, feature_count, properties
		FROM datasets WHERE workspace_id = $1 AND name = $2`

	row := s.pool.QueryRow(ctx, q, workspaceID, name)
	var ds store.Dataset
	var props []byte
	var crs int
	if err := row.Scan(&ds.ID, &ds.WorkspaceID, &ds.Name, &ds.Format, &crs, &ds.GeometryKind, &ds.FeatureCount, &props); err != nil {
		return store.Dataset{}, errs.New(errs.NotFound, "dataset not found", err).WithDetail("name", name)
	}
	ds.CRS = geo.CRS(crs)
	_ = json.Unmarshal(props, &ds.Properties)
	return ds, nil
}

func (s *Store) ListDatasets(ctx context.Context, workspaceID string) ([]store.Dataset, error) {
	const q = `SELECT id, workspace_id, name, format, crs, geometry_type, feature_count, properties FROM datasets WHERE workspace_id = $1`
	rows, err := s.query(ctx, q, workspaceID)
	if err != nil {
		return nil, errs.New(errs.Io, "listing datasets", err)
	}
	defer rows.Close()

	var out []store.Dataset
	for rows.Next() {
		var ds store.Dataset
		var props []byte
		var crs int
		if err := rows.Scan(&ds.ID, &ds.WorkspaceID, &ds.Name, &ds.Format, &crs, &ds.GeometryKind, &ds.FeatureCount, &props); err != nil {
			return nil, errs.New(errs.Io, "scanning dataset row", err)
		}
		ds.CRS = geo.CRS(crs)
		_ = json.Unmarshal(props, &ds.Properties)
		out = append(out, ds)
	}
	return out, rows.Err()
}

func (s *Store) DeleteDataset(ctx context.Context, provided store.Tx, datasetID string) error {
	return s.exec(ctx, provided, `DELETE FROM datasets WHERE id = $1`, datasetID)
}

func (s *Store) PutFeatures(ctx context.Context, provided store.Tx, datasetID string, features []store.Feature) error {
	const q = `
		INSERT INTO features (id, dataset_id, feature_id, geometry, properties)
		VALUES ($1, $2, $3, ST_GeomFromWKB($4, 4326), $5)
		ON CONFLICT (dataset_id, feature_id) DO UPDATE SET
		    geometry   = EXCLUDED.geometry,
		    properties = EXCLUDED.properties`

	for _, f := range features {
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		geomWKB, err := wkb.Marshal(f.Geometry.Geom)
		if err != nil {
			return errs.Wrap(errs.GeometryError, err)
		}
		props, err := json.Marshal(f.Properties)
		if err != nil {
			return errs.New(errs.Internal, "marshaling feature properties", err)
		}
		if err := s.exec(ctx, provided, q, f.ID, datasetID, f.FeatureID, geomWKB, props); err != nil {
			return errs.New(errs.Io, "upserting feature", err).WithDetail("feature_id", f.FeatureID)
		}
	}
	return nil
}

func (s *Store) GetFeature(ctx context.Context, datasetID, featureID string) (store.Feature, error) {
	const q = `SELECT id, dataset_id, feature_id, ST_AsBinary(geometry), properties FROM features WHERE dataset_id = $1 AND feature_id = $2`
	row := s.pool.QueryRow(ctx, q, datasetID, featureID)
	return scanFeature(row)
}

func (s *Store) ListFeatures(ctx context.Context, datasetID string) ([]store.Feature, error) {
	const q = `SELECT id, dataset_id, feature_id, ST_AsBinary(geometry), properties FROM features WHERE dataset_id = $1`
	rows, err := s.query(ctx, q, datasetID)
	if err != nil {
		return nil, errs.New(errs.Io, "listing features", err)
	}
	defer rows.Close()

	var out []store.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// QueryBbox delegates to PostGIS's && envelope-overlap operator, backed by
// the GIST index on features.geometry.
func (s *Store) QueryBbox(ctx context.Context, datasetID string, bbox geo.Geometry) ([]store.Feature, error) {
	bboxWKB, err := wkb.Marshal(bbox.Geom)
	if err != nil {
		return nil, errs.Wrap(errs.GeometryError, err)
	}
	const q = `
		SELECT id, dataset_id, feature_id, ST_AsBinary(geometry), properties
		FROM features
		WHERE dataset_id = $1 AND geometry && ST_GeomFromWKB($2, 4326)`
	rows, err := s.query(ctx, q, datasetID, bboxWKB)
	if err != nil {
		return nil, errs.New(errs.Io, "querying bbox", err)
	}
	defer rows.Close()

	var out []store.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// QueryPredicate dispatches to the matching PostGIS relation function;
// dwithin uses ST_DWithin over the geography cast so PostGIS computes the
// same ellipsoidal geodesic distance internal/geo.GeodesicDistance
// implements directly for the ephemeral adapter.
func (s *Store) QueryPredicate(ctx context.Context, workspaceID string, predicate string, query geo.Geometry, distanceMeters float64) ([]store.Feature, error) {
	geomWKB, err := wkb.Marshal(query.Geom)
	if err != nil {
		return nil, errs.Wrap(errs.GeometryError, err)
	}

	var relation string
	args := []any{workspaceID, geomWKB}
	switch predicate {
	case "within":
		relation = "ST_Within(f.geometry, ST_GeomFromWKB($2, 4326))"
	case "intersects":
		relation = "ST_Intersects(f.geometry, ST_GeomFromWKB($2, 4326))"
	case "contains":
		relation = "ST_Contains(f.geometry, ST_GeomFromWKB($2, 4326))"
	case "dwithin":
		relation = "ST_DWithin(f.geometry::geography, ST_GeomFromWKB($2, 4326)::geography, $3)"
		args = append(args, distanceMeters)
	default:
		return nil, errs.New(errs.InvalidInput, "unknown spatial predicate", nil).WithDetail("predicate", predicate)
	}

	q := fmt.Sprintf(`
		SELECT f.id, f.dataset_id, f.feature_id, ST_AsBinary(f.geometry), f.properties
		FROM features f
		JOIN datasets d ON d.id = f.dataset_id
		WHERE d.workspace_id = $1 AND %s
		ORDER BY d.name, f.feature_id`, relation)

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, errs.New(errs.Io, "querying spatial predicate", err)
	}
	defer rows.Close()

	var out []store.Feature
	for rows.Next() {
		f, err := scanFeature(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeature(row rowScanner) (store.Feature, error) {
	var f store.Feature
	var geomBytes []byte
	var props []byte
	if err := row.Scan(&f.ID, &f.DatasetID, &f.FeatureID, &geomBytes, &props); err != nil {
		return store.Feature{}, errs.New(errs.Io, "scanning feature row", err)
	}
	g, err := wkb.Unmarshal(geomBytes)
	if err != nil {
		return store.Feature{}, errs.Wrap(errs.GeometryError, err)
	}
	geom, err := geo.New(g, geo.WGS84)
	if err != nil {
		return store.Feature{}, err
	}
	f.Geometry = geom
	_ = json.Unmarshal(props, &f.Properties)
	return f, nil
}

func (s *Store) UpsertEmbeddings(ctx context.Context, provided store.Tx, embeddings []store.Embedding) error {
	const q = `
		INSERT INTO embeddings (id, chunk_id, model, dimensions, vector)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (chunk_id, model) DO UPDATE SET
		    dimensions = EXCLUDED.dimensions,
		    vector     = EXCLUDED.vector`

	for _, e := range embeddings {
		if e.ID == "" {
			e.ID = uuid.NewString()
		}
		vec := pgvector.NewVector(e.Vector)
		if err := s.exec(ctx, provided, q, e.ID, e.ChunkID, e.Model, e.Dimensions, vec); err != nil {
			return errs.New(errs.Io, "upserting embedding", err).WithDetail("chunk_id", e.ChunkID)
		}
	}
	return nil
}

// TopK orders by pgvector's cosine-distance operator (<=>), mirroring the
// grounding file's Search query; because vectors are L2-normalized this is
// equivalent to the ephemeral adapter's dot-product ranking, just computed
// by the HNSW-accelerated index instead of a brute-force scan.
func (s *Store) TopK(ctx context.Context, model string, query []float32, k int, candidateChunkIDs map[string]bool) ([]store.ScoredChunk, error) {
	queryVec := pgvector.NewVector(query)
	args := []any{queryVec, model}

	whereClause := "model = $2"
	if candidateChunkIDs != nil {
		ids := make([]string, 0, len(candidateChunkIDs))
		for id := range candidateChunkIDs {
			ids = append(ids, id)
		}
		args = append(args, ids)
		whereClause += fmt.Sprintf(" AND chunk_id = ANY($%d)", len(args))
	}
	args = append(args, k)

	q := fmt.Sprintf(`
		SELECT chunk_id, 1 - (vector <=> $1) AS score
		FROM embeddings
		WHERE %s
		ORDER BY vector <=> $1
		LIMIT $%d`, whereClause, len(args))

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, errs.New(errs.Io, "querying top-k embeddings", err)
	}
	defer rows.Close()

	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (store.ScoredChunk, error) {
		var sc store.ScoredChunk
		err := row.Scan(&sc.ChunkID, &sc.Score)
		return sc, err
	})
}

func (s *Store) PurgeModel(ctx context.Context, provided store.Tx, workspaceID, model string) error {
	const q = `
		DELETE FROM embeddings
		WHERE model = $1 AND chunk_id IN (
		    SELECT c.id FROM chunks c
		    JOIN documents doc ON doc.id = c.document_id
		    JOIN datasets d ON d.id = doc.dataset_id
		    WHERE d.workspace_id = $2)`
	return s.exec(ctx, provided, q, model, workspaceID)
}

func (s *Store) PutDocument(ctx context.Context, provided store.Tx, doc store.Document) (store.Document, error) {
	if doc.ID == "" {
		doc.ID = uuid.NewString()
	}
	var geomWKB []byte
	var err error
	if doc.Geometry != nil {
		geomWKB, err = wkb.Marshal(doc.Geometry.Geom)
		if err != nil {
			return store.Document{}, errs.Wrap(errs.GeometryError, err)
		}
	}
	const q = `
		INSERT INTO documents (id, dataset_id, name, format, geometry, raw_text)
		VALUES ($1, $2, $3, $4, ST_GeomFromWKB($5, 4326), $6)
		ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name, format = EXCLUDED.format,
		    geometry = EXCLUDED.geometry, raw_text = EXCLUDED.raw_text`
	if err := s.exec(ctx, provided, q, doc.ID, doc.DatasetID, doc.Name, doc.Format, geomWKB, doc.RawText); err != nil {
		return store.Document{}, errs.New(errs.Io, "upserting document", err)
	}
	return doc, nil
}

func (s *Store) ListDocuments(ctx context.Context, datasetID string) ([]store.Document, error) {
	rows, err := s.query(ctx, `SELECT id, dataset_id, name, format, ST_AsBinary(geometry), raw_text, created_at
		FROM documents WHERE dataset_id = $1`, datasetID)
	if err != nil {
		return nil, errs.New(errs.Io, "querying documents", err)
	}
	defer rows.Close()

	out := make([]store.Document, 0)
	for rows.Next() {
		var d store.Document
		var geomWKB []byte
		if err := rows.Scan(&d.ID, &d.DatasetID, &d.Name, &d.Format, &geomWKB, &d.RawText, &d.CreatedAt); err != nil {
			return nil, errs.New(errs.Io, "scanning document", err)
		}
		if geomWKB != nil {
			g, err := wkb.Unmarshal(geomWKB)
			if err != nil {
				return nil, errs.Wrap(errs.GeometryError, err)
			}
			geom, err := geo.New(g, geo.WGS84)
			if err != nil {
				return nil, errs.Wrap(errs.GeometryError, err)
			}
			d.Geometry = &geom
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.New(errs.Io, "iterating documents", err)
	}
	return out, nil
}

func (s *Store) PutChunks(ctx context.Context, provided store.Tx, chunks []store.Chunk) error {
	const q = `
		INSERT INTO chunks (id, document_id, chunk_index, content, start_offset, end_offset, geometry, spatial_ref)
		VALUES ($1, $2, $3, $4, $5, $6, ST_GeomFromWKB($7, 4326), $8)
		ON CONFLICT (document_id, chunk_index) DO UPDATE SET
		    content      = EXCLUDED.content,
		    start_offset = EXCLUDED.start_offset,
		    end_offset   = EXCLUDED.end_offset,
		    geometry     = EXCLUDED.geometry,
		    spatial_ref  = EXCLUDED.spatial_ref`

	for _, c := range chunks {
		if c.ID == "" {
			c.ID = uuid.NewString()
		}
		var geomWKB []byte
		var err error
		if c.Geometry != nil {
			geomWKB, err = wkb.Marshal(c.Geometry.Geom)
			if err != nil {
				return errs.Wrap(errs.GeometryError, err)
			}
		}
		var featureRef any
		if c.FeatureID != nil {
			featureRef = *c.FeatureID
		}
		if err := s.exec(ctx, provided, q, c.ID, c.DocumentID, c.ChunkIndex, c.Content, c.StartOffset, c.EndOffset, geomWKB, featureRef); err != nil {
			return errs.New(errs.Io, "upserting chunk", err)
		}
	}
	return nil
}

func (s *Store) ListChunksByDataset(ctx context.Context, datasetID string) ([]store.Chunk, error) {
	const q = `
		SELECT c.id, c.document_id, c.chunk_index, c.content, c.start_offset, c.end_offset, ST_AsBinary(c.geometry), c.spatial_ref
		FROM chunks c
		JOIN documents doc ON doc.id = c.document_id
		WHERE doc.dataset_id = $1`
	rows, err := s.query(ctx, q, datasetID)
	if err != nil {
		return nil, errs.New(errs.Io, "listing chunks", err)
	}
	defer rows.Close()

	var out []store.Chunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *Store) GetChunk(ctx context.Context, chunkID string) (store.Chunk, error) {
	const q = `SELECT id, document_id, chunk_index, content, start_offset, end_offset, ST_AsBinary(geometry), spatial_ref FROM chunks WHERE id = $1`
	row := s.pool.QueryRow(ctx, q, chunkID)
	return scanChunk(row)
}

func scanChunk(row rowScanner) (store.Chunk, error) {
	var c store.Chunk
	var geomBytes []byte
	var featureRef *string
	if err := row.Scan(&c.ID, &c.DocumentID, &c.ChunkIndex, &c.Content, &c.StartOffset, &c.EndOffset, &geomBytes, &featureRef); err != nil {
		return store.Chunk{}, errs.New(errs.NotFound, "chunk not found", err)
	}
	if len(geomBytes) > 0 {
		g, err := wkb.Unmarshal(geomBytes)
		if err != nil {
			return store.Chunk{}, errs.Wrap(errs.GeometryError, err)
		}
		geom, err := geo.New(g, geo.WGS84)
		if err != nil {
			return store.Chunk{}, err
		}
		c.Geometry = &geom
	}
	c.FeatureID = featureRef
	return c, nil
}

func (s *Store) PutBuild(ctx context.Context, provided store.Tx, build store.IndexBuild) error {
	if build.ID == "" {
		build.ID = uuid.NewString()
	}
	const q = `
		INSERT INTO index_builds (id, workspace_id, hash, embedder_model, embedding_dimensions, chunk_count, built_at)
		VALUES ($1, $2, $3, $4, $5, $6, now())`
	return s.exec(ctx, provided, q, build.ID, build.WorkspaceID, build.Hash, build.EmbedderModel, build.EmbeddingDim, build.ChunkCount)
}

func (s *Store) CurrentBuild(ctx context.Context, workspaceID string) (*store.IndexBuild, error) {
	const q = `
		SELECT id, workspace_id, hash, embedder_model, embedding_dimensions, chunk_count, built_at
		FROM index_builds WHERE workspace_id = $1 ORDER BY built_at DESC LIMIT 1`
	row := s.pool.QueryRow(ctx, q, workspaceID)
	var b store.IndexBuild
	if err := row.Scan(&b.ID, &b.WorkspaceID, &b.Hash, &b.EmbedderModel, &b.EmbeddingDim, &b.ChunkCount, &b.BuiltAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errs.New(errs.Io, "fetching current build", err)
	}
	return &b, nil
}
