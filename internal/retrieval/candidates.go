package retrieval

import (
	"context"

	"github.com/georag/georag/internal/geo"
	"github.com/georag/georag/internal/store"
)

// chunkCandidate is a denormalized Chunk carrying everything later pipeline
// stages and the final Result need, so no stage re-queries storage.
type chunkCandidate struct {
	ChunkID      string
	DatasetName  string
	FeatureID    *string
	DocumentName *string
	ChunkIndex   int
	Content      string
	Geometry     *geo.Geometry
}

// gatherCandidates loads every chunk across every dataset in the workspace,
// denormalizing dataset/feature/document identity onto each one. This is
// the "all chunks" candidate set spec §4.8 starts from when no spatial
// filter is present.
func gatherCandidates(ctx context.Context, spatialStore store.SpatialStore, docStore store.DocumentStore, workspaceID string) ([]chunkCandidate, error) {
	datasets, err := spatialStore.ListDatasets(ctx, workspaceID)
	if err != nil {
		return nil, err
	}

	var out []chunkCandidate
	for _, ds := range datasets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		features, err := spatialStore.ListFeatures(ctx, ds.ID)
		if err != nil {
			return nil, err
		}
		featureNameByPK := make(map[string]string, len(features))
		for _, f := range features {
			featureNameByPK[f.ID] = f.FeatureID
		}

		documents, err := docStore.ListDocuments(ctx, ds.ID)
		if err != nil {
			return nil, err
		}
		docNameByID := make(map[string]string, len(documents))
		for _, d := range documents {
			docNameByID[d.ID] = d.Name
		}

		chunks, err := docStore.ListChunksByDataset(ctx, ds.ID)
		if err != nil {
			return nil, err
		}
		for _, c := range chunks {
			cand := chunkCandidate{
				ChunkID:     c.ID,
				DatasetName: ds.Name,
				ChunkIndex:  c.ChunkIndex,
				Content:     c.Content,
				Geometry:    c.Geometry,
			}
			if c.FeatureID != nil {
				if tag, ok := featureNameByPK[*c.FeatureID]; ok {
					cand.FeatureID = &tag
				}
			}
			if name, ok := docNameByID[c.DocumentID]; ok {
				// Synthetic per-feature documents never surface a document
				// name to the caller (build.syntheticDocumentID): a result
				// with a FeatureID is a property chunk, not a document one.
				if cand.FeatureID == nil {
					cand.DocumentName = &name
				}
			}
			out = append(out, cand)
		}
	}
	return out, nil
}
