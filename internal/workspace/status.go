package workspace

import "context"

// Status reports the workspace's readiness to query (spec §4.9), with each
// contributing condition broken out so a caller can tell exactly what is
// missing rather than just a single boolean.
type Status struct {
	DatasetCount      int
	HasCurrentBuild   bool
	EmbedderModel     string
	BuildEmbedderModel string
	EmbedderDimensions int
	BuildDimensions    int
	Ready              bool
}

// modelMatches and dimensionsMatch are broken out of Ready's computation so
// Status's fields stay individually meaningful even when Ready is false.
func (s Status) modelMatches() bool {
	return s.HasCurrentBuild && s.EmbedderModel == s.BuildEmbedderModel
}

func (s Status) dimensionsMatch() bool {
	return s.HasCurrentBuild && s.EmbedderDimensions == s.BuildDimensions
}

// Status computes the workspace's current readiness (spec §4.9): ready iff
// dataset_count > 0, a current IndexBuild exists, and the live embedder's
// model tag and dimension match the build's recorded ones.
func (c *Coordinator) Status(ctx context.Context) (Status, error) {
	datasets, err := c.spatial.ListDatasets(ctx, c.ws.ID)
	if err != nil {
		return Status{}, err
	}

	current, err := c.build.CurrentBuild(ctx, c.ws.ID)
	if err != nil {
		return Status{}, err
	}

	st := Status{
		DatasetCount:        len(datasets),
		HasCurrentBuild:     current != nil,
		EmbedderModel:       c.embedder.ModelName(),
		EmbedderDimensions:  c.embedder.Dimensions(),
	}
	if current != nil {
		st.BuildEmbedderModel = current.EmbedderModel
		st.BuildDimensions = current.EmbeddingDim
	}

	st.Ready = st.DatasetCount > 0 && st.modelMatches() && st.dimensionsMatch()
	return st, nil
}
