package retrieval

import (
	"context"
	"fmt"
	"time"

	"github.com/georag/georag/internal/embed"
	"github.com/georag/georag/internal/errs"
	"github.com/georag/georag/internal/store"
)

// defaultDeadline is the pipeline's overall budget, propagated into every
// stage (spec §4.8 "(added)", spec §5).
const defaultDeadline = 10 * time.Second

// Pipeline runs the hybrid spatial -> lexical -> semantic retrieval pipeline
// against one workspace's storage ports (spec §4.8).
type Pipeline struct {
	Spatial  store.SpatialStore
	Document store.DocumentStore
	Vector   store.VectorStore
	Build    store.BuildStore
	Embedder embed.Embedder

	Recorder StageRecorder
}

// New constructs a Pipeline bound to a workspace's storage ports and
// embedder. Recorder defaults to a no-op if unset.
func New(spatialStore store.SpatialStore, documentStore store.DocumentStore, vectorStore store.VectorStore, buildStore store.BuildStore, embedder embed.Embedder) *Pipeline {
	return &Pipeline{
		Spatial:  spatialStore,
		Document: documentStore,
		Vector:   vectorStore,
		Build:    buildStore,
		Embedder: embedder,
		Recorder: noopRecorder{},
	}
}

func (p *Pipeline) recorder() StageRecorder {
	if p.Recorder == nil {
		return noopRecorder{}
	}
	return p.Recorder
}

func (p *Pipeline) timeStage(name string, fn func() error) error {
	start := time.Now()
	err := fn()
	p.recorder().RecordStage(name, time.Since(start))
	return err
}

// Run executes the pipeline for ws against plan, returning strictly ordered
// results and a per-stage explanation (spec §4.8).
func (p *Pipeline) Run(ctx context.Context, ws store.Workspace, plan Plan) ([]Result, Explanation, error) {
	ctx, cancel := context.WithTimeout(ctx, defaultDeadline)
	defer cancel()

	current, err := p.Build.CurrentBuild(ctx, ws.ID)
	if err != nil {
		return nil, Explanation{}, err
	}
	if current == nil {
		return nil, Explanation{}, errs.New(errs.IndexNotBuilt, "workspace has no completed index build", nil).
			WithDetail("workspace_id", ws.ID).
			WithRemediation("run a build before querying")
	}

	topK := plan.TopK
	if topK <= 0 {
		topK = DefaultTopK
	}

	var explanation Explanation
	var candidates []chunkCandidate

	if err := p.timeStage("spatial", func() error {
		all, err := gatherCandidates(ctx, p.Spatial, p.Document, ws.ID)
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return errs.Wrap(errs.Cancelled, err)
		}
		filtered, err := applySpatialFilter(all, plan.Spatial, ws.CRS)
		if err != nil {
			return err
		}
		candidates = filtered
		explanation.SpatialCandidates = len(candidates)
		return nil
	}); err != nil {
		return nil, Explanation{}, err
	}

	if err := p.timeStage("lexical", func() error {
		if err := ctx.Err(); err != nil {
			return errs.Wrap(errs.Cancelled, err)
		}
		candidates = applyLexicalFilter(candidates, plan.Keyword)
		explanation.AfterTextFilter = len(candidates)
		return nil
	}); err != nil {
		return nil, Explanation{}, err
	}

	var results []Result
	if err := p.timeStage("semantic", func() error {
		r, err := p.rerank(ctx, candidates, plan, current.EmbedderModel, topK)
		if err != nil {
			return err
		}
		results = r
		explanation.Reranked = len(results)
		return nil
	}); err != nil {
		return nil, Explanation{}, err
	}

	return results, explanation, nil
}

// rerank implements spec §4.8 stage 3: semantic similarity top-K when
// rerank is requested and the embedder is available, or spatial-then-
// lexicographic order with score 1.0 when rerank is not requested. If the
// embedder fails, the same score-1.0 order is returned only when
// plan.AllowDegradedRerank is set; otherwise the query fails with
// EmbedderUnavailable.
func (p *Pipeline) rerank(ctx context.Context, candidates []chunkCandidate, plan Plan, embedderModel string, topK int) ([]Result, error) {
	if !plan.Rerank {
		return p.takeOrdered(candidates, topK), nil
	}

	queryVec, err := p.Embedder.Embed(ctx, plan.Text)
	if err != nil {
		if plan.AllowDegradedRerank {
			return p.takeOrdered(candidates, topK), nil
		}
		return nil, errs.Wrap(errs.EmbedderUnavailable, err).
			WithDetail("model", embedderModel).
			WithRemediation(fmt.Sprintf("check that the embedder service is reachable and serves model %q", embedderModel))
	}

	candidateIDs := make(map[string]bool, len(candidates))
	byID := make(map[string]chunkCandidate, len(candidates))
	for _, c := range candidates {
		candidateIDs[c.ChunkID] = true
		byID[c.ChunkID] = c
	}
	if len(candidateIDs) == 0 {
		return nil, nil
	}

	scored, err := p.Vector.TopK(ctx, embedderModel, queryVec, topK, candidateIDs)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(scored))
	for _, s := range scored {
		c, ok := byID[s.ChunkID]
		if !ok {
			continue
		}
		results = append(results, toResult(c, clampScore(s.Score)))
	}
	sortByScoreThenSpatial(results)
	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// takeOrdered implements the rerank-skipped path: spatial-then-lexicographic
// order, score fixed at 1.0 (spec §4.8 stage 3).
func (p *Pipeline) takeOrdered(candidates []chunkCandidate, topK int) []Result {
	sortSpatialLexicographic(candidates)
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	results := make([]Result, len(candidates))
	for i, c := range candidates {
		results[i] = toResult(c, 1.0)
	}
	return results
}

func toResult(c chunkCandidate, score float64) Result {
	return Result{
		ChunkID:      c.ChunkID,
		DatasetName:  c.DatasetName,
		FeatureID:    c.FeatureID,
		DocumentName: c.DocumentName,
		ChunkIndex:   c.ChunkIndex,
		Excerpt:      truncateExcerpt(c.Content),
		Score:        score,
		Geometry:     c.Geometry,
	}
}
