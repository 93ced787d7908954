package cmd

import (
	"encoding/json"
	"io"
	"os"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"

	"github.com/georag/georag/internal/geo"
	"github.com/georag/georag/internal/retrieval"
	"github.com/georag/georag/internal/spatial"
)

// queryRequest is the CLI's query contract: JSON in; out, a JSON object whose
// "results" member is a GeoJSON FeatureCollection, plus an "explain" member
// when --explain is set (SPEC_FULL.md's CLI scaffolding section).
type queryRequest struct {
	Text        string     `json:"text"`
	Bbox        []float64  `json:"bbox,omitempty"`
	Spatial     *spatialIn `json:"spatial,omitempty"`
	MustContain []string   `json:"must_contain,omitempty"`
	Exclude     []string   `json:"exclude,omitempty"`
	TopK        int        `json:"top_k,omitempty"`
	Rerank      bool       `json:"rerank,omitempty"`
}

type spatialIn struct {
	Predicate string          `json:"predicate"`
	Geometry  json.RawMessage `json:"geometry"`
	Distance  float64         `json:"distance,omitempty"`
}

func newQueryCmd() *cobra.Command {
	var file string
	var explain bool

	cmd := &cobra.Command{
		Use:   "query",
		Short: "Run a retrieval query against the built index",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, file, explain)
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "read the query JSON from this file instead of stdin")
	cmd.Flags().BoolVar(&explain, "explain", false, "include per-stage candidate counts in the output")

	return cmd
}

func runQuery(cmd *cobra.Command, file string, explain bool) error {
	defer setupLogging()()

	ctx := cmd.Context()
	a, err := openApp(ctx, workspaceDir)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()

	raw, err := readQueryInput(file)
	if err != nil {
		return err
	}

	var req queryRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		return usageError("invalid query JSON: %v", err)
	}

	plan, err := req.toPlan()
	if err != nil {
		return err
	}

	results, exp, err := a.coord.Query(ctx, plan)
	if err != nil {
		return err
	}

	fc := resultsToFeatureCollection(results)
	out := map[string]interface{}{"results": fc}
	if explain {
		out["explain"] = map[string]int{
			"spatial_candidates": exp.SpatialCandidates,
			"after_text_filter":  exp.AfterTextFilter,
			"reranked":           exp.Reranked,
		}
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func readQueryInput(file string) ([]byte, error) {
	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, usageError("cannot read %s: %v", file, err)
		}
		return data, nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, usageError("cannot read query from stdin: %v", err)
	}
	return data, nil
}

func (req queryRequest) toPlan() (retrieval.Plan, error) {
	plan := retrieval.Plan{
		Text:   req.Text,
		TopK:   req.TopK,
		Rerank: req.Rerank,
	}

	if len(req.MustContain) > 0 || len(req.Exclude) > 0 {
		plan.Keyword = &retrieval.TextFilter{MustContain: req.MustContain, Exclude: req.Exclude}
	}

	switch {
	case req.Spatial != nil:
		g, err := geo.New(unmarshalGeometry(req.Spatial.Geometry), geo.WGS84)
		if err != nil {
			return plan, usageError("invalid spatial.geometry: %v", err)
		}
		plan.Spatial = &retrieval.SpatialFilter{
			Predicate:    spatial.Predicate(req.Spatial.Predicate),
			Geometry:     g,
			RadiusMeters: req.Spatial.Distance,
		}

	case len(req.Bbox) == 4:
		g, err := geo.New(bboxPolygon(req.Bbox), geo.WGS84)
		if err != nil {
			return plan, usageError("invalid bbox: %v", err)
		}
		plan.Spatial = &retrieval.SpatialFilter{Predicate: spatial.PredicateBBox, Geometry: g}
	}

	return plan, nil
}

func bboxPolygon(bbox []float64) orb.Geometry {
	minX, minY, maxX, maxY := bbox[0], bbox[1], bbox[2], bbox[3]
	ring := orb.Ring{
		{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}, {minX, minY},
	}
	return orb.Polygon{ring}
}

func unmarshalGeometry(raw json.RawMessage) orb.Geometry {
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil || g == nil {
		return nil
	}
	return g.Geometry()
}

func resultsToFeatureCollection(results []retrieval.Result) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, r := range results {
		var geom orb.Geometry
		if r.Geometry != nil {
			geom = r.Geometry.Geom
		}
		f := geojson.NewFeature(geom)
		f.Properties = geojson.Properties{
			"score":        r.Score,
			"excerpt":      r.Excerpt,
			"dataset":      r.DatasetName,
			"chunk_index":  r.ChunkIndex,
		}
		if r.FeatureID != nil {
			f.Properties["feature_id"] = *r.FeatureID
		}
		if r.DocumentName != nil {
			f.Properties["document_name"] = *r.DocumentName
		}
		fc.Append(f)
	}
	return fc
}
