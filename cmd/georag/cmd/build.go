package cmd

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/georag/georag/internal/ui"
)

func newBuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "build",
		Short: "Run one index build for the workspace",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(cmd)
		},
	}
}

func runBuild(cmd *cobra.Command) error {
	defer setupLogging()()

	ctx := cmd.Context()
	a, err := openApp(ctx, workspaceDir)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()

	ctx, cancel := withTimeout(ctx, 0)
	defer cancel()

	renderer := ui.NewRenderer(ui.Config{Output: cmd.OutOrStdout(), NoColor: ui.DetectNoColor(os.Stdout)})
	renderer.UpdateProgress(ui.ProgressEvent{Stage: ui.StageNormalizing, Message: "starting build"})

	start := time.Now()
	build, err := a.coord.Build(ctx)
	if err != nil {
		renderer.AddError(ui.ErrorEvent{Err: err})
		return err
	}

	renderer.Complete(ui.CompletionStats{
		Datasets: datasetCount(ctx, a),
		Chunks:   build.ChunkCount,
		Duration: time.Since(start),
		Embedder: ui.EmbedderInfo{Model: build.EmbedderModel, Dimensions: build.EmbeddingDim},
	})
	return nil
}

func datasetCount(ctx context.Context, a *app) int {
	datasets, err := a.stores.Spatial.ListDatasets(ctx, a.ws.ID)
	if err != nil {
		return 0
	}
	return len(datasets)
}
