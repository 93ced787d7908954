package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/georag/georag/internal/ingest"
)

func newIngestCmd() *cobra.Command {
	var datasetName string

	cmd := &cobra.Command{
		Use:   "ingest <file.geojson>",
		Short: "Load a GeoJSON file into the workspace as a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd, args[0], datasetName)
		},
	}
	cmd.Flags().StringVar(&datasetName, "dataset", "", "dataset name (default: file base name)")

	return cmd
}

func runIngest(cmd *cobra.Command, path, datasetName string) error {
	defer setupLogging()()

	ctx := cmd.Context()
	a, err := openApp(ctx, workspaceDir)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()

	data, err := os.ReadFile(path)
	if err != nil {
		return usageError("cannot read %s: %v", path, err)
	}

	if datasetName == "" {
		datasetName = baseNameWithoutExt(path)
	}

	ds, features, err := ingest.ParseGeoJSON(data, a.ws.ID, datasetName)
	if err != nil {
		return err
	}

	tx, err := a.stores.Spatial.BeginTx(ctx)
	if err != nil {
		return err
	}

	saved, err := a.stores.Spatial.PutDataset(ctx, tx, ds)
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	err = a.coord.IngestDataset(ctx, saved.ID, func(ctx context.Context) error {
		return a.stores.Spatial.PutFeatures(ctx, tx, saved.ID, features)
	})
	if err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "ingested %d features into dataset %q\n", len(features), saved.Name)
	return nil
}

func baseNameWithoutExt(path string) string {
	base := path
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			base = path[i+1:]
			break
		}
	}
	for i := len(base) - 1; i >= 0; i-- {
		if base[i] == '.' {
			return base[:i]
		}
	}
	return base
}
