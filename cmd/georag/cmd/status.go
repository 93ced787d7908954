package cmd

import (
	"encoding/json"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
)

func newStatusCmd() *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show workspace and index build status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if watch {
				return runStatusWatch(cmd)
			}
			return runStatus(cmd)
		},
	}
	cmd.Flags().BoolVar(&watch, "watch", false, "watch for the next index build to finish, with a live spinner")

	return cmd
}

// runStatusWatch drives an interactive spinner (bubbletea/bubbles) that polls
// CurrentBuild until a build newer than the one observed at start appears.
// Intended for a human watching a terminal while `georag build` runs in
// another session; --json/status's one-shot snapshot is used by scripts.
func runStatusWatch(cmd *cobra.Command) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, workspaceDir)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()

	baseline, err := a.stores.Build.CurrentBuild(ctx, a.ws.ID)
	if err != nil {
		return err
	}

	model := newWatchModel(ctx, a.stores.Build, a.ws.ID, baseline)
	program := tea.NewProgram(model)
	finalModel, err := program.Run()
	if err != nil {
		return err
	}

	final := finalModel.(watchModel)
	if final.err != nil {
		return final.err
	}
	return nil
}

func runStatus(cmd *cobra.Command) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, workspaceDir)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close(ctx) }()

	build, err := a.stores.Build.CurrentBuild(ctx, a.ws.ID)
	if err != nil {
		return err
	}
	datasets, err := a.stores.Spatial.ListDatasets(ctx, a.ws.ID)
	if err != nil {
		return err
	}

	if jsonOutput {
		status := map[string]interface{}{
			"workspace": a.ws.Name,
			"crs":       int(a.ws.CRS),
			"datasets":  len(datasets),
			"build":     build,
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(status)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "workspace: %s (EPSG:%d)\n", a.ws.Name, a.ws.CRS)
	fmt.Fprintf(cmd.OutOrStdout(), "datasets:  %d\n", len(datasets))
	if build == nil {
		fmt.Fprintln(cmd.OutOrStdout(), "build:     none (run `georag build`)")
		return nil
	}
	fmt.Fprintf(cmd.OutOrStdout(), "build:     %s, %d chunks, model %s, built %s\n",
		build.ID, build.ChunkCount, build.EmbedderModel, build.BuiltAt.Format("2006-01-02T15:04:05Z07:00"))
	return nil
}
