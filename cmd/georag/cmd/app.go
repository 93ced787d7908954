package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/georag/georag/internal/config"
	"github.com/georag/georag/internal/embed"
	"github.com/georag/georag/internal/errs"
	"github.com/georag/georag/internal/geo"
	"github.com/georag/georag/internal/store"
	"github.com/georag/georag/internal/store/ephemeral"
	"github.com/georag/georag/internal/store/postgres"
	"github.com/georag/georag/internal/telemetry"
	"github.com/georag/georag/internal/text"
	"github.com/georag/georag/internal/workspace"
)

// app bundles everything a command needs: the loaded config, the
// workspace record, the Coordinator, and a close function that persists
// ephemeral state (a no-op for the Postgres adapter).
type app struct {
	cfg    *config.Config
	ws     store.Workspace
	stores workspace.Stores
	coord  *workspace.Coordinator
	close  func(ctx context.Context) error
}

// openApp loads config for dir, constructs the configured storage adapter
// and embedder, and wires a workspace.Coordinator with OTel metrics
// recording attached.
func openApp(ctx context.Context, dir string) (*app, error) {
	cfg, err := config.Load(dir)
	if err != nil {
		return nil, errs.Wrap(errs.InvalidInput, err)
	}

	ws := store.Workspace{
		ID:               workspaceID(cfg.Workspace.Name),
		Name:             cfg.Workspace.Name,
		CRS:              geo.CRS(cfg.Workspace.CRS),
		DistanceUnit:     cfg.Workspace.Unit,
		GeometryValidity: cfg.Workspace.Validity,
	}
	if ws.Name == "" {
		ws.Name = "default"
		ws.ID = workspaceID(ws.Name)
	}

	embedder, err := embed.NewEmbedder(ctx, embed.ParseProvider(cfg.Embedding.Provider), cfg.Embedding.Model)
	if err != nil {
		return nil, errs.Wrap(errs.EmbedderUnavailable, err)
	}

	var stores workspace.Stores
	var closer func(ctx context.Context) error

	switch cfg.Storage.Adapter {
	case "postgres":
		pool, err := pgxpool.New(ctx, cfg.Storage.DSN)
		if err != nil {
			return nil, errs.Wrap(errs.Io, err)
		}
		if err := postgres.Migrate(ctx, pool, cfg.Embedding.Dimensions); err != nil {
			pool.Close()
			return nil, errs.Wrap(errs.Io, err)
		}
		pgStore := postgres.New(pool)
		stores = workspace.Stores{Spatial: pgStore, Document: pgStore, Vector: pgStore, Build: pgStore}
		closer = func(ctx context.Context) error {
			pool.Close()
			return nil
		}

	default:
		epStore, err := ephemeral.Load(ctx, ws.ID, dir)
		if err != nil {
			return nil, errs.Wrap(errs.Io, err)
		}
		stores = workspace.Stores{Spatial: epStore, Document: epStore, Vector: epStore, Build: epStore}
		closer = func(ctx context.Context) error {
			return epStore.Save(ctx, dir)
		}
	}

	chunker := text.ChunkerOptions{WindowSize: cfg.Chunking.WindowSize, Overlap: cfg.Chunking.Overlap}
	coord := workspace.New(ws, stores, embedder, chunker).WithMetrics(telemetry.DefaultMetrics())

	return &app{cfg: cfg, ws: ws, stores: stores, coord: coord, close: closer}, nil
}

// workspaceID derives a stable ID from the configured workspace name so
// repeated runs against the same .georag.yaml address the same ephemeral
// snapshot (spec §3: Workspace is the top-level container, uniquely named).
func workspaceID(name string) string {
	if name == "" {
		name = "default"
	}
	return "ws-" + name
}

func (a *app) Close(ctx context.Context) error {
	return a.close(ctx)
}

func withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 30 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func usageError(format string, args ...interface{}) error {
	return errs.New(errs.InvalidInput, fmt.Sprintf(format, args...), nil)
}
