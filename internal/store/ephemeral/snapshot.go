package ephemeral

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/georag/georag/internal/errs"
	"github.com/georag/georag/internal/store"
)

const lockRetryInterval = 50 * time.Millisecond

// snapshot is the on-disk form of a Store, written under a workspace
// directory as registry + index/{chunks,vectors,build}.json (spec §6).
type snapshot struct {
	Datasets []store.Dataset            `json:"datasets"`
	Features map[string][]store.Feature `json:"features"` // dataset id -> features
	Docs     []store.Document           `json:"documents"`
	Chunks   []store.Chunk              `json:"chunks"`
	Embeds   []store.Embedding          `json:"embeddings"`
	Builds   []store.IndexBuild         `json:"builds"`
}

// Save fsyncs the store's current state to dir/registry.json and
// dir/index/{chunks,vectors,build}.json, guarded by a flock on
// dir/.snapshot.lock so concurrent writers never interleave.
func (s *Store) Save(ctx context.Context, dir string) error {
	lock := flock.New(filepath.Join(dir, ".snapshot.lock"))
	locked, err := lock.TryLockContext(ctx, lockRetryInterval)
	if err != nil || !locked {
		return errs.New(errs.Conflict, "workspace snapshot is locked by another process", err)
	}
	defer func() { _ = lock.Unlock() }()

	s.mu.RLock()
	snap := snapshot{
		Datasets: make([]store.Dataset, 0, len(s.datasets)),
		Features: make(map[string][]store.Feature, len(s.features)),
		Docs:     make([]store.Document, 0, len(s.docs)),
		Chunks:   make([]store.Chunk, 0, len(s.chunks)),
		Embeds:   make([]store.Embedding, 0),
		Builds:   append([]store.IndexBuild(nil), s.builds...),
	}
	for _, ds := range s.datasets {
		snap.Datasets = append(snap.Datasets, ds)
	}
	for dsID, set := range s.features {
		list := make([]store.Feature, 0, len(set))
		for _, f := range set {
			list = append(list, f)
		}
		snap.Features[dsID] = list
	}
	for _, d := range s.docs {
		snap.Docs = append(snap.Docs, d)
	}
	for _, c := range s.chunks {
		snap.Chunks = append(snap.Chunks, c)
	}
	for _, set := range s.embeds {
		for _, e := range set {
			snap.Embeds = append(snap.Embeds, e)
		}
	}
	s.mu.RUnlock()

	if err := os.MkdirAll(filepath.Join(dir, "index"), 0o755); err != nil {
		return errs.New(errs.Io, "creating workspace index directory", err)
	}
	if err := writeJSONFile(filepath.Join(dir, "registry.json"), struct {
		Datasets []store.Dataset            `json:"datasets"`
		Features map[string][]store.Feature `json:"features"`
		Docs     []store.Document           `json:"documents"`
	}{snap.Datasets, snap.Features, snap.Docs}); err != nil {
		return err
	}
	if err := writeJSONFile(filepath.Join(dir, "index", "chunks.json"), snap.Chunks); err != nil {
		return err
	}
	if err := writeJSONFile(filepath.Join(dir, "index", "vectors.json"), snap.Embeds); err != nil {
		return err
	}
	if err := writeJSONFile(filepath.Join(dir, "index", "build.json"), snap.Builds); err != nil {
		return err
	}
	return nil
}

// Load restores a Store's state from a prior Save at dir. A missing
// registry.json means an un-built workspace and Load returns an empty Store
// with a nil error.
func Load(ctx context.Context, workspaceID, dir string) (*Store, error) {
	s := New(workspaceID)

	var registry struct {
		Datasets []store.Dataset            `json:"datasets"`
		Features map[string][]store.Feature `json:"features"`
		Docs     []store.Document           `json:"documents"`
	}
	if err := readJSONFile(filepath.Join(dir, "registry.json"), &registry); err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, err
	}

	for _, ds := range registry.Datasets {
		s.datasets[ds.ID] = ds
		s.byName[ds.Name] = ds.ID
		s.features[ds.ID] = make(map[string]store.Feature)
	}
	for dsID, list := range registry.Features {
		set := s.features[dsID]
		if set == nil {
			set = make(map[string]store.Feature)
			s.features[dsID] = set
		}
		for _, f := range list {
			set[f.FeatureID] = f
		}
	}
	for _, d := range registry.Docs {
		s.docs[d.ID] = d
	}

	var chunks []store.Chunk
	if err := readJSONFile(filepath.Join(dir, "index", "chunks.json"), &chunks); err == nil {
		for _, c := range chunks {
			s.chunks[c.ID] = c
		}
	}

	var embeds []store.Embedding
	if err := readJSONFile(filepath.Join(dir, "index", "vectors.json"), &embeds); err == nil {
		for _, e := range embeds {
			set, ok := s.embeds[e.ChunkID]
			if !ok {
				set = make(map[string]store.Embedding)
				s.embeds[e.ChunkID] = set
			}
			set[e.Model] = e
		}
	}

	var builds []store.IndexBuild
	if err := readJSONFile(filepath.Join(dir, "index", "build.json"), &builds); err == nil {
		s.builds = builds
	}

	return s, nil
}

func writeJSONFile(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errs.New(errs.Internal, "marshaling snapshot", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return errs.New(errs.Io, "writing snapshot file", err)
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		return errs.New(errs.Io, "writing snapshot file", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return errs.New(errs.Io, "fsyncing snapshot file", err)
	}
	if err := f.Close(); err != nil {
		return errs.New(errs.Io, "closing snapshot file", err)
	}
	return os.Rename(tmp, path)
}

func readJSONFile(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
