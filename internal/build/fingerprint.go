package build

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strconv"

	"github.com/georag/georag/internal/geo"
	"github.com/georag/georag/internal/store"
)

// chunkRecord is the build's working representation of one Chunk: enough
// to persist it, embed it, and feed it into the fingerprint in the
// deterministic order spec §4.7 requires.
type chunkRecord struct {
	DatasetName  string
	FeatureTag   *string // feature_id, or nil for a Document-derived chunk
	DocumentName *string // document name, or nil for a Feature property chunk
	ChunkIndex   int
	Content      string
	StartOffset  int
	EndOffset    int
	Geometry     *geo.Geometry // normalized/validated in-memory copy

	datasetID  string  // storage linkage: owning Dataset id
	documentID string  // storage linkage: the (possibly synthetic) owning Document
	featurePK  *string // store.Chunk.FeatureID weak back-reference
	resolvedID string  // the chunk's authoritative persisted id, filled in after PutChunks
}

// orderChunks sorts records into the deterministic order spec §4.7 names:
// dataset name asc, feature_id asc, then document name asc, chunk_index
// asc. A nil feature_id or document_name sorts as the empty string.
func orderChunks(records []chunkRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.DatasetName != b.DatasetName {
			return a.DatasetName < b.DatasetName
		}
		if af, bf := orEmpty(a.FeatureTag), orEmpty(b.FeatureTag); af != bf {
			return af < bf
		}
		if ad, bd := orEmpty(a.DocumentName), orEmpty(b.DocumentName); ad != bd {
			return ad < bd
		}
		return a.ChunkIndex < b.ChunkIndex
	})
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// fingerprint computes the SHA-256 digest named in spec §4.7: the
// workspace's CRS/distance-unit/geometry-validity configuration, the
// embedder's model tag and dimension, then every chunk in deterministic
// order contributing its dataset name, feature id (or null), document
// name (or null), chunk index, content hash, and normalized geometry WKB
// (or the empty-geometry sentinel). Fields are framed with a presence
// byte and a length prefix so no value, however chosen, can make two
// distinct input sequences hash identically.
func fingerprint(ws store.Workspace, embedderModel string, dims int, records []chunkRecord) (string, error) {
	ordered := make([]chunkRecord, len(records))
	copy(ordered, records)
	orderChunks(ordered)

	h := sha256.New()
	writeField(h, strconv.Itoa(int(ws.CRS)))
	writeField(h, string(ws.DistanceUnit))
	writeField(h, string(ws.GeometryValidity))
	writeField(h, embedderModel)
	writeField(h, strconv.Itoa(dims))

	for _, c := range ordered {
		writeField(h, c.DatasetName)
		writeOptionalField(h, c.FeatureTag)
		writeOptionalField(h, c.DocumentName)
		writeField(h, strconv.Itoa(c.ChunkIndex))
		writeField(h, contentHash(c.Content))

		if c.Geometry == nil || c.Geometry.IsEmpty() {
			writeField(h, "∅") // ∅: no geometry
			continue
		}
		wkb, err := geo.WKB(*c.Geometry)
		if err != nil {
			return "", err
		}
		h.Write([]byte{1})
		fmt.Fprintf(h, "%d:", len(wkb))
		h.Write(wkb)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

func contentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// writeField frames a present string field so a value's own bytes can
// never be mistaken for a field boundary.
func writeField(h interface{ Write([]byte) (int, error) }, s string) {
	h.Write([]byte{1})
	fmt.Fprintf(h, "%d:", len(s))
	h.Write([]byte(s))
}

// writeOptionalField frames a nullable field: a presence byte of 0 with
// no length/content for null, else the same framing as writeField.
func writeOptionalField(h interface{ Write([]byte) (int, error) }, s *string) {
	if s == nil {
		h.Write([]byte{0})
		return
	}
	writeField(h, *s)
}
