package database

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"math"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// IdentityIndexMetadata stores metadata for validating a persisted identity index.
type IdentityIndexMetadata struct {
	ModelTag      string    `json:"model_tag"`
	Count         int       `json:"count"`
	MaxIdentityID int64     `json:"max_identity_id"`
	Checksum      uint64    `json:"checksum"`
	BuildTime     time.Time `json:"build_time"`
	Version       int       `json:"version"`
}

const identityIndexVersion = 1

// IdentityIndex is an in-memory HNSW graph over enrolled identity embeddings.
// It answers approximate nearest-neighbour queries for stores without server-side
// vector search. Recognition itself always uses the exact linear scan.
type IdentityIndex struct {
	graph    *hnsw.Graph[int64]
	faces    map[int64]EnrolledFace
	modelTag string
	mu       sync.RWMutex
}

// NewIdentityIndex creates an empty index for embeddings of the given model tag.
func NewIdentityIndex(modelTag string) *IdentityIndex {
	return &IdentityIndex{
		modelTag: modelTag,
		faces:    make(map[int64]EnrolledFace),
	}
}

func newIdentityGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors) // Standard HNSW formula
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index contents with the given faces.
func (x *IdentityIndex) Build(faces []EnrolledFace) {
	x.mu.Lock()
	defer x.mu.Unlock()

	x.faces = make(map[int64]EnrolledFace, len(faces))
	if len(faces) == 0 {
		x.graph = nil
		return
	}

	g := newIdentityGraph()
	for _, face := range faces {
		if len(face.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(face.IdentityID, face.Embedding))
		x.faces[face.IdentityID] = face
	}
	x.graph = g
}

// Count returns the number of indexed identities.
func (x *IdentityIndex) Count() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.faces)
}

// Nearest returns up to limit identities closest to query, excluding excludeID.
// Distances are recomputed exactly and results are sorted ascending.
func (x *IdentityIndex) Nearest(query []float32, limit int, excludeID int64) ([]Neighbour, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.graph == nil {
		return nil, errors.New("index not initialized")
	}
	if limit <= 0 {
		return nil, nil
	}

	nodes := x.graph.Search(query, limit*HNSWSearchMultiplier)
	result := make([]Neighbour, 0, len(nodes))
	for _, n := range nodes {
		if n.Key == excludeID {
			continue
		}
		face, ok := x.faces[n.Key]
		if !ok {
			continue
		}
		result = append(result, Neighbour{
			IdentityID: face.IdentityID,
			Name:       face.Name,
			Code:       face.Code,
			Distance:   CosineDistance(query, n.Value),
		})
	}

	sort.SliceStable(result, func(i, j int) bool { return result[i].Distance < result[j].Distance })
	if len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

// Save persists the graph to path and its metadata to path+".meta".
func (x *IdentityIndex) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if path == "" {
		return nil
	}
	if x.graph == nil {
		// Remove stale files if index is empty (best-effort cleanup).
		_ = os.Remove(path)
		_ = os.Remove(path + ".meta")
		return nil
	}

	f, err := os.Create(path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create HNSW index file: %w", err)
	}
	defer f.Close()

	if err := x.graph.Export(f); err != nil {
		return fmt.Errorf("exporting HNSW graph: %w", err)
	}

	meta := IdentityIndexMetadata{
		ModelTag:  x.modelTag,
		Count:     len(x.faces),
		BuildTime: time.Now(),
		Version:   identityIndexVersion,
	}
	faces := make([]EnrolledFace, 0, len(x.faces))
	for id, face := range x.faces {
		meta.MaxIdentityID = max(meta.MaxIdentityID, id)
		faces = append(faces, face)
	}
	meta.Checksum = facesChecksum(faces)
	data, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(path+".meta", data, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}
	return nil
}

// Load restores a persisted graph when its metadata still matches faces.
// It returns false when the files are missing or stale; the caller then calls Build.
func (x *IdentityIndex) Load(path string, faces []EnrolledFace) (bool, error) {
	if path == "" {
		return false, nil
	}
	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to read metadata file: %w", err)
	}

	var meta IdentityIndexMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return false, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}

	var maxID int64
	for _, face := range faces {
		maxID = max(maxID, face.IdentityID)
	}
	if meta.Version != identityIndexVersion || meta.ModelTag != x.modelTag ||
		meta.Count != len(faces) || meta.MaxIdentityID != maxID || meta.Checksum != facesChecksum(faces) {
		return false, nil
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return false, fmt.Errorf("failed to load HNSW index: %w", err)
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	x.graph = saved.Graph
	x.graph.Distance = hnsw.CosineDistance
	x.faces = make(map[int64]EnrolledFace, len(faces))
	for _, face := range faces {
		x.faces[face.IdentityID] = face
	}
	return true, nil
}

// facesChecksum hashes identity IDs and vectors in ID order, so a re-enrollment invalidates a saved graph.
func facesChecksum(faces []EnrolledFace) uint64 {
	sorted := make([]EnrolledFace, len(faces))
	copy(sorted, faces)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].IdentityID < sorted[j].IdentityID })

	h := fnv.New64a()
	var buf [8]byte
	for _, face := range sorted {
		binary.LittleEndian.PutUint64(buf[:], uint64(face.IdentityID))
		h.Write(buf[:])
		for _, v := range face.Embedding {
			binary.LittleEndian.PutUint32(buf[:4], math.Float32bits(v))
			h.Write(buf[:4])
		}
	}
	return h.Sum64()
}
