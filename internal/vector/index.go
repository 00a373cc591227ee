// Package vector provides an in-memory vector index with snapshot
// isolation: readers search an immutable snapshot while writers
// clone-and-swap, so a search never observes a half-applied mutation.
package vector

import (
	"errors"
	"fmt"
	"math"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/AdvitDeepak/local-recall/internal/model"
)

// ErrDimensionMismatch is returned when a vector's length differs from
// the index's configured dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Index maps entry IDs to fixed-dimension vectors and answers top-k
// cosine similarity queries. Multiple readers run concurrently against
// the current snapshot; writers serialize on an internal mutex.
type Index struct {
	dim  int
	mu   sync.Mutex // serializes writers
	snap atomic.Pointer[snapshot]
}

// snapshot is immutable once published. Vectors are stored normalized
// so cosine similarity reduces to a dot product. Removed entries stay
// as tombstoned slots until Compact rebuilds the arrays.
type snapshot struct {
	version uint64
	ids     []int64
	vectors [][]float32
	live    []bool
	byID    map[int64]int
	count   int
}

type Stats struct {
	Count     int    `json:"count"`
	Dimension int    `json:"dimension"`
	Version   uint64 `json:"version"`
}

func New(dim int) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dim)
	}
	idx := &Index{dim: dim}
	idx.snap.Store(&snapshot{byID: map[int64]int{}})
	return idx, nil
}

// Insert adds the vector for entryID, replacing any previous vector
// for the same entry.
func (x *Index) Insert(entryID int64, vec []float32) error {
	if len(vec) != x.dim {
		return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(vec), x.dim)
	}
	normalized := normalize(vec)
	x.mu.Lock()
	defer x.mu.Unlock()
	cur := x.snap.Load()
	next := cur.clone()
	if pos, ok := next.byID[entryID]; ok {
		next.vectors[pos] = normalized
		next.live[pos] = true
	} else {
		next.ids = append(next.ids, entryID)
		next.vectors = append(next.vectors, normalized)
		next.live = append(next.live, true)
		next.byID[entryID] = len(next.ids) - 1
		next.count++
	}
	x.snap.Store(next)
	return nil
}

// Remove tombstones the vector for entryID. No-op if absent.
func (x *Index) Remove(entryID int64) {
	x.mu.Lock()
	defer x.mu.Unlock()
	cur := x.snap.Load()
	pos, ok := cur.byID[entryID]
	if !ok || !cur.live[pos] {
		return
	}
	next := cur.clone()
	next.live[pos] = false
	delete(next.byID, entryID)
	next.count--
	x.snap.Store(next)
}

// Search returns up to k candidates in strictly descending score
// order, at most one per entry. An empty index yields an empty result,
// not an error.
func (x *Index) Search(query []float32, k int) ([]model.RetrievalCandidate, error) {
	if len(query) != x.dim {
		return nil, fmt.Errorf("%w: query has %d, index expects %d", ErrDimensionMismatch, len(query), x.dim)
	}
	snap := x.snap.Load()
	if k <= 0 || snap.count == 0 {
		return []model.RetrievalCandidate{}, nil
	}
	q := normalize(query)
	scored := make([]model.RetrievalCandidate, 0, snap.count)
	for i, vec := range snap.vectors {
		if !snap.live[i] {
			continue
		}
		scored = append(scored, model.RetrievalCandidate{
			EntryID: snap.ids[i],
			Score:   dot(q, vec),
		})
	}
	sort.Slice(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// Compact rebuilds the backing arrays without tombstoned slots and
// bumps the snapshot version. In-flight searches keep their snapshot.
func (x *Index) Compact() {
	x.mu.Lock()
	defer x.mu.Unlock()
	cur := x.snap.Load()
	next := &snapshot{
		version: cur.version + 1,
		ids:     make([]int64, 0, cur.count),
		vectors: make([][]float32, 0, cur.count),
		live:    make([]bool, 0, cur.count),
		byID:    make(map[int64]int, cur.count),
		count:   cur.count,
	}
	for i, id := range cur.ids {
		if !cur.live[i] {
			continue
		}
		next.byID[id] = len(next.ids)
		next.ids = append(next.ids, id)
		next.vectors = append(next.vectors, cur.vectors[i])
		next.live = append(next.live, true)
	}
	x.snap.Store(next)
}

// Reset drops every vector and bumps the version.
func (x *Index) Reset() {
	x.mu.Lock()
	defer x.mu.Unlock()
	cur := x.snap.Load()
	x.snap.Store(&snapshot{version: cur.version + 1, byID: map[int64]int{}})
}

func (x *Index) Stats() Stats {
	snap := x.snap.Load()
	return Stats{Count: snap.count, Dimension: x.dim, Version: snap.version}
}

func (x *Index) Version() uint64 {
	return x.snap.Load().version
}

func (x *Index) Dimension() int {
	return x.dim
}

// TombstoneRatio reports the fraction of dead slots, used to decide
// when a compaction is worth it.
func (x *Index) TombstoneRatio() float64 {
	snap := x.snap.Load()
	if len(snap.ids) == 0 {
		return 0
	}
	return float64(len(snap.ids)-snap.count) / float64(len(snap.ids))
}

func (s *snapshot) clone() *snapshot {
	next := &snapshot{
		version: s.version,
		ids:     make([]int64, len(s.ids)),
		vectors: make([][]float32, len(s.vectors)),
		live:    make([]bool, len(s.live)),
		byID:    make(map[int64]int, len(s.byID)),
		count:   s.count,
	}
	copy(next.ids, s.ids)
	copy(next.vectors, s.vectors)
	copy(next.live, s.live)
	for id, pos := range s.byID {
		next.byID[id] = pos
	}
	return next
}

func normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	if norm == 0 {
		copy(out, vec)
		return out
	}
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}

func dot(a, b []float32) float32 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return float32(sum)
}
