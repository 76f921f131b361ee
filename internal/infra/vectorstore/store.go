package vectorstore

import (
	"math"
	"sort"
	"sync"
)

// Chunk is a piece of a knowledge document with its embedding.
type Chunk struct {
	Text   string
	Source string
	Vector []float64
	norm   float64
}

// Match is a search hit with its cosine similarity to the query.
type Match struct {
	Chunk
	Score float64
}

// Index is an in-memory nearest-neighbour index over chunk embeddings.
type Index struct {
	mu     sync.RWMutex
	chunks []Chunk
}

func NewIndex(chunks []Chunk) *Index {
	idx := &Index{}
	idx.Replace(chunks)
	return idx
}

// Replace swaps the indexed chunks.
func (idx *Index) Replace(chunks []Chunk) {
	prepared := make([]Chunk, 0, len(chunks))
	for _, c := range chunks {
		c.norm = norm(c.Vector)
		if c.norm == 0 {
			continue
		}
		prepared = append(prepared, c)
	}

	idx.mu.Lock()
	idx.chunks = prepared
	idx.mu.Unlock()
}

func (idx *Index) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.chunks)
}

// Search returns the k chunks most similar to query, best first.
func (idx *Index) Search(query []float64, k int) []Match {
	queryNorm := norm(query)
	if k <= 0 || queryNorm == 0 {
		return nil
	}

	idx.mu.RLock()
	matches := make([]Match, 0, len(idx.chunks))
	for _, c := range idx.chunks {
		if len(c.Vector) != len(query) {
			continue
		}
		matches = append(matches, Match{Chunk: c, Score: dot(c.Vector, query) / (c.norm * queryNorm)})
	}
	idx.mu.RUnlock()

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	if len(matches) > k {
		matches = matches[:k]
	}
	return matches
}

func dot(a, b []float64) float64 {
	var sum float64
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

func norm(v []float64) float64 {
	return math.Sqrt(dot(v, v))
}
