package vectorstore

import (
	"context"
	"fmt"
)

// Embedder turns texts into vectors, one per text and in input order.
type Embedder interface {
	Model() string
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// BuildStats reports how a build obtained its vectors.
type BuildStats struct {
	Documents int
	Chunks    int
	Cached    int
	Embedded  int
}

// Build splits the documents, embeds every chunk not already in cache and
// returns the chunks ready for an Index. A nil cache embeds everything.
func Build(ctx context.Context, docs []Document, splitter *Splitter, embedder Embedder, cache *Cache) ([]Chunk, BuildStats, error) {
	stats := BuildStats{Documents: len(docs)}

	var chunks []Chunk
	for _, doc := range docs {
		for _, text := range splitter.Split(doc.Text) {
			chunks = append(chunks, Chunk{Text: text, Source: doc.Source})
		}
	}
	stats.Chunks = len(chunks)
	if len(chunks) == 0 {
		return nil, stats, nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}

	cached := map[int][]float64{}
	if cache != nil {
		var err error
		cached, err = cache.Get(embedder.Model(), texts)
		if err != nil {
			return nil, stats, fmt.Errorf("read embedding cache: %w", err)
		}
	}

	var missingIdx []int
	var missingTexts []string
	for i := range chunks {
		if vector, ok := cached[i]; ok {
			chunks[i].Vector = vector
			stats.Cached++
			continue
		}
		missingIdx = append(missingIdx, i)
		missingTexts = append(missingTexts, texts[i])
	}

	if len(missingTexts) > 0 {
		vectors, err := embedder.Embed(ctx, missingTexts)
		if err != nil {
			return nil, stats, fmt.Errorf("embed chunks: %w", err)
		}
		for j, i := range missingIdx {
			chunks[i].Vector = vectors[j]
		}
		stats.Embedded = len(missingTexts)

		if cache != nil {
			if err := cache.Put(embedder.Model(), missingTexts, vectors); err != nil {
				return nil, stats, fmt.Errorf("write embedding cache: %w", err)
			}
		}
	}
	return chunks, stats, nil
}
