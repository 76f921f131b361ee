// Package vectorstore holds the knowledge documents used for retrieval: the
// loader, the chunk splitter, the embedding cache and the in-memory index.
package vectorstore

import (
	"strings"
	"unicode/utf8"
)

var defaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into chunks of at most Size characters, trying the
// separators in order and carrying Overlap characters between chunks.
type Splitter struct {
	Size       int
	Overlap    int
	Separators []string
}

func NewSplitter(size, overlap int) *Splitter {
	if overlap >= size {
		overlap = 0
	}
	return &Splitter{Size: size, Overlap: overlap, Separators: defaultSeparators}
}

// Split returns the chunks of text, in order. Whitespace-only chunks are dropped.
func (s *Splitter) Split(text string) []string {
	separators := s.Separators
	if len(separators) == 0 {
		separators = defaultSeparators
	}
	return s.split(text, separators)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var remaining []string
	for i, candidate := range separators {
		if candidate == "" {
			separator = ""
			break
		}
		if strings.Contains(text, candidate) {
			separator = candidate
			remaining = separators[i+1:]
			break
		}
	}

	var final, good []string
	for _, piece := range splitOn(text, separator) {
		if length(piece) < s.Size {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			final = append(final, s.merge(good, separator)...)
			good = nil
		}
		if len(remaining) == 0 {
			final = append(final, piece)
		} else {
			final = append(final, s.split(piece, remaining)...)
		}
	}
	if len(good) > 0 {
		final = append(final, s.merge(good, separator)...)
	}
	return final
}

// merge joins small pieces back into chunks no longer than Size, keeping up
// to Overlap characters of the previous chunk at the start of the next one.
func (s *Splitter) merge(pieces []string, separator string) []string {
	sepLen := length(separator)
	var chunks, current []string
	total := 0

	joinedLen := func(n int) int {
		if len(current) > n {
			return sepLen
		}
		return 0
	}

	for _, piece := range pieces {
		l := length(piece)
		if total+l+joinedLen(0) > s.Size && len(current) > 0 {
			if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
				chunks = append(chunks, chunk)
			}
			for total > s.Overlap || (total+l+joinedLen(0) > s.Size && total > 0) {
				total -= length(current[0]) + joinedLen(1)
				current = current[1:]
			}
		}
		current = append(current, piece)
		total += l + joinedLen(1)
	}
	if chunk := strings.TrimSpace(strings.Join(current, separator)); chunk != "" {
		chunks = append(chunks, chunk)
	}
	return chunks
}

func splitOn(text, separator string) []string {
	var parts []string
	if separator == "" {
		for _, r := range text {
			parts = append(parts, string(r))
		}
		return parts
	}
	for _, part := range strings.Split(text, separator) {
		if part != "" {
			parts = append(parts, part)
		}
	}
	return parts
}

func length(s string) int {
	return utf8.RuneCountInString(s)
}
