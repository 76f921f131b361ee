package vectorstore

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestSplitKeepsOverlapBetweenChunks(t *testing.T) {
	s := NewSplitter(7, 3)
	assert.Equal(t, []string{"aaa bbb", "bbb ccc"}, s.Split("aaa bbb ccc"))
}

func TestSplitFallsBackToCharacters(t *testing.T) {
	s := NewSplitter(4, 1)
	assert.Equal(t, []string{"abcd", "defg", "ghij"}, s.Split("abcdefghij"))
}

func TestSplitPrefersParagraphs(t *testing.T) {
	s := NewSplitter(20, 0)
	text := "first paragraph\n\nsecond paragraph"
	assert.Equal(t, []string{"first paragraph", "second paragraph"}, s.Split(text))
}

func TestSplitShortTextIsOneChunk(t *testing.T) {
	s := NewSplitter(1000, 200)
	assert.Equal(t, []string{"سلام عليكم"}, s.Split("  سلام عليكم \n"))
}

func TestSplitChunksNeverExceedSize(t *testing.T) {
	s := NewSplitter(50, 10)
	text := strings.Repeat("خياطة فستان تقليدي جزائري ", 40)

	chunks := s.Split(text)
	assert.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 50)
	}
}

func TestSplitEmptyText(t *testing.T) {
	assert.Empty(t, NewSplitter(10, 2).Split("   "))
}
