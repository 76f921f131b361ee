package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppendExchange(t *testing.T) {
	history := AppendExchange("", "salam", "wa alaykum salam")
	assert.Equal(t, "👤 المستخدم: salam\n🤖 البوت: wa alaykum salam", history)

	history = AppendExchange(history, "cv?", "hamdoullah")
	assert.Equal(t, "👤 المستخدم: salam\n🤖 البوت: wa alaykum salam\n👤 المستخدم: cv?\n🤖 البوت: hamdoullah", history)
}

func TestTailHistoryCutsOnLineBoundary(t *testing.T) {
	history := "line one\nline two\nline three"

	assert.Equal(t, history, TailHistory(history, 0))
	assert.Equal(t, history, TailHistory(history, 100))
	assert.Equal(t, "line three", TailHistory(history, 15))
}
