package services

import (
	"strings"
	"unicode/utf8"
)

const (
	userLinePrefix = "👤 المستخدم: "
	botLinePrefix  = "🤖 البوت: "
)

// AppendExchange adds one user message and the bot reply to a conversation history.
func AppendExchange(history, userMessage, botReply string) string {
	exchange := userLinePrefix + userMessage + "\n" + botLinePrefix + botReply
	if history == "" {
		return exchange
	}
	return history + "\n" + exchange
}

// TailHistory returns at most limit characters from the end of history,
// starting on a line boundary when one is available.
func TailHistory(history string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(history) <= limit {
		return history
	}
	runes := []rune(history)
	tail := string(runes[len(runes)-limit:])
	if i := strings.Index(tail, "\n"); i >= 0 && i < len(tail)-1 {
		tail = tail[i+1:]
	}
	return tail
}
