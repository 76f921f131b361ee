package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"messenger-connector/internal/domain/dto"
	"messenger-connector/internal/infra/logger"
)

func newTestProvider(t *testing.T, handler http.HandlerFunc) *MessengerProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewMessengerProvider(MessengerConfig{
		GraphAPIURL:     server.URL,
		GraphAPIVersion: "v18.0",
		PageAccessToken: "page-token",
		Attempts:        3,
	}, logger.Discard(), server.Client(), nil)
}

func TestSendTextMessage(t *testing.T) {
	var got dto.ISendMessage
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v18.0/me/messages", r.URL.Path)
		assert.Equal(t, "Bearer page-token", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"recipient_id":"123","message_id":"m_1"}`))
	})

	require.NoError(t, p.SendTextMessage(context.Background(), "123", "مرحبا"))
	assert.Equal(t, "123", got.Recipient.ID)
	assert.Equal(t, "RESPONSE", got.MessagingType)
	assert.Equal(t, "مرحبا", got.Message.Text)
	assert.Nil(t, got.Message.Attachment)
}

func TestSendImageMessage(t *testing.T) {
	var raw map[string]any
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		_, _ = w.Write([]byte(`{}`))
	})

	require.NoError(t, p.SendImageMessage(context.Background(), "123", "https://img.example/rb102.jpg"))
	message := raw["message"].(map[string]any)
	assert.NotContains(t, message, "text")
	attachment := message["attachment"].(map[string]any)
	assert.Equal(t, "image", attachment["type"])
	payload := attachment["payload"].(map[string]any)
	assert.Equal(t, "https://img.example/rb102.jpg", payload["url"])
	assert.Equal(t, true, payload["is_reusable"])
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"recipient_id":"1","message_id":"m"}`))
	})

	require.NoError(t, p.SendTextMessage(context.Background(), "1", "hi"))
	assert.Equal(t, int32(3), calls.Load())
}

func TestSendDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid OAuth access token."}}`))
	})

	err := p.SendTextMessage(context.Background(), "1", "hi")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid OAuth access token")
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendLongTextIsSplit(t *testing.T) {
	var texts []string
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		var msg dto.ISendMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&msg))
		texts = append(texts, msg.Message.Text)
		_, _ = w.Write([]byte(`{}`))
	})

	long := strings.Repeat("هذه جملة طويلة للتجربة. ", 150)
	require.NoError(t, p.SendTextMessage(context.Background(), "1", long))
	require.Greater(t, len(texts), 1)
	for _, text := range texts {
		assert.LessOrEqual(t, utf8.RuneCountInString(text), MaxMessageLength)
	}
}

func TestSplitMessage(t *testing.T) {
	assert.Equal(t, []string{"short"}, SplitMessage("short", 20))
	assert.Equal(t, []string{"First line.", "Second line."}, SplitMessage("First line.\nSecond line.", 15))
	assert.Equal(t, []string{"abcdefghij", "klmno"}, SplitMessage("abcdefghijklmno", 10))
	assert.Empty(t, SplitMessage("   ", 10))
}
