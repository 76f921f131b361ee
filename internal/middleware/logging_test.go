package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"

	"messenger-connector/internal/infra/logger"
)

func TestLoggingMiddlewareCapturesStatusAndRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.New(context.Background(), &buf, "info", true)

	router := mux.NewRouter()
	router.Use(LoggingMiddleware(log, nil))
	router.HandleFunc("/webhook", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "forbidden", http.StatusForbidden)
	})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/webhook", nil))

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
	assert.Contains(t, buf.String(), `"status":403`)
	assert.Contains(t, buf.String(), "Request: GET /webhook")
}

func TestLoggingMiddlewareReusesInboundRequestID(t *testing.T) {
	router := mux.NewRouter()
	router.Use(LoggingMiddleware(logger.Discard(), nil))
	router.HandleFunc("/healthCheck", func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest(http.MethodGet, "/healthCheck", nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
}
