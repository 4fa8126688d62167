package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCorrelationID(t *testing.T) {
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := r.Context().Value(CorrelationKey).(string)
		assert.True(t, ok)
		assert.NotEmpty(t, id)
	}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))
	assert.NotEmpty(t, w.Header().Get("X-Correlation-ID"))
}

func TestCorrelationID_PropagatesHeader(t *testing.T) {
	var seen string
	handler := CorrelationID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetCorrelationID(r.Context())
	}))

	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Correlation-ID", "from-client")
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)

	assert.Equal(t, "from-client", seen)
	assert.Equal(t, "from-client", w.Header().Get("X-Correlation-ID"))
}

func TestGetCorrelationID_Missing(t *testing.T) {
	assert.Equal(t, "unknown", GetCorrelationID(context.Background()))
}

func TestCORS(t *testing.T) {
	called := false
	h := CORS(func(w http.ResponseWriter, r *http.Request) { called = true })

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodOptions, "/ask", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.False(t, called)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))

	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/ask", nil))
	assert.True(t, called)
}
