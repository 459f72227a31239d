package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogErrorWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	l := New(Config{Level: "info", JSON: true, Output: &buf})

	l.WithUserID("42").LogError(errors.New("boom"), "append failed", "conversation_id", 7)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "append failed", entry["msg"])
	assert.Equal(t, "boom", entry["error"])
	assert.Equal(t, "42", entry["user_id"])
	assert.EqualValues(t, 7, entry["conversation_id"])
}

func TestWithContextFallsBack(t *testing.T) {
	base := Discard()
	assert.Same(t, base, base.WithContext(context.Background()))

	scoped := base.WithRequestID("req-1")
	ctx := IntoContext(context.Background(), scoped)
	assert.Same(t, scoped, base.WithContext(ctx))
}

func TestMiddlewareSetsRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	var buf bytes.Buffer
	l := New(Config{Level: "info", JSON: true, Output: &buf})

	r := gin.New()
	r.Use(Middleware(l))
	r.GET("/ping", func(c *gin.Context) {
		_, ok := c.Get(ContextKey)
		assert.True(t, ok)
		c.String(http.StatusOK, "pong")
	})

	req, _ := http.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set("X-Request-ID", "abc")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc", w.Header().Get("X-Request-ID"))
	assert.Contains(t, buf.String(), `"request_id":"abc"`)
	assert.Contains(t, buf.String(), "request completed")
}
