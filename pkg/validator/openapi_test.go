package validator

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	apperrors "whatsjuju-chat/backend/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEngine(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	v, err := NewOpenAPIValidator("testdata/echo.yaml")
	require.NoError(t, err)

	r := gin.New()
	r.Use(apperrors.ErrorHandler(), v.Middleware())
	r.POST("/api/v1/echo", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.POST("/api/v1/other", func(c *gin.Context) { c.Status(http.StatusOK) })
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestMiddleware(t *testing.T) {
	r := newEngine(t)

	tests := []struct {
		name string
		path string
		body string
		code int
	}{
		{"valid body", "/api/v1/echo", `{"content":"oi"}`, http.StatusOK},
		{"missing field", "/api/v1/echo", `{}`, http.StatusBadRequest},
		{"wrong type", "/api/v1/echo", `{"content":3}`, http.StatusBadRequest},
		{"undocumented route", "/api/v1/other", `{}`, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := post(r, tt.path, tt.body)
			assert.Equal(t, tt.code, w.Code)
		})
	}
}

func TestNewOpenAPIValidatorMissingFile(t *testing.T) {
	_, err := NewOpenAPIValidator("testdata/absent.yaml")
	assert.Error(t, err)
}
