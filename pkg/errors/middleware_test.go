package errors

import (
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func newTestEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(ErrorHandler(), RecoveryWithLogger())
	return r
}

func TestErrorHandlerRendersAppError(t *testing.T) {
	r := newTestEngine()
	r.GET("/missing", func(c *gin.Context) {
		c.Error(NewNotFoundError(CodeNotFound, "Conversa não encontrada"))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/missing", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"NOT_FOUND"`)
	assert.Contains(t, w.Body.String(), "Conversa não encontrada")
}

func TestErrorHandlerHidesInternalDetail(t *testing.T) {
	r := newTestEngine()
	r.GET("/boom", func(c *gin.Context) {
		c.Error(stderrors.New("pq: relation \"messages\" does not exist"))
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/boom", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), CodeInternal)
	assert.NotContains(t, w.Body.String(), "relation")
}

func TestRecoveryWithLogger(t *testing.T) {
	r := newTestEngine()
	r.GET("/panic", func(c *gin.Context) {
		panic("unexpected")
	})

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/panic", nil)
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "SERVER_ERROR")
}

func TestFromErrorUnwraps(t *testing.T) {
	inner := NewBadRequestError(CodeInvalidInput, "bad")
	wrapped := stderrors.Join(stderrors.New("context"), inner)

	assert.Equal(t, http.StatusBadRequest, GetStatusCode(wrapped))
	assert.Equal(t, CodeInvalidInput, GetErrorCode(wrapped))
	assert.Equal(t, http.StatusInternalServerError, GetStatusCode(stderrors.New("x")))
}
